package models

// Sensitive diff fields and their replacement values. Enumerated here
// once so no handler can leak a secret into an audit map.
var redactedFields = map[string]string{
	"password":   "HIDDEN",
	"totpSecret": "***********",
	"token":      "***********",
}

// Diff accumulates field-level old/new value pairs for a PATCH. Every
// update handler feeds it and hands the two maps to the audit writer;
// an empty diff means the store is never touched.
type Diff struct {
	oldValues map[string]string
	newValues map[string]string
}

func NewDiff() *Diff {
	return &Diff{
		oldValues: make(map[string]string),
		newValues: make(map[string]string),
	}
}

// Set records a change unconditionally, redacting sensitive fields.
func (d *Diff) Set(field, oldValue, newValue string) {
	if replacement, ok := redactedFields[field]; ok {
		oldValue, newValue = replacement, replacement
	}
	d.oldValues[field] = oldValue
	d.newValues[field] = newValue
}

// Compare records a change only when the values differ, and reports
// whether it did.
func (d *Diff) Compare(field, oldValue, newValue string) bool {
	if oldValue == newValue {
		return false
	}
	d.Set(field, oldValue, newValue)
	return true
}

// Modified reports whether any field changed.
func (d *Diff) Modified() bool {
	return len(d.newValues) > 0
}

// OldValues returns the accumulated before-map, nil when empty.
func (d *Diff) OldValues() map[string]string {
	if len(d.oldValues) == 0 {
		return nil
	}
	return d.oldValues
}

// NewValues returns the accumulated after-map, nil when empty.
func (d *Diff) NewValues() map[string]string {
	if len(d.newValues) == 0 {
		return nil
	}
	return d.newValues
}
