package models

import (
	"fmt"
	"strings"
)

// ScopeResource enumerates the resources a token scope can name.
type ScopeResource string

const (
	ResourceUser              ScopeResource = "user"
	ResourceRoles             ScopeResource = "roles"
	ResourceAuditLogs         ScopeResource = "audit-logs"
	ResourceConnections       ScopeResource = "connections"
	ResourceOAuthApplications ScopeResource = "oauth-applications"
)

// ScopeAction enumerates the actions. All serializes as "*".
type ScopeAction string

const (
	ActionCreate ScopeAction = "create"
	ActionRead   ScopeAction = "read"
	ActionUpdate ScopeAction = "update"
	ActionDelete ScopeAction = "delete"
	ActionAll    ScopeAction = "*"
)

var knownResources = map[ScopeResource]bool{
	ResourceUser:              true,
	ResourceRoles:             true,
	ResourceAuditLogs:         true,
	ResourceConnections:       true,
	ResourceOAuthApplications: true,
}

var knownActions = map[ScopeAction]bool{
	ActionCreate: true,
	ActionRead:   true,
	ActionUpdate: true,
	ActionDelete: true,
	ActionAll:    true,
}

// Scope is a typed (resource, action) pair. Wire form "resource:action".
type Scope struct {
	Resource ScopeResource
	Action   ScopeAction
}

// ParseScope parses the wire form. Unknown resources or actions are a
// hard failure, never silently accepted.
func ParseScope(raw string) (Scope, error) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return Scope{}, fmt.Errorf("invalid scope %q", raw)
	}
	resource := ScopeResource(parts[0])
	action := ScopeAction(parts[1])
	if !knownResources[resource] {
		return Scope{}, fmt.Errorf("unknown scope resource %q", parts[0])
	}
	if !knownActions[action] {
		return Scope{}, fmt.Errorf("unknown scope action %q", parts[1])
	}
	return Scope{Resource: resource, Action: action}, nil
}

func (s Scope) String() string {
	return string(s.Resource) + ":" + string(s.Action)
}

func (s Scope) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Scope) UnmarshalText(text []byte) error {
	parsed, err := ParseScope(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ScopeList is an ordered scope set as requested by the client.
type ScopeList []Scope

// ParseScopes parses a list of wire-form scopes, failing on the first
// invalid entry.
func ParseScopes(raw []string) (ScopeList, error) {
	scopes := make(ScopeList, 0, len(raw))
	for _, r := range raw {
		s, err := ParseScope(r)
		if err != nil {
			return nil, err
		}
		scopes = append(scopes, s)
	}
	return scopes, nil
}

// Has reports exact membership. The "*" action is not expanded here;
// callers test (R, A) and (R, All) explicitly.
func (l ScopeList) Has(s Scope) bool {
	for _, have := range l {
		if have == s {
			return true
		}
	}
	return false
}

// Allows reports whether the list grants the action on the resource,
// either exactly or through the resource's All scope.
func (l ScopeList) Allows(resource ScopeResource, action ScopeAction) bool {
	return l.Has(Scope{Resource: resource, Action: action}) ||
		l.Has(Scope{Resource: resource, Action: ActionAll})
}

// Strings returns the wire forms in order.
func (l ScopeList) Strings() []string {
	out := make([]string, len(l))
	for i, s := range l {
		out[i] = s.String()
	}
	return out
}

// Join renders the comma-joined form used by the token endpoint.
func (l ScopeList) Join() string {
	return strings.Join(l.Strings(), ",")
}
