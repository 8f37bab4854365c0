package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLogEntityType tags which entity a log entry is about. Each type
// maps to its own append-only table.
type AuditLogEntityType string

const (
	AuditEntityUser              AuditLogEntityType = "user"
	AuditEntityRole              AuditLogEntityType = "role"
	AuditEntityOAuthApplication  AuditLogEntityType = "oauth_application"
	AuditEntityRegistrationToken AuditLogEntityType = "registration_token"
	AuditEntityPasskey           AuditLogEntityType = "passkey"
	AuditEntitySettings          AuditLogEntityType = "settings"
)

// ParseAuditLogEntityType maps the URL segment to a type.
func ParseAuditLogEntityType(raw string) (AuditLogEntityType, bool) {
	switch raw {
	case "user", "users":
		return AuditEntityUser, true
	case "role", "roles":
		return AuditEntityRole, true
	case "oauth_application", "oauth-applications":
		return AuditEntityOAuthApplication, true
	case "registration_token", "registration-tokens":
		return AuditEntityRegistrationToken, true
	case "passkey", "passkeys":
		return AuditEntityPasskey, true
	case "settings":
		return AuditEntitySettings, true
	default:
		return "", false
	}
}

// AuditLogAction tags what happened.
type AuditLogAction string

const (
	AuditActionCreate AuditLogAction = "create"
	AuditActionUpdate AuditLogAction = "update"
	AuditActionLogin  AuditLogAction = "login"
	AuditActionDelete AuditLogAction = "delete"
)

// AuditLog is one append-only trail entry. EntityID is a string so
// passkey credential ids fit alongside UUIDs.
type AuditLog struct {
	ID         uuid.UUID          `json:"id"`
	EntityID   string             `json:"entityId"`
	EntityType AuditLogEntityType `json:"entityType"`
	Action     AuditLogAction     `json:"action"`
	Reason     string             `json:"reason"`
	AuthorID   uuid.UUID          `json:"authorId"`
	OldValues  map[string]string  `json:"oldValues,omitempty"`
	NewValues  map[string]string  `json:"newValues,omitempty"`
	CreatedAt  time.Time          `json:"createdAt"`
}

// NewAuditLog builds an entry with a fresh id and timestamp.
func NewAuditLog(entityID string, entityType AuditLogEntityType, action AuditLogAction, reason string, authorID uuid.UUID, oldValues, newValues map[string]string) AuditLog {
	return AuditLog{
		ID:         uuid.New(),
		EntityID:   entityID,
		EntityType: entityType,
		Action:     action,
		Reason:     reason,
		AuthorID:   authorID,
		OldValues:  oldValues,
		NewValues:  newValues,
		CreatedAt:  time.Now().UTC(),
	}
}
