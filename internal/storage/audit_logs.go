package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/veldtec/authgate/internal/models"
)

// auditTable routes an entity type to its append-only table. Settings
// entries land in system_logs.
func auditTable(entityType models.AuditLogEntityType) (string, error) {
	switch entityType {
	case models.AuditEntityUser:
		return "logs.user_logs", nil
	case models.AuditEntityRole:
		return "logs.role_logs", nil
	case models.AuditEntityOAuthApplication:
		return "logs.oauth_application_logs", nil
	case models.AuditEntityRegistrationToken:
		return "logs.registration_token_logs", nil
	case models.AuditEntityPasskey:
		return "logs.passkey_logs", nil
	case models.AuditEntitySettings:
		return "logs.system_logs", nil
	default:
		return "", fmt.Errorf("unknown audit entity type %q", entityType)
	}
}

var auditEntityTypes = []models.AuditLogEntityType{
	models.AuditEntityUser,
	models.AuditEntityRole,
	models.AuditEntityOAuthApplication,
	models.AuditEntityRegistrationToken,
	models.AuditEntityPasskey,
	models.AuditEntitySettings,
}

func (s *Store) InsertAuditLog(ctx context.Context, entry models.AuditLog) error {
	table, err := auditTable(entry.EntityType)
	if err != nil {
		return err
	}

	oldValues, err := marshalValues(entry.OldValues)
	if err != nil {
		return err
	}
	newValues, err := marshalValues(entry.NewValues)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+table+` (id, entity_id, action, reason, author_id, old_values, new_values, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.EntityID, string(entry.Action), entry.Reason, entry.AuthorID, oldValues, newValues, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

func marshalValues(values map[string]string) ([]byte, error) {
	if values == nil {
		return nil, nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit values: %w", err)
	}
	return raw, nil
}

func scanAuditLog(row interface{ Scan(...any) error }, entityType models.AuditLogEntityType) (*models.AuditLog, error) {
	var (
		entry     models.AuditLog
		action    string
		oldValues []byte
		newValues []byte
	)
	err := row.Scan(&entry.ID, &entry.EntityID, &action, &entry.Reason, &entry.AuthorID, &oldValues, &newValues, &entry.CreatedAt)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan audit log: %w", err)
	}
	entry.EntityType = entityType
	entry.Action = models.AuditLogAction(action)
	if oldValues != nil {
		if err := json.Unmarshal(oldValues, &entry.OldValues); err != nil {
			return nil, fmt.Errorf("failed to decode audit values: %w", err)
		}
	}
	if newValues != nil {
		if err := json.Unmarshal(newValues, &entry.NewValues); err != nil {
			return nil, fmt.Errorf("failed to decode audit values: %w", err)
		}
	}
	return &entry, nil
}

const auditColumns = "id, entity_id, action, reason, author_id, old_values, new_values, created_at"

func (s *Store) queryAuditLogs(ctx context.Context, entityType models.AuditLogEntityType, where string, args ...any) ([]models.AuditLog, error) {
	table, err := auditTable(entityType)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, "SELECT "+auditColumns+" FROM "+table+" "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditLog
	for rows.Next() {
		entry, err := scanAuditLog(rows, entityType)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func (s *Store) GetAuditLogByID(ctx context.Context, entityType models.AuditLogEntityType, id uuid.UUID) (*models.AuditLog, error) {
	entries, err := s.queryAuditLogs(ctx, entityType, "WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func (s *Store) ListAuditLogsByType(ctx context.Context, entityType models.AuditLogEntityType) ([]models.AuditLog, error) {
	return s.queryAuditLogs(ctx, entityType, "ORDER BY created_at")
}

func (s *Store) ListAuditLogsByEntity(ctx context.Context, entityType models.AuditLogEntityType, entityID string) ([]models.AuditLog, error) {
	return s.queryAuditLogs(ctx, entityType, "WHERE entity_id = $1 ORDER BY created_at", entityID)
}

// ListAuditLogs merges entries from all six tables, sorted by
// creation time.
func (s *Store) ListAuditLogs(ctx context.Context) ([]models.AuditLog, error) {
	var merged []models.AuditLog
	for _, entityType := range auditEntityTypes {
		entries, err := s.queryAuditLogs(ctx, entityType, "")
		if err != nil {
			return nil, err
		}
		merged = append(merged, entries...)
	}
	sortByCreatedAt(merged)
	return merged, nil
}

// ListAuditLogsByAuthor merges entries authored by the user from all
// six tables, sorted by creation time.
func (s *Store) ListAuditLogsByAuthor(ctx context.Context, authorID uuid.UUID) ([]models.AuditLog, error) {
	var merged []models.AuditLog
	for _, entityType := range auditEntityTypes {
		entries, err := s.queryAuditLogs(ctx, entityType, "WHERE author_id = $1", authorID)
		if err != nil {
			return nil, err
		}
		merged = append(merged, entries...)
	}
	sortByCreatedAt(merged)
	return merged, nil
}

func sortByCreatedAt(entries []models.AuditLog) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}
