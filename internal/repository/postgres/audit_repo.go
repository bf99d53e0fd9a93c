// internal/repository/postgres/audit_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"adminauth-service/internal/domain/auth"

	squirrel "github.com/Masterminds/squirrel"
)

const auditTable = "auth_audit_log"

// AuditRepository persists authentication events to auth_audit_log.
type AuditRepository struct {
	db      Pool
	builder squirrel.StatementBuilderType
}

func NewAuditRepository(db Pool) *AuditRepository {
	return &AuditRepository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Insert appends one event.
func (r *AuditRepository) Insert(ctx context.Context, ev auth.Event) error {
	var metadataJSON []byte
	if len(ev.Metadata) > 0 {
		var err error
		metadataJSON, err = json.Marshal(ev.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	var userID *int64
	if ev.UserID != 0 {
		userID = &ev.UserID
	}

	query, args, err := r.builder.
		Insert(auditTable).
		Columns("event_type", "user_id", "email", "metadata", "occurred_at").
		Values(string(ev.Type), userID, ev.Email, metadataJSON, ev.OccurredAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert audit event: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// List returns one page of events, newest first, and the total match count.
func (r *AuditRepository) List(ctx context.Context, filter auth.AuditFilter) ([]auth.Event, int64, error) {
	filter.Normalize()

	where := squirrel.And{}
	if filter.UserID != nil {
		where = append(where, squirrel.Eq{"user_id": *filter.UserID})
	}
	if filter.Type != nil {
		where = append(where, squirrel.Eq{"event_type": string(*filter.Type)})
	}
	if filter.Since != nil {
		where = append(where, squirrel.GtOrEq{"occurred_at": *filter.Since})
	}

	countQ := r.builder.Select("COUNT(*)").From(auditTable)
	listQ := r.builder.
		Select("event_type", "COALESCE(user_id, 0)", "email", "metadata", "occurred_at").
		From(auditTable).
		OrderBy("occurred_at DESC", "id DESC").
		Limit(uint64(filter.PageSize)).
		Offset(uint64((filter.Page - 1) * filter.PageSize))
	if len(where) > 0 {
		countQ = countQ.Where(where)
		listQ = listQ.Where(where)
	}

	query, args, err := countQ.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count audit events: %w", err)
	}
	var total int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit events: %w", err)
	}

	query, args, err = listQ.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list audit events: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	events := []auth.Event{}
	for rows.Next() {
		var ev auth.Event
		var eventType string
		var metadataJSON []byte

		if err := rows.Scan(&eventType, &ev.UserID, &ev.Email, &metadataJSON, &ev.OccurredAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit event: %w", err)
		}
		ev.Type = auth.EventType(eventType)

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &ev.Metadata); err != nil {
				return nil, 0, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}

		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate audit events: %w", err)
	}

	return events, total, nil
}
