package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/okapicare/tenantguard/internal/security/domain"
)

type auditRepo struct {
	db dbtx
}

func (r *auditRepo) InsertAuditEntry(ctx context.Context, e domain.AuditEntry) error {
	id := e.ID
	if id == "" {
		id = newEntryID()
	}
	at := e.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (
			id, actor_id, actor_kind, action, resource_type, resource_id,
			facility_id, description, previous_values, new_values,
			ip_address, user_agent, session_id,
			is_security_event, security_event_type, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, mapOptionalString(e.ActorID), e.ActorKind, e.Action, e.ResourceType,
		mapOptionalString(e.ResourceID), mapOptionalString(e.FacilityID), e.Description,
		mapOptionalJSON(e.PreviousValues), mapOptionalJSON(e.NewValues),
		e.IPAddress, e.UserAgent, mapOptionalString(e.SessionID),
		e.SecurityEvent, mapOptionalString(e.SecurityEventType), at.UTC())
	return err
}

func mapOptionalJSON(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

func (r *auditRepo) QueryAuditEntries(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEntry, error) {
	var conds []string
	var args []any

	if f.FacilityID != nil {
		conds = append(conds, "facility_id = ?")
		args = append(args, *f.FacilityID)
	}
	if f.ActorID != nil {
		conds = append(conds, "actor_id = ?")
		args = append(args, *f.ActorID)
	}
	if f.Action != nil {
		conds = append(conds, "action = ?")
		args = append(args, *f.Action)
	}
	if f.ResourceType != nil {
		conds = append(conds, "resource_type = ?")
		args = append(args, *f.ResourceType)
	}
	if f.SecurityOnly {
		conds = append(conds, "is_security_event = 1")
	}
	if f.From != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, f.To.UTC())
	}

	query := `
		SELECT id, actor_id, actor_kind, action, resource_type, resource_id,
		       facility_id, description, previous_values, new_values,
		       ip_address, user_agent, session_id,
		       is_security_event, security_event_type, created_at
		FROM audit_log`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var actorID, resourceID, facilityID, sessionID, eventType sql.NullString
		var prev, next sql.NullString
		if err := rows.Scan(&e.ID, &actorID, &e.ActorKind, &e.Action, &e.ResourceType,
			&resourceID, &facilityID, &e.Description, &prev, &next,
			&e.IPAddress, &e.UserAgent, &sessionID,
			&e.SecurityEvent, &eventType, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ActorID = mapNullStringPtr(actorID)
		e.ResourceID = mapNullStringPtr(resourceID)
		e.FacilityID = mapNullStringPtr(facilityID)
		e.SessionID = mapNullStringPtr(sessionID)
		e.SecurityEventType = mapNullStringPtr(eventType)
		if prev.Valid {
			e.PreviousValues = json.RawMessage(prev.String)
		}
		if next.Valid {
			e.NewValues = json.RawMessage(next.String)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
