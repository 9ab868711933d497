package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"

	"voterfield/internal/domain"
)

// execer is satisfied by the pool and by transactions.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertAudit(ctx context.Context, x execer, e domain.AuditLogEntry) error {
	meta, err := jsonArg(e.Metadata)
	if err != nil {
		return err
	}
	_, err = x.Exec(ctx, `
        INSERT INTO audit_log (id, action, actor_user_id, target_org_id, occurred_at, metadata)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.Action, e.ActorUserID, e.TargetOrgID, e.OccurredAt, meta)
	return err
}

func insertEvent(ctx context.Context, x execer, e domain.PlatformEvent) error {
	meta, err := jsonArg(e.Metadata)
	if err != nil {
		return err
	}
	_, err = x.Exec(ctx, `
        INSERT INTO platform_events (id, event_type, occurred_at, org_id, user_id, metadata)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.EventType, e.OccurredAt, e.OrgID, nullStr(e.UserID), meta)
	return err
}

func (db *DB) AppendAudit(ctx context.Context, e domain.AuditLogEntry) error {
	return mapErr(insertAudit(ctx, db.Pool, e), "audit entry")
}

func (db *DB) AppendEvent(ctx context.Context, e domain.PlatformEvent) error {
	return mapErr(insertEvent(ctx, db.Pool, e), "platform event")
}
