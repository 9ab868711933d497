// Package audit records audit entries and platform events. Recording is
// best effort: failures are logged and never returned to the caller.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voterfield/internal/domain"
	"voterfield/internal/ports"
)

const writeTimeout = 5 * time.Second

type Trail struct {
	repo ports.TrailRepository
	log  *zap.Logger
	now  func() time.Time
}

func New(repo ports.TrailRepository, log *zap.Logger) *Trail {
	if log == nil {
		log = zap.NewNop()
	}
	return &Trail{repo: repo, log: log, now: time.Now}
}

// Entry builds an audit entry without recording it, for callers that
// persist it inside their own transaction.
func (t *Trail) Entry(action, actorUserID, orgID string, metadata map[string]any) domain.AuditLogEntry {
	return domain.AuditLogEntry{
		ID:          uuid.NewString(),
		Action:      action,
		ActorUserID: actorUserID,
		TargetOrgID: orgID,
		OccurredAt:  t.clock(),
		Metadata:    metadata,
	}
}

// Event builds a platform event without recording it.
func (t *Trail) Event(eventType, orgID, userID string, metadata map[string]any) domain.PlatformEvent {
	return domain.PlatformEvent{
		ID:         uuid.NewString(),
		EventType:  eventType,
		OccurredAt: t.clock(),
		OrgID:      orgID,
		UserID:     userID,
		Metadata:   metadata,
	}
}

func (t *Trail) clock() time.Time {
	if t == nil || t.now == nil {
		return time.Now().UTC()
	}
	return t.now().UTC()
}

// Log appends an audit entry. A nil Trail is a no-op.
func (t *Trail) Log(ctx context.Context, action, actorUserID, orgID string, metadata map[string]any) {
	if t == nil {
		return
	}
	t.Record(ctx, t.Entry(action, actorUserID, orgID, metadata))
}

// Emit appends a platform event. A nil Trail is a no-op.
func (t *Trail) Emit(ctx context.Context, eventType, orgID, userID string, metadata map[string]any) {
	if t == nil {
		return
	}
	t.RecordEvent(ctx, t.Event(eventType, orgID, userID, metadata))
}

// Record persists e. The write outlives a cancelled request.
func (t *Trail) Record(ctx context.Context, e domain.AuditLogEntry) {
	if t == nil {
		return
	}
	t.Mirror(e)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if err := t.repo.AppendAudit(ctx, e); err != nil {
		t.log.Error("failed to store audit entry", zap.Error(err), zap.String("action", e.Action), zap.String("org_id", e.TargetOrgID))
	}
}

func (t *Trail) RecordEvent(ctx context.Context, e domain.PlatformEvent) {
	if t == nil {
		return
	}
	t.MirrorEvent(e)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if err := t.repo.AppendEvent(ctx, e); err != nil {
		t.log.Error("failed to store event", zap.Error(err), zap.String("event_type", e.EventType), zap.String("org_id", e.OrgID))
	}
}

// Mirror writes the entry to the structured log only. Used for entries
// persisted by a repository transaction.
func (t *Trail) Mirror(e domain.AuditLogEntry) {
	if t == nil {
		return
	}
	t.log.Info("audit entry",
		zap.Bool("audit", true),
		zap.String("action", e.Action),
		zap.String("actor_user_id", e.ActorUserID),
		zap.String("org_id", e.TargetOrgID),
		zap.Any("metadata", e.Metadata))
}

func (t *Trail) MirrorEvent(e domain.PlatformEvent) {
	if t == nil {
		return
	}
	t.log.Info("platform event",
		zap.Bool("event", true),
		zap.String("event_type", e.EventType),
		zap.String("org_id", e.OrgID),
		zap.String("user_id", e.UserID),
		zap.Any("metadata", e.Metadata))
}
