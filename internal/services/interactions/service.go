// Package interactions is the canvass ledger: append-only outcomes keyed by
// a client-generated id so offline clients can retry safely.
package interactions

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"voterfield/internal/domain"
	"voterfield/internal/ports"
	"voterfield/internal/services/audit"
)

const (
	DefaultLimit = 200
	MaxLimit     = 1000
)

type Service struct {
	repo  ports.InteractionRepository
	trail *audit.Trail
}

func New(repo ports.InteractionRepository, trail *audit.Trail) *Service {
	return &Service{repo: repo, trail: trail}
}

// Submission is one interaction as sent by a client.
type Submission struct {
	ClientInteractionUUID string            `json:"client_interaction_uuid"`
	VoterID               string            `json:"voter_id"`
	AssignmentID          string            `json:"assignment_id,omitempty"`
	OccurredAt            *time.Time        `json:"occurred_at"`
	Channel               string            `json:"channel,omitempty"`
	ResultCode            domain.ResultCode `json:"result_code"`
	Notes                 string            `json:"notes,omitempty"`
	SurveyResponses       map[string]any    `json:"survey_responses,omitempty"`
}

func (s Submission) build(caller domain.Caller) (domain.Interaction, error) {
	key := strings.TrimSpace(s.ClientInteractionUUID)
	if key == "" || s.VoterID == "" || s.ResultCode == "" || s.OccurredAt == nil || s.OccurredAt.IsZero() {
		return domain.Interaction{}, domain.BadRequest("client_interaction_uuid, voter_id, result_code and occurred_at are required")
	}
	if !s.ResultCode.Valid() {
		return domain.Interaction{}, domain.BadRequest("unknown result_code %q", s.ResultCode)
	}
	channel := s.Channel
	if channel == "" {
		channel = domain.ChannelCanvass
	}
	if channel != domain.ChannelCanvass {
		return domain.Interaction{}, domain.BadRequest("channel must be %s", domain.ChannelCanvass)
	}
	if uuid.Validate(s.VoterID) != nil {
		return domain.Interaction{}, domain.NotFound("voter")
	}
	if s.AssignmentID != "" && uuid.Validate(s.AssignmentID) != nil {
		return domain.Interaction{}, domain.NotFound("assignment")
	}
	return domain.Interaction{
		ID:                    uuid.NewString(),
		ClientInteractionUUID: key,
		OrgID:                 caller.OrgID,
		UserID:                caller.UserID,
		VoterID:               s.VoterID,
		AssignmentID:          s.AssignmentID,
		OccurredAt:            s.OccurredAt.UTC(),
		Channel:               channel,
		ResultCode:            s.ResultCode,
		Notes:                 strings.TrimSpace(s.Notes),
		SurveyResponses:       s.SurveyResponses,
	}, nil
}

// Log records one interaction. Resubmitting a known client id returns the
// stored interaction and writes nothing.
func (s *Service) Log(ctx context.Context, caller domain.Caller, sub Submission) (domain.Interaction, error) {
	in, err := sub.build(caller)
	if err != nil {
		return domain.Interaction{}, err
	}
	stored, _, err := s.insert(ctx, caller, in)
	return stored, err
}

func (s *Service) insert(ctx context.Context, caller domain.Caller, in domain.Interaction) (domain.Interaction, bool, error) {
	meta := map[string]any{
		"interaction_id": in.ID,
		"voter_id":       in.VoterID,
		"result_code":    in.ResultCode,
	}
	entry := s.trail.Entry("interaction.create", caller.UserID, caller.OrgID, meta)
	event := s.trail.Event("interactions.created", caller.OrgID, caller.UserID, meta)
	stored, created, err := s.repo.InsertInteraction(ctx, in, entry, event)
	if err != nil {
		return domain.Interaction{}, false, err
	}
	if created {
		s.trail.Mirror(entry)
		s.trail.MirrorEvent(event)
	}
	return stored, created, nil
}

// BulkLog inserts every well-formed submission and returns how many were
// new. Malformed items, items for voters outside the org and known client
// ids are skipped without error. Persistence failures abort the batch;
// items already inserted stay.
func (s *Service) BulkLog(ctx context.Context, caller domain.Caller, subs []Submission) (int, error) {
	inserted := 0
	for _, sub := range subs {
		in, err := sub.build(caller)
		if err != nil {
			continue
		}
		_, created, err := s.insert(ctx, caller, in)
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrBadRequest) {
			continue
		}
		if err != nil {
			return inserted, err
		}
		if created {
			inserted++
		}
	}
	if inserted > 0 {
		s.trail.Emit(ctx, "interactions.bulk_created", caller.OrgID, caller.UserID, map[string]any{
			"count":     inserted,
			"submitted": len(subs),
		})
	}
	return inserted, nil
}

// ListParams are the raw list inputs; nil means absent.
type ListParams struct {
	VoterID string
	Mine    bool
	Limit   *int
	Offset  *int
}

// List returns interactions most recent first.
func (s *Service) List(ctx context.Context, caller domain.Caller, p ListParams) ([]domain.Interaction, error) {
	f := domain.InteractionFilter{Limit: DefaultLimit}
	if p.Limit != nil {
		if *p.Limit < 1 || *p.Limit > MaxLimit {
			return nil, domain.BadRequest("limit must be between 1 and %d", MaxLimit)
		}
		f.Limit = *p.Limit
	}
	if p.Offset != nil {
		if *p.Offset < 0 {
			return nil, domain.BadRequest("offset must not be negative")
		}
		f.Offset = *p.Offset
	}
	if p.VoterID != "" {
		if uuid.Validate(p.VoterID) != nil {
			return []domain.Interaction{}, nil
		}
		f.VoterID = p.VoterID
	}
	if p.Mine {
		f.UserID = caller.UserID
	}
	return s.repo.ListInteractions(ctx, caller.OrgID, f)
}
