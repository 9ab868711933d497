// Package lists manages walk lists and their assignment to canvassers.
package lists

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"voterfield/internal/domain"
	"voterfield/internal/ports"
	"voterfield/internal/services/audit"
)

type Scope string

const (
	ScopeOrg Scope = "org"
	ScopeMe  Scope = "me"
)

type Service struct {
	lists       ports.ListRepository
	assignments ports.AssignmentRepository
	users       ports.UserRepository
	trail       *audit.Trail
}

func New(lists ports.ListRepository, assignments ports.AssignmentRepository, users ports.UserRepository, trail *audit.Trail) *Service {
	return &Service{lists: lists, assignments: assignments, users: users, trail: trail}
}

func (s *Service) ListWalkLists(ctx context.Context, caller domain.Caller) ([]domain.WalkList, error) {
	return s.lists.ListWalkLists(ctx, caller.OrgID)
}

func (s *Service) GetWalkList(ctx context.Context, caller domain.Caller, listID string) (domain.WalkList, error) {
	if uuid.Validate(listID) != nil {
		return domain.WalkList{}, domain.NotFound("walk list")
	}
	return s.lists.GetWalkList(ctx, caller.OrgID, listID)
}

// CreateWalkList stores a named list. voterIDs must be non-nil but may be
// empty; duplicates are collapsed keeping first occurrence order.
func (s *Service) CreateWalkList(ctx context.Context, caller domain.Caller, name string, voterIDs []string) (domain.WalkList, error) {
	if err := caller.RequireAdmin(); err != nil {
		return domain.WalkList{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.WalkList{}, domain.BadRequest("name is required")
	}
	if voterIDs == nil {
		return domain.WalkList{}, domain.BadRequest("voterIds must be an array")
	}
	seen := make(map[string]bool, len(voterIDs))
	ids := make([]string, 0, len(voterIDs))
	for _, id := range voterIDs {
		if uuid.Validate(id) != nil {
			return domain.WalkList{}, domain.BadRequest("voterIds contains an invalid id %q", id)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	created, err := s.lists.CreateWalkList(ctx, domain.WalkList{
		ID:              uuid.NewString(),
		OrgID:           caller.OrgID,
		Name:            name,
		VoterIDs:        ids,
		CreatedByUserID: caller.UserID,
	})
	if err != nil {
		return domain.WalkList{}, err
	}
	s.trail.Log(ctx, "list.create", caller.UserID, caller.OrgID, map[string]any{"list_id": created.ID, "name": created.Name})
	s.trail.Emit(ctx, "list.created", caller.OrgID, caller.UserID, map[string]any{"list_id": created.ID, "count": len(created.VoterIDs)})
	return created, nil
}

// ListAssignments returns the whole org's assignments for admins, or the
// caller's own.
func (s *Service) ListAssignments(ctx context.Context, caller domain.Caller, scope Scope) ([]domain.Assignment, error) {
	switch scope {
	case ScopeOrg:
		if err := caller.RequireAdmin(); err != nil {
			return nil, err
		}
		return s.assignments.ListAssignments(ctx, caller.OrgID, "")
	case ScopeMe, "":
		return s.assignments.ListAssignments(ctx, caller.OrgID, caller.UserID)
	default:
		return nil, domain.BadRequest("scope must be org or me")
	}
}

// CreateAssignment binds a list to a canvasser. A list has at most one
// assignment: assigning it again hands it to the new canvasser and resets
// its status.
func (s *Service) CreateAssignment(ctx context.Context, caller domain.Caller, listID, canvasserID string) (domain.Assignment, error) {
	if err := caller.RequireAdmin(); err != nil {
		return domain.Assignment{}, err
	}
	if listID == "" || canvasserID == "" {
		return domain.Assignment{}, domain.BadRequest("listId and canvasserId are required")
	}
	if _, err := s.GetWalkList(ctx, caller, listID); err != nil {
		return domain.Assignment{}, err
	}
	if uuid.Validate(canvasserID) != nil {
		return domain.Assignment{}, domain.NotFound("user")
	}
	canvasser, err := s.users.GetUser(ctx, caller.OrgID, canvasserID)
	if err != nil {
		return domain.Assignment{}, err
	}
	if !canvasser.Role.Valid() {
		return domain.Assignment{}, domain.BadRequest("user cannot be assigned")
	}
	a, err := s.assignments.UpsertAssignment(ctx, domain.Assignment{
		ID:          uuid.NewString(),
		OrgID:       caller.OrgID,
		ListID:      listID,
		CanvasserID: canvasserID,
		Status:      domain.AssignmentAssigned,
	})
	if err != nil {
		return domain.Assignment{}, err
	}
	s.trail.Log(ctx, "assignment.create", caller.UserID, caller.OrgID, map[string]any{
		"assignment_id": a.ID, "list_id": listID, "canvasser_id": canvasserID,
	})
	s.trail.Emit(ctx, "assignment.created", caller.OrgID, caller.UserID, map[string]any{
		"assignment_id": a.ID, "list_id": listID, "canvasser_id": canvasserID,
	})
	return a, nil
}

// UpdateAssignmentStatus applies an explicit transition requested by an
// admin or by the assigned canvasser.
func (s *Service) UpdateAssignmentStatus(ctx context.Context, caller domain.Caller, assignmentID string, status domain.AssignmentStatus) (domain.Assignment, error) {
	if !status.Valid() {
		return domain.Assignment{}, domain.BadRequest("status must be assigned, in_progress or completed")
	}
	if uuid.Validate(assignmentID) != nil {
		return domain.Assignment{}, domain.NotFound("assignment")
	}
	a, err := s.assignments.GetAssignment(ctx, caller.OrgID, assignmentID)
	if err != nil {
		return domain.Assignment{}, err
	}
	if !caller.IsAdmin() && a.CanvasserID != caller.UserID {
		return domain.Assignment{}, domain.Forbidden("Insufficient permissions")
	}
	if a.Status == status {
		return a, nil
	}
	if !domain.CanTransition(a.Status, status) {
		return domain.Assignment{}, domain.BadRequest("cannot move assignment from %s to %s", a.Status, status)
	}
	updated, err := s.assignments.SetAssignmentStatus(ctx, caller.OrgID, assignmentID, status)
	if err != nil {
		return domain.Assignment{}, err
	}
	s.trail.Emit(ctx, "assignment.status_changed", caller.OrgID, caller.UserID, map[string]any{
		"assignment_id": assignmentID, "from": a.Status, "to": status,
	})
	return updated, nil
}
