package ports

import (
	"context"

	"voterfield/internal/domain"
)

// Every repository method is scoped by org id; rows of another org behave as
// absent (domain.ErrNotFound).

// OrgRepository stores tenants. Organizations are never deleted.
type OrgRepository interface {
	GetOrg(ctx context.Context, orgID string) (domain.Organization, error)
	UpdateOrg(ctx context.Context, orgID string, patch domain.OrgPatch) (domain.Organization, error)
	// ProvisionOrg creates the organization and its first admin atomically.
	ProvisionOrg(ctx context.Context, org domain.Organization, admin domain.User) (domain.Organization, domain.User, error)
}

// UserRepository stores the org roster. Email is unique system-wide.
type UserRepository interface {
	GetUser(ctx context.Context, orgID, userID string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	FirstUserWithRole(ctx context.Context, orgID string, role domain.Role) (domain.User, error)
	ListUsers(ctx context.Context, orgID string, role domain.Role) ([]domain.User, error)
	CountUsers(ctx context.Context, orgID string) (int, error)
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	UpdateUserLocation(ctx context.Context, orgID, userID string, loc domain.GeoPoint) error
}

// VoterRepository reads voters with their last-interaction projection joined
// from the ledger at query time.
type VoterRepository interface {
	ListVoters(ctx context.Context, orgID string, f domain.VoterFilter) ([]domain.Voter, error)
	GetVoter(ctx context.Context, orgID, voterID string) (domain.Voter, error)
	CountVoters(ctx context.Context, orgID string) (int, error)
	CreateVoter(ctx context.Context, v domain.Voter) (domain.Voter, error)
	UpdateVoter(ctx context.Context, orgID, voterID string, f domain.VoterFields) (domain.Voter, error)
	// UpsertVoters writes the batch in one transaction keyed by (org, external id)
	// and returns the number of rows written.
	UpsertVoters(ctx context.Context, orgID string, voters []domain.Voter) (int, error)
}

type ListRepository interface {
	ListWalkLists(ctx context.Context, orgID string) ([]domain.WalkList, error)
	GetWalkList(ctx context.Context, orgID, listID string) (domain.WalkList, error)
	// CreateWalkList fails with domain.ErrBadRequest when a member is not a
	// voter of the list's org.
	CreateWalkList(ctx context.Context, l domain.WalkList) (domain.WalkList, error)
}

type AssignmentRepository interface {
	// ListAssignments returns every assignment of the org, or only the given
	// canvasser's when canvasserID is set.
	ListAssignments(ctx context.Context, orgID, canvasserID string) ([]domain.Assignment, error)
	GetAssignment(ctx context.Context, orgID, assignmentID string) (domain.Assignment, error)
	// UpsertAssignment keeps one assignment per (org, list): a second call
	// replaces the canvasser and resets the status, keeping the id.
	UpsertAssignment(ctx context.Context, a domain.Assignment) (domain.Assignment, error)
	SetAssignmentStatus(ctx context.Context, orgID, assignmentID string, status domain.AssignmentStatus) (domain.Assignment, error)
}

type InteractionRepository interface {
	// InsertInteraction writes the interaction, its survey responses, the audit
	// entry and the event as one transaction. When (org, client uuid) already
	// exists nothing is written and the stored interaction is returned with
	// created == false.
	InsertInteraction(ctx context.Context, in domain.Interaction, entry domain.AuditLogEntry, event domain.PlatformEvent) (stored domain.Interaction, created bool, err error)
	// ListInteractions orders by occurred_at descending.
	ListInteractions(ctx context.Context, orgID string, f domain.InteractionFilter) ([]domain.Interaction, error)
}

// TrailRepository is the append-only audit and event sink.
type TrailRepository interface {
	AppendAudit(ctx context.Context, e domain.AuditLogEntry) error
	AppendEvent(ctx context.Context, e domain.PlatformEvent) error
}

type MetricsRepository interface {
	OrgCounts(ctx context.Context, orgID string) (domain.OrgCounts, error)
}
