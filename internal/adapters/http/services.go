package httpadapter

import (
	"context"

	"voterfield/internal/domain"
	"voterfield/internal/services/identity"
	"voterfield/internal/services/interactions"
	"voterfield/internal/services/lists"
	"voterfield/internal/services/metrics"
	"voterfield/internal/services/orgs"
	"voterfield/internal/services/users"
	"voterfield/internal/services/voters"
)

// Service contracts the transport consumes. Every method except Login,
// Authenticate and the org provisioning calls runs under a resolved caller.

type Identity interface {
	Login(ctx context.Context, email, password string) (identity.Session, error)
	Authenticate(ctx context.Context, token string) (domain.Caller, error)
	SwitchRole(ctx context.Context, caller domain.Caller, role domain.Role) (identity.Session, error)
	Me(ctx context.Context, caller domain.Caller) (identity.Session, error)
	Org(ctx context.Context, caller domain.Caller) (domain.Organization, error)
}

type Users interface {
	List(ctx context.Context, caller domain.Caller, role domain.Role) ([]domain.User, error)
	InviteCanvasser(ctx context.Context, caller domain.Caller, in users.Invite) (domain.User, error)
	UpdateLocation(ctx context.Context, caller domain.Caller, loc domain.GeoPoint) error
}

type Orgs interface {
	Provision(ctx context.Context, in orgs.Provision) (domain.Organization, domain.User, error)
	Update(ctx context.Context, orgID string, patch domain.OrgPatch) (domain.Organization, error)
}

type Voters interface {
	List(ctx context.Context, caller domain.Caller, p voters.ListParams) ([]domain.Voter, error)
	Get(ctx context.Context, caller domain.Caller, voterID string) (domain.Voter, error)
	Create(ctx context.Context, caller domain.Caller, f domain.VoterFields) (domain.Voter, error)
	Update(ctx context.Context, caller domain.Caller, voterID string, f domain.VoterFields) (domain.Voter, error)
}

type Lists interface {
	ListWalkLists(ctx context.Context, caller domain.Caller) ([]domain.WalkList, error)
	GetWalkList(ctx context.Context, caller domain.Caller, listID string) (domain.WalkList, error)
	CreateWalkList(ctx context.Context, caller domain.Caller, name string, voterIDs []string) (domain.WalkList, error)
	ListAssignments(ctx context.Context, caller domain.Caller, scope lists.Scope) ([]domain.Assignment, error)
	CreateAssignment(ctx context.Context, caller domain.Caller, listID, canvasserID string) (domain.Assignment, error)
	UpdateAssignmentStatus(ctx context.Context, caller domain.Caller, assignmentID string, status domain.AssignmentStatus) (domain.Assignment, error)
}

type Interactions interface {
	Log(ctx context.Context, caller domain.Caller, sub interactions.Submission) (domain.Interaction, error)
	BulkLog(ctx context.Context, caller domain.Caller, subs []interactions.Submission) (int, error)
	List(ctx context.Context, caller domain.Caller, p interactions.ListParams) ([]domain.Interaction, error)
}

type Imports interface {
	SubmitInline(ctx context.Context, caller domain.Caller, records []domain.VoterFields) (domain.Job, error)
	SubmitFile(ctx context.Context, caller domain.Caller, filename string, body []byte) (domain.Job, error)
	GetJob(ctx context.Context, caller domain.Caller, jobID string) (domain.Job, error)
}

type Metrics interface {
	Summary(ctx context.Context, caller domain.Caller) (metrics.Summary, error)
}
