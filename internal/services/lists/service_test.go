package lists

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voterfield/internal/domain"
	"voterfield/internal/services/audit"
	"voterfield/internal/testutil"
)

func setup(t *testing.T) (*Service, *testutil.Store, testutil.Tenant) {
	t.Helper()
	store := testutil.NewStore()
	tenant := testutil.SeedTenant(t, store, "acme")
	return New(store, store, store, audit.New(store, nil)), store, tenant
}

func ids(voters []domain.Voter) []string {
	out := make([]string, len(voters))
	for i, v := range voters {
		out[i] = v.ID
	}
	return out
}

func TestCreateWalkList(t *testing.T) {
	svc, store, tenant := setup(t)
	ctx := context.Background()
	voters := testutil.SeedVoters(t, store, tenant.Org.ID, 3)
	members := append(ids(voters), voters[0].ID)

	l, err := svc.CreateWalkList(ctx, tenant.AdminCaller(), " Precinct 4 ", members)
	require.NoError(t, err)
	assert.Equal(t, "Precinct 4", l.Name)
	assert.Equal(t, ids(voters), l.VoterIDs, "duplicates collapse in order")
	assert.Equal(t, tenant.Admin.ID, l.CreatedByUserID)

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "list.created", events[0].EventType)
	assert.Equal(t, 3, events[0].Metadata["count"])
	assert.Equal(t, []string{"list.create"}, store.AuditActions())

	got, err := svc.GetWalkList(ctx, tenant.CanvasserCaller(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.VoterIDs, got.VoterIDs)

	empty, err := svc.CreateWalkList(ctx, tenant.AdminCaller(), "Empty", []string{})
	require.NoError(t, err)
	assert.Empty(t, empty.VoterIDs)
}

func TestCreateWalkListRules(t *testing.T) {
	svc, store, tenant := setup(t)
	other := testutil.SeedTenant(t, store, "rival")
	ctx := context.Background()
	foreign := testutil.SeedVoter(t, store, other.Org.ID, "F", "V")

	_, err := svc.CreateWalkList(ctx, tenant.CanvasserCaller(), "x", []string{})
	assert.True(t, errors.Is(err, domain.ErrForbidden))
	_, err = svc.CreateWalkList(ctx, tenant.AdminCaller(), "", []string{})
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	_, err = svc.CreateWalkList(ctx, tenant.AdminCaller(), "x", nil)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	_, err = svc.CreateWalkList(ctx, tenant.AdminCaller(), "x", []string{foreign.ID})
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	_, err = svc.CreateWalkList(ctx, tenant.AdminCaller(), "x", []string{"nope"})
	assert.True(t, errors.Is(err, domain.ErrBadRequest))

	lists, err := svc.ListWalkLists(ctx, tenant.AdminCaller())
	require.NoError(t, err)
	assert.Empty(t, lists)
}

func TestAssignmentUpsertReplacesCanvasser(t *testing.T) {
	svc, store, tenant := setup(t)
	ctx := context.Background()
	l, err := svc.CreateWalkList(ctx, tenant.AdminCaller(), "L", ids(testutil.SeedVoters(t, store, tenant.Org.ID, 2)))
	require.NoError(t, err)

	first, err := svc.CreateAssignment(ctx, tenant.AdminCaller(), l.ID, tenant.Canvasser.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentAssigned, first.Status)

	_, err = svc.UpdateAssignmentStatus(ctx, tenant.CanvasserCaller(), first.ID, domain.AssignmentInProgress)
	require.NoError(t, err)

	second, err := svc.CreateAssignment(ctx, tenant.AdminCaller(), l.ID, tenant.Admin.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, tenant.Admin.ID, second.CanvasserID)
	assert.Equal(t, domain.AssignmentAssigned, second.Status)

	all, err := svc.ListAssignments(ctx, tenant.AdminCaller(), ScopeOrg)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	mine, err := svc.ListAssignments(ctx, tenant.CanvasserCaller(), ScopeMe)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestAssignmentRules(t *testing.T) {
	svc, store, tenant := setup(t)
	other := testutil.SeedTenant(t, store, "rival")
	ctx := context.Background()
	l, err := svc.CreateWalkList(ctx, tenant.AdminCaller(), "L", []string{})
	require.NoError(t, err)

	_, err = svc.CreateAssignment(ctx, tenant.CanvasserCaller(), l.ID, tenant.Canvasser.ID)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
	_, err = svc.CreateAssignment(ctx, tenant.AdminCaller(), "", tenant.Canvasser.ID)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	_, err = svc.CreateAssignment(ctx, tenant.AdminCaller(), l.ID, other.Canvasser.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = svc.CreateAssignment(ctx, tenant.AdminCaller(), uuid.NewString(), tenant.Canvasser.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = svc.ListAssignments(ctx, tenant.CanvasserCaller(), ScopeOrg)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
	_, err = svc.ListAssignments(ctx, tenant.AdminCaller(), "team")
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestAssignmentTransitions(t *testing.T) {
	svc, store, tenant := setup(t)
	ctx := context.Background()
	l, err := svc.CreateWalkList(ctx, tenant.AdminCaller(), "L", []string{})
	require.NoError(t, err)
	a, err := svc.CreateAssignment(ctx, tenant.AdminCaller(), l.ID, tenant.Canvasser.ID)
	require.NoError(t, err)

	same, err := svc.UpdateAssignmentStatus(ctx, tenant.CanvasserCaller(), a.ID, domain.AssignmentAssigned)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentAssigned, same.Status)

	done, err := svc.UpdateAssignmentStatus(ctx, tenant.CanvasserCaller(), a.ID, domain.AssignmentCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentCompleted, done.Status)

	_, err = svc.UpdateAssignmentStatus(ctx, tenant.AdminCaller(), a.ID, domain.AssignmentAssigned)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	_, err = svc.UpdateAssignmentStatus(ctx, tenant.AdminCaller(), a.ID, "paused")
	assert.True(t, errors.Is(err, domain.ErrBadRequest))

	outsider, err := store.CreateUser(ctx, domain.User{ID: uuid.NewString(), OrgID: tenant.Org.ID, Name: "O", Email: "o@acme.test", Role: domain.RoleCanvasser})
	require.NoError(t, err)
	_, err = svc.UpdateAssignmentStatus(ctx, domain.Caller{UserID: outsider.ID, OrgID: tenant.Org.ID, Role: domain.RoleCanvasser}, a.ID, domain.AssignmentInProgress)
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	assert.Contains(t, store.EventTypes(), "assignment.status_changed")
}
