package orgs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voterfield/internal/domain"
	"voterfield/internal/services/audit"
	"voterfield/internal/testutil"
)

func TestProvisionAndUpdate(t *testing.T) {
	store := testutil.NewStore()
	svc := New(store, audit.New(store, nil))
	ctx := context.Background()

	org, admin, err := svc.Provision(ctx, Provision{
		Name:   "Metro Canvass",
		Limits: map[string]int{domain.LimitMaxVoters: 500},
		Admin:  AdminAccount{Name: "Ada", Email: "ada@metro.test", Password: "secret"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrgActive, org.Status)
	assert.Equal(t, "starter", org.PlanID)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
	assert.Equal(t, org.ID, admin.OrgID)
	assert.NotEqual(t, "secret", admin.PasswordHash)

	suspended := domain.OrgSuspended
	updated, err := svc.Update(ctx, org.ID, domain.OrgPatch{Status: &suspended})
	require.NoError(t, err)
	assert.Equal(t, domain.OrgSuspended, updated.Status)
	assert.Equal(t, 500, updated.Limits[domain.LimitMaxVoters])

	assert.Equal(t, []string{"org.create", "org.update"}, store.AuditActions())
}

func TestProvisionValidation(t *testing.T) {
	store := testutil.NewStore()
	svc := New(store, nil)
	ctx := context.Background()

	_, _, err := svc.Provision(ctx, Provision{Admin: AdminAccount{Name: "A", Email: "a@x.test", Password: "p"}})
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	_, _, err = svc.Provision(ctx, Provision{Name: "X"})
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	_, _, err = svc.Provision(ctx, Provision{Name: "X", Limits: map[string]int{"max_users": -1},
		Admin: AdminAccount{Name: "A", Email: "a@x.test", Password: "p"}})
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestUpdateValidation(t *testing.T) {
	store := testutil.NewStore()
	svc := New(store, nil)
	ctx := context.Background()
	tenant := testutil.SeedTenant(t, store, "acme")

	bogus := domain.OrgStatus("deleted")
	_, err := svc.Update(ctx, tenant.Org.ID, domain.OrgPatch{Status: &bogus})
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	_, err = svc.Update(ctx, tenant.Org.ID, domain.OrgPatch{})
	assert.True(t, errors.Is(err, domain.ErrBadRequest))

	plan := "pro"
	_, err = svc.Update(ctx, "missing", domain.OrgPatch{PlanID: &plan})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
