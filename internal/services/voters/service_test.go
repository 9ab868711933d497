package voters

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

func str(s string) *string { return &s }

func setup(t *testing.T) (*Service, *testutil.Store, testutil.Tenant) {
	t.Helper()
	store := testutil.NewStore()
	tenant := testutil.SeedTenant(t, store, "acme")
	return New(store, store, audit.New(store, nil)), store, tenant
}

func TestCreateRoundTripKeepsOptionalFieldsEmpty(t *testing.T) {
	svc, store, tenant := setup(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, tenant.AdminCaller(), domain.VoterFields{
		FirstName: str("Rosa"), LastName: str("Parks"), Address: str("12 Elm St"),
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, tenant.CanvasserCaller(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rosa", got.FirstName)
	assert.Equal(t, "Parks", got.LastName)
	assert.Equal(t, "12 Elm St", got.Address)
	assert.Empty(t, got.MiddleName)
	assert.Empty(t, got.City)
	assert.Empty(t, got.State)
	assert.Empty(t, got.Party)
	assert.Nil(t, got.Age)
	assert.Empty(t, got.LastInteractionStatus)
	assert.Nil(t, got.LastInteractionTime)
	assert.Regexp(t, `^MAN-[0-9a-f-]{36}$`, got.ExternalID)

	assert.InDelta(t, 40.7128, got.Geom.Lat, 0.011)
	assert.InDelta(t, -74.0060, got.Geom.Lng, 0.011)
	assert.Equal(t, []string{"voter.create"}, store.AuditActions())
}

func TestCreateValidation(t *testing.T) {
	svc, _, tenant := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, tenant.AdminCaller(), domain.VoterFields{FirstName: str("A"), LastName: str("B")})
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	_, err = svc.Create(ctx, tenant.AdminCaller(), domain.VoterFields{FirstName: str(" "), LastName: str("B"), Address: str("x")})
	assert.True(t, errors.Is(err, domain.ErrBadRequest))

	fields := domain.VoterFields{FirstName: str("A"), LastName: str("B"), Address: str("x"), ExternalID: str("R-1")}
	_, err = svc.Create(ctx, tenant.AdminCaller(), fields)
	require.NoError(t, err)
	_, err = svc.Create(ctx, tenant.AdminCaller(), fields)
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestCreateRespectsVoterLimit(t *testing.T) {
	svc, store, tenant := setup(t)
	ctx := context.Background()
	limits := map[string]int{domain.LimitMaxVoters: 1}
	_, err := store.UpdateOrg(ctx, tenant.Org.ID, domain.OrgPatch{Limits: &limits})
	require.NoError(t, err)

	fields := domain.VoterFields{FirstName: str("A"), LastName: str("B"), Address: str("x")}
	_, err = svc.Create(ctx, tenant.AdminCaller(), fields)
	require.NoError(t, err)
	_, err = svc.Create(ctx, tenant.AdminCaller(), fields)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestUpdateIsPartialAndAudited(t *testing.T) {
	svc, store, tenant := setup(t)
	ctx := context.Background()
	v := testutil.SeedVoter(t, store, tenant.Org.ID, "Ann", "Lee")

	updated, err := svc.Update(ctx, tenant.CanvasserCaller(), v.ID, domain.VoterFields{
		Phone: str("555-0100"), City: str("Shreveport"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ann", updated.FirstName)
	assert.Equal(t, "555-0100", updated.Phone)
	assert.Equal(t, "Shreveport", updated.City)

	audits := store.Audits()
	require.Len(t, audits, 1)
	assert.Equal(t, "voter.update", audits[0].Action)
	assert.Equal(t, []string{"phone", "city"}, audits[0].Metadata["fields"])
	assert.NotContains(t, audits[0].Metadata, "555-0100")

	_, err = svc.Update(ctx, tenant.AdminCaller(), v.ID, domain.VoterFields{})
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	_, err = svc.Update(ctx, tenant.AdminCaller(), v.ID, domain.VoterFields{ExternalID: str("X")})
	assert.True(t, errors.Is(err, domain.ErrBadRequest), "external id is not updatable")
	_, err = svc.Update(ctx, tenant.AdminCaller(), v.ID, domain.VoterFields{LastName: str("")})
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestCrossTenantVotersAreNotFound(t *testing.T) {
	svc, store, tenant := setup(t)
	other := testutil.SeedTenant(t, store, "rival")
	ctx := context.Background()
	v := testutil.SeedVoter(t, store, other.Org.ID, "Secret", "Voter")

	_, err := svc.Get(ctx, tenant.AdminCaller(), v.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = svc.Update(ctx, tenant.AdminCaller(), v.ID, domain.VoterFields{City: str("x")})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = svc.Get(ctx, tenant.AdminCaller(), "not-a-uuid")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	list, err := svc.List(ctx, tenant.AdminCaller(), ListParams{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListOrdersAndFilters(t *testing.T) {
	svc, store, tenant := setup(t)
	ctx := context.Background()
	org := tenant.Org.ID
	testutil.SeedVoter(t, store, org, "Zed", "Adams")
	testutil.SeedVoter(t, store, org, "Amy", "Baker")
	testutil.SeedVoter(t, store, org, "Bob", "Adams")

	all, err := svc.List(ctx, tenant.AdminCaller(), ListParams{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"Bob", "Zed", "Amy"}, []string{all[0].FirstName, all[1].FirstName, all[2].FirstName})

	found, err := svc.List(ctx, tenant.AdminCaller(), ListParams{Search: "bak"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Amy", found[0].FirstName)

	limit, offset := 1, 1
	paged, err := svc.List(ctx, tenant.AdminCaller(), ListParams{Limit: &limit, Offset: &offset})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "Zed", paged[0].FirstName)
}

func TestListRadiusFilter(t *testing.T) {
	svc, store, tenant := setup(t)
	ctx := context.Background()
	testutil.SeedVoter(t, store, tenant.Org.ID, "Near", "One")
	far, err := svc.Create(ctx, tenant.AdminCaller(), domain.VoterFields{
		FirstName: str("Far"), LastName: str("Two"), Address: str("x"),
		Geom: &domain.GeoPoint{Lat: 30.45, Lng: -91.18},
	})
	require.NoError(t, err)

	lat, lng, radius := 40.7128, -74.0060, 5.0
	near, err := svc.List(ctx, tenant.AdminCaller(), ListParams{NearLat: &lat, NearLng: &lng, RadiusKM: &radius})
	require.NoError(t, err)
	require.Len(t, near, 1)
	assert.NotEqual(t, far.ID, near[0].ID)

	_, err = svc.List(ctx, tenant.AdminCaller(), ListParams{NearLat: &lat})
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	bad := 0
	_, err = svc.List(ctx, tenant.AdminCaller(), ListParams{Limit: &bad})
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}
