package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"voterfield/internal/domain"
)

const Password = "password123"

// Tenant is a seeded organization with one admin and one canvasser.
type Tenant struct {
	Org       domain.Organization
	Admin     domain.User
	Canvasser domain.User
}

func (t Tenant) AdminCaller() domain.Caller {
	return domain.Caller{UserID: t.Admin.ID, OrgID: t.Org.ID, Role: domain.RoleAdmin}
}

func (t Tenant) CanvasserCaller() domain.Caller {
	return domain.Caller{UserID: t.Canvasser.ID, OrgID: t.Org.ID, Role: domain.RoleCanvasser}
}

func hash(t testing.TB) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

// SeedTenant provisions an org named name. Emails are derived from the name
// so several tenants can share a store.
func SeedTenant(t testing.TB, s *Store, name string) Tenant {
	t.Helper()
	ctx := context.Background()
	org, admin, err := s.ProvisionOrg(ctx,
		domain.Organization{ID: uuid.NewString(), Name: name, Status: domain.OrgActive, PlanID: "starter", Limits: map[string]int{}},
		domain.User{ID: uuid.NewString(), Name: name + " Admin", Email: "admin@" + name + ".test", Role: domain.RoleAdmin, PasswordHash: hash(t)})
	require.NoError(t, err)

	canvasser, err := s.CreateUser(ctx, domain.User{
		ID: uuid.NewString(), OrgID: org.ID, Name: name + " Canvasser",
		Email: "canvasser@" + name + ".test", Role: domain.RoleCanvasser, PasswordHash: hash(t),
	})
	require.NoError(t, err)
	return Tenant{Org: org, Admin: admin, Canvasser: canvasser}
}

// SeedVoter stores a voter directly, bypassing the service rules.
func SeedVoter(t testing.TB, s *Store, orgID, first, last string) domain.Voter {
	t.Helper()
	v, err := s.CreateVoter(context.Background(), domain.Voter{
		ID: uuid.NewString(), OrgID: orgID, ExternalID: "EXT-" + uuid.NewString(),
		FirstName: first, LastName: last, Address: "1 Main St",
		Geom: domain.GeoPoint{Lat: 40.7128, Lng: -74.0060},
	})
	require.NoError(t, err)
	return v
}

func SeedVoters(t testing.TB, s *Store, orgID string, n int) []domain.Voter {
	t.Helper()
	out := make([]domain.Voter, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, SeedVoter(t, s, orgID, "Voter", string(rune('A'+i%26))+uuid.NewString()[:4]))
	}
	return out
}
