// Package orgs provisions and administers tenants. It backs the internal
// API and is never reachable with a tenant credential.
package orgs

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"voterfield/internal/domain"
	"voterfield/internal/ports"
	"voterfield/internal/services/audit"
)

// ActorInternal is recorded as the actor of provisioning actions.
const ActorInternal = "internal"

type Service struct {
	orgs  ports.OrgRepository
	trail *audit.Trail
}

func New(orgs ports.OrgRepository, trail *audit.Trail) *Service {
	return &Service{orgs: orgs, trail: trail}
}

type AdminAccount struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Provision struct {
	Name   string         `json:"name"`
	PlanID string         `json:"plan_id"`
	Limits map[string]int `json:"limits"`
	Admin  AdminAccount   `json:"admin"`
}

// Provision creates an active organization with its first admin.
func (s *Service) Provision(ctx context.Context, in Provision) (domain.Organization, domain.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return domain.Organization{}, domain.User{}, domain.BadRequest("name is required")
	}
	if strings.TrimSpace(in.Admin.Name) == "" || strings.TrimSpace(in.Admin.Email) == "" || in.Admin.Password == "" {
		return domain.Organization{}, domain.User{}, domain.BadRequest("admin name, email and password are required")
	}
	if err := validateLimits(in.Limits); err != nil {
		return domain.Organization{}, domain.User{}, err
	}
	if in.PlanID == "" {
		in.PlanID = "starter"
	}
	if in.Limits == nil {
		in.Limits = map[string]int{}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Organization{}, domain.User{}, err
	}
	org, admin, err := s.orgs.ProvisionOrg(ctx,
		domain.Organization{ID: uuid.NewString(), Name: in.Name, Status: domain.OrgActive, PlanID: in.PlanID, Limits: in.Limits},
		domain.User{
			ID:           uuid.NewString(),
			Name:         strings.TrimSpace(in.Admin.Name),
			Email:        strings.TrimSpace(in.Admin.Email),
			Role:         domain.RoleAdmin,
			PasswordHash: string(hash),
		})
	if err != nil {
		return org, admin, err
	}
	s.trail.Log(ctx, "org.create", ActorInternal, org.ID, map[string]any{"name": org.Name, "plan_id": org.PlanID, "admin_user_id": admin.ID})
	return org, admin, nil
}

// Update applies an administrative patch. Organizations are never deleted;
// pending_delete is a status like any other.
func (s *Service) Update(ctx context.Context, orgID string, patch domain.OrgPatch) (domain.Organization, error) {
	if patch.Status == nil && patch.PlanID == nil && patch.Limits == nil {
		return domain.Organization{}, domain.BadRequest("no updatable fields provided")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return domain.Organization{}, domain.BadRequest("status must be active, suspended or pending_delete")
	}
	if patch.Limits != nil {
		if err := validateLimits(*patch.Limits); err != nil {
			return domain.Organization{}, err
		}
	}
	org, err := s.orgs.UpdateOrg(ctx, orgID, patch)
	if err != nil {
		return org, err
	}
	var changed []string
	if patch.Status != nil {
		changed = append(changed, "status")
	}
	if patch.PlanID != nil {
		changed = append(changed, "plan_id")
	}
	if patch.Limits != nil {
		changed = append(changed, "limits")
	}
	s.trail.Log(ctx, "org.update", ActorInternal, orgID, map[string]any{"fields": changed, "status": org.Status})
	return org, nil
}

func validateLimits(limits map[string]int) error {
	for k, v := range limits {
		if v < 0 {
			return domain.BadRequest("limit %s must not be negative", k)
		}
	}
	return nil
}
