package users

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"voterfield/internal/domain"
	"voterfield/internal/ports"
	"voterfield/internal/services/audit"
)

type Service struct {
	orgs  ports.OrgRepository
	users ports.UserRepository
	trail *audit.Trail
}

func New(orgs ports.OrgRepository, users ports.UserRepository, trail *audit.Trail) *Service {
	return &Service{orgs: orgs, users: users, trail: trail}
}

type Invite struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// List returns the org's users ordered by name, optionally only one role.
func (s *Service) List(ctx context.Context, caller domain.Caller, role domain.Role) ([]domain.User, error) {
	if role != "" && !role.Valid() {
		return nil, domain.BadRequest("role must be admin or canvasser")
	}
	return s.users.ListUsers(ctx, caller.OrgID, role)
}

// InviteCanvasser adds a canvasser to the caller's org. Without a password
// the account exists but cannot log in until one is set.
func (s *Service) InviteCanvasser(ctx context.Context, caller domain.Caller, in Invite) (domain.User, error) {
	if err := caller.RequireAdmin(); err != nil {
		return domain.User{}, err
	}
	in.Name, in.Email = strings.TrimSpace(in.Name), strings.TrimSpace(in.Email)
	if in.Name == "" || in.Email == "" {
		return domain.User{}, domain.BadRequest("name and email are required")
	}
	if !strings.Contains(in.Email, "@") {
		return domain.User{}, domain.BadRequest("email is invalid")
	}
	org, err := s.orgs.GetOrg(ctx, caller.OrgID)
	if err != nil {
		return domain.User{}, err
	}
	if limit, ok := org.Limit(domain.LimitMaxUsers); ok {
		n, err := s.users.CountUsers(ctx, caller.OrgID)
		if err != nil {
			return domain.User{}, err
		}
		if n >= limit {
			return domain.User{}, domain.Forbidden("Organization user limit reached")
		}
	}
	u := domain.User{
		ID:    uuid.NewString(),
		OrgID: caller.OrgID,
		Name:  in.Name,
		Email: in.Email,
		Phone: strings.TrimSpace(in.Phone),
		Role:  domain.RoleCanvasser,
	}
	if in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return domain.User{}, err
		}
		u.PasswordHash = string(hash)
	}
	created, err := s.users.CreateUser(ctx, u)
	if err != nil {
		return domain.User{}, err
	}
	s.trail.Log(ctx, "user.invite", caller.UserID, caller.OrgID, map[string]any{"user_id": created.ID, "email": created.Email})
	s.trail.Emit(ctx, "user.invited", caller.OrgID, caller.UserID, map[string]any{"user_id": created.ID})
	return created, nil
}

// UpdateLocation records the caller's last known position.
func (s *Service) UpdateLocation(ctx context.Context, caller domain.Caller, loc domain.GeoPoint) error {
	if !loc.Valid() {
		return domain.BadRequest("lat must be within [-90, 90] and lng within [-180, 180]")
	}
	return s.users.UpdateUserLocation(ctx, caller.OrgID, caller.UserID, loc)
}
