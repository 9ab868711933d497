// Package identity resolves bearer credentials to a caller and issues them.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"voterfield/internal/domain"
	"voterfield/internal/ports"
	"voterfield/internal/services/audit"
)

const badCredentials = "Invalid email or password"

type claims struct {
	OrgID string      `json:"org_id"`
	Role  domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Session is what a client receives after authenticating.
type Session struct {
	Token string              `json:"token,omitempty"`
	User  domain.User         `json:"user"`
	Org   domain.Organization `json:"org"`
}

type Service struct {
	orgs   ports.OrgRepository
	users  ports.UserRepository
	trail  *audit.Trail
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func New(orgs ports.OrgRepository, users ports.UserRepository, trail *audit.Trail, secret string, ttl time.Duration) *Service {
	return &Service{orgs: orgs, users: users, trail: trail, secret: []byte(secret), ttl: ttl, now: time.Now}
}

// IssueToken signs a token for u.
func (s *Service) IssueToken(u domain.User) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		OrgID: u.OrgID,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	return token.SignedString(s.secret)
}

func (s *Service) activeOrg(ctx context.Context, orgID string) (domain.Organization, error) {
	org, err := s.orgs.GetOrg(ctx, orgID)
	if errors.Is(err, domain.ErrNotFound) {
		return org, domain.Unauthenticated("Invalid token")
	}
	if err != nil {
		return org, err
	}
	if org.Status != domain.OrgActive {
		return org, domain.Forbidden("Organization is " + string(org.Status))
	}
	return org, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, domain.BadRequest("email and password are required")
	}
	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return Session{}, domain.Unauthenticated(badCredentials)
	}
	if err != nil {
		return Session{}, err
	}
	if u.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return Session{}, domain.Unauthenticated(badCredentials)
	}
	org, err := s.activeOrg(ctx, u.OrgID)
	if err != nil {
		return Session{}, err
	}
	token, err := s.IssueToken(u)
	if err != nil {
		return Session{}, err
	}
	s.trail.Emit(ctx, "user.login", u.OrgID, u.ID, map[string]any{"role": u.Role})
	return Session{Token: token, User: u, Org: org}, nil
}

// Authenticate verifies a bearer token and resolves the caller. The user
// must still exist in the token's org and the org must be active.
func (s *Service) Authenticate(ctx context.Context, token string) (domain.Caller, error) {
	if token == "" {
		return domain.Caller{}, domain.Unauthenticated("Missing bearer token")
	}
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now))
	if err != nil || c.Subject == "" || c.OrgID == "" {
		return domain.Caller{}, domain.Unauthenticated("Invalid token")
	}
	if _, err := s.activeOrg(ctx, c.OrgID); err != nil {
		return domain.Caller{}, err
	}
	u, err := s.users.GetUser(ctx, c.OrgID, c.Subject)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Caller{}, domain.Unauthenticated("Invalid token")
	}
	if err != nil {
		return domain.Caller{}, err
	}
	return domain.Caller{UserID: u.ID, OrgID: u.OrgID, Role: c.Role}, nil
}

// SwitchRole re-issues a credential for role. Switching to the caller's
// own role re-signs it. Any caller may move to canvasser, only admins may
// move to admin. The new credential belongs to the earliest user of the
// org that holds the target role.
func (s *Service) SwitchRole(ctx context.Context, caller domain.Caller, role domain.Role) (Session, error) {
	if !role.Valid() {
		return Session{}, domain.BadRequest("role must be admin or canvasser")
	}
	org, err := s.activeOrg(ctx, caller.OrgID)
	if err != nil {
		return Session{}, err
	}
	var target domain.User
	switch {
	case role == caller.Role:
		target, err = s.users.GetUser(ctx, caller.OrgID, caller.UserID)
	case role == domain.RoleAdmin && !caller.IsAdmin():
		return Session{}, domain.Forbidden("Only admins can switch to the admin role")
	default:
		target, err = s.users.FirstUserWithRole(ctx, caller.OrgID, role)
		if errors.Is(err, domain.ErrNotFound) {
			return Session{}, domain.NotFound("user with role " + string(role))
		}
	}
	if err != nil {
		return Session{}, err
	}
	token, err := s.IssueToken(target)
	if err != nil {
		return Session{}, err
	}
	s.trail.Emit(ctx, "user.login", caller.OrgID, target.ID, map[string]any{"role": role, "switched_from": caller.UserID})
	return Session{Token: token, User: target, Org: org}, nil
}

func (s *Service) Me(ctx context.Context, caller domain.Caller) (Session, error) {
	u, err := s.users.GetUser(ctx, caller.OrgID, caller.UserID)
	if err != nil {
		return Session{}, err
	}
	org, err := s.orgs.GetOrg(ctx, caller.OrgID)
	if err != nil {
		return Session{}, err
	}
	return Session{User: u, Org: org}, nil
}

func (s *Service) Org(ctx context.Context, caller domain.Caller) (domain.Organization, error) {
	return s.orgs.GetOrg(ctx, caller.OrgID)
}
