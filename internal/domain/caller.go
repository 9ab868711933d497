package domain

import "context"

// Caller is the resolved identity every core operation runs under.
type Caller struct {
	UserID string
	OrgID  string
	Role   Role
}

func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }

// RequireAdmin fails with Forbidden unless the caller holds the admin role.
func (c Caller) RequireAdmin() error {
	if !c.IsAdmin() {
		return Forbidden("Insufficient permissions")
	}
	return nil
}

type callerKey struct{}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}
