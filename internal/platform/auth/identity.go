package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Role is the caller's application role.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Identity is the authenticated caller as supplied by the identity provider.
// The zero value is "no caller".
type Identity struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	Role      Role      `json:"role"`
	Anonymous bool      `json:"is_anonymous,omitempty"`
}

// IsAuthenticated reports whether the identity belongs to a registered user.
// Anonymous (guest) sessions are not authenticated for write purposes.
func (i Identity) IsAuthenticated() bool {
	return i.ID != uuid.Nil && !i.Anonymous
}

// IsZero reports whether no caller is present at all.
func (i Identity) IsZero() bool {
	return i.ID == uuid.Nil
}

func (i Identity) HasRole(r Role) bool {
	return i.Role == r
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the caller stored on ctx, or the zero Identity.
func IdentityFromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey).(Identity)
	return id
}

// Caller extracts the caller from an echo request. Handlers pass the result
// explicitly into service calls.
func Caller(c echo.Context) Identity {
	return IdentityFromContext(c.Request().Context())
}

func setIdentity(c echo.Context, id Identity) {
	c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
	c.Set("user_id", id.ID.String())
}
