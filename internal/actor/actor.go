package actor

import (
	"context"

	"clinic-app-server/internal/apperr"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/store"
)

// Actor is the resolved identity and role driving every authorization
// decision. It is built per request and never persisted.
type Actor struct {
	ID   string
	Role models.Role
}

func (a Actor) IsAdmin() bool   { return a.Role == models.RoleAdmin }
func (a Actor) IsDoctor() bool  { return a.Role == models.RoleDoctor }
func (a Actor) IsPatient() bool { return a.Role == models.RolePatient }

// Resolver maps an authenticated user id to an Actor.
type Resolver struct {
	users store.UserStore
}

// NewResolver creates a Resolver over the user store.
func NewResolver(users store.UserStore) *Resolver {
	return &Resolver{users: users}
}

// Resolve looks up the backing identity. A missing id or unknown user is an
// Unauthorized error; operations short-circuit on it before touching any
// scheduling state.
func (r *Resolver) Resolve(ctx context.Context, userID string) (Actor, error) {
	if userID == "" {
		return Actor{}, apperr.Unauthorized()
	}
	user, err := r.users.ByID(ctx, userID)
	if err != nil {
		return Actor{}, apperr.Unauthorized()
	}
	return Actor{ID: user.ID, Role: user.Role}, nil
}
