// Package repository defines the persistence interfaces implemented by the
// concrete store backends (sqlite, postgres).
package repository

import (
	"context"

	"github.com/mahin/learnhub/internal/model"
)

// UserRepository is the persistence boundary over the users table.
//
// Lookup methods return apperror.ErrNotFound (wrapped) when no row matches;
// callers distinguish "no such row" from real store failures with errors.Is.
// UpdateRoleAndActive and SoftDelete instead report "no row matched" as a
// plain false — for those operations not-found is an expected outcome, not
// an error.
//
// Every failure below this boundary propagates upward wrapped; nothing is
// retried or swallowed here.
type UserRepository interface {
	// GetByIdentityKey finds the user linked to a provider subject id.
	GetByIdentityKey(ctx context.Context, key string) (*model.User, error)
	// GetByEmail finds a user by email. Used for the create-time
	// uniqueness check; uniqueness is a service rule, not a schema
	// constraint.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	// List returns every user, newest first. No pagination; acceptable
	// for the scale this system targets.
	List(ctx context.Context) ([]model.User, error)
	// Create inserts the user and fills in the server-assigned ID and
	// timestamps on the passed struct. user.ID must be zero on entry.
	Create(ctx context.Context, user *model.User) error
	// UpdateRoleAndActive sets role and is_active on the given row and
	// reports whether a row was matched.
	UpdateRoleAndActive(ctx context.Context, id int64, role model.Role, isActive bool) (bool, error)
	// SoftDelete flips is_active to false and reports whether a row was
	// matched. The row itself stays queryable.
	SoftDelete(ctx context.Context, id int64) (bool, error)
	// Ping verifies store connectivity; used by the health probe.
	Ping(ctx context.Context) error
}
