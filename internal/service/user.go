// Package service contains the business logic layer of the application.
//
// The layering follows the usual handler → service → repository chain:
// handlers parse HTTP and render responses, this package enforces the rules
// the store does not (email uniqueness, defaulting, idempotent sync), and
// the repository executes parameterized SQL. The service takes the
// repository.UserRepository interface, never a concrete store, so tests run
// against an in-memory fake and the sqlite/postgres backends are
// interchangeable.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mahin/learnhub/internal/apperror"
	"github.com/mahin/learnhub/internal/model"
	"github.com/mahin/learnhub/internal/repository"
)

// UserResponse is the stable response shape for a user record.
//
// Mapping rule, applied identically everywhere a record leaves the service:
// every field verbatim, except identityKey which is always a string — empty
// when the record has no provider link — never a null/missing marker.
type UserResponse struct {
	ID          int64      `json:"id"`
	IdentityKey string     `json:"identityKey"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	Role        model.Role `json:"role"`
	XPTotal     int        `json:"xpTotal"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func toResponse(u *model.User) *UserResponse {
	return &UserResponse{
		ID:          u.ID,
		IdentityKey: u.IdentityKey,
		Email:       u.Email,
		Username:    u.Username,
		Role:        u.Role,
		XPTotal:     u.XPTotal,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// UserService handles the user directory business logic.
type UserService struct {
	repo   repository.UserRepository
	logger *slog.Logger
}

// NewUserService creates a UserService. The caller decides which repository
// implementation to inject (sqlite, postgres, or a fake in tests).
func NewUserService(repo repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{
		repo:   repo,
		logger: logger,
	}
}

// SyncFromIdentity is the idempotent find-or-create run on authenticated
// requests: look the caller up by their provider subject id, create a row on
// first contact, and return the mapped record either way. The second return
// value reports whether this call created the record.
//
// The existing-record path performs no write at all — repeated syncs with
// the same identity return the same record and add no rows.
//
// Precondition: identityKey is non-empty. The handler has already rejected
// tokenless callers with 401; the guard here only catches programming
// mistakes. Username/email defaulting is likewise the caller's job — this
// method persists exactly what it is given.
//
// KNOWN RACE: two concurrent first-time syncs for the same identity can both
// miss the lookup and both insert. There is no transactional guard and no
// unique constraint backing this up; at the current scale the duplicate
// window is accepted.
func (s *UserService) SyncFromIdentity(ctx context.Context, identityKey, email, username string) (*UserResponse, bool, error) {
	if identityKey == "" {
		return nil, false, apperror.ValidationFailed("identityKey", "identity key is required")
	}

	existing, err := s.repo.GetByIdentityKey(ctx, identityKey)
	if err == nil {
		return toResponse(existing), false, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, false, fmt.Errorf("service/user: looking up identity %s: %w", identityKey, err)
	}

	// First contact from this identity — provision an account.
	user := &model.User{
		IdentityKey: identityKey,
		Email:       email,
		Username:    username,
		Role:        model.RoleStudent,
		XPTotal:     0,
		IsActive:    true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, false, fmt.Errorf("service/user: provisioning identity %s: %w", identityKey, err)
	}

	s.logger.Info("user provisioned from identity claims",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)

	return toResponse(user), true, nil
}

// CreateAdmin creates a user by explicit admin request, with no identity
// provider link.
//
// Email uniqueness is enforced here with a lookup-then-insert; on a hit the
// caller gets only the duplicate signal, never the existing row's details.
// An empty role defaults to Student. The same read-then-write race as sync
// applies to the uniqueness check.
func (s *UserService) CreateAdmin(ctx context.Context, email, username string, role model.Role) (*UserResponse, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if role == "" {
		role = model.RoleStudent
	}
	if !role.Valid() {
		return nil, apperror.ValidationFailed("role", "role must be one of Student, Admin, Instructor")
	}

	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return nil, apperror.Conflict("a user with this email already exists")
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/user: checking email uniqueness: %w", err)
	}

	user := &model.User{
		Email:    email,
		Username: strings.TrimSpace(username),
		Role:     role,
		XPTotal:  0,
		IsActive: true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/user: creating user (email=%s): %w", email, err)
	}

	s.logger.Info("user created by admin",
		slog.Int64("userID", user.ID),
		slog.String("role", string(user.Role)),
	)

	return toResponse(user), nil
}

// List returns every user, newest first, mapped to the response shape.
func (s *UserService) List(ctx context.Context) ([]UserResponse, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("failed to list users", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/user: listing users: %w", err)
	}

	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, *toResponse(&users[i]))
	}
	return out, nil
}

// GetByID returns a single user. The repository's not-found error passes
// through untouched so the handler can map it to 404.
func (s *UserService) GetByID(ctx context.Context, id int64) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toResponse(user), nil
}

// Update sets a user's role and active flag.
//
// The store reports whether a row was matched; false becomes a not-found
// error here so the handler renders 404, not 500. On success the record is
// re-read and returned — the authoritative post-update state, including the
// store-written updated_at, rather than an echo of the inputs.
func (s *UserService) Update(ctx context.Context, id int64, role model.Role, isActive bool) (*UserResponse, error) {
	if !role.Valid() {
		return nil, apperror.ValidationFailed("role", "role must be one of Student, Admin, Instructor")
	}

	matched, err := s.repo.UpdateRoleAndActive(ctx, id, role, isActive)
	if err != nil {
		s.logger.Error("failed to update user",
			slog.Int64("userID", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/user: updating user %d: %w", id, err)
	}
	if !matched {
		return nil, apperror.NotFound("user", id)
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/user: re-reading updated user %d: %w", id, err)
	}

	s.logger.Info("user updated",
		slog.Int64("userID", id),
		slog.String("role", string(role)),
		slog.Bool("isActive", isActive),
	)

	return toResponse(user), nil
}

// SoftDelete marks the user inactive. Returns false when no such id exists;
// that is an expected outcome for the caller to translate, not an error.
func (s *UserService) SoftDelete(ctx context.Context, id int64) (bool, error) {
	matched, err := s.repo.SoftDelete(ctx, id)
	if err != nil {
		s.logger.Error("failed to soft-delete user",
			slog.Int64("userID", id),
			slog.String("error", err.Error()),
		)
		return false, fmt.Errorf("service/user: soft-deleting user %d: %w", id, err)
	}

	if matched {
		s.logger.Info("user deactivated", slog.Int64("userID", id))
	}

	return matched, nil
}
