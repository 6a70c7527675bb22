package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mahin/learnhub/internal/apperror"
	"github.com/mahin/learnhub/internal/model"
	"github.com/mahin/learnhub/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, identity_key, email, username, role, xp_total, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u           model.User
		identityKey sql.NullString
	)
	err := row.Scan(
		&u.ID,
		&identityKey,
		&u.Email,
		&u.Username,
		&u.Role,
		&u.XPTotal,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.IdentityKey = identityKey.String
	return &u, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// GetByIdentityKey retrieves the user linked to a provider subject id.
func (db *DB) GetByIdentityKey(ctx context.Context, key string) (*model.User, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE identity_key = $1`, key)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFoundKey("user", key)
		}
		return nil, fmt.Errorf("postgres: getting user by identity key: %w", err)
	}
	return u, nil
}

// GetByEmail retrieves a user by email address; the oldest row wins if
// duplicates exist.
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 ORDER BY id LIMIT 1`, email)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFoundKey("user", email)
		}
		return nil, fmt.Errorf("postgres: getting user by email: %w", err)
	}
	return u, nil
}

// GetByID retrieves a user by numeric id.
func (db *DB) GetByID(ctx context.Context, id int64) (*model.User, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("postgres: getting user %d: %w", id, err)
	}
	return u, nil
}

// List returns all users ordered by creation time, newest first.
func (db *DB) List(ctx context.Context) ([]model.User, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating user rows: %w", err)
	}

	return users, nil
}

// Create inserts a new user and fills in the server-assigned id and
// timestamps. As in the sqlite backend, the row is re-read after the insert
// so the returned record is exactly what was persisted.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()

	var id int64
	err := db.pool.QueryRow(ctx,
		`INSERT INTO users (identity_key, email, username, role, xp_total, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		nullIfEmpty(user.IdentityKey),
		user.Email,
		user.Username,
		user.Role,
		user.XPTotal,
		user.IsActive,
		now,
		now,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("postgres: inserting user (email=%s): %w", user.Email, err)
	}

	persisted, err := db.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("postgres: re-reading inserted user %d: %w", id, err)
	}
	*user = *persisted

	return nil
}

// UpdateRoleAndActive sets role and is_active for the given user.
func (db *DB) UpdateRoleAndActive(ctx context.Context, id int64, role model.Role, isActive bool) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE users SET role = $1, is_active = $2, updated_at = $3 WHERE id = $4`,
		role, isActive, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("postgres: updating user %d: %w", id, err)
	}

	return tag.RowsAffected() > 0, nil
}

// SoftDelete marks the user inactive.
func (db *DB) SoftDelete(ctx context.Context, id int64) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE users SET is_active = FALSE, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("postgres: soft-deleting user %d: %w", id, err)
	}

	return tag.RowsAffected() > 0, nil
}
