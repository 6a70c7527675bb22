package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mahin/learnhub/internal/apperror"
	"github.com/mahin/learnhub/internal/model"
	"github.com/mahin/learnhub/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, identity_key, email, username, role, xp_total, is_active, created_at, updated_at`

// scanUser reads one row into a model.User.
//
// identity_key is NULL for admin-created users; sql.NullString translates
// that into the empty-string marker the rest of the app uses. Never store a
// literal "" in the column — absent means NULL.
func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
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

// nullIfEmpty converts the app's empty-string "absent" marker into SQL NULL.
func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// GetByIdentityKey retrieves the user linked to a provider subject id.
// Returns apperror.ErrNotFound if no user carries that key.
func (db *DB) GetByIdentityKey(ctx context.Context, key string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE identity_key = ?`, key)

	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFoundKey("user", key)
		}
		return nil, fmt.Errorf("sqlite: getting user by identity key: %w", err)
	}
	return u, nil
}

// GetByEmail retrieves a user by email address.
//
// If several rows share an email (possible, since uniqueness is only a
// service-layer rule), the oldest row wins — it is the one the uniqueness
// check originally saw.
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? ORDER BY id LIMIT 1`, email)

	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFoundKey("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

// GetByID retrieves a user by numeric id.
func (db *DB) GetByID(ctx context.Context, id int64) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}
	return u, nil
}

// List returns all users ordered by creation time, newest first.
func (db *DB) List(ctx context.Context) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating user rows: %w", err)
	}

	return users, nil
}

// Create inserts a new user and fills in the server-assigned id and
// timestamps on the passed struct.
//
// After the INSERT we re-read the row by its new id rather than trusting the
// values we just bound. The write path and read path then can't disagree
// about what got persisted (driver-level timestamp round-tripping included).
func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (identity_key, email, username, role, xp_total, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nullIfEmpty(user.IdentityKey),
		user.Email,
		user.Username,
		user.Role,
		user.XPTotal,
		user.IsActive,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting user (email=%s): %w", user.Email, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading inserted user id: %w", err)
	}

	persisted, err := db.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("sqlite: re-reading inserted user %d: %w", id, err)
	}
	*user = *persisted

	return nil
}

// UpdateRoleAndActive sets role and is_active for the given user.
// Returns false (and no error) when no row with that id exists.
func (db *DB) UpdateRoleAndActive(ctx context.Context, id int64, role model.Role, isActive bool) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET role = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		role, isActive, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("sqlite: updating user %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: reading rows affected for user %d: %w", id, err)
	}

	return n > 0, nil
}

// SoftDelete marks the user inactive. The row stays in place and remains
// queryable by id and email.
func (db *DB) SoftDelete(ctx context.Context, id int64) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET is_active = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("sqlite: soft-deleting user %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: reading rows affected for user %d: %w", id, err)
	}

	return n > 0, nil
}
