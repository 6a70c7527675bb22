// Package model defines the data structures used throughout the application.
package model

import "time"

// Role is the access level assigned to a user account.
//
// Roles are stored as plain strings in the database rather than integers.
// Readable in query output, trivially extensible, and the set is small enough
// that the storage cost is irrelevant.
type Role string

const (
	RoleStudent    Role = "Student"
	RoleAdmin      Role = "Admin"
	RoleInstructor Role = "Instructor"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleAdmin, RoleInstructor:
		return true
	}
	return false
}

// User represents an account in the directory.
//
// Accounts come from two places:
//   - claims sync: the first authenticated request from a new identity
//     creates a row linked to the provider via IdentityKey
//   - admin create: an explicit API call; no provider link, IdentityKey
//     stays empty
//
// WHY IdentityKey string (not *string)?
// The column is nullable (admin-created users have no provider subject), but
// in Go an empty string is a perfectly good "absent" marker and saves every
// caller a nil check. The repository layer translates "" to SQL NULL and
// back.
//
// WHY ID int64?
// The store assigns ids (AUTOINCREMENT / BIGSERIAL), so unlike a generated
// string id there is nothing for the application to mint. int64 matches both
// sqlite's rowid and Postgres BIGSERIAL.
type User struct {
	ID          int64     `json:"id"          db:"id"`
	IdentityKey string    `json:"identityKey" db:"identity_key"` // provider subject; empty for admin-created users
	Email       string    `json:"email"       db:"email"`
	Username    string    `json:"username"    db:"username"`
	Role        Role      `json:"role"        db:"role"`
	XPTotal     int       `json:"xpTotal"     db:"xp_total"`
	IsActive    bool      `json:"isActive"    db:"is_active"`
	CreatedAt   time.Time `json:"createdAt"   db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt"   db:"updated_at"`
}
