package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mahin/learnhub/internal/model"
)

// These tests exercise the connectivity-loss paths without a real database.
// sqlmock hands us a *sql.DB whose every call we script, so we can make the
// store "unreachable" on demand and assert that the error propagates instead
// of being swallowed or turned into an empty result.

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()

	// MonitorPingsOption lets us script Ping failures too.
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("creating sqlmock: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return &DB{conn: conn}, mock
}

func TestList_StoreUnavailable(t *testing.T) {
	db, mock := newMockDB(t)

	storeDown := errors.New("driver: bad connection")
	mock.ExpectQuery("SELECT (.+) FROM users").WillReturnError(storeDown)

	users, err := db.List(context.Background())

	if err == nil {
		t.Fatal("List() error = nil, want propagated store failure")
	}
	if !errors.Is(err, storeDown) {
		t.Errorf("List() error = %v, want wrapped %v", err, storeDown)
	}
	if users != nil {
		t.Errorf("List() = %v on failure, want nil (never an empty list)", users)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreate_StoreUnavailable(t *testing.T) {
	db, mock := newMockDB(t)

	storeDown := errors.New("driver: bad connection")
	mock.ExpectExec("INSERT INTO users").WillReturnError(storeDown)

	user := model.User{Email: "a@x.com", Username: "a", Role: model.RoleStudent, IsActive: true}
	err := db.Create(context.Background(), &user)
	if err == nil {
		t.Fatal("Create() error = nil, want propagated store failure")
	}
	if !errors.Is(err, storeDown) {
		t.Errorf("Create() error = %v, want wrapped %v", err, storeDown)
	}
}

func TestPing_StoreUnavailable(t *testing.T) {
	db, mock := newMockDB(t)

	storeDown := errors.New("dial tcp: connection refused")
	mock.ExpectPing().WillReturnError(storeDown)

	err := db.Ping(context.Background())
	if err == nil {
		t.Fatal("Ping() error = nil, want propagated store failure")
	}
	if !errors.Is(err, storeDown) {
		t.Errorf("Ping() error = %v, want wrapped %v", err, storeDown)
	}
}
