package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahin/learnhub/internal/auth"
	"github.com/mahin/learnhub/internal/middleware"
	"github.com/mahin/learnhub/internal/repository/sqlite"
	"github.com/mahin/learnhub/internal/service"
)

const (
	testSecret = "test-secret-0123456789abcdef"
	testIssuer = "learnhub-idp"
)

// newTestRouter wires the real stack — sqlite in-memory store, service,
// handlers, auth middleware — exactly as the server package does, minus the
// listener.
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	verifier, err := auth.NewVerifier(testSecret, testIssuer)
	require.NoError(t, err)

	users := NewUserHandler(service.NewUserService(db, logger), logger)
	health := NewHealthHandler(db, logger)

	r := chi.NewRouter()
	r.Use(middleware.CorrelationID)
	r.Get("/health", health.HandleHealth)
	r.Route("/api/users", func(r chi.Router) {
		r.Use(auth.RequireAuth(verifier))
		r.Post("/sync", users.HandleSync)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Get("/", users.HandleList)
			r.Post("/", users.HandleCreate)
			r.Get("/{id}", users.HandleGetByID)
			r.Put("/{id}", users.HandleUpdate)
			r.Delete("/{id}", users.HandleDelete)
		})
	})

	return r
}

// mintToken signs a token the way the identity provider would.
func mintToken(t *testing.T, subject, email, username, role string) string {
	t.Helper()

	now := time.Now()
	c := jwt.MapClaims{
		"sub": subject,
		"iss": testIssuer,
		"iat": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(now.Add(time.Hour)),
	}
	if email != "" {
		c["email"] = email
	}
	if username != "" {
		c["preferred_username"] = username
	}
	if role != "" {
		c["role"] = role
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doRequest(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeUser(t *testing.T, rec *httptest.ResponseRecorder) service.UserResponse {
	t.Helper()
	var u service.UserResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&u))
	return u
}

// =========================================================================
// SYNC
// =========================================================================

func TestSync_FirstContactCreates(t *testing.T) {
	r := newTestRouter(t)
	token := mintToken(t, "auth0|u1", "a@x.com", "", "")

	rec := doRequest(t, r, http.MethodPost, "/api/users/sync", token, nil)

	require.Equal(t, http.StatusCreated, rec.Code, "first sync must report newly created")
	u := decodeUser(t, rec)
	assert.Equal(t, "a", u.Username, "username defaults to the email local part")
	assert.Equal(t, "Student", string(u.Role))
	assert.Equal(t, 0, u.XPTotal)
	assert.True(t, u.IsActive)
	assert.Equal(t, "auth0|u1", u.IdentityKey)
}

func TestSync_RepeatReturnsSameRecord(t *testing.T) {
	r := newTestRouter(t)
	token := mintToken(t, "auth0|u1", "a@x.com", "", "")

	first := decodeUser(t, doRequest(t, r, http.MethodPost, "/api/users/sync", token, nil))

	rec := doRequest(t, r, http.MethodPost, "/api/users/sync", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, "repeat sync must report already existed")

	second := decodeUser(t, rec)
	assert.Equal(t, first.ID, second.ID, "sync must be idempotent")
}

func TestSync_UsernameClaimWins(t *testing.T) {
	r := newTestRouter(t)
	token := mintToken(t, "auth0|u2", "b@x.com", "bobby", "")

	u := decodeUser(t, doRequest(t, r, http.MethodPost, "/api/users/sync", token, nil))
	assert.Equal(t, "bobby", u.Username)
}

func TestSync_PlaceholderWhenNoEmailOrUsername(t *testing.T) {
	r := newTestRouter(t)
	token := mintToken(t, "auth0|u3", "", "", "")

	u := decodeUser(t, doRequest(t, r, http.MethodPost, "/api/users/sync", token, nil))
	assert.Equal(t, "user", u.Username)
	assert.Equal(t, "", u.Email)
}

func TestSync_NoToken(t *testing.T) {
	r := newTestRouter(t)

	rec := doRequest(t, r, http.MethodPost, "/api/users/sync", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"unauthorized"`)
}

// =========================================================================
// ADMIN CREATE
// =========================================================================

func TestCreate_AsAdmin(t *testing.T) {
	r := newTestRouter(t)
	admin := mintToken(t, "auth0|root", "root@x.com", "root", "Admin")

	rec := doRequest(t, r, http.MethodPost, "/api/users/", admin, map[string]string{
		"email":    "new@x.com",
		"username": "newbie",
		"role":     "Instructor",
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	u := decodeUser(t, rec)
	assert.Equal(t, "Instructor", string(u.Role))
	assert.Equal(t, "", u.IdentityKey, "admin-created users carry no provider link")
}

func TestCreate_DuplicateEmail(t *testing.T) {
	r := newTestRouter(t)
	admin := mintToken(t, "auth0|root", "", "", "Admin")

	body := map[string]string{"email": "dup@x.com", "username": "one"}
	require.Equal(t, http.StatusCreated, doRequest(t, r, http.MethodPost, "/api/users/", admin, body).Code)

	rec := doRequest(t, r, http.MethodPost, "/api/users/", admin, body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"conflict"`)
}

func TestCreate_ValidationFieldMap(t *testing.T) {
	r := newTestRouter(t)
	admin := mintToken(t, "auth0|root", "", "", "Admin")

	rec := doRequest(t, r, http.MethodPost, "/api/users/", admin, map[string]string{
		"role": "Wizard",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "validation_error", resp.Error)
	assert.Contains(t, resp.Fields, "email")
	assert.Contains(t, resp.Fields, "username")
	assert.Contains(t, resp.Fields, "role")
}

func TestCreate_NonAdminForbidden(t *testing.T) {
	r := newTestRouter(t)
	student := mintToken(t, "auth0|kid", "kid@x.com", "", "Student")

	rec := doRequest(t, r, http.MethodPost, "/api/users/", student, map[string]string{
		"email":    "x@x.com",
		"username": "x",
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"forbidden"`)
}

// =========================================================================
// LIST / GET
// =========================================================================

func TestList(t *testing.T) {
	r := newTestRouter(t)
	admin := mintToken(t, "auth0|root", "", "", "Admin")

	doRequest(t, r, http.MethodPost, "/api/users/", admin, map[string]string{"email": "a@x.com", "username": "a"})
	doRequest(t, r, http.MethodPost, "/api/users/", admin, map[string]string{"email": "b@x.com", "username": "b"})

	rec := doRequest(t, r, http.MethodGet, "/api/users/", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var users []service.UserResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&users))
	require.Len(t, users, 2)
	assert.Equal(t, "b@x.com", users[0].Email, "newest first")
}

func TestGetByID_NotFound(t *testing.T) {
	r := newTestRouter(t)
	admin := mintToken(t, "auth0|root", "", "", "Admin")

	rec := doRequest(t, r, http.MethodGet, "/api/users/999", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"not_found"`)
}

func TestGetByID_BadID(t *testing.T) {
	r := newTestRouter(t)
	admin := mintToken(t, "auth0|root", "", "", "Admin")

	rec := doRequest(t, r, http.MethodGet, "/api/users/banana", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =========================================================================
// UPDATE
// =========================================================================

func TestUpdate(t *testing.T) {
	r := newTestRouter(t)
	admin := mintToken(t, "auth0|root", "", "", "Admin")

	created := decodeUser(t, doRequest(t, r, http.MethodPost, "/api/users/", admin,
		map[string]string{"email": "u@x.com", "username": "u"}))

	rec := doRequest(t, r, http.MethodPut, fmt.Sprintf("/api/users/%d", created.ID), admin,
		map[string]any{"role": "Admin", "isActive": false})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	u := decodeUser(t, rec)
	assert.Equal(t, "Admin", string(u.Role))
	assert.False(t, u.IsActive)
}

func TestUpdate_NotFoundDistinctFromValidation(t *testing.T) {
	r := newTestRouter(t)
	admin := mintToken(t, "auth0|root", "", "", "Admin")

	// Unknown id with a valid body → 404
	rec := doRequest(t, r, http.MethodPut, "/api/users/999", admin,
		map[string]any{"role": "Admin", "isActive": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Missing required fields → 400, regardless of the id
	rec = doRequest(t, r, http.MethodPut, "/api/users/999", admin, map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp.Fields, "role")
	assert.Contains(t, resp.Fields, "isActive")
}

// =========================================================================
// DELETE
// =========================================================================

func TestDelete_SoftDeleteKeepsRecord(t *testing.T) {
	r := newTestRouter(t)
	admin := mintToken(t, "auth0|root", "", "", "Admin")

	created := decodeUser(t, doRequest(t, r, http.MethodPost, "/api/users/", admin,
		map[string]string{"email": "d@x.com", "username": "d"}))

	rec := doRequest(t, r, http.MethodDelete, fmt.Sprintf("/api/users/%d", created.ID), admin, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, rec.Body.Len(), "delete success has no body")

	// The record must still be retrievable, just inactive
	rec = doRequest(t, r, http.MethodGet, fmt.Sprintf("/api/users/%d", created.ID), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	u := decodeUser(t, rec)
	assert.False(t, u.IsActive)
}

func TestDelete_NotFound(t *testing.T) {
	r := newTestRouter(t)
	admin := mintToken(t, "auth0|root", "", "", "Admin")

	rec := doRequest(t, r, http.MethodDelete, "/api/users/999", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =========================================================================
// HEALTH
// =========================================================================

// failingPinger simulates a lost database.
type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error {
	return errors.New("dial tcp: connection refused")
}

func TestHealth_Healthy(t *testing.T) {
	r := newTestRouter(t)

	rec := doRequest(t, r, http.MethodGet, "/health", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Healthy", resp.Status)
	assert.Equal(t, "Connected", resp.Database)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestHealth_DegradedStillTransport200(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	h := NewHealthHandler(failingPinger{}, logger)

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code, "health must stay transport-200 when the store is down")
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Degraded", resp.Status)
	assert.Equal(t, "Disconnected", resp.Database)
}
