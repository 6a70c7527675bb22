package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mahin/learnhub/internal/apperror"
	"github.com/mahin/learnhub/internal/auth"
	"github.com/mahin/learnhub/internal/model"
	"github.com/mahin/learnhub/internal/service"
)

// UserHandler exposes the user directory over HTTP: the self-service sync
// endpoint driven by the caller's verified claims, and the admin-only CRUD
// resource.
//
// The handler owns everything HTTP-shaped — body decoding, field validation
// maps, status codes, the 201-vs-200 sync distinction — and delegates every
// business decision to the service.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger,
	}
}

// fallbackUsername is used when neither a username claim nor an email is
// available to derive a display name from.
const fallbackUsername = "user"

// HandleSync provisions or fetches the caller's own account.
//
// HTTP: POST /api/users/sync (authenticated)
//
// The request body is ignored — everything comes from the verified claims
// the auth middleware put in the context. Username defaulting happens here,
// on the caller's side of the service boundary: claim value if present,
// otherwise the email's local part, otherwise a fixed placeholder.
//
// 201 with the record when this call created it, 200 when it already
// existed. That distinction is the only externally visible difference
// between a first and a repeat sync.
func (h *UserHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		// Unreachable behind RequireAuth, kept for direct callers in tests.
		writeError(w, r, apperror.Unauthorized("valid authentication required"))
		return
	}

	username := identity.Username
	if username == "" {
		username = emailLocalPart(identity.Email)
	}
	if username == "" {
		username = fallbackUsername
	}

	resp, created, err := h.users.SyncFromIdentity(r.Context(), identity.Key, identity.Email, username)
	if err != nil {
		h.logger.Error("sync failed",
			slog.String("identityKey", identity.Key),
			slog.String("error", err.Error()),
		)
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

// createUserRequest is the body for POST /api/users.
type createUserRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// HandleCreate creates a user by admin request.
//
// HTTP: POST /api/users (admin)
//
// Shape errors come back as 400 with a field→messages map; a duplicate
// email is a business condition and comes back as 409, a different envelope
// key entirely.
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	fields := map[string][]string{}
	if strings.TrimSpace(req.Email) == "" {
		fields["email"] = append(fields["email"], "email is required")
	}
	if strings.TrimSpace(req.Username) == "" {
		fields["username"] = append(fields["username"], "username is required")
	}
	if req.Role != "" && !model.Role(req.Role).Valid() {
		fields["role"] = append(fields["role"], "role must be one of Student, Admin, Instructor")
	}
	if len(fields) > 0 {
		writeError(w, r, apperror.ValidationMap(fields))
		return
	}

	resp, err := h.users.CreateAdmin(r.Context(), req.Email, req.Username, model.Role(req.Role))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// HandleList returns the full, unfiltered user list, newest first.
//
// HTTP: GET /api/users (admin)
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}

// HandleGetByID returns a single user.
//
// HTTP: GET /api/users/{id} (admin)
func (h *UserHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// updateUserRequest is the body for PUT /api/users/{id}. Pointer fields
// distinguish "omitted" from a zero value, so both fields can be required.
type updateUserRequest struct {
	Role     *string `json:"role"`
	IsActive *bool   `json:"isActive"`
}

// HandleUpdate sets a user's role and active flag.
//
// HTTP: PUT /api/users/{id} (admin)
//
// A missing or malformed body is a 400 validation error; an unknown id is a
// 404. The two must never blur into each other.
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	fields := map[string][]string{}
	if req.Role == nil {
		fields["role"] = append(fields["role"], "role is required")
	} else if !model.Role(*req.Role).Valid() {
		fields["role"] = append(fields["role"], "role must be one of Student, Admin, Instructor")
	}
	if req.IsActive == nil {
		fields["isActive"] = append(fields["isActive"], "isActive is required")
	}
	if len(fields) > 0 {
		writeError(w, r, apperror.ValidationMap(fields))
		return
	}

	resp, err := h.users.Update(r.Context(), id, model.Role(*req.Role), *req.IsActive)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleDelete soft-deletes a user.
//
// HTTP: DELETE /api/users/{id} (admin)
//
// 204 with no body on success; 404 if the id never existed. Deleting an
// already-inactive user is still a 204 — the flag just stays false.
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	matched, err := h.users.SoftDelete(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !matched {
		writeError(w, r, apperror.NotFound("user", id))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// pathID parses the {id} path parameter.
func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed("id", "id must be a positive integer")
	}
	return id, nil
}

// emailLocalPart returns the part of an email address before the '@', or ""
// when there is nothing usable to derive a username from.
func emailLocalPart(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return ""
	}
	return email[:at]
}
