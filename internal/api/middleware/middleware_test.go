package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ctf_zone/internal/common/security"
	"ctf_zone/internal/domain/model"
	"ctf_zone/internal/domain/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userColumns = []string{"id", "username", "email", "password_hash", "admin", "banned", "verified", "join_date"}

func init() {
	security.InitJWT([]byte("middleware-test-key"), time.Hour)
}

// echoActor reports who the request was resolved to.
func echoActor(w http.ResponseWriter, r *http.Request) {
	if actor := ActorFromContext(r.Context()); actor != nil {
		w.Write([]byte(actor.Username))
		return
	}
	w.Write([]byte("anonymous"))
}

func newIdentifiedRouter(t *testing.T) (chi.Router, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	r := chi.NewRouter()
	r.Use(jwtauth.Verifier(security.TokenAuth))
	r.Use(Identify(repository.NewPgUserRepository(db)))
	return r, mock
}

func bearer(t *testing.T, userID int64) string {
	t.Helper()
	token, err := security.GenerateToken(userID, model.RoleUser)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestIdentify(t *testing.T) {
	joined := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		header string
		rows   *sqlmock.Rows
		want   string
	}{
		{name: "no token", want: "anonymous"},
		{name: "garbage token", header: "Bearer not-a-jwt", want: "anonymous"},
		{
			name:   "verified user",
			header: "alice",
			rows:   sqlmock.NewRows(userColumns).AddRow(5, "alice", "a@example.com", "hash", false, false, true, joined),
			want:   "alice",
		},
		{
			name:   "banned user",
			header: "mallory",
			rows:   sqlmock.NewRows(userColumns).AddRow(5, "mallory", "m@example.com", "hash", false, true, true, joined),
			want:   "anonymous",
		},
		{
			name:   "deleted user",
			header: "ghost",
			rows:   sqlmock.NewRows(userColumns),
			want:   "anonymous",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, mock := newIdentifiedRouter(t)
			r.Get("/", echoActor)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			switch {
			case tt.rows != nil:
				mock.ExpectQuery("FROM users WHERE id").WithArgs(int64(5)).WillReturnRows(tt.rows)
				req.Header.Set("Authorization", bearer(t, 5))
			case tt.header != "":
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, rec.Body.String())
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestIdentify_RejectsPurposeTokens(t *testing.T) {
	// A reset link signed with the session key must not open a session.
	tokens, err := security.NewTokenService([]byte("middleware-test-key"))
	require.NoError(t, err)
	reset, err := tokens.IssueReset(5)
	require.NoError(t, err)
	confirm, err := tokens.IssueConfirm("alice@example.com")
	require.NoError(t, err)

	for _, raw := range []string{reset, confirm} {
		r, mock := newIdentifiedRouter(t)
		r.Get("/", echoActor)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+raw)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, "anonymous", rec.Body.String())
		require.NoError(t, mock.ExpectationsWereMet())
	}
}

func TestAuthenticatorAndAdminOnly(t *testing.T) {
	r := chi.NewRouter()
	r.With(Authenticator).Get("/me", echoActor)
	r.With(AdminOnly).Get("/admin", echoActor)

	serve := func(path string, actor *model.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if actor != nil {
			req = req.WithContext(WithActor(req.Context(), actor))
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	user := &model.User{ID: 5, Username: "alice", Role: model.RoleUser}
	admin := &model.User{ID: 2, Username: "root", Role: model.RoleAdmin}

	assert.Equal(t, http.StatusUnauthorized, serve("/me", nil).Code)
	assert.Equal(t, http.StatusOK, serve("/me", user).Code)
	assert.Equal(t, http.StatusUnauthorized, serve("/admin", nil).Code)
	assert.Equal(t, http.StatusForbidden, serve("/admin", user).Code)
	rec := serve("/admin", admin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "root", rec.Body.String())
}

func TestMaintenance(t *testing.T) {
	enabled := true
	r := chi.NewRouter()
	r.Use(Maintenance(func() bool { return enabled }))
	r.Get("/api/v1/problems", echoActor)
	r.Post("/api/v1/auth/login", echoActor)

	serve := func(method, path string, actor *model.User) int {
		req := httptest.NewRequest(method, path, nil)
		if actor != nil {
			req = req.WithContext(WithActor(req.Context(), actor))
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusServiceUnavailable, serve(http.MethodGet, "/api/v1/problems", nil))
	assert.Equal(t, http.StatusServiceUnavailable, serve(http.MethodGet, "/api/v1/problems", &model.User{ID: 5, Role: model.RoleUser}))
	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/api/v1/problems", &model.User{ID: 2, Role: model.RoleAdmin}))
	assert.Equal(t, http.StatusOK, serve(http.MethodPost, "/api/v1/auth/login", nil))

	enabled = false
	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/api/v1/problems", nil))
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "max-age=31536000; includeSubDomains", rec.Header().Get("Strict-Transport-Security"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "1; mode=block", rec.Header().Get("X-XSS-Protection"))
}
