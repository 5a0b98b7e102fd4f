package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"sala.org/internal/audit"
	"sala.org/internal/auth"
	"sala.org/internal/directory"
	"sala.org/internal/obs"
)

func newTestAPI(t *testing.T) (*API, sqlmock.Sqlmock, *auth.TokenCodec) {
	return newTestAPIWithRecorder(t, nil)
}

func newTestAPIWithRecorder(t *testing.T, rec audit.Recorder) (*API, sqlmock.Sqlmock, *auth.TokenCodec) {
	t.Helper()
	obs.Init()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	codec, err := auth.NewTokenCodec("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	store := auth.NewPGStore(db)
	api := New(Deps{
		Auth:     auth.NewService(store, codec),
		Store:    store,
		Dir:      directory.NewService(directory.NewPGStore(db)),
		Recorder: rec,
		Scope:    auth.NewScopeChecker(store.Levels()),
		Ready:    ReadyProbe{},
		Version:  "test",
	})
	return api, mock, codec
}

func activeUserRow() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "username", "password_hash", "is_active", "organization_id", "user_level_id", "created_at", "updated_at",
	}).AddRow("user-1", "alice", "hash", true, "org-1", "ulvl-1", now, now)
}

func grantRowsWith(codes ...string) *sqlmock.Rows {
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "code", "name_en", "name_kh", "description", "is_active", "created_at", "updated_at",
		"p_id", "p_code", "p_name_en", "p_name_kh", "p_group", "p_is_active", "p_created_at", "p_updated_at",
	})
	for _, code := range codes {
		rows.AddRow("role-1", "TESTER", "Tester", "", "", true, now, now,
			"perm-"+code, code, code, "", "", true, now, now)
	}
	return rows
}

func TestAuthMissingHeader(t *testing.T) {
	api, _, _ := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/api/auth/users", nil)
	rr := httptest.NewRecorder()
	api.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestAuthInvalidToken(t *testing.T) {
	api, _, _ := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/api/auth/users", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rr := httptest.NewRecorder()
	api.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "invalid token" {
		t.Fatalf("unexpected error body: %v", body)
	}
}

func TestAuthPermissionDenied(t *testing.T) {
	api, mock, codec := newTestAPI(t)
	token, _, err := codec.Generate("user-1", "alice", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	mock.ExpectQuery("select (.+) from users where id=").
		WithArgs("user-1").WillReturnRows(activeUserRow())
	mock.ExpectQuery("from user_roles ur").
		WithArgs("user-1").WillReturnRows(grantRowsWith(auth.PermRoleView))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	api.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestAuthUnmappedRouteNeedsOnlyAuthentication(t *testing.T) {
	api, mock, codec := newTestAPI(t)
	token, _, err := codec.Generate("user-1", "alice", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	mock.ExpectQuery("select (.+) from users where id=").
		WithArgs("user-1").WillReturnRows(activeUserRow())
	mock.ExpectQuery("from user_roles ur").
		WithArgs("user-1").WillReturnRows(grantRowsWith())

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	api.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for unmapped route, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAuthPermissionGranted(t *testing.T) {
	api, mock, codec := newTestAPI(t)
	token, _, err := codec.Generate("user-1", "alice", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	mock.ExpectQuery("select (.+) from users where id=").
		WithArgs("user-1").WillReturnRows(activeUserRow())
	mock.ExpectQuery("from user_roles ur").
		WithArgs("user-1").WillReturnRows(grantRowsWith(auth.PermUserView))
	mock.ExpectQuery("select (.+) from users order by created_at").
		WillReturnRows(activeUserRow())

	req := httptest.NewRequest(http.MethodGet, "/api/auth/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	api.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Users []auth.User `json:"users"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Users) != 1 || body.Users[0].Username != "alice" {
		t.Fatalf("unexpected listing: %+v", body.Users)
	}
}

func TestPublicPathsSkipAuth(t *testing.T) {
	api, _, _ := newTestAPI(t)
	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		api.Handler().ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("%s: expected 200 without a token, got %d", path, rr.Code)
		}
	}
}
