package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"sala.org/internal/auth"
)

func TestLoginSuccessBody(t *testing.T) {
	api, mock, _ := newTestAPI(t)

	hash, err := auth.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	now := time.Now().UTC()
	mock.ExpectQuery("select (.+) from users where username=").
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "username", "password_hash", "is_active", "organization_id", "user_level_id", "created_at", "updated_at",
		}).AddRow("user-1", "alice", hash, true, "org-1", "ulvl-1", now, now))
	mock.ExpectQuery("from user_roles ur").
		WithArgs("user-1").WillReturnRows(grantRowsWith(auth.PermUserView, auth.PermUserCreate))
	mock.ExpectExec("insert into active_logs").
		WithArgs(sqlmock.AnyArg(), "user-1", sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"username":"alice","password":"correct horse"}`))
	rr := httptest.NewRecorder()
	api.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
		User    struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			Roles    []struct {
				Code        string `json:"code"`
				Permissions []struct {
					Code string `json:"code"`
				} `json:"permissions"`
			} `json:"roles"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.Success || body.Token == "" {
		t.Fatalf("expected success with token, got %s", rr.Body.String())
	}
	if body.User.Username != "alice" || len(body.User.Roles) != 1 {
		t.Fatalf("unexpected user payload: %s", rr.Body.String())
	}
	if len(body.User.Roles[0].Permissions) != 2 {
		t.Fatalf("expected nested permissions, got %s", rr.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLoginMissingFields(t *testing.T) {
	api, _, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"username":"alice"}`))
	rr := httptest.NewRecorder()
	api.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["success"] != false {
		t.Fatalf("expected success=false, got %s", rr.Body.String())
	}
}

func TestLoginBadCredentialsUniformBody(t *testing.T) {
	api, mock, _ := newTestAPI(t)

	mock.ExpectQuery("select (.+) from users where username=").
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "username", "password_hash", "is_active", "organization_id", "user_level_id", "created_at", "updated_at",
		}))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"username":"alice","password":"wrong"}`))
	rr := httptest.NewRecorder()
	api.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["success"] != false || body["error"] != "Invalid credentials or user inactive" {
		t.Fatalf("unexpected failure body: %s", rr.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
