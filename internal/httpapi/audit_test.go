package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"sala.org/internal/audit"
	"sala.org/internal/auth"
	"sala.org/internal/obs"
)

// failingRecorder simulates an unreachable audit sink.
type failingRecorder struct{}

func (failingRecorder) Record(ctx context.Context, e *audit.Entry) error {
	return errors.New("audit sink unavailable")
}

func (failingRecorder) List(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	return nil, errors.New("audit sink unavailable")
}

// captureRecorder keeps every entry for assertions.
type captureRecorder struct {
	entries []*audit.Entry
}

func (c *captureRecorder) Record(ctx context.Context, e *audit.Entry) error {
	c.entries = append(c.entries, e)
	return nil
}

func (c *captureRecorder) List(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	return nil, nil
}

func expectLoginFlow(t *testing.T, mock sqlmock.Sqlmock, password string) {
	t.Helper()
	hash, err := auth.HashPassword(password)
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
		WithArgs("user-1").WillReturnRows(grantRowsWith(auth.PermUserView))
	mock.ExpectExec("insert into active_logs").
		WithArgs(sqlmock.AnyArg(), "user-1", sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
}

func TestAuditWriteFailureDoesNotFailTheAction(t *testing.T) {
	api, mock, _ := newTestAPIWithRecorder(t, failingRecorder{})
	expectLoginFlow(t, mock, "correct horse")

	before := testutil.ToFloat64(obs.AuditWriteFailureCounter())

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"username":"alice","password":"correct horse"}`))
	rr := httptest.NewRecorder()
	api.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 despite the audit failure, got %d: %s", rr.Code, rr.Body.String())
	}
	after := testutil.ToFloat64(obs.AuditWriteFailureCounter())
	if after != before+1 {
		t.Fatalf("expected audit_write_failures_total to increment by 1, went %v -> %v", before, after)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLoginAuditCarriesTheAuthenticatedActor(t *testing.T) {
	rec := &captureRecorder{}
	api, mock, _ := newTestAPIWithRecorder(t, rec)
	expectLoginFlow(t, mock, "correct horse")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"username":"alice","password":"correct horse"}`))
	rr := httptest.NewRecorder()
	api.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(rec.entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(rec.entries))
	}
	entry := rec.entries[0]
	if entry.Action != "auth.login" || entry.ActorUserID != "user-1" {
		t.Fatalf("unexpected audit entry: action=%q actor=%q", entry.Action, entry.ActorUserID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
