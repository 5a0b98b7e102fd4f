package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	codec, err := NewTokenCodec("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	svc := NewService(NewPGStore(db), codec)
	return svc, mock, func() { db.Close() }
}

func userRow(hash string, active bool) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "username", "password_hash", "is_active", "organization_id", "user_level_id", "created_at", "updated_at",
	}).AddRow("user-1", "alice", hash, active, "org-1", "ulvl-1", now, now)
}

func grantRows() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "code", "name_en", "name_kh", "description", "is_active", "created_at", "updated_at",
		"p_id", "p_code", "p_name_en", "p_name_kh", "p_group", "p_is_active", "p_created_at", "p_updated_at",
	}).
		AddRow("role-1", "ADMIN", "Administrator", "", "", true, now, now,
			"perm-1", PermUserView, "View users", "", "", true, now, now).
		AddRow("role-1", "ADMIN", "Administrator", "", "", true, now, now,
			"perm-2", PermUserCreate, "Create users", "", "", true, now, now)
}

func TestLoginSuccessOpensSession(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	mock.ExpectQuery("select (.+) from users where username=").
		WithArgs("alice").WillReturnRows(userRow(hash, true))
	mock.ExpectQuery("from user_roles ur").
		WithArgs("user-1").WillReturnRows(grantRows())
	mock.ExpectExec("insert into active_logs").
		WithArgs(sqlmock.AnyArg(), "user-1", sqlmock.AnyArg(), sqlmock.AnyArg(), "10.0.0.1", "test-agent", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	result, err := svc.Login(context.Background(), "alice", "correct horse", LoginMeta{
		IPAddress: "10.0.0.1",
		UserAgent: "test-agent",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.Token == "" || result.SessionID == "" {
		t.Fatalf("expected token and session id, got %+v", result)
	}
	if len(result.Permissions) != 2 {
		t.Fatalf("expected resolved permissions, got %v", result.Permissions)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLoginFailuresAreUniformAndWriteNothing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	cases := []struct {
		name     string
		username string
		password string
		setup    func(mock sqlmock.Sqlmock)
	}{
		{
			name:     "unknown user",
			username: "nobody",
			password: "whatever",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("select (.+) from users where username=").
					WithArgs("nobody").
					WillReturnRows(sqlmock.NewRows([]string{
						"id", "username", "password_hash", "is_active", "organization_id", "user_level_id", "created_at", "updated_at",
					}))
			},
		},
		{
			name:     "wrong password",
			username: "alice",
			password: "wrong",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("select (.+) from users where username=").
					WithArgs("alice").WillReturnRows(userRow(hash, true))
			},
		},
		{
			name:     "inactive user",
			username: "alice",
			password: "correct horse",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("select (.+) from users where username=").
					WithArgs("alice").WillReturnRows(userRow(hash, false))
			},
		},
		{
			name:     "blank password",
			username: "alice",
			password: "",
			setup:    func(mock sqlmock.Sqlmock) {},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, mock, done := newTestService(t)
			defer done()
			tc.setup(mock)

			_, err := svc.Login(context.Background(), tc.username, tc.password, LoginMeta{})
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
			// No session insert was expected; any write would fail the mock.
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestVerifyRejectsStaleUser(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	token, _, err := svc.codec.Generate("user-1", "alice", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// The user was deactivated after the token was issued.
	mock.ExpectQuery("select (.+) from users where id=").
		WithArgs("user-1").WillReturnRows(userRow("x", false))

	if _, err := svc.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for inactive user, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestVerifyResolvesPermissionsFromStorage(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	token, _, err := svc.codec.Generate("user-1", "alice", []string{"STALE_ROLE"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	mock.ExpectQuery("select (.+) from users where id=").
		WithArgs("user-1").WillReturnRows(userRow("x", true))
	mock.ExpectQuery("from user_roles ur").
		WithArgs("user-1").WillReturnRows(grantRows())

	principal, err := svc.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	// Permissions come from storage, not the token's role claim.
	if !principal.HasPermission(PermUserView) || !principal.HasPermission(PermUserCreate) {
		t.Fatalf("expected stored permissions, got %v", principal.PermissionCodes())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
