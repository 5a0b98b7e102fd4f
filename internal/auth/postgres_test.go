package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestReplacePermissionsIsTransactional(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery("select exists").
		WithArgs("role-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec("delete from role_permissions where role_id=").
		WithArgs("role-1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("insert into role_permissions").
		WithArgs("role-1", "perm-1").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into role_permissions").
		WithArgs("role-1", "perm-2").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err = store.Roles().ReplacePermissions(context.Background(), "role-1", []string{"perm-1", "perm-2"})
	if err != nil {
		t.Fatalf("ReplacePermissions: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReplacePermissionsRollsBackOnUnknownPermission(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery("select exists").
		WithArgs("role-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec("delete from role_permissions where role_id=").
		WithArgs("role-1").WillReturnResult(sqlmock.NewResult(0, 1))
	// The insert selects from permissions; zero rows means the id is unknown.
	mock.ExpectExec("insert into role_permissions").
		WithArgs("role-1", "no-such-perm").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = store.Roles().ReplacePermissions(context.Background(), "role-1", []string{"no-such-perm"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoleDeleteProtectedWhileAssigned(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectQuery("select count(.+) from user_roles").
		WithArgs("role-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	if err := store.Roles().Delete(context.Background(), "role-1"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPermissionGroupDeleteProtectedWhileReferenced(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectQuery("select count(.+) from permissions where group_id=").
		WithArgs("grp-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	if err := store.Permissions().DeleteGroup(context.Background(), "grp-1"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPermissionGroupUpdateMissingIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectExec("update permission_groups set").
		WithArgs("missing", "G1", "Group One", "").
		WillReturnResult(sqlmock.NewResult(0, 0))

	g := &PermissionGroup{ID: "missing", Code: "G1", NameEn: "Group One"}
	if err := store.Permissions().UpdateGroup(context.Background(), g); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionCloseTwiceIsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	now := time.Now().UTC()
	mock.ExpectExec("update active_logs set ended_at=").
		WithArgs("log-1", now).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select exists").
		WithArgs("log-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	if err := store.Sessions().Close(context.Background(), "log-1", now); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for a second close, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserLevelWritesBindEmptyDescription(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	// The column is not null with a '' default; an omitted description must
	// be written as '' rather than NULL.
	mock.ExpectExec(`insert into user_levels\(id, name, description, level_type_id, organization_id\)\s+values\(\$1,\$2,\$3,\$4,\$5\)`).
		WithArgs(sqlmock.AnyArg(), "District office", "", "lt-1", "org-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`update user_levels set name=\$2, description=\$3`).
		WithArgs("ulvl-1", "District office", "", "lt-1", "org-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	create := &UserLevel{Name: "District office", LevelTypeID: "lt-1", OrganizationID: "org-1"}
	if err := store.Levels().CreateUserLevel(context.Background(), create); err != nil {
		t.Fatalf("CreateUserLevel: %v", err)
	}
	update := &UserLevel{ID: "ulvl-1", Name: "District office", LevelTypeID: "lt-1", OrganizationID: "org-1"}
	if err := store.Levels().UpdateUserLevel(context.Background(), update); err != nil {
		t.Fatalf("UpdateUserLevel: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectQuery("select (.+) from users where id=").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "username", "password_hash", "is_active", "organization_id", "user_level_id", "created_at", "updated_at",
		}))

	if _, err := store.Users().GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
