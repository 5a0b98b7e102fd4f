package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestProvinceDeleteCascadesInOneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("update provinces set is_active=false").
		WithArgs("prov-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update districts set is_active=false").
		WithArgs("prov-1").WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec("update communes set is_active=false").
		WithArgs("prov-1").WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectExec("update villages set is_active=false").
		WithArgs("prov-1").WillReturnResult(sqlmock.NewResult(0, 40))
	mock.ExpectCommit()

	if err := store.Provinces().Delete(context.Background(), "prov-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestProvinceDeleteMissingRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("update provinces set is_active=false").
		WithArgs("missing").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	if err := store.Provinces().Delete(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStaffTransferClosesOldPostingAtomically(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery("select organization_id from staff").
		WithArgs("staff-1").
		WillReturnRows(sqlmock.NewRows([]string{"organization_id"}).AddRow("org-a"))
	mock.ExpectExec("update staff_history set end_at=").
		WithArgs("staff-1", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into staff_history").
		WithArgs(sqlmock.AnyArg(), "staff-1", "org-b", sqlmock.AnyArg(), "user-9", "promotion").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("update staff set organization_id=").
		WithArgs("staff-1", "org-b").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	history, err := store.Staff().Transfer(context.Background(), Transfer{
		StaffID:          "staff-1",
		ToOrganizationID: "org-b",
		Reason:           "promotion",
		RequestedBy:      "user-9",
	})
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if history.OrganizationID != "org-b" || history.EndAt != nil {
		t.Fatalf("unexpected history row: %+v", history)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStaffTransferToSameOrganizationIsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery("select organization_id from staff").
		WithArgs("staff-1").
		WillReturnRows(sqlmock.NewRows([]string{"organization_id"}).AddRow("org-a"))
	mock.ExpectRollback()

	_, err = store.Staff().Transfer(context.Background(), Transfer{
		StaffID:          "staff-1",
		ToOrganizationID: "org-a",
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateDistrictValidatesProvince(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	svc := NewService(NewPGStore(db))

	mock.ExpectQuery("select (.+) from provinces where id=").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "code", "name_en", "name_kh", "is_active", "created_at", "updated_at",
		}))

	err = svc.CreateDistrict(context.Background(), &District{
		Code: "D1", NameEn: "District One", ProvinceID: "missing",
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
