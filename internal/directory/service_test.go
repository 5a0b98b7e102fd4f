package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewService(NewPGStore(db)), mock
}

func districtRow(id, provinceID string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "code", "name_en", "name_kh", "province_id", "is_active", "created_at", "updated_at",
	}).AddRow(id, "D01", "District", "", provinceID, true, now, now)
}

func communeRow(id, districtID string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "code", "name_en", "name_kh", "district_id", "is_active", "created_at", "updated_at",
	}).AddRow(id, "C01", "Commune", "", districtID, true, now, now)
}

func villageRow(id, communeID string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "code", "name_en", "name_kh", "commune_id", "is_active", "created_at", "updated_at",
	}).AddRow(id, "V01", "Village", "", communeID, true, now, now)
}

func TestValidateOrganizationPlacementConsistentChain(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("select (.+) from districts where id=").
		WithArgs("dist-1").WillReturnRows(districtRow("dist-1", "prov-1"))
	mock.ExpectQuery("select (.+) from communes where id=").
		WithArgs("comm-1").WillReturnRows(communeRow("comm-1", "dist-1"))
	mock.ExpectQuery("select (.+) from villages where id=").
		WithArgs("vill-1").WillReturnRows(villageRow("vill-1", "comm-1"))

	err := svc.ValidateOrganizationPlacement(context.Background(), "prov-1", "dist-1", "comm-1", "vill-1")
	if err != nil {
		t.Fatalf("ValidateOrganizationPlacement: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestValidateOrganizationPlacementRejectsMismatches(t *testing.T) {
	cases := []struct {
		name     string
		province string
		district string
		commune  string
		village  string
		setup    func(mock sqlmock.Sqlmock)
	}{
		{
			name:     "district in another province",
			province: "prov-1",
			district: "dist-9",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("select (.+) from districts where id=").
					WithArgs("dist-9").WillReturnRows(districtRow("dist-9", "prov-2"))
			},
		},
		{
			name:     "commune in another district",
			province: "prov-1",
			district: "dist-1",
			commune:  "comm-9",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("select (.+) from districts where id=").
					WithArgs("dist-1").WillReturnRows(districtRow("dist-1", "prov-1"))
				mock.ExpectQuery("select (.+) from communes where id=").
					WithArgs("comm-9").WillReturnRows(communeRow("comm-9", "dist-2"))
			},
		},
		{
			name:     "village in another commune",
			province: "prov-1",
			district: "dist-1",
			commune:  "comm-1",
			village:  "vill-9",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("select (.+) from districts where id=").
					WithArgs("dist-1").WillReturnRows(districtRow("dist-1", "prov-1"))
				mock.ExpectQuery("select (.+) from communes where id=").
					WithArgs("comm-1").WillReturnRows(communeRow("comm-1", "dist-1"))
				mock.ExpectQuery("select (.+) from villages where id=").
					WithArgs("vill-9").WillReturnRows(villageRow("vill-9", "comm-2"))
			},
		},
		{
			name:     "village without commune",
			province: "prov-1",
			district: "dist-1",
			village:  "vill-1",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("select (.+) from districts where id=").
					WithArgs("dist-1").WillReturnRows(districtRow("dist-1", "prov-1"))
			},
		},
		{
			name:     "unknown district",
			province: "prov-1",
			district: "missing",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("select (.+) from districts where id=").
					WithArgs("missing").WillReturnRows(sqlmock.NewRows([]string{
					"id", "code", "name_en", "name_kh", "province_id", "is_active", "created_at", "updated_at",
				}))
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, mock := newTestService(t)
			tc.setup(mock)

			err := svc.ValidateOrganizationPlacement(context.Background(), tc.province, tc.district, tc.commune, tc.village)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}
