package directory

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"sala.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Provinces() ProvinceStore { return &provinceStore{db: s.db} }
func (s *PGStore) Districts() DistrictStore { return &districtStore{db: s.db} }
func (s *PGStore) Communes() CommuneStore   { return &communeStore{db: s.db} }
func (s *PGStore) Villages() VillageStore   { return &villageStore{db: s.db} }
func (s *PGStore) Staff() StaffStore        { return &staffStore{db: s.db} }

func mapPGError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23503":
			return ErrConflict
		}
	}
	return err
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Province store ------------------------------------------------------------
type provinceStore struct{ db *sql.DB }

func (s *provinceStore) Create(ctx context.Context, p *Province) error {
	if p.ID == "" {
		p.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into provinces(id, code, name_en, name_kh, is_active) values($1,$2,$3,$4,$5)`,
		p.ID, p.Code, p.NameEn, p.NameKh, p.IsActive,
	)
	return mapPGError(err)
}

func (s *provinceStore) Update(ctx context.Context, p *Province) error {
	res, err := s.db.ExecContext(ctx,
		`update provinces set code=$2, name_en=$3, name_kh=$4, is_active=$5, updated_at=now() where id=$1`,
		p.ID, p.Code, p.NameEn, p.NameKh, p.IsActive,
	)
	if err != nil {
		return mapPGError(err)
	}
	return requireAffected(res)
}

// Delete soft-deletes the province and all descendants in one transaction so
// a partially disabled subtree is never observable.
func (s *provinceStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`update provinces set is_active=false, updated_at=now() where id=$1`, id)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`update districts set is_active=false, updated_at=now() where province_id=$1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`update communes set is_active=false, updated_at=now()
		 where district_id in (select id from districts where province_id=$1)`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`update villages set is_active=false, updated_at=now()
		 where commune_id in (
		   select c.id from communes c
		   join districts d on d.id=c.district_id
		   where d.province_id=$1)`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *provinceStore) GetByID(ctx context.Context, id string) (*Province, error) {
	var p Province
	err := s.db.QueryRowContext(ctx,
		`select id, code, name_en, name_kh, is_active, created_at, updated_at from provinces where id=$1`, id).
		Scan(&p.ID, &p.Code, &p.NameEn, &p.NameKh, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *provinceStore) List(ctx context.Context) ([]Province, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, code, name_en, name_kh, is_active, created_at, updated_at from provinces order by code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var provinces []Province
	for rows.Next() {
		var p Province
		if err := rows.Scan(&p.ID, &p.Code, &p.NameEn, &p.NameKh, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		provinces = append(provinces, p)
	}
	return provinces, rows.Err()
}

// District store ------------------------------------------------------------
type districtStore struct{ db *sql.DB }

func (s *districtStore) Create(ctx context.Context, d *District) error {
	if d.ID == "" {
		d.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into districts(id, code, name_en, name_kh, province_id, is_active) values($1,$2,$3,$4,$5,$6)`,
		d.ID, d.Code, d.NameEn, d.NameKh, d.ProvinceID, d.IsActive,
	)
	return mapPGError(err)
}

func (s *districtStore) Update(ctx context.Context, d *District) error {
	res, err := s.db.ExecContext(ctx,
		`update districts set code=$2, name_en=$3, name_kh=$4, province_id=$5, is_active=$6, updated_at=now() where id=$1`,
		d.ID, d.Code, d.NameEn, d.NameKh, d.ProvinceID, d.IsActive,
	)
	if err != nil {
		return mapPGError(err)
	}
	return requireAffected(res)
}

func (s *districtStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`update districts set is_active=false, updated_at=now() where id=$1`, id)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`update communes set is_active=false, updated_at=now() where district_id=$1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`update villages set is_active=false, updated_at=now()
		 where commune_id in (select id from communes where district_id=$1)`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *districtStore) GetByID(ctx context.Context, id string) (*District, error) {
	var d District
	err := s.db.QueryRowContext(ctx,
		`select id, code, name_en, name_kh, province_id, is_active, created_at, updated_at from districts where id=$1`, id).
		Scan(&d.ID, &d.Code, &d.NameEn, &d.NameKh, &d.ProvinceID, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (s *districtStore) ListByProvince(ctx context.Context, provinceID string) ([]District, error) {
	return s.list(ctx,
		`select id, code, name_en, name_kh, province_id, is_active, created_at, updated_at
		 from districts where province_id=$1 order by code`, provinceID)
}

func (s *districtStore) List(ctx context.Context) ([]District, error) {
	return s.list(ctx,
		`select id, code, name_en, name_kh, province_id, is_active, created_at, updated_at
		 from districts order by code`)
}

func (s *districtStore) list(ctx context.Context, query string, args ...any) ([]District, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var districts []District
	for rows.Next() {
		var d District
		if err := rows.Scan(&d.ID, &d.Code, &d.NameEn, &d.NameKh, &d.ProvinceID, &d.IsActive, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		districts = append(districts, d)
	}
	return districts, rows.Err()
}

// Commune store -------------------------------------------------------------
type communeStore struct{ db *sql.DB }

func (s *communeStore) Create(ctx context.Context, c *Commune) error {
	if c.ID == "" {
		c.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into communes(id, code, name_en, name_kh, district_id, is_active) values($1,$2,$3,$4,$5,$6)`,
		c.ID, c.Code, c.NameEn, c.NameKh, c.DistrictID, c.IsActive,
	)
	return mapPGError(err)
}

func (s *communeStore) Update(ctx context.Context, c *Commune) error {
	res, err := s.db.ExecContext(ctx,
		`update communes set code=$2, name_en=$3, name_kh=$4, district_id=$5, is_active=$6, updated_at=now() where id=$1`,
		c.ID, c.Code, c.NameEn, c.NameKh, c.DistrictID, c.IsActive,
	)
	if err != nil {
		return mapPGError(err)
	}
	return requireAffected(res)
}

func (s *communeStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`update communes set is_active=false, updated_at=now() where id=$1`, id)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`update villages set is_active=false, updated_at=now() where commune_id=$1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *communeStore) GetByID(ctx context.Context, id string) (*Commune, error) {
	var c Commune
	err := s.db.QueryRowContext(ctx,
		`select id, code, name_en, name_kh, district_id, is_active, created_at, updated_at from communes where id=$1`, id).
		Scan(&c.ID, &c.Code, &c.NameEn, &c.NameKh, &c.DistrictID, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *communeStore) ListByDistrict(ctx context.Context, districtID string) ([]Commune, error) {
	return s.list(ctx,
		`select id, code, name_en, name_kh, district_id, is_active, created_at, updated_at
		 from communes where district_id=$1 order by code`, districtID)
}

func (s *communeStore) List(ctx context.Context) ([]Commune, error) {
	return s.list(ctx,
		`select id, code, name_en, name_kh, district_id, is_active, created_at, updated_at
		 from communes order by code`)
}

func (s *communeStore) list(ctx context.Context, query string, args ...any) ([]Commune, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var communes []Commune
	for rows.Next() {
		var c Commune
		if err := rows.Scan(&c.ID, &c.Code, &c.NameEn, &c.NameKh, &c.DistrictID, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		communes = append(communes, c)
	}
	return communes, rows.Err()
}

// Village store -------------------------------------------------------------
type villageStore struct{ db *sql.DB }

func (s *villageStore) Create(ctx context.Context, v *Village) error {
	if v.ID == "" {
		v.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into villages(id, code, name_en, name_kh, commune_id, is_active) values($1,$2,$3,$4,$5,$6)`,
		v.ID, v.Code, v.NameEn, v.NameKh, v.CommuneID, v.IsActive,
	)
	return mapPGError(err)
}

func (s *villageStore) Update(ctx context.Context, v *Village) error {
	res, err := s.db.ExecContext(ctx,
		`update villages set code=$2, name_en=$3, name_kh=$4, commune_id=$5, is_active=$6, updated_at=now() where id=$1`,
		v.ID, v.Code, v.NameEn, v.NameKh, v.CommuneID, v.IsActive,
	)
	if err != nil {
		return mapPGError(err)
	}
	return requireAffected(res)
}

func (s *villageStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update villages set is_active=false, updated_at=now() where id=$1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *villageStore) GetByID(ctx context.Context, id string) (*Village, error) {
	var v Village
	err := s.db.QueryRowContext(ctx,
		`select id, code, name_en, name_kh, commune_id, is_active, created_at, updated_at from villages where id=$1`, id).
		Scan(&v.ID, &v.Code, &v.NameEn, &v.NameKh, &v.CommuneID, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (s *villageStore) ListByCommune(ctx context.Context, communeID string) ([]Village, error) {
	return s.list(ctx,
		`select id, code, name_en, name_kh, commune_id, is_active, created_at, updated_at
		 from villages where commune_id=$1 order by code`, communeID)
}

func (s *villageStore) List(ctx context.Context) ([]Village, error) {
	return s.list(ctx,
		`select id, code, name_en, name_kh, commune_id, is_active, created_at, updated_at
		 from villages order by code`)
}

func (s *villageStore) list(ctx context.Context, query string, args ...any) ([]Village, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var villages []Village
	for rows.Next() {
		var v Village
		if err := rows.Scan(&v.ID, &v.Code, &v.NameEn, &v.NameKh, &v.CommuneID, &v.IsActive, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		villages = append(villages, v)
	}
	return villages, rows.Err()
}

// Staff store ---------------------------------------------------------------
type staffStore struct{ db *sql.DB }

const staffColumns = `id, code, name_en, name_kh, coalesce(position,''), organization_id, is_active, created_at, updated_at`

func (s *staffStore) Create(ctx context.Context, st *Staff) error {
	if st.ID == "" {
		st.ID = ids.New()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`insert into staff(id, code, name_en, name_kh, position, organization_id, is_active)
		 values($1,$2,$3,$4,nullif($5,''),$6,$7)`,
		st.ID, st.Code, st.NameEn, st.NameKh, st.Position, st.OrganizationID, st.IsActive,
	); err != nil {
		return mapPGError(err)
	}
	// A new staff member opens their first posting interval.
	if _, err := tx.ExecContext(ctx,
		`insert into staff_history(id, staff_id, organization_id, start_at)
		 values($1,$2,$3,now())`,
		ids.New(), st.ID, st.OrganizationID,
	); err != nil {
		return mapPGError(err)
	}
	return tx.Commit()
}

func (s *staffStore) Update(ctx context.Context, st *Staff) error {
	res, err := s.db.ExecContext(ctx,
		`update staff set code=$2, name_en=$3, name_kh=$4, position=nullif($5,''), is_active=$6, updated_at=now()
		 where id=$1`,
		st.ID, st.Code, st.NameEn, st.NameKh, st.Position, st.IsActive,
	)
	if err != nil {
		return mapPGError(err)
	}
	return requireAffected(res)
}

func (s *staffStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update staff set is_active=false, updated_at=now() where id=$1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *staffStore) GetByID(ctx context.Context, id string) (*Staff, error) {
	var st Staff
	err := s.db.QueryRowContext(ctx,
		`select `+staffColumns+` from staff where id=$1`, id).
		Scan(&st.ID, &st.Code, &st.NameEn, &st.NameKh, &st.Position, &st.OrganizationID, &st.IsActive, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &st, nil
}

func (s *staffStore) ListByOrganization(ctx context.Context, organizationID string) ([]Staff, error) {
	return s.list(ctx,
		`select `+staffColumns+` from staff where organization_id=$1 order by code`, organizationID)
}

func (s *staffStore) List(ctx context.Context) ([]Staff, error) {
	return s.list(ctx, `select `+staffColumns+` from staff order by code`)
}

func (s *staffStore) list(ctx context.Context, query string, args ...any) ([]Staff, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var staff []Staff
	for rows.Next() {
		var st Staff
		if err := rows.Scan(&st.ID, &st.Code, &st.NameEn, &st.NameKh, &st.Position, &st.OrganizationID, &st.IsActive, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, err
		}
		staff = append(staff, st)
	}
	return staff, rows.Err()
}

// Transfer closes the current posting and opens the new one atomically. The
// staff row's organization pointer is updated in the same transaction so it
// always mirrors the open history row.
func (s *staffStore) Transfer(ctx context.Context, t Transfer) (*StaffHistory, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx,
		`select organization_id from staff where id=$1 and is_active`, t.StaffID).Scan(&current)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if current == t.ToOrganizationID {
		return nil, ErrConflict
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`update staff_history set end_at=$2 where staff_id=$1 and end_at is null`,
		t.StaffID, now); err != nil {
		return nil, err
	}

	history := &StaffHistory{
		ID:             ids.New(),
		StaffID:        t.StaffID,
		OrganizationID: t.ToOrganizationID,
		StartAt:        now,
		TransferredBy:  t.RequestedBy,
		Reason:         t.Reason,
	}
	if _, err := tx.ExecContext(ctx,
		`insert into staff_history(id, staff_id, organization_id, start_at, transferred_by, reason)
		 values($1,$2,$3,$4,nullif($5,''),nullif($6,''))`,
		history.ID, history.StaffID, history.OrganizationID, history.StartAt, history.TransferredBy, history.Reason,
	); err != nil {
		return nil, mapPGError(err)
	}
	if _, err := tx.ExecContext(ctx,
		`update staff set organization_id=$2, updated_at=now() where id=$1`,
		t.StaffID, t.ToOrganizationID); err != nil {
		return nil, mapPGError(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return history, nil
}

func (s *staffStore) History(ctx context.Context, staffID string) ([]StaffHistory, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, staff_id, organization_id, start_at, end_at, coalesce(transferred_by,''), coalesce(reason,''), created_at
		 from staff_history where staff_id=$1 order by start_at desc`, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []StaffHistory
	for rows.Next() {
		var h StaffHistory
		if err := rows.Scan(&h.ID, &h.StaffID, &h.OrganizationID, &h.StartAt, &h.EndAt, &h.TransferredBy, &h.Reason, &h.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}
