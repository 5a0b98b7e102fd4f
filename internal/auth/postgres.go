package auth

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"sala.org/internal/ids"
)

var _ Store = (*PGStore)(nil)
var _ ScopeLoader = (*levelStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Users() UserStore                 { return &userStore{db: s.db} }
func (s *PGStore) Roles() RoleStore                 { return &roleStore{db: s.db} }
func (s *PGStore) Permissions() PermissionStore     { return &permissionStore{db: s.db} }
func (s *PGStore) Levels() LevelStore               { return &levelStore{db: s.db} }
func (s *PGStore) Organizations() OrganizationStore { return &organizationStore{db: s.db} }
func (s *PGStore) Sessions() SessionStore           { return &sessionStore{db: s.db} }

// mapPGError translates constraint violations into package sentinels so
// callers branch on errors.Is rather than driver codes.
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

// User store ---------------------------------------------------------------
type userStore struct{ db *sql.DB }

const userColumns = `id, username, password_hash, is_active, organization_id, user_level_id, created_at, updated_at`

func (s *userStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, username, password_hash, is_active, organization_id, user_level_id)
		 values($1,$2,$3,$4,nullif($5,''),nullif($6,''))`,
		u.ID, u.Username, u.PasswordHash, u.IsActive, u.OrganizationID, u.UserLevelID,
	)
	return mapPGError(err)
}

func (s *userStore) Update(ctx context.Context, u *User) error {
	res, err := s.db.ExecContext(ctx,
		`update users set username=$2, is_active=$3, organization_id=nullif($4,''), user_level_id=nullif($5,''), updated_at=now()
		 where id=$1`,
		u.ID, u.Username, u.IsActive, u.OrganizationID, u.UserLevelID,
	)
	if err != nil {
		return mapPGError(err)
	}
	return requireAffected(res)
}

func (s *userStore) Deactivate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set is_active=false, updated_at=now() where id=$1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *userStore) GetByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (s *userStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where username=$1`, username)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var (
		u       User
		orgID   sql.NullString
		levelID sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsActive, &orgID, &levelID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.OrganizationID = orgID.String
	u.UserLevelID = levelID.String
	return &u, nil
}

func (s *userStore) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+userColumns+` from users order by created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var (
			u       User
			orgID   sql.NullString
			levelID sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsActive, &orgID, &levelID, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		u.OrganizationID = orgID.String
		u.UserLevelID = levelID.String
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *userStore) AssignRole(ctx context.Context, userID, roleID string) error {
	_, err := s.db.ExecContext(ctx,
		`insert into user_roles(user_id, role_id) values($1,$2) on conflict do nothing`,
		userID, roleID)
	return mapPGError(err)
}

func (s *userStore) RemoveRole(ctx context.Context, userID, roleID string) error {
	res, err := s.db.ExecContext(ctx,
		`delete from user_roles where user_id=$1 and role_id=$2`, userID, roleID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *userStore) GrantsForUser(ctx context.Context, userID string) ([]RoleGrant, error) {
	rows, err := s.db.QueryContext(ctx,
		`select r.id, r.code, r.name_en, r.name_kh, r.description, r.is_active, r.created_at, r.updated_at,
		        p.id, p.code, p.name_en, p.name_kh, coalesce(p.group_id,''), p.is_active, p.created_at, p.updated_at
		 from user_roles ur
		 join roles r on r.id=ur.role_id and r.is_active
		 left join role_permissions rp on rp.role_id=r.id
		 left join permissions p on p.id=rp.permission_id and p.is_active
		 where ur.user_id=$1
		 order by r.code, p.code`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		grants []RoleGrant
		index  = map[string]int{}
	)
	for rows.Next() {
		var (
			r     Role
			pID   sql.NullString
			pCode sql.NullString
			pEn   sql.NullString
			pKh   sql.NullString
			pGrp  sql.NullString
			pAct  sql.NullBool
			pCr   sql.NullTime
			pUp   sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.Code, &r.NameEn, &r.NameKh, &r.Description, &r.IsActive, &r.CreatedAt, &r.UpdatedAt,
			&pID, &pCode, &pEn, &pKh, &pGrp, &pAct, &pCr, &pUp); err != nil {
			return nil, err
		}
		i, ok := index[r.ID]
		if !ok {
			grants = append(grants, RoleGrant{Role: r})
			i = len(grants) - 1
			index[r.ID] = i
		}
		if pID.Valid {
			grants[i].Permissions = append(grants[i].Permissions, Permission{
				ID: pID.String, Code: pCode.String, NameEn: pEn.String, NameKh: pKh.String,
				GroupID: pGrp.String, IsActive: pAct.Bool, CreatedAt: pCr.Time, UpdatedAt: pUp.Time,
			})
		}
	}
	return grants, rows.Err()
}

// Role store ---------------------------------------------------------------
type roleStore struct{ db *sql.DB }

const roleColumns = `id, code, name_en, name_kh, description, is_active, created_at, updated_at`

func (s *roleStore) Create(ctx context.Context, r *Role) error {
	if r.ID == "" {
		r.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into roles(id, code, name_en, name_kh, description, is_active)
		 values($1,$2,$3,$4,$5,$6)`,
		r.ID, r.Code, r.NameEn, r.NameKh, r.Description, r.IsActive,
	)
	return mapPGError(err)
}

func (s *roleStore) Update(ctx context.Context, r *Role) error {
	res, err := s.db.ExecContext(ctx,
		`update roles set code=$2, name_en=$3, name_kh=$4, description=$5, is_active=$6, updated_at=now()
		 where id=$1`,
		r.ID, r.Code, r.NameEn, r.NameKh, r.Description, r.IsActive,
	)
	if err != nil {
		return mapPGError(err)
	}
	return requireAffected(res)
}

func (s *roleStore) Delete(ctx context.Context, id string) error {
	var assigned int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from user_roles where role_id=$1`, id).Scan(&assigned); err != nil {
		return err
	}
	if assigned > 0 {
		return ErrConflict
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id=$1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `delete from roles where id=$1`, id)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *roleStore) GetByID(ctx context.Context, id string) (*Role, error) {
	return scanRole(s.db.QueryRowContext(ctx,
		`select `+roleColumns+` from roles where id=$1`, id))
}

func (s *roleStore) GetByCode(ctx context.Context, code string) (*Role, error) {
	return scanRole(s.db.QueryRowContext(ctx,
		`select `+roleColumns+` from roles where code=$1`, code))
}

func scanRole(row *sql.Row) (*Role, error) {
	var r Role
	if err := row.Scan(&r.ID, &r.Code, &r.NameEn, &r.NameKh, &r.Description, &r.IsActive, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *roleStore) List(ctx context.Context) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+roleColumns+` from roles order by code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Code, &r.NameEn, &r.NameKh, &r.Description, &r.IsActive, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func (s *roleStore) ReplacePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`select exists(select 1 from roles where id=$1)`, roleID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id=$1`, roleID); err != nil {
		return err
	}
	for _, pid := range permissionIDs {
		res, err := tx.ExecContext(ctx,
			`insert into role_permissions(role_id, permission_id)
			 select $1, id from permissions where id=$2`, roleID, pid)
		if err != nil {
			return mapPGError(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrInvalidInput
		}
	}
	return tx.Commit()
}

func (s *roleStore) PermissionsForRole(ctx context.Context, roleID string) ([]Permission, error) {
	rows, err := s.db.QueryContext(ctx,
		`select p.id, p.code, p.name_en, p.name_kh, coalesce(p.group_id,''), p.is_active, p.created_at, p.updated_at
		 from permissions p
		 join role_permissions rp on rp.permission_id=p.id
		 where rp.role_id=$1 order by p.code`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Code, &p.NameEn, &p.NameKh, &p.GroupID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// Permission store ---------------------------------------------------------
type permissionStore struct{ db *sql.DB }

const permissionColumns = `id, code, name_en, name_kh, coalesce(group_id,''), is_active, created_at, updated_at`

func (s *permissionStore) Create(ctx context.Context, p *Permission) error {
	if p.ID == "" {
		p.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into permissions(id, code, name_en, name_kh, group_id, is_active)
		 values($1,$2,$3,$4,nullif($5,''),$6)`,
		p.ID, p.Code, p.NameEn, p.NameKh, p.GroupID, p.IsActive,
	)
	return mapPGError(err)
}

func (s *permissionStore) Update(ctx context.Context, p *Permission) error {
	res, err := s.db.ExecContext(ctx,
		`update permissions set code=$2, name_en=$3, name_kh=$4, group_id=nullif($5,''), is_active=$6, updated_at=now()
		 where id=$1`,
		p.ID, p.Code, p.NameEn, p.NameKh, p.GroupID, p.IsActive,
	)
	if err != nil {
		return mapPGError(err)
	}
	return requireAffected(res)
}

func (s *permissionStore) Delete(ctx context.Context, id string) error {
	var referenced int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from role_permissions where permission_id=$1`, id).Scan(&referenced); err != nil {
		return err
	}
	if referenced > 0 {
		return ErrConflict
	}
	res, err := s.db.ExecContext(ctx, `delete from permissions where id=$1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *permissionStore) GetByID(ctx context.Context, id string) (*Permission, error) {
	return scanPermission(s.db.QueryRowContext(ctx,
		`select `+permissionColumns+` from permissions where id=$1`, id))
}

func (s *permissionStore) GetByCode(ctx context.Context, code string) (*Permission, error) {
	return scanPermission(s.db.QueryRowContext(ctx,
		`select `+permissionColumns+` from permissions where code=$1`, code))
}

func scanPermission(row *sql.Row) (*Permission, error) {
	var p Permission
	if err := row.Scan(&p.ID, &p.Code, &p.NameEn, &p.NameKh, &p.GroupID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *permissionStore) List(ctx context.Context) ([]Permission, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+permissionColumns+` from permissions order by code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Code, &p.NameEn, &p.NameKh, &p.GroupID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (s *permissionStore) ListGroups(ctx context.Context) ([]PermissionGroup, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, code, name_en, name_kh, created_at, updated_at from permission_groups order by code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []PermissionGroup
	for rows.Next() {
		var g PermissionGroup
		if err := rows.Scan(&g.ID, &g.Code, &g.NameEn, &g.NameKh, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *permissionStore) GetGroup(ctx context.Context, id string) (*PermissionGroup, error) {
	var g PermissionGroup
	err := s.db.QueryRowContext(ctx,
		`select id, code, name_en, name_kh, created_at, updated_at from permission_groups where id=$1`, id).
		Scan(&g.ID, &g.Code, &g.NameEn, &g.NameKh, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (s *permissionStore) CreateGroup(ctx context.Context, g *PermissionGroup) error {
	if g.ID == "" {
		g.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into permission_groups(id, code, name_en, name_kh) values($1,$2,$3,$4)`,
		g.ID, g.Code, g.NameEn, g.NameKh,
	)
	return mapPGError(err)
}

func (s *permissionStore) UpdateGroup(ctx context.Context, g *PermissionGroup) error {
	res, err := s.db.ExecContext(ctx,
		`update permission_groups set code=$2, name_en=$3, name_kh=$4, updated_at=now() where id=$1`,
		g.ID, g.Code, g.NameEn, g.NameKh,
	)
	if err != nil {
		return mapPGError(err)
	}
	return requireAffected(res)
}

func (s *permissionStore) DeleteGroup(ctx context.Context, id string) error {
	var referenced int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from permissions where group_id=$1`, id).Scan(&referenced); err != nil {
		return err
	}
	if referenced > 0 {
		return ErrConflict
	}
	res, err := s.db.ExecContext(ctx, `delete from permission_groups where id=$1`, id)
	if err != nil {
		return mapPGError(err)
	}
	return requireAffected(res)
}

// Level store ---------------------------------------------------------------
type levelStore struct{ db *sql.DB }

const levelTypeColumns = `id, code, name_en, name_kh, level_order, is_active, created_at, updated_at`

func (s *levelStore) CreateLevelType(ctx context.Context, lt *LevelType) error {
	if lt.ID == "" {
		lt.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into level_types(id, code, name_en, name_kh, level_order, is_active)
		 values($1,$2,$3,$4,$5,$6)`,
		lt.ID, lt.Code, lt.NameEn, lt.NameKh, lt.LevelOrder, lt.IsActive,
	)
	return mapPGError(err)
}

func (s *levelStore) UpdateLevelType(ctx context.Context, lt *LevelType) error {
	res, err := s.db.ExecContext(ctx,
		`update level_types set code=$2, name_en=$3, name_kh=$4, level_order=$5, is_active=$6, updated_at=now()
		 where id=$1`,
		lt.ID, lt.Code, lt.NameEn, lt.NameKh, lt.LevelOrder, lt.IsActive,
	)
	if err != nil {
		return mapPGError(err)
	}
	return requireAffected(res)
}

func (s *levelStore) DeleteLevelType(ctx context.Context, id string) error {
	var referenced int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from user_levels where level_type_id=$1`, id).Scan(&referenced); err != nil {
		return err
	}
	if referenced > 0 {
		return ErrConflict
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `delete from level_type_can_manage where level_type_id=$1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `delete from level_types where id=$1`, id)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *levelStore) GetLevelType(ctx context.Context, id string) (*LevelType, error) {
	var lt LevelType
	err := s.db.QueryRowContext(ctx,
		`select `+levelTypeColumns+` from level_types where id=$1`, id).
		Scan(&lt.ID, &lt.Code, &lt.NameEn, &lt.NameKh, &lt.LevelOrder, &lt.IsActive, &lt.CreatedAt, &lt.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &lt, nil
}

func (s *levelStore) ListLevelTypes(ctx context.Context) ([]LevelType, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+levelTypeColumns+` from level_types order by level_order`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []LevelType
	for rows.Next() {
		var lt LevelType
		if err := rows.Scan(&lt.ID, &lt.Code, &lt.NameEn, &lt.NameKh, &lt.LevelOrder, &lt.IsActive, &lt.CreatedAt, &lt.UpdatedAt); err != nil {
			return nil, err
		}
		types = append(types, lt)
	}
	return types, rows.Err()
}

func (s *levelStore) ListLocationTypes(ctx context.Context) ([]LocationType, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, code, name_en, name_kh, sort_order, created_at from location_types order by sort_order`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []LocationType
	for rows.Next() {
		var lt LocationType
		if err := rows.Scan(&lt.ID, &lt.Code, &lt.NameEn, &lt.NameKh, &lt.Order, &lt.CreatedAt); err != nil {
			return nil, err
		}
		types = append(types, lt)
	}
	return types, rows.Err()
}

func (s *levelStore) LocationTypeByID(ctx context.Context, id string) (*LocationType, error) {
	var lt LocationType
	err := s.db.QueryRowContext(ctx,
		`select id, code, name_en, name_kh, sort_order, created_at from location_types where id=$1`, id).
		Scan(&lt.ID, &lt.Code, &lt.NameEn, &lt.NameKh, &lt.Order, &lt.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &lt, nil
}

func (s *levelStore) SetCanManage(ctx context.Context, levelTypeID string, locationTypeIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `delete from level_type_can_manage where level_type_id=$1`, levelTypeID); err != nil {
		return err
	}
	for _, ltID := range locationTypeIDs {
		if _, err := tx.ExecContext(ctx,
			`insert into level_type_can_manage(level_type_id, location_type_id) values($1,$2)`,
			levelTypeID, ltID); err != nil {
			return mapPGError(err)
		}
	}
	return tx.Commit()
}

func (s *levelStore) ScopeForUser(ctx context.Context, userID string) (*Scope, error) {
	var (
		scope     Scope
		orgCommID sql.NullString
		orgVillID sql.NullString
		created   sql.NullString
		updated   sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`select lt.id, lt.code, lt.name_en, lt.name_kh, lt.level_order, lt.is_active, lt.created_at, lt.updated_at,
		        o.id, o.code, o.name_en, o.name_kh, o.is_active, o.location_type_id,
		        o.province_id, o.district_id, o.commune_id, o.village_id,
		        o.created_by, o.updated_by, o.created_at, o.updated_at
		 from users u
		 join user_levels ul on ul.id=u.user_level_id
		 join level_types lt on lt.id=ul.level_type_id and lt.is_active
		 join organizations o on o.id=ul.organization_id and o.is_active
		 where u.id=$1`, userID).
		Scan(&scope.LevelType.ID, &scope.LevelType.Code, &scope.LevelType.NameEn, &scope.LevelType.NameKh,
			&scope.LevelType.LevelOrder, &scope.LevelType.IsActive, &scope.LevelType.CreatedAt, &scope.LevelType.UpdatedAt,
			&scope.Organization.ID, &scope.Organization.Code, &scope.Organization.NameEn, &scope.Organization.NameKh,
			&scope.Organization.IsActive, &scope.Organization.LocationTypeID,
			&scope.Organization.ProvinceID, &scope.Organization.DistrictID, &orgCommID, &orgVillID,
			&created, &updated, &scope.Organization.CreatedAt, &scope.Organization.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	scope.Organization.CommuneID = orgCommID.String
	scope.Organization.VillageID = orgVillID.String
	scope.Organization.CreatedBy = created.String
	scope.Organization.UpdatedBy = updated.String

	rows, err := s.db.QueryContext(ctx,
		`select location_type_id from level_type_can_manage where level_type_id=$1`, scope.LevelType.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scope.ManagedLocationTypes = make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		scope.ManagedLocationTypes[id] = struct{}{}
	}
	return &scope, rows.Err()
}

const userLevelColumns = `id, name, description, level_type_id, organization_id, created_at, updated_at`

func (s *levelStore) CreateUserLevel(ctx context.Context, ul *UserLevel) error {
	if ul.ID == "" {
		ul.ID = ids.New()
	}
	// description is not null with a '' default, so the value binds directly.
	_, err := s.db.ExecContext(ctx,
		`insert into user_levels(id, name, description, level_type_id, organization_id)
		 values($1,$2,$3,$4,$5)`,
		ul.ID, ul.Name, ul.Description, ul.LevelTypeID, ul.OrganizationID,
	)
	return mapPGError(err)
}

func (s *levelStore) UpdateUserLevel(ctx context.Context, ul *UserLevel) error {
	res, err := s.db.ExecContext(ctx,
		`update user_levels set name=$2, description=$3, level_type_id=$4, organization_id=$5, updated_at=now()
		 where id=$1`,
		ul.ID, ul.Name, ul.Description, ul.LevelTypeID, ul.OrganizationID,
	)
	if err != nil {
		return mapPGError(err)
	}
	return requireAffected(res)
}

func (s *levelStore) DeleteUserLevel(ctx context.Context, id string) error {
	var referenced int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from users where user_level_id=$1`, id).Scan(&referenced); err != nil {
		return err
	}
	if referenced > 0 {
		return ErrConflict
	}
	res, err := s.db.ExecContext(ctx, `delete from user_levels where id=$1`, id)
	if err != nil {
		return mapPGError(err)
	}
	return requireAffected(res)
}

func (s *levelStore) GetUserLevel(ctx context.Context, id string) (*UserLevel, error) {
	var ul UserLevel
	err := s.db.QueryRowContext(ctx,
		`select `+userLevelColumns+` from user_levels where id=$1`, id).
		Scan(&ul.ID, &ul.Name, &ul.Description, &ul.LevelTypeID, &ul.OrganizationID, &ul.CreatedAt, &ul.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ul, nil
}

func (s *levelStore) ListUserLevels(ctx context.Context) ([]UserLevel, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+userLevelColumns+` from user_levels order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var levels []UserLevel
	for rows.Next() {
		var ul UserLevel
		if err := rows.Scan(&ul.ID, &ul.Name, &ul.Description, &ul.LevelTypeID, &ul.OrganizationID, &ul.CreatedAt, &ul.UpdatedAt); err != nil {
			return nil, err
		}
		levels = append(levels, ul)
	}
	return levels, rows.Err()
}

// Organization store --------------------------------------------------------
type organizationStore struct{ db *sql.DB }

const orgColumns = `id, code, name_en, name_kh, is_active, location_type_id,
	 province_id, district_id, coalesce(commune_id,''), coalesce(village_id,''),
	 coalesce(created_by,''), coalesce(updated_by,''), created_at, updated_at`

func (s *organizationStore) Create(ctx context.Context, o *Organization) error {
	if o.ID == "" {
		o.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into organizations(id, code, name_en, name_kh, is_active, location_type_id,
		   province_id, district_id, commune_id, village_id, created_by)
		 values($1,$2,$3,$4,$5,$6,$7,$8,nullif($9,''),nullif($10,''),nullif($11,''))`,
		o.ID, o.Code, o.NameEn, o.NameKh, o.IsActive, o.LocationTypeID,
		o.ProvinceID, o.DistrictID, o.CommuneID, o.VillageID, o.CreatedBy,
	)
	return mapPGError(err)
}

func (s *organizationStore) Update(ctx context.Context, o *Organization) error {
	res, err := s.db.ExecContext(ctx,
		`update organizations set code=$2, name_en=$3, name_kh=$4, is_active=$5, location_type_id=$6,
		   province_id=$7, district_id=$8, commune_id=nullif($9,''), village_id=nullif($10,''),
		   updated_by=nullif($11,''), updated_at=now()
		 where id=$1`,
		o.ID, o.Code, o.NameEn, o.NameKh, o.IsActive, o.LocationTypeID,
		o.ProvinceID, o.DistrictID, o.CommuneID, o.VillageID, o.UpdatedBy,
	)
	if err != nil {
		return mapPGError(err)
	}
	return requireAffected(res)
}

func (s *organizationStore) Delete(ctx context.Context, id string) error {
	var referenced int
	if err := s.db.QueryRowContext(ctx,
		`select (select count(*) from users where organization_id=$1)
		      + (select count(*) from user_levels where organization_id=$1)
		      + (select count(*) from staff where organization_id=$1)`, id).Scan(&referenced); err != nil {
		return err
	}
	if referenced > 0 {
		return ErrConflict
	}
	res, err := s.db.ExecContext(ctx,
		`update organizations set is_active=false, updated_at=now() where id=$1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *organizationStore) GetByID(ctx context.Context, id string) (*Organization, error) {
	var o Organization
	err := s.db.QueryRowContext(ctx,
		`select `+orgColumns+` from organizations where id=$1`, id).
		Scan(&o.ID, &o.Code, &o.NameEn, &o.NameKh, &o.IsActive, &o.LocationTypeID,
			&o.ProvinceID, &o.DistrictID, &o.CommuneID, &o.VillageID,
			&o.CreatedBy, &o.UpdatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (s *organizationStore) List(ctx context.Context) ([]Organization, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+orgColumns+` from organizations order by code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []Organization
	for rows.Next() {
		var o Organization
		if err := rows.Scan(&o.ID, &o.Code, &o.NameEn, &o.NameKh, &o.IsActive, &o.LocationTypeID,
			&o.ProvinceID, &o.DistrictID, &o.CommuneID, &o.VillageID,
			&o.CreatedBy, &o.UpdatedBy, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

// Session store -------------------------------------------------------------
type sessionStore struct{ db *sql.DB }

const sessionColumns = `id, user_id, session_id, start_at, ended_at, ip_address, coalesce(user_agent,''), coalesce(location,'')`

func (s *sessionStore) Create(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into active_logs(id, user_id, session_id, start_at, ip_address, user_agent, location)
		 values($1,$2,$3,$4,$5,nullif($6,''),nullif($7,''))`,
		sess.ID, sess.UserID, sess.SessionID, sess.StartAt, sess.IPAddress, sess.UserAgent, sess.Location,
	)
	return mapPGError(err)
}

func (s *sessionStore) Close(ctx context.Context, id string, endedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update active_logs set ended_at=$2 where id=$1 and ended_at is null`, id, endedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish missing from already closed.
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`select exists(select 1 from active_logs where id=$1)`, id).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrConflict
		}
		return ErrNotFound
	}
	return nil
}

func (s *sessionStore) CloseBySession(ctx context.Context, sessionID string, endedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update active_logs set ended_at=$2 where session_id=$1 and ended_at is null`, sessionID, endedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`select exists(select 1 from active_logs where session_id=$1)`, sessionID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrConflict
		}
		return ErrNotFound
	}
	return nil
}

func (s *sessionStore) GetByID(ctx context.Context, id string) (*Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx,
		`select `+sessionColumns+` from active_logs where id=$1`, id).
		Scan(&sess.ID, &sess.UserID, &sess.SessionID, &sess.StartAt, &sess.EndedAt, &sess.IPAddress, &sess.UserAgent, &sess.Location)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}

func (s *sessionStore) List(ctx context.Context, f SessionFilter) ([]Session, error) {
	query := `select ` + sessionColumns + ` from active_logs where 1=1`
	var args []any
	if f.UserID != "" {
		args = append(args, f.UserID)
		query += ` and user_id=$` + strconv.Itoa(len(args))
	}
	if f.Since != nil {
		args = append(args, *f.Since)
		query += ` and start_at >= $` + strconv.Itoa(len(args))
	}
	if f.Until != nil {
		args = append(args, *f.Until)
		query += ` and start_at <= $` + strconv.Itoa(len(args))
	}
	query += ` order by start_at desc`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.SessionID, &sess.StartAt, &sess.EndedAt, &sess.IPAddress, &sess.UserAgent, &sess.Location); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
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

