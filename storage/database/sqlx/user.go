package sqlxrepos

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/mystudenthub/backend/core"
	"github.com/mystudenthub/backend/core/user"
)

var (
	userColumns    = []string{"uid", "email", "role", "name", "status", "created_at", "created_by"}
	profileColumns = []string{"uid", "email", "role", "name", "attrs", "created_at", "created_by"}
)

type userRow struct {
	UID       string    `db:"uid"`
	Email     string    `db:"email"`
	Role      string    `db:"role"`
	Name      string    `db:"name"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	CreatedBy string    `db:"created_by"`
}

func (r userRow) user() user.User {
	return user.User{
		UID:       r.UID,
		Email:     r.Email,
		Role:      user.Role(r.Role),
		Name:      r.Name,
		Status:    user.Status(r.Status),
		CreatedAt: r.CreatedAt.UTC(),
		CreatedBy: r.CreatedBy,
	}
}

type profileRow struct {
	UID       string    `db:"uid"`
	Email     string    `db:"email"`
	Role      string    `db:"role"`
	Name      string    `db:"name"`
	Attrs     jsonAttrs `db:"attrs"`
	CreatedAt time.Time `db:"created_at"`
	CreatedBy string    `db:"created_by"`
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

// CommitProvisioning writes the batch in one transaction.
// The User Record is overwritten; the Profile Record is merged: its attrs keep keys the batch does not set.
func (repo *userRepository) CommitProvisioning(ctx context.Context, batch user.Batch) (err error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	usr := batch.User
	q, args, err := psql.Insert("users").
		Columns(userColumns...).
		Values(usr.UID, usr.Email, string(usr.Role), usr.Name, string(usr.Status), usr.CreatedAt, usr.CreatedBy).
		Suffix(`ON CONFLICT (uid) DO UPDATE SET
			email = EXCLUDED.email, role = EXCLUDED.role, name = EXCLUDED.name, status = EXCLUDED.status,
			created_at = EXCLUDED.created_at, created_by = EXCLUDED.created_by`).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if _, err = tx.ExecContext(ctx, q, args...); err != nil {
		return errors.Wrap(err, "writing user record")
	}

	if p := batch.Profile; p != nil {
		table := p.Collection()
		if table == "" {
			return errors.Errorf("role %q has no profile collection", p.Role)
		}
		var attrs string
		if attrs, err = encodeAttrs(p.Attrs); err != nil {
			return err
		}
		q, args, err = psql.Insert(table).
			Columns(profileColumns...).
			Values(p.UID, p.Email, string(p.Role), p.Name, sq.Expr("?::jsonb", attrs), p.CreatedAt, p.CreatedBy).
			Suffix(fmt.Sprintf(`ON CONFLICT (uid) DO UPDATE SET
				email = EXCLUDED.email, role = EXCLUDED.role, name = EXCLUDED.name,
				attrs = %s.attrs || EXCLUDED.attrs,
				created_at = EXCLUDED.created_at, created_by = EXCLUDED.created_by`, table)).
			ToSql()
		if err != nil {
			return errors.Wrap(err, "building query")
		}
		if _, err = tx.ExecContext(ctx, q, args...); err != nil {
			return errors.Wrap(err, "writing profile record")
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}

func (repo *userRepository) GetUser(ctx context.Context, uid string) (user.User, error) {
	q, args, err := psql.Select(userColumns...).From("users").Where(sq.Eq{"uid": uid}).ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}
	var row userRow
	if err = repo.db.GetContext(ctx, &row, q, args...); err != nil {
		if isNoRows(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "selecting user")
	}
	return row.user(), nil
}

func (repo *userRepository) GetProfile(ctx context.Context, role user.Role, uid string) (user.ProfileRecord, error) {
	table := role.ProfileCollection()
	if table == "" {
		return user.ProfileRecord{}, user.ErrProfileNotFound
	}
	q, args, err := psql.Select(profileColumns...).From(table).Where(sq.Eq{"uid": uid}).ToSql()
	if err != nil {
		return user.ProfileRecord{}, errors.Wrap(err, "building query")
	}
	var row profileRow
	if err = repo.db.GetContext(ctx, &row, q, args...); err != nil {
		if isNoRows(err) {
			return user.ProfileRecord{}, user.ErrProfileNotFound
		}
		return user.ProfileRecord{}, errors.Wrap(err, "selecting profile")
	}
	return user.ProfileRecord{
		UID:       row.UID,
		Email:     row.Email,
		Role:      user.Role(row.Role),
		Name:      row.Name,
		Attrs:     row.Attrs,
		CreatedAt: row.CreatedAt.UTC(),
		CreatedBy: row.CreatedBy,
	}, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	b := psql.Select(userColumns...).From("users")
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		b = b.Where(sq.Or{sq.ILike{"name": pattern}, sq.ILike{"email": pattern}})
	}
	if filter.Role != "" {
		b = b.Where(sq.Eq{"role": string(filter.Role)})
	}
	if filter.Status != "" {
		b = b.Where(sq.Eq{"status": string(filter.Status)})
	}
	q, args, err := orderBy(b, ordering, "created_at DESC").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	var rows []userRow
	if err = repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo *userRepository) SetUserStatus(ctx context.Context, uid string, status user.Status) (user.User, error) {
	q, args, err := psql.Update("users").
		Set("status", string(status)).
		Where(sq.Eq{"uid": uid}).
		Suffix("RETURNING " + joinColumns(userColumns)).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}
	var row userRow
	if err = repo.db.GetContext(ctx, &row, q, args...); err != nil {
		if isNoRows(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "updating user status")
	}
	return row.user(), nil
}

func (repo *userRepository) CountUsersByRole(ctx context.Context) (map[user.Role]int, error) {
	q, args, err := psql.Select("role", "COUNT(*) AS total").From("users").GroupBy("role").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []struct {
		Role  string `db:"role"`
		Total int    `db:"total"`
	}
	if err = repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "counting users")
	}
	counts := make(map[user.Role]int, len(user.Roles))
	for _, r := range user.Roles {
		counts[r] = 0
	}
	for _, r := range rows {
		counts[user.Role(r.Role)] = r.Total
	}
	return counts, nil
}

func (repo *userRepository) StudentUIDsByCircle(ctx context.Context, circleID string) ([]string, error) {
	q, args, err := psql.Select("uid").
		From(user.CollectionStudents).
		Where(sq.Expr("attrs ->> 'circleId' = ?", circleID)).
		OrderBy("uid").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var uids []string
	if err = repo.db.SelectContext(ctx, &uids, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting circle students")
	}
	return uids, nil
}
