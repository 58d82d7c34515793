package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/mystudenthub/backend/core/user"
)

var identityColumns = []string{"uid", "email", "password_hash", "disabled", "created_at", "last_login"}

type identityRow struct {
	UID          string       `db:"uid"`
	Email        string       `db:"email"`
	PasswordHash []byte       `db:"password_hash"`
	Disabled     bool         `db:"disabled"`
	CreatedAt    time.Time    `db:"created_at"`
	LastLogin    sql.NullTime `db:"last_login"`
}

func (r identityRow) identity() user.Identity {
	idt := user.Identity{
		UID:          r.UID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Disabled:     r.Disabled,
		CreatedAt:    r.CreatedAt.UTC(),
	}
	if r.LastLogin.Valid {
		idt.LastLogin = r.LastLogin.Time.UTC()
	}
	return idt
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

type identityStore struct {
	db *sqlx.DB
}

var _ user.IdentityStore = (*identityStore)(nil)

func NewIdentityStore(db *sqlx.DB) user.IdentityStore {
	return &identityStore{db: db}
}

func (s *identityStore) InsertIdentity(ctx context.Context, idt user.Identity) error {
	q, args, err := psql.Insert("identities").
		Columns(identityColumns...).
		Values(idt.UID, idt.Email, idt.PasswordHash, idt.Disabled, idt.CreatedAt, nullTime(idt.LastLogin)).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if _, err = s.db.ExecContext(ctx, q, args...); err != nil {
		if isUniqueViolation(err) {
			return user.ErrEmailExists
		}
		return errors.Wrap(err, "inserting identity")
	}
	return nil
}

func (s *identityStore) DeleteIdentity(ctx context.Context, uid string) error {
	q, args, err := psql.Delete("identities").Where(sq.Eq{"uid": uid}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	_, err = s.db.ExecContext(ctx, q, args...)
	return errors.Wrap(err, "deleting identity")
}

func (s *identityStore) get(ctx context.Context, where sq.Eq) (user.Identity, error) {
	q, args, err := psql.Select(identityColumns...).From("identities").Where(where).ToSql()
	if err != nil {
		return user.Identity{}, errors.Wrap(err, "building query")
	}
	var row identityRow
	if err = s.db.GetContext(ctx, &row, q, args...); err != nil {
		if isNoRows(err) {
			return user.Identity{}, user.ErrIdentityNotFound
		}
		return user.Identity{}, errors.Wrap(err, "selecting identity")
	}
	return row.identity(), nil
}

func (s *identityStore) GetIdentity(ctx context.Context, uid string) (user.Identity, error) {
	return s.get(ctx, sq.Eq{"uid": uid})
}

func (s *identityStore) GetIdentityByEmail(ctx context.Context, email string) (user.Identity, error) {
	return s.get(ctx, sq.Eq{"email": email})
}

func (s *identityStore) UpdateIdentity(ctx context.Context, idt user.Identity) error {
	q, args, err := psql.Update("identities").
		SetMap(map[string]interface{}{
			"email":         idt.Email,
			"password_hash": idt.PasswordHash,
			"disabled":      idt.Disabled,
			"last_login":    nullTime(idt.LastLogin),
		}).
		Where(sq.Eq{"uid": idt.UID}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return user.ErrEmailExists
		}
		return errors.Wrap(err, "updating identity")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.ErrIdentityNotFound
	}
	return nil
}
