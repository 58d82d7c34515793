package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/mystudenthub/backend/core/notification"
)

type pushTokenRepository struct {
	db *sqlx.DB
}

var _ notification.TokenRepository = (*pushTokenRepository)(nil)

func NewPushTokenRepository(db *sqlx.DB) notification.TokenRepository {
	return &pushTokenRepository{db: db}
}

func (repo *pushTokenRepository) SaveToken(ctx context.Context, tok notification.Token) error {
	q, args, err := psql.Insert("push_tokens").
		Columns("token", "uid", "created_at").
		Values(tok.Token, tok.UID, tok.CreatedAt).
		Suffix("ON CONFLICT (token) DO UPDATE SET uid = EXCLUDED.uid, created_at = EXCLUDED.created_at").
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	_, err = repo.db.ExecContext(ctx, q, args...)
	return errors.Wrap(err, "saving push token")
}

func (repo *pushTokenRepository) DeleteToken(ctx context.Context, token string) error {
	q, args, err := psql.Delete("push_tokens").Where(sq.Eq{"token": token}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	_, err = repo.db.ExecContext(ctx, q, args...)
	return errors.Wrap(err, "deleting push token")
}

func (repo *pushTokenRepository) TokensForUsers(ctx context.Context, uids []string) ([]string, error) {
	if len(uids) == 0 {
		return nil, nil
	}
	return repo.selectTokens(ctx, psql.Select("token").From("push_tokens").Where(sq.Eq{"uid": uids}))
}

func (repo *pushTokenRepository) AllTokens(ctx context.Context) ([]string, error) {
	return repo.selectTokens(ctx, psql.Select("token").From("push_tokens"))
}

func (repo *pushTokenRepository) selectTokens(ctx context.Context, b sq.SelectBuilder) ([]string, error) {
	q, args, err := b.OrderBy("token").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var tokens []string
	if err = repo.db.SelectContext(ctx, &tokens, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting push tokens")
	}
	return tokens, nil
}
