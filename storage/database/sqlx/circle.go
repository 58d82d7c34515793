package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/mystudenthub/backend/core/circle"
)

var circleColumns = []string{"id", "name", "degree_id", "stream_id", "semester", "created_at"}

type circleRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	DegreeID  string    `db:"degree_id"`
	StreamID  string    `db:"stream_id"`
	Semester  int       `db:"semester"`
	CreatedAt time.Time `db:"created_at"`
}

func (r circleRow) circle() circle.Circle {
	return circle.Circle{
		ID:        r.ID,
		Name:      r.Name,
		DegreeID:  r.DegreeID,
		StreamID:  r.StreamID,
		Semester:  r.Semester,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type circleRepository struct {
	db *sqlx.DB
}

var _ circle.Repository = (*circleRepository)(nil)

func NewCircleRepository(db *sqlx.DB) circle.Repository {
	return &circleRepository{db: db}
}

func (repo *circleRepository) Create(ctx context.Context, c circle.Circle) error {
	q, args, err := psql.Insert("circles").
		Columns(circleColumns...).
		Values(c.ID, c.Name, c.DegreeID, c.StreamID, c.Semester, c.CreatedAt).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	_, err = repo.db.ExecContext(ctx, q, args...)
	return errors.Wrap(err, "inserting circle")
}

func (repo *circleRepository) Get(ctx context.Context, id string) (circle.Circle, error) {
	q, args, err := psql.Select(circleColumns...).From("circles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return circle.Circle{}, errors.Wrap(err, "building query")
	}
	var row circleRow
	if err = repo.db.GetContext(ctx, &row, q, args...); err != nil {
		if isNoRows(err) {
			return circle.Circle{}, circle.ErrNotFound
		}
		return circle.Circle{}, errors.Wrap(err, "selecting circle")
	}
	return row.circle(), nil
}

func (repo *circleRepository) List(ctx context.Context) ([]circle.Circle, error) {
	q, args, err := psql.Select(circleColumns...).
		From("circles").
		OrderBy("degree_id", "stream_id", "semester", "name").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []circleRow
	if err = repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting circles")
	}
	circles := make([]circle.Circle, 0, len(rows))
	for _, r := range rows {
		circles = append(circles, r.circle())
	}
	return circles, nil
}
