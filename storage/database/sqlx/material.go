package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/mystudenthub/backend/core"
	"github.com/mystudenthub/backend/core/material"
)

var materialColumns = []string{
	"id", "title", "description", "url", "degree_id", "stream_id", "semester", "subject",
	"author_id", "author_name", "created_at", "updated_at",
}

type materialRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	URL         string    `db:"url"`
	DegreeID    string    `db:"degree_id"`
	StreamID    string    `db:"stream_id"`
	Semester    int       `db:"semester"`
	Subject     string    `db:"subject"`
	AuthorID    string    `db:"author_id"`
	AuthorName  string    `db:"author_name"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r materialRow) material() material.Material {
	return material.Material{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		URL:         r.URL,
		DegreeID:    r.DegreeID,
		StreamID:    r.StreamID,
		Semester:    r.Semester,
		Subject:     r.Subject,
		AuthorID:    r.AuthorID,
		AuthorName:  r.AuthorName,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type materialRepository struct {
	db *sqlx.DB
}

var _ material.Repository = (*materialRepository)(nil)

func NewMaterialRepository(db *sqlx.DB) material.Repository {
	return &materialRepository{db: db}
}

func (repo *materialRepository) Create(ctx context.Context, m material.Material) error {
	q, args, err := psql.Insert("materials").
		Columns(materialColumns...).
		Values(m.ID, m.Title, m.Description, m.URL, m.DegreeID, m.StreamID, m.Semester, m.Subject,
			m.AuthorID, m.AuthorName, m.CreatedAt, m.UpdatedAt).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	_, err = repo.db.ExecContext(ctx, q, args...)
	return errors.Wrap(err, "inserting material")
}

func (repo *materialRepository) Get(ctx context.Context, id string) (material.Material, error) {
	q, args, err := psql.Select(materialColumns...).From("materials").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return material.Material{}, errors.Wrap(err, "building query")
	}
	var row materialRow
	if err = repo.db.GetContext(ctx, &row, q, args...); err != nil {
		if isNoRows(err) {
			return material.Material{}, material.ErrNotFound
		}
		return material.Material{}, errors.Wrap(err, "selecting material")
	}
	return row.material(), nil
}

func (repo *materialRepository) Update(ctx context.Context, id string, upd material.UpdateMaterial, updatedAt time.Time) (material.Material, error) {
	set := map[string]interface{}{"updated_at": updatedAt}
	if upd.Title != nil {
		set["title"] = *upd.Title
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.URL != nil {
		set["url"] = *upd.URL
	}
	if upd.DegreeID != nil {
		set["degree_id"] = *upd.DegreeID
	}
	if upd.StreamID != nil {
		set["stream_id"] = *upd.StreamID
	}
	if upd.Semester != nil {
		set["semester"] = *upd.Semester
	}
	if upd.Subject != nil {
		set["subject"] = *upd.Subject
	}

	q, args, err := psql.Update("materials").
		SetMap(set).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + joinColumns(materialColumns)).
		ToSql()
	if err != nil {
		return material.Material{}, errors.Wrap(err, "building query")
	}
	var row materialRow
	if err = repo.db.GetContext(ctx, &row, q, args...); err != nil {
		if isNoRows(err) {
			return material.Material{}, material.ErrNotFound
		}
		return material.Material{}, errors.Wrap(err, "updating material")
	}
	return row.material(), nil
}

func (repo *materialRepository) Delete(ctx context.Context, id string) error {
	q, args, err := psql.Delete("materials").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	_, err = repo.db.ExecContext(ctx, q, args...)
	return errors.Wrap(err, "deleting material")
}

func (repo *materialRepository) Query(ctx context.Context, filter material.QueryFilter, ordering []core.DBOrdering) ([]material.Material, error) {
	b := psql.Select(materialColumns...).From("materials")
	if filter.DegreeID != "" {
		b = b.Where(sq.Eq{"degree_id": filter.DegreeID})
	}
	if filter.StreamID != "" {
		b = b.Where(sq.Eq{"stream_id": filter.StreamID})
	}
	if filter.Semester != 0 {
		b = b.Where(sq.Eq{"semester": filter.Semester})
	}
	if filter.Subject != "" {
		b = b.Where(sq.ILike{"subject": filter.Subject})
	}
	if filter.AuthorID != "" {
		b = b.Where(sq.Eq{"author_id": filter.AuthorID})
	}
	q, args, err := orderBy(b, ordering, "created_at DESC").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	var rows []materialRow
	if err = repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting materials")
	}
	materials := make([]material.Material, 0, len(rows))
	for _, r := range rows {
		materials = append(materials, r.material())
	}
	return materials, nil
}
