package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/mystudenthub/backend/core"
	"github.com/mystudenthub/backend/core/material"
)

type materialRepository struct {
	db *DB
}

var _ material.Repository = (*materialRepository)(nil)

func NewMaterialRepository(db *DB) material.Repository {
	return &materialRepository{db: db}
}

func (repo *materialRepository) Create(_ context.Context, m material.Material) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	repo.db.materials[m.ID] = &m
	return nil
}

func (repo *materialRepository) Get(_ context.Context, id string) (material.Material, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if m, ok := repo.db.materials[id]; ok {
		return *m, nil
	}
	return material.Material{}, material.ErrNotFound
}

func (repo *materialRepository) Update(_ context.Context, id string, upd material.UpdateMaterial, updatedAt time.Time) (material.Material, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	m, ok := repo.db.materials[id]
	if !ok {
		return material.Material{}, material.ErrNotFound
	}
	upd.Apply(m)
	m.UpdatedAt = updatedAt
	return *m, nil
}

func (repo *materialRepository) Delete(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	delete(repo.db.materials, id)
	return nil
}

func (repo *materialRepository) Query(_ context.Context, filter material.QueryFilter, ordering []core.DBOrdering) ([]material.Material, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	materials := make([]material.Material, 0, len(repo.db.materials))
	for _, m := range repo.db.materials {
		if filter.DegreeID != "" && m.DegreeID != filter.DegreeID {
			continue
		}
		if filter.StreamID != "" && m.StreamID != filter.StreamID {
			continue
		}
		if filter.Semester != 0 && m.Semester != filter.Semester {
			continue
		}
		if filter.Subject != "" && !strings.EqualFold(m.Subject, filter.Subject) {
			continue
		}
		if filter.AuthorID != "" && m.AuthorID != filter.AuthorID {
			continue
		}
		materials = append(materials, *m)
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(materials, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareMaterials(materials[i], materials[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return materials[i].ID < materials[j].ID
	})
	return materials, nil
}

func compareMaterials(a, b material.Material, field string) int {
	switch field {
	case "title":
		return strings.Compare(a.Title, b.Title)
	case "subject":
		return strings.Compare(a.Subject, b.Subject)
	case "semester":
		return a.Semester - b.Semester
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
	return 0
}
