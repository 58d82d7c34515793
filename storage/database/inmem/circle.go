package inmemdb

import (
	"context"
	"sort"

	"github.com/mystudenthub/backend/core/circle"
)

type circleRepository struct {
	db *DB
}

var _ circle.Repository = (*circleRepository)(nil)

func NewCircleRepository(db *DB) circle.Repository {
	return &circleRepository{db: db}
}

func (repo *circleRepository) Create(_ context.Context, c circle.Circle) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	repo.db.circles[c.ID] = &c
	return nil
}

func (repo *circleRepository) Get(_ context.Context, id string) (circle.Circle, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if c, ok := repo.db.circles[id]; ok {
		return *c, nil
	}
	return circle.Circle{}, circle.ErrNotFound
}

func (repo *circleRepository) List(_ context.Context) ([]circle.Circle, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	circles := make([]circle.Circle, 0, len(repo.db.circles))
	for _, c := range repo.db.circles {
		circles = append(circles, *c)
	}
	sort.Slice(circles, func(i, j int) bool {
		a, b := circles[i], circles[j]
		if a.DegreeID != b.DegreeID {
			return a.DegreeID < b.DegreeID
		}
		if a.StreamID != b.StreamID {
			return a.StreamID < b.StreamID
		}
		if a.Semester != b.Semester {
			return a.Semester < b.Semester
		}
		return a.Name < b.Name
	})
	return circles, nil
}
