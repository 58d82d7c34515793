package material_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mystudenthub/backend/core"
	"github.com/mystudenthub/backend/core/access"
	"github.com/mystudenthub/backend/core/broadcast"
	"github.com/mystudenthub/backend/core/material"
	"github.com/mystudenthub/backend/core/user"
	cachesvc "github.com/mystudenthub/backend/services/cache"
	logsvc "github.com/mystudenthub/backend/services/logger"
	inmemdb "github.com/mystudenthub/backend/storage/database/inmem"
)

var (
	admin    = access.Subject{UID: "a1", Role: user.RoleAdmin.Ptr()}
	teacher  = access.Subject{UID: "t1", Role: user.RoleTeacher.Ptr()}
	teacher2 = access.Subject{UID: "t2", Role: user.RoleTeacher.Ptr()}
	student  = access.Subject{UID: "s1", Role: user.RoleStudent.Ptr()}
)

type countingCache struct {
	core.ViewCache
	invalidations int
}

func (c *countingCache) Invalidate(ctx context.Context, view string) error {
	c.invalidations++
	return c.ViewCache.Invalidate(ctx, view)
}

// hookedRepo runs afterQuery once, between the repository read and the cache write.
type hookedRepo struct {
	material.Repository
	afterQuery func()
}

func (r *hookedRepo) Query(ctx context.Context, filter material.QueryFilter, ordering []core.DBOrdering) ([]material.Material, error) {
	res, err := r.Repository.Query(ctx, filter, ordering)
	if hook := r.afterQuery; hook != nil {
		r.afterQuery = nil
		hook()
	}
	return res, err
}

type fixture struct {
	svc    *material.Service
	repo   *hookedRepo
	cache  *countingCache
	denied []*core.PermissionError
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conf := core.NewTestConfig()
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	f := &fixture{cache: &countingCache{ViewCache: cachesvc.NewLRUViewCache(conf)}}
	bus := broadcast.NewBus(nil)
	t.Cleanup(bus.Close)
	bus.Subscribe(func(_ context.Context, ev *core.PermissionError) { f.denied = append(f.denied, ev) })

	f.repo = &hookedRepo{Repository: inmemdb.NewMaterialRepository(inmemdb.NewDB())}
	enforcer := access.NewEnforcer(access.NewPolicy(), bus)
	f.svc = material.NewService(f.repo, f.cache, enforcer, validate, logsvc.NewNopLogger())
	return f
}

func newMaterial() material.NewMaterial {
	return material.NewMaterial{
		Title:    "Algebra notes",
		URL:      "https://example.com/algebra.pdf",
		DegreeID: "bsc",
		StreamID: "cs",
		Semester: 1,
		Subject:  "Maths",
	}
}

func strPtr(s string) *string { return &s }

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Should stamp timestamps and author", func(t *testing.T) {
		f := newFixture(t)
		m, err := f.svc.Create(ctx, teacher, material.Author{UID: "t1", Name: "Tina"}, newMaterial())
		require.NoError(t, err)
		assert.NotEmpty(t, m.ID)
		assert.Equal(t, "t1", m.AuthorID)
		assert.Equal(t, "Tina", m.AuthorName)
		assert.False(t, m.CreatedAt.IsZero())
		assert.Equal(t, m.CreatedAt, m.UpdatedAt)
		assert.Equal(t, 1, f.cache.invalidations)
	})

	t.Run("Should deny students and broadcast the denial", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Create(ctx, student, material.Author{UID: "s1"}, newMaterial())
		_, ok := errors.Cause(err).(*core.PermissionError)
		require.True(t, ok, "got %v", err)
		require.Len(t, f.denied, 1)
		assert.Equal(t, core.OpCreate, f.denied[0].Operation)
		assert.Equal(t, "Algebra notes", f.denied[0].RequestResourceData["title"])
		assert.Zero(t, f.cache.invalidations)
	})

	t.Run("Should validate input", func(t *testing.T) {
		f := newFixture(t)
		nm := newMaterial()
		nm.URL = "not a url"
		_, err := f.svc.Create(ctx, teacher, material.Author{UID: "t1"}, nm)
		assert.Error(t, err)
		assert.Empty(t, f.denied)
	})
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created, err := f.svc.Create(ctx, teacher, material.Author{UID: "t1", Name: "Tina"}, newMaterial())
	require.NoError(t, err)

	t.Run("Should change only the given fields", func(t *testing.T) {
		time.Sleep(time.Millisecond)
		m, err := f.svc.Update(ctx, teacher, created.ID, material.UpdateMaterial{Title: strPtr("Linear algebra")})
		require.NoError(t, err)
		assert.Equal(t, "Linear algebra", m.Title)
		assert.Equal(t, created.URL, m.URL)
		assert.Equal(t, created.Subject, m.Subject)
		assert.Equal(t, created.Semester, m.Semester)
		assert.Equal(t, created.CreatedAt, m.CreatedAt)
		assert.True(t, m.UpdatedAt.After(created.UpdatedAt))
	})

	t.Run("Should deny other teachers", func(t *testing.T) {
		_, err := f.svc.Update(ctx, teacher2, created.ID, material.UpdateMaterial{Title: strPtr("Hijacked")})
		_, ok := errors.Cause(err).(*core.PermissionError)
		assert.True(t, ok, "got %v", err)
	})

	t.Run("Should let admins update", func(t *testing.T) {
		_, err := f.svc.Update(ctx, admin, created.ID, material.UpdateMaterial{Subject: strPtr("Mathematics")})
		assert.NoError(t, err)
	})

	t.Run("Should report missing materials", func(t *testing.T) {
		_, err := f.svc.Update(ctx, teacher, "missing", material.UpdateMaterial{Title: strPtr("x")})
		assert.Equal(t, material.ErrNotFound, errors.Cause(err))
	})

	t.Run("Should reject empty updates", func(t *testing.T) {
		_, err := f.svc.Update(ctx, teacher, created.ID, material.UpdateMaterial{})
		_, ok := errors.Cause(err).(*core.ValidationError)
		assert.True(t, ok, "got %v", err)
	})
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created, err := f.svc.Create(ctx, teacher, material.Author{UID: "t1"}, newMaterial())
	require.NoError(t, err)

	t.Run("Should deny other teachers", func(t *testing.T) {
		err := f.svc.Delete(ctx, teacher2, created.ID)
		_, ok := errors.Cause(err).(*core.PermissionError)
		assert.True(t, ok, "got %v", err)
	})

	t.Run("Should delete and invalidate", func(t *testing.T) {
		before := f.cache.invalidations
		require.NoError(t, f.svc.Delete(ctx, teacher, created.ID))
		assert.Equal(t, before+1, f.cache.invalidations)
		_, err := f.svc.Get(ctx, teacher, created.ID)
		assert.Equal(t, material.ErrNotFound, errors.Cause(err))
	})

	t.Run("Should succeed for missing materials", func(t *testing.T) {
		assert.NoError(t, f.svc.Delete(ctx, teacher, created.ID))
		assert.NoError(t, f.svc.Delete(ctx, admin, "never-existed"))
	})
}

func TestService_Query(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for _, sem := range []int{1, 2} {
		nm := newMaterial()
		nm.Semester = sem
		_, err := f.svc.Create(ctx, teacher, material.Author{UID: "t1"}, nm)
		require.NoError(t, err)
	}

	filter := material.QueryFilter{DegreeID: "bsc", StreamID: "cs", Semester: 1}
	got, err := f.svc.Query(ctx, student, filter, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)

	t.Run("Should serve reads from the cache until the next write", func(t *testing.T) {
		var cached []material.Material
		_, found, err := f.cache.Get(ctx, material.View, "d=bsc|s=cs|sem=1|sub=|a=|o=", &cached)
		require.NoError(t, err)
		assert.True(t, found)

		_, err = f.svc.Create(ctx, teacher, material.Author{UID: "t1"}, newMaterial())
		require.NoError(t, err)

		got, err = f.svc.Query(ctx, student, filter, nil)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("Should return an empty list", func(t *testing.T) {
		got, err := f.svc.Query(ctx, student, material.QueryFilter{Semester: 7}, nil)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestService_Query_concurrentWrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	filter := material.QueryFilter{DegreeID: "bsc", StreamID: "cs", Semester: 1}

	t.Run("Should not cache a list read before a concurrent write", func(t *testing.T) {
		f.repo.afterQuery = func() {
			_, err := f.svc.Create(ctx, teacher, material.Author{UID: "t1"}, newMaterial())
			require.NoError(t, err)
		}
		got, err := f.svc.Query(ctx, student, filter, nil)
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = f.svc.Query(ctx, student, filter, nil)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}
