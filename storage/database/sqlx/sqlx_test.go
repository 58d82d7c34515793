package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mystudenthub/backend/core/material"
	"github.com/mystudenthub/backend/core/user"
	sqlxrepos "github.com/mystudenthub/backend/storage/database/sqlx"
	testutil "github.com/mystudenthub/backend/tests"
)

func TestUserRepository_CommitProvisioning(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	repo := sqlxrepos.NewUserRepository(db)

	uid := uuid.NewString()
	now := time.Now().UTC().Truncate(time.Microsecond)
	batch := user.Batch{
		User: user.User{UID: uid, Email: uid + "@example.com", Role: user.RoleTeacher, Name: "Tina", Status: user.StatusActive, CreatedAt: now, CreatedBy: "admin"},
		Profile: &user.ProfileRecord{
			UID: uid, Email: uid + "@example.com", Role: user.RoleTeacher, Name: "Tina",
			Attrs: map[string]interface{}{"department": "Maths", "phone": "+243810000000"}, CreatedAt: now, CreatedBy: "admin",
		},
	}
	require.NoError(t, repo.CommitProvisioning(ctx, batch))

	batch.Profile.Attrs = map[string]interface{}{"department": "Physics"}
	require.NoError(t, repo.CommitProvisioning(ctx, batch))

	usr, err := repo.GetUser(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, batch.User, usr)

	p, err := repo.GetProfile(ctx, user.RoleTeacher, uid)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"department": "Physics", "phone": "+243810000000"}, p.Attrs)
}

func TestMaterialRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	repo := sqlxrepos.NewMaterialRepository(db)

	now := time.Now().UTC().Truncate(time.Microsecond)
	m := material.Material{
		ID: uuid.NewString(), Title: "Algebra", URL: "https://example.com/a.pdf", DegreeID: "bsc", StreamID: "cs",
		Semester: 1, Subject: "Maths", AuthorID: "t1", AuthorName: "Tina", CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repo.Create(ctx, m))

	title := "Linear Algebra"
	later := now.Add(time.Minute)
	got, err := repo.Update(ctx, m.ID, material.UpdateMaterial{Title: &title}, later)
	require.NoError(t, err)
	assert.Equal(t, title, got.Title)
	assert.Equal(t, m.URL, got.URL)
	assert.Equal(t, later, got.UpdatedAt)
	assert.Equal(t, now, got.CreatedAt)

	require.NoError(t, repo.Delete(ctx, m.ID))
	require.NoError(t, repo.Delete(ctx, m.ID))
	_, err = repo.Get(ctx, m.ID)
	assert.Equal(t, material.ErrNotFound, err)
}
