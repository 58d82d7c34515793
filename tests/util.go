package testutil

import (
	"context"
	"os"
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/mystudenthub/backend/core"
	"github.com/mystudenthub/backend/core/user"
	"github.com/mystudenthub/backend/storage/database"
)

// NewValidator returns a validator with every custom rule and translation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

// PrepareDB connects to TEST_DATABASE_URL and migrates it. The test is skipped when it is not set.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err = database.Migrate(context.Background(), db.DB, "up"); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

// CreateUser provisions a user through p and returns the stored User Record.
func CreateUser(
	t *testing.T,
	p *user.Provisioner,
	repo user.Repository,
	email, pwd string,
	profile user.Profile,
	createdBy ...string,
) user.User {
	t.Helper()
	by := "system"
	if len(createdBy) > 0 {
		by = createdBy[0]
	}
	ctx := context.Background()
	res, err := p.Provision(ctx, user.NewUser{Email: email, Password: pwd, Role: profile.Role(), Profile: profile}, by)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := repo.GetUser(ctx, res.UID)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}
