package user_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mystudenthub/backend/core"
	"github.com/mystudenthub/backend/core/user"
	emailsvc "github.com/mystudenthub/backend/services/email"
	logsvc "github.com/mystudenthub/backend/services/logger"
	inmemdb "github.com/mystudenthub/backend/storage/database/inmem"
)

const pwd = "Tr0ub4dor&3"

func newValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

type mockIDP struct {
	mock.Mock
	user.IdentityProvider
}

func (m *mockIDP) CreateAccount(ctx context.Context, email, password string) (string, error) {
	args := m.Called(ctx, email, password)
	return args.String(0), args.Error(1)
}

func (m *mockIDP) DeleteAccount(ctx context.Context, uid string) error {
	return m.Called(ctx, uid).Error(0)
}

// circleSet knows the circles c1 and c2.
type circleSet map[string]bool

func (c circleSet) Exists(_ context.Context, id string) (bool, error) { return c[id], nil }

type fixture struct {
	db          *inmemdb.DB
	repo        user.Repository
	idp         user.IdentityProvider
	mail        *emailsvc.ConsoleService
	provisioner *user.Provisioner
}

func newFixture(t *testing.T, idp user.IdentityProvider) *fixture {
	t.Helper()
	conf := core.NewTestConfig()
	logger := logsvc.NewNopLogger()
	core.ParseEmailTemplates(conf, logger)

	db := inmemdb.NewDB()
	repo := inmemdb.NewUserRepository(db)
	validate := newValidator()
	if idp == nil {
		idp = user.NewIdentityProvider(inmemdb.NewIdentityStore(db), validate)
	}
	mail := emailsvc.NewConsoleServiceMock(conf, logger)
	return &fixture{
		db:          db,
		repo:        repo,
		idp:         idp,
		mail:        mail,
		provisioner: user.NewProvisioner(idp, repo, circleSet{"c1": true, "c2": true}, validate, mail, logger),
	}
}

func TestProvisioner_Provision(t *testing.T) {
	ctx := context.Background()

	t.Run("Should write a user and a profile for teachers and students", func(t *testing.T) {
		tests := []struct {
			role       user.Role
			profile    user.Profile
			collection string
		}{
			{role: user.RoleTeacher, profile: user.TeacherProfile{Name: "Tina", Department: "Maths"}, collection: user.CollectionTeachers},
			{role: user.RoleStudent, profile: user.StudentProfile{Name: "Sam", CircleID: "c1", RollNumber: "R-1"}, collection: user.CollectionStudents},
		}
		for _, tt := range tests {
			t.Run(string(tt.role), func(t *testing.T) {
				f := newFixture(t, nil)
				nu := user.NewUser{Email: " New@Example.com ", Password: pwd, Role: tt.role, Profile: tt.profile}

				res, err := f.provisioner.Provision(ctx, nu, "admin-1")
				require.NoError(t, err)
				assert.NotEmpty(t, res.UID)
				assert.Equal(t, pwd, res.Password)

				usr, err := f.repo.GetUser(ctx, res.UID)
				require.NoError(t, err)
				assert.Equal(t, "new@example.com", usr.Email)
				assert.Equal(t, tt.role, usr.Role)
				assert.Equal(t, user.StatusActive, usr.Status)
				assert.Equal(t, "admin-1", usr.CreatedBy)

				p, err := f.repo.GetProfile(ctx, tt.role, res.UID)
				require.NoError(t, err)
				assert.Equal(t, res.UID, p.UID)
				assert.Equal(t, tt.collection, p.Collection())
				assert.Equal(t, usr.CreatedAt, p.CreatedAt)
				assert.Equal(t, tt.profile.Attrs(), p.Attrs)

				idt, err := f.idp.GetAccount(ctx, res.UID)
				require.NoError(t, err)
				assert.NoError(t, idt.CheckPassword(pwd))

				sent := f.mail.SentMessages()
				require.Len(t, sent, 1)
				assert.Equal(t, "new@example.com", sent[0].To[0].Address)
				assert.NotContains(t, sent[0].TextContent, pwd)
			})
		}
	})

	t.Run("Should write no profile for admins", func(t *testing.T) {
		f := newFixture(t, nil)
		nu := user.NewUser{Email: "root@example.com", Password: pwd, Role: user.RoleAdmin, Profile: user.AdminProfile{Name: "Root"}}

		res, err := f.provisioner.Provision(ctx, nu, "admin-1")
		require.NoError(t, err)

		usr, err := f.repo.GetUser(ctx, res.UID)
		require.NoError(t, err)
		assert.True(t, usr.IsAdmin())
		for _, role := range []user.Role{user.RoleTeacher, user.RoleStudent} {
			_, err = f.repo.GetProfile(ctx, role, res.UID)
			assert.Equal(t, user.ErrProfileNotFound, err)
		}
	})

	t.Run("Should reject a missing password before any call", func(t *testing.T) {
		idp := new(mockIDP)
		f := newFixture(t, idp)
		nu := user.NewUser{Email: "new@example.com", Role: user.RoleTeacher, Profile: user.TeacherProfile{Name: "Tina"}}

		_, err := f.provisioner.Provision(ctx, nu, "admin-1")
		verr, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok, "want a validation error, got %v", err)
		require.Len(t, verr.Fields, 1)
		assert.Equal(t, "password", verr.Fields[0].Field)

		idp.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything, mock.Anything)
		users, err := f.repo.QueryUsers(ctx, user.QueryFilter{}, nil)
		require.NoError(t, err)
		assert.Empty(t, users)
	})

	t.Run("Should reject invalid input", func(t *testing.T) {
		tests := []struct {
			name string
			nu   user.NewUser
		}{
			{name: "bad email", nu: user.NewUser{Email: "nope", Password: pwd, Role: user.RoleAdmin, Profile: user.AdminProfile{Name: "R"}}},
			{name: "unknown role", nu: user.NewUser{Email: "a@example.com", Password: pwd, Role: "dean", Profile: user.AdminProfile{Name: "R"}}},
			{name: "missing profile", nu: user.NewUser{Email: "a@example.com", Password: pwd, Role: user.RoleAdmin}},
			{name: "profile role mismatch", nu: user.NewUser{Email: "a@example.com", Password: pwd, Role: user.RoleStudent, Profile: user.TeacherProfile{Name: "T"}}},
			{name: "student without circle", nu: user.NewUser{Email: "a@example.com", Password: pwd, Role: user.RoleStudent, Profile: user.StudentProfile{Name: "S"}}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				idp := new(mockIDP)
				f := newFixture(t, idp)
				_, err := f.provisioner.Provision(ctx, tt.nu, "admin-1")
				assert.Error(t, err)
				idp.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("Should reject an unknown circle before any call", func(t *testing.T) {
		idp := new(mockIDP)
		f := newFixture(t, idp)
		nu := user.NewUser{Email: "a@example.com", Password: pwd, Role: user.RoleStudent, Profile: user.StudentProfile{Name: "S", CircleID: "gone"}}

		_, err := f.provisioner.Provision(ctx, nu, "admin-1")
		verr, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok, "want a validation error, got %v", err)
		require.Len(t, verr.Fields, 1)
		assert.Equal(t, core.FieldError{Field: "circleId", Error: "unknown circle"}, verr.Fields[0])
		idp.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Should surface identity provider rejections", func(t *testing.T) {
		f := newFixture(t, nil)
		nu := user.NewUser{Email: "dup@example.com", Password: pwd, Role: user.RoleAdmin, Profile: user.AdminProfile{Name: "Root"}}
		_, err := f.provisioner.Provision(ctx, nu, "admin-1")
		require.NoError(t, err)

		_, err = f.provisioner.Provision(ctx, nu, "admin-1")
		assert.True(t, user.IsIdentityCode(err, core.IdentityEmailExists), "got %v", err)

		nu.Email = "weak@example.com"
		nu.Password = "123456"
		_, err = f.provisioner.Provision(ctx, nu, "admin-1")
		assert.True(t, user.IsIdentityCode(err, core.IdentityWeakPassword), "got %v", err)
	})

	t.Run("Should remove the account when the commit fails", func(t *testing.T) {
		f := newFixture(t, nil)
		f.db.FailNextCommit(errors.New("store unavailable"))
		nu := user.NewUser{Email: "new@example.com", Password: pwd, Role: user.RoleStudent, Profile: user.StudentProfile{Name: "Sam", CircleID: "c1"}}

		_, err := f.provisioner.Provision(ctx, nu, "admin-1")
		perr, ok := errors.Cause(err).(*core.PersistenceError)
		require.True(t, ok, "want a persistence error, got %v", err)
		assert.True(t, perr.Compensated)
		assert.NotEmpty(t, perr.UID)

		_, err = f.repo.GetUser(ctx, perr.UID)
		assert.Equal(t, user.ErrNotFound, err)
		_, err = f.repo.GetProfile(ctx, user.RoleStudent, perr.UID)
		assert.Equal(t, user.ErrProfileNotFound, err)
		_, err = f.idp.GetAccount(ctx, perr.UID)
		assert.True(t, user.IsIdentityCode(err, core.IdentityAccountNotFound))
		assert.Empty(t, f.mail.SentMessages())

		// the email can be used again
		_, err = f.provisioner.Provision(ctx, nu, "admin-1")
		assert.NoError(t, err)
	})

	t.Run("Should report a failed compensation", func(t *testing.T) {
		idp := new(mockIDP)
		idp.On("CreateAccount", mock.Anything, "new@example.com", pwd).Return("uid-1", nil)
		idp.On("DeleteAccount", mock.Anything, "uid-1").Return(core.NewIdentityProviderError(core.IdentityUnavailable, nil))

		f := newFixture(t, idp)
		f.db.FailNextCommit(errors.New("store unavailable"))
		nu := user.NewUser{Email: "new@example.com", Password: pwd, Role: user.RoleAdmin, Profile: user.AdminProfile{Name: "Root"}}

		_, err := f.provisioner.Provision(ctx, nu, "admin-1")
		perr, ok := errors.Cause(err).(*core.PersistenceError)
		require.True(t, ok, "want a persistence error, got %v", err)
		assert.False(t, perr.Compensated)
		assert.Equal(t, "uid-1", perr.UID)
		assert.Contains(t, perr.Error(), "uid-1")
		idp.AssertExpectations(t)
	})

	t.Run("Should compensate when cancelled before the commit", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		idp := new(mockIDP)
		idp.On("CreateAccount", mock.Anything, "new@example.com", pwd).
			Run(func(mock.Arguments) { cancel() }).
			Return("uid-1", nil)
		idp.On("DeleteAccount", mock.Anything, "uid-1").Return(nil)

		f := newFixture(t, idp)
		nu := user.NewUser{Email: "new@example.com", Password: pwd, Role: user.RoleAdmin, Profile: user.AdminProfile{Name: "Root"}}

		_, err := f.provisioner.Provision(cctx, nu, "admin-1")
		perr, ok := errors.Cause(err).(*core.PersistenceError)
		require.True(t, ok, "want a persistence error, got %v", err)
		assert.True(t, perr.Compensated)
		assert.Equal(t, context.Canceled, perr.Err)

		_, err = f.repo.GetUser(ctx, "uid-1")
		assert.Equal(t, user.ErrNotFound, err)
		idp.AssertExpectations(t)
	})
}
