package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/mystudenthub/backend/core"
)

var (
	ErrIdentityNotFound = errors.New("identity not found")
	ErrEmailExists      = errors.New("an account with this email already exists")
)

// Identity is the Identity Record owned by the identity provider.
type Identity struct {
	UID          string
	Email        string
	PasswordHash []byte
	Disabled     bool
	CreatedAt    time.Time
	LastLogin    time.Time
}

func (idt *Identity) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	idt.PasswordHash = hash
	return nil
}

func (idt Identity) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(idt.PasswordHash, []byte(pwd))
}

type (
	// IdentityProvider creates and authenticates accounts.
	// Failures are reported as *core.IdentityProviderError.
	IdentityProvider interface {
		CreateAccount(ctx context.Context, email, password string) (uid string, err error)
		DeleteAccount(ctx context.Context, uid string) error
		Authenticate(ctx context.Context, email, password string) (Identity, error)
		SetPassword(ctx context.Context, uid, password string) error
		GetAccount(ctx context.Context, uid string) (Identity, error)
		GetAccountByEmail(ctx context.Context, email string) (Identity, error)
	}

	// IdentityStore persists Identity Records.
	// InsertIdentity returns ErrEmailExists on duplicate email; getters return ErrIdentityNotFound.
	IdentityStore interface {
		InsertIdentity(ctx context.Context, idt Identity) error
		DeleteIdentity(ctx context.Context, uid string) error
		GetIdentity(ctx context.Context, uid string) (Identity, error)
		GetIdentityByEmail(ctx context.Context, email string) (Identity, error)
		UpdateIdentity(ctx context.Context, idt Identity) error
	}

	identityProvider struct {
		store    IdentityStore
		validate *validator.Validate
		nowFunc  func() time.Time
	}
)

var _ IdentityProvider = (*identityProvider)(nil)

// NewIdentityProvider returns an IdentityProvider storing bcrypt hashed credentials in store.
func NewIdentityProvider(store IdentityStore, validate *validator.Validate) IdentityProvider {
	return &identityProvider{store: store, validate: validate, nowFunc: core.NowFunc}
}

func idpError(code string, err error) error { return core.NewIdentityProviderError(code, err) }

func (idp *identityProvider) CreateAccount(ctx context.Context, email, password string) (string, error) {
	email = core.CleanString(email, true /* lower */)
	if err := idp.validate.Var(email, "required,email"); err != nil {
		return "", idpError(core.IdentityInvalidEmail, errors.New("enter a valid email address"))
	}
	if reason := checkPasswordPolicy(password, email); reason != "" {
		return "", idpError(core.IdentityWeakPassword, errors.New(reason))
	}

	idt := Identity{
		UID:       uuid.NewString(),
		Email:     email,
		CreatedAt: idp.nowFunc(),
	}
	if err := idt.SetPassword(password); err != nil {
		return "", idpError(core.IdentityUnavailable, errors.Wrap(err, "hashing password"))
	}
	if err := idp.store.InsertIdentity(ctx, idt); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return "", idpError(core.IdentityEmailExists, ErrEmailExists)
		}
		return "", idpError(core.IdentityUnavailable, errors.Wrap(err, "inserting identity"))
	}
	return idt.UID, nil
}

// DeleteAccount removes the account. Deleting a missing account is not an error.
func (idp *identityProvider) DeleteAccount(ctx context.Context, uid string) error {
	if err := idp.store.DeleteIdentity(ctx, uid); err != nil && errors.Cause(err) != ErrIdentityNotFound {
		return idpError(core.IdentityUnavailable, errors.Wrap(err, "deleting identity"))
	}
	return nil
}

func (idp *identityProvider) Authenticate(ctx context.Context, email, password string) (Identity, error) {
	idt, err := idp.store.GetIdentityByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if errors.Cause(err) == ErrIdentityNotFound {
			return Identity{}, idpError(core.IdentityInvalidCredentials, nil)
		}
		return Identity{}, idpError(core.IdentityUnavailable, errors.Wrap(err, "finding identity by email"))
	}
	if err = idt.CheckPassword(password); err != nil {
		return Identity{}, idpError(core.IdentityInvalidCredentials, nil)
	}
	if idt.Disabled {
		return Identity{}, idpError(core.IdentityAccountDisabled, nil)
	}

	idt.LastLogin = idp.nowFunc()
	if err = idp.store.UpdateIdentity(ctx, idt); err != nil {
		return Identity{}, idpError(core.IdentityUnavailable, errors.Wrap(err, "setting lastLogin"))
	}
	return idt, nil
}

func (idp *identityProvider) SetPassword(ctx context.Context, uid, password string) error {
	idt, err := idp.GetAccount(ctx, uid)
	if err != nil {
		return err
	}
	if reason := checkPasswordPolicy(password, idt.Email); reason != "" {
		return idpError(core.IdentityWeakPassword, errors.New(reason))
	}
	if err = idt.SetPassword(password); err != nil {
		return idpError(core.IdentityUnavailable, errors.Wrap(err, "hashing password"))
	}
	if err = idp.store.UpdateIdentity(ctx, idt); err != nil {
		return idpError(core.IdentityUnavailable, errors.Wrap(err, "updating identity"))
	}
	return nil
}

func (idp *identityProvider) GetAccount(ctx context.Context, uid string) (Identity, error) {
	idt, err := idp.store.GetIdentity(ctx, uid)
	if err != nil {
		if errors.Cause(err) == ErrIdentityNotFound {
			return Identity{}, idpError(core.IdentityAccountNotFound, err)
		}
		return Identity{}, idpError(core.IdentityUnavailable, errors.Wrap(err, "finding identity"))
	}
	return idt, nil
}

func (idp *identityProvider) GetAccountByEmail(ctx context.Context, email string) (Identity, error) {
	idt, err := idp.store.GetIdentityByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if errors.Cause(err) == ErrIdentityNotFound {
			return Identity{}, idpError(core.IdentityAccountNotFound, err)
		}
		return Identity{}, idpError(core.IdentityUnavailable, errors.Wrap(err, "finding identity by email"))
	}
	return idt, nil
}

// IsIdentityCode reports whether err is an IdentityProviderError with the given code.
func IsIdentityCode(err error, code string) bool {
	idpErr, ok := errors.Cause(err).(*core.IdentityProviderError)
	return ok && idpErr.Code == code
}
