package user

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/mystudenthub/backend/core"
)

var (
	// errors
	ErrNotFound        = errors.New("user not found")
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenExpired    = errors.New("token expired")
)

type (
	Repository interface {
		// CommitProvisioning writes batch atomically: either every document is written or none is.
		CommitProvisioning(ctx context.Context, batch Batch) error
		GetUser(ctx context.Context, uid string) (User, error)
		GetProfile(ctx context.Context, role Role, uid string) (ProfileRecord, error)
		QueryUsers(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error)
		SetUserStatus(ctx context.Context, uid string, status Status) (User, error)
		CountUsersByRole(ctx context.Context) (map[Role]int, error)
		StudentUIDsByCircle(ctx context.Context, circleID string) ([]string, error)
	}

	Service struct {
		repo     Repository
		idp      IdentityProvider
		mailSvc  core.EmailService
		tokenGen *resetTokenGenerator
		logger   core.Logger
	}
)

func NewService(repo Repository, idp IdentityProvider, mailSvc core.EmailService, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		repo:     repo,
		idp:      idp,
		mailSvc:  mailSvc,
		tokenGen: newResetTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
		logger:   logger,
	}
}

// GetUser loads the User Record for uid. It returns ErrNotFound if none exists.
func (svc *Service) GetUser(ctx context.Context, uid string) (User, error) {
	return svc.repo.GetUser(ctx, uid)
}

func (svc *Service) GetProfile(ctx context.Context, usr User) (ProfileRecord, error) {
	if usr.Role.ProfileCollection() == "" {
		return ProfileRecord{}, ErrProfileNotFound
	}
	return svc.repo.GetProfile(ctx, usr.Role, usr.UID)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) SetStatus(ctx context.Context, uid string, status Status) (User, error) {
	return svc.repo.SetUserStatus(ctx, uid, status)
}

func (svc *Service) CountByRole(ctx context.Context) (map[Role]int, error) {
	return svc.repo.CountUsersByRole(ctx)
}

func (svc *Service) StudentsInCircle(ctx context.Context, circleID string) ([]string, error) {
	return svc.repo.StudentUIDsByCircle(ctx, circleID)
}

// Authenticate checks credentials against the identity provider and returns the matching User Record.
// Accounts without a User Record are rejected like bad credentials.
func (svc *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	idt, err := svc.idp.Authenticate(ctx, email, password)
	if err != nil {
		return User{}, err
	}
	usr, err := svc.repo.GetUser(ctx, idt.UID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, core.NewIdentityProviderError(core.IdentityInvalidCredentials, nil)
		}
		return User{}, errors.Wrap(err, "finding user by uid")
	}
	if !usr.IsActive() {
		return User{}, core.NewIdentityProviderError(core.IdentityAccountDisabled, nil)
	}
	return usr, nil
}

// RequestPasswordReset mails a password reset link to the account registered with email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	idt, err := svc.idp.GetAccountByEmail(ctx, email)
	if err != nil {
		return err
	}
	usr, err := svc.repo.GetUser(ctx, idt.UID)
	if err != nil {
		return errors.Wrap(err, "finding user by uid")
	}
	if !usr.IsActive() {
		return ErrNotFound
	}
	svc.sendPasswordResetMail(usr, idt)
	return nil
}

func (svc *Service) sendPasswordResetMail(usr User, idt Identity) {
	token, err := svc.tokenGen.makeToken(idt)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("making password reset token: %v", err), err, usr)
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name":  usr.Name,
			"UID":   encodeUID(usr.UID),
			"Token": token,
		},
	})
}

func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	uid, err := decodeUID(data.UID)
	if err != nil {
		return core.NewValidationError(ErrInvalidToken)
	}
	idt, err := svc.idp.GetAccount(ctx, uid)
	if err != nil {
		if IsIdentityCode(err, core.IdentityAccountNotFound) {
			return core.NewValidationError(ErrInvalidToken)
		}
		return err
	}
	if err = svc.tokenGen.verifyToken(idt, data.Token); err != nil {
		return core.NewValidationError(err)
	}
	return svc.idp.SetPassword(ctx, uid, data.Password)
}

// SetPassword replaces the password of the account registered with email, bypassing the reset token.
// Used by the admin command line.
func (svc *Service) SetPassword(ctx context.Context, email, password string) error {
	idt, err := svc.idp.GetAccountByEmail(ctx, email)
	if err != nil {
		return err
	}
	return svc.idp.SetPassword(ctx, idt.UID, password)
}
