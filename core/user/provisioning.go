package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/mystudenthub/backend/core"
)

const compensationTimeout = 10 * time.Second

var (
	errPasswordRequired = errors.New("password is required")
	errUnknownCircle    = errors.New("unknown circle")
)

// CircleDirectory tells whether a semester group exists.
type CircleDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Provisioned is returned to the admin after a successful provisioning.
// Password is echoed back so it can be handed over to the new user.
type Provisioned struct {
	UID      string `json:"uid"`
	Password string `json:"password"`
}

// Provisioner creates an identity account together with its User Record and Profile Record.
type Provisioner struct {
	idp      IdentityProvider
	repo     Repository
	circles  CircleDirectory
	validate *validator.Validate
	mailSvc  core.EmailService
	logger   core.Logger
	nowFunc  func() time.Time
}

func NewProvisioner(
	idp IdentityProvider,
	repo Repository,
	circles CircleDirectory,
	validate *validator.Validate,
	mailSvc core.EmailService,
	logger core.Logger,
) *Provisioner {
	return &Provisioner{
		idp:      idp,
		repo:     repo,
		circles:  circles,
		validate: validate,
		mailSvc:  mailSvc,
		logger:   logger,
		nowFunc:  core.NowFunc,
	}
}

// Provision runs the provisioning steps in order:
//  1. reject a missing password, invalid input or an unknown circle, before anything else happens
//  2. create the identity account
//  3. commit the User Record and the Profile Record in one atomic batch
//  4. on commit failure, delete the identity account again
//
// There are no retries.
func (p *Provisioner) Provision(ctx context.Context, nu NewUser, adminUID string) (Provisioned, error) {
	if nu.Password == "" {
		return Provisioned{}, core.NewValidationError(
			errPasswordRequired,
			core.FieldError{Field: "password", Error: "this field is required"},
		)
	}
	if err := nu.Validate(p.validate); err != nil {
		return Provisioned{}, err
	}
	if err := p.checkCircle(ctx, nu.Profile); err != nil {
		return Provisioned{}, err
	}
	if err := ctx.Err(); err != nil {
		return Provisioned{}, err
	}

	uid, err := p.idp.CreateAccount(ctx, nu.Email, nu.Password)
	if err != nil {
		if _, ok := errors.Cause(err).(*core.IdentityProviderError); ok {
			return Provisioned{}, err
		}
		return Provisioned{}, core.NewIdentityProviderError(core.IdentityUnavailable, err)
	}

	batch := p.buildBatch(uid, nu, adminUID)

	err = ctx.Err()
	if err == nil {
		err = p.repo.CommitProvisioning(ctx, batch)
	}
	if err != nil {
		return Provisioned{}, p.compensate(ctx, uid, err)
	}

	p.sendWelcomeMail(batch.User)
	return Provisioned{UID: uid, Password: nu.Password}, nil
}

// checkCircle rejects a student profile whose circle does not exist.
func (p *Provisioner) checkCircle(ctx context.Context, profile Profile) error {
	sp, ok := profile.(StudentProfile)
	if !ok {
		return nil
	}
	exists, err := p.circles.Exists(ctx, sp.CircleID)
	if err != nil {
		return &core.PersistenceError{Err: errors.Wrap(err, "checking circle")}
	}
	if !exists {
		return core.NewValidationError(errUnknownCircle, core.FieldError{Field: "circleId", Error: "unknown circle"})
	}
	return nil
}

func (p *Provisioner) buildBatch(uid string, nu NewUser, adminUID string) Batch {
	now := p.nowFunc()
	usr := User{
		UID:       uid,
		Email:     nu.Email,
		Role:      nu.Role,
		Name:      core.CleanString(nu.Profile.DisplayName()),
		Status:    StatusActive,
		CreatedAt: now,
		CreatedBy: adminUID,
	}
	batch := Batch{User: usr}
	if nu.Role.ProfileCollection() != "" {
		batch.Profile = &ProfileRecord{
			UID:       uid,
			Email:     usr.Email,
			Role:      usr.Role,
			Name:      usr.Name,
			Attrs:     nu.Profile.Attrs(),
			CreatedAt: now,
			CreatedBy: adminUID,
		}
	}
	return batch
}

// compensate deletes the identity account whose records could not be written.
// It runs even if ctx is done, so a cancelled request does not leave an orphaned account behind.
func (p *Provisioner) compensate(ctx context.Context, uid string, cause error) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	perr := &core.PersistenceError{Err: cause, UID: uid}
	if err := p.idp.DeleteAccount(cctx, uid); err != nil {
		p.logger.Error(
			fmt.Sprintf("provisioning: orphaned identity account %s: %v", uid, err),
			errors.Wrap(err, "deleting identity account"),
			map[string]interface{}{"uid": uid, "cause": cause.Error()},
		)
		return perr
	}
	perr.Compensated = true
	p.logger.Warn(
		fmt.Sprintf("provisioning: batch commit failed, identity account %s removed", uid),
		cause,
	)
	return perr
}

func (p *Provisioner) sendWelcomeMail(usr User) {
	if p.mailSvc == nil {
		return
	}
	p.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Welcome",
		TemplateName: "welcome",
		TemplateData: map[string]string{
			"Name":  usr.Name,
			"Email": usr.Email,
			"Role":  string(usr.Role),
		},
	})
}
