package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/mystudenthub/backend/core"
	"github.com/mystudenthub/backend/core/access"
)

var (
	// errors
	ErrTokenNotFound = errors.New("push token not found")
	// ErrUnregistered is returned by a Sender when the device token is no longer valid.
	ErrUnregistered = errors.New("push token unregistered")
)

type (
	// Sender delivers one message to one device.
	Sender interface {
		Send(ctx context.Context, token string, msg Message) error
	}

	TokenRepository interface {
		// SaveToken registers tok, moving it to tok.UID if it belonged to another user.
		SaveToken(ctx context.Context, tok Token) error
		DeleteToken(ctx context.Context, token string) error
		TokensForUsers(ctx context.Context, uids []string) ([]string, error)
		AllTokens(ctx context.Context) ([]string, error)
	}

	// Audience resolves a circle to the uids of its students.
	Audience interface {
		StudentsInCircle(ctx context.Context, circleID string) ([]string, error)
	}

	Service struct {
		sender      Sender
		tokens      TokenRepository
		audience    Audience
		enforcer    *access.Enforcer
		validate    *validator.Validate
		defaultIcon string
		logger      core.Logger
		nowFunc     func() time.Time
	}
)

func NewService(
	sender Sender,
	tokens TokenRepository,
	audience Audience,
	enforcer *access.Enforcer,
	validate *validator.Validate,
	conf *core.Config,
	logger core.Logger,
) *Service {
	return &Service{
		sender:      sender,
		tokens:      tokens,
		audience:    audience,
		enforcer:    enforcer,
		validate:    validate,
		defaultIcon: conf.Push.DefaultIcon,
		logger:      logger,
		nowFunc:     core.NowFunc,
	}
}

// RegisterToken attaches a device token to the acting user.
func (svc *Service) RegisterToken(ctx context.Context, sub access.Subject, nt NewToken) error {
	if err := nt.Validate(svc.validate); err != nil {
		return err
	}
	res := access.Resource{Collection: access.CollectionPushTokens, ID: nt.Token, OwnerUID: sub.UID}
	if err := svc.enforcer.Check(ctx, sub, core.OpCreate, res); err != nil {
		return err
	}
	tok := Token{Token: nt.Token, UID: sub.UID, CreatedAt: svc.nowFunc()}
	if err := svc.tokens.SaveToken(ctx, tok); err != nil {
		return &core.PersistenceError{Err: errors.Wrap(err, "saving push token")}
	}
	return nil
}

// Send pushes nn to every device of its audience.
// Failed deliveries are logged and counted in the Result; they never fail the call.
// Tokens reported as unregistered are removed.
func (svc *Service) Send(ctx context.Context, sub access.Subject, nn NewNotification) (Result, error) {
	if err := nn.Validate(svc.validate); err != nil {
		return Result{}, err
	}
	res := access.Resource{
		Collection: access.CollectionNotifications,
		Data:       map[string]interface{}{"title": nn.Title, "audience": nn.Audience, "target": nn.Target},
	}
	if err := svc.enforcer.Check(ctx, sub, core.OpCreate, res); err != nil {
		return Result{}, err
	}

	tokens, err := svc.audienceTokens(ctx, nn)
	if err != nil {
		return Result{}, err
	}

	icon := nn.Icon
	if icon == "" {
		icon = svc.defaultIcon
	}
	msg := Message{Notification: Notification{Title: nn.Title, Body: nn.Body, Icon: icon}}

	var result Result
	for _, token := range tokens {
		if err = ctx.Err(); err != nil {
			return result, err
		}
		if err = svc.sender.Send(ctx, token, msg); err != nil {
			result.Failed++
			svc.handleFailure(ctx, token, err)
			continue
		}
		result.Sent++
	}
	return result, nil
}

func (svc *Service) audienceTokens(ctx context.Context, nn NewNotification) ([]string, error) {
	switch nn.Audience {
	case AudienceUser:
		return svc.tokens.TokensForUsers(ctx, []string{nn.Target})
	case AudienceCircle:
		uids, err := svc.audience.StudentsInCircle(ctx, nn.Target)
		if err != nil {
			return nil, errors.Wrap(err, "listing circle students")
		}
		if len(uids) == 0 {
			return nil, nil
		}
		return svc.tokens.TokensForUsers(ctx, uids)
	default:
		return svc.tokens.AllTokens(ctx)
	}
}

func (svc *Service) handleFailure(ctx context.Context, token string, err error) {
	if errors.Cause(err) != ErrUnregistered {
		svc.logger.Warn(fmt.Sprintf("push: delivery failed: %v", err), err)
		return
	}
	if err = svc.tokens.DeleteToken(ctx, token); err != nil {
		svc.logger.Warn(fmt.Sprintf("push: removing unregistered token: %v", err), err)
	}
}
