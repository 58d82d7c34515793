package notification_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mystudenthub/backend/core"
	"github.com/mystudenthub/backend/core/access"
	"github.com/mystudenthub/backend/core/notification"
	"github.com/mystudenthub/backend/core/user"
	logsvc "github.com/mystudenthub/backend/services/logger"
	inmemdb "github.com/mystudenthub/backend/storage/database/inmem"
)

var (
	admin   = access.Subject{UID: "a1", Role: user.RoleAdmin.Ptr()}
	teacher = access.Subject{UID: "t1", Role: user.RoleTeacher.Ptr()}
)

type mockSender struct{ mock.Mock }

func (m *mockSender) Send(ctx context.Context, token string, msg notification.Message) error {
	return m.Called(ctx, token, msg).Error(0)
}

type mockAudience struct{ mock.Mock }

func (m *mockAudience) StudentsInCircle(ctx context.Context, circleID string) ([]string, error) {
	args := m.Called(ctx, circleID)
	uids, _ := args.Get(0).([]string)
	return uids, args.Error(1)
}

func newService(t *testing.T, sender notification.Sender, audience notification.Audience) (*notification.Service, notification.TokenRepository) {
	t.Helper()
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())
	tokens := inmemdb.NewPushTokenRepository(inmemdb.NewDB())
	svc := notification.NewService(
		sender, tokens, audience, access.NewEnforcer(access.NewPolicy(), nil), validate,
		core.NewTestConfig(), logsvc.NewNopLogger(),
	)
	return svc, tokens
}

func register(t *testing.T, svc *notification.Service, uid, token string) {
	t.Helper()
	sub := access.Subject{UID: uid, Role: user.RoleStudent.Ptr()}
	require.NoError(t, svc.RegisterToken(context.Background(), sub, notification.NewToken{Token: token}))
}

func TestService_Send(t *testing.T) {
	ctx := context.Background()
	wantMsg := notification.Message{Notification: notification.Notification{
		Title: "Exam", Body: "Tomorrow 9am", Icon: "/icons/icon-192x192.png",
	}}

	t.Run("Should send to one user with the default icon", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("Send", mock.Anything, "tok-s1", wantMsg).Return(nil)
		svc, _ := newService(t, sender, nil)
		register(t, svc, "s1", "tok-s1")
		register(t, svc, "s2", "tok-s2")

		res, err := svc.Send(ctx, admin, notification.NewNotification{Title: "Exam", Body: "Tomorrow 9am", Audience: notification.AudienceUser, Target: "s1"})
		require.NoError(t, err)
		assert.Equal(t, notification.Result{Sent: 1}, res)
		sender.AssertExpectations(t)
	})

	t.Run("Should send to a circle and count failures", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("Send", mock.Anything, "tok-s1", wantMsg).Return(nil)
		sender.On("Send", mock.Anything, "tok-s2", wantMsg).Return(errors.New("timeout"))
		audience := new(mockAudience)
		audience.On("StudentsInCircle", mock.Anything, "c1").Return([]string{"s1", "s2"}, nil)

		svc, _ := newService(t, sender, audience)
		register(t, svc, "s1", "tok-s1")
		register(t, svc, "s2", "tok-s2")
		register(t, svc, "s3", "tok-s3")

		res, err := svc.Send(ctx, admin, notification.NewNotification{Title: "Exam", Body: "Tomorrow 9am", Audience: notification.AudienceCircle, Target: "c1"})
		require.NoError(t, err)
		assert.Equal(t, notification.Result{Sent: 1, Failed: 1}, res)
		sender.AssertExpectations(t)
	})

	t.Run("Should drop unregistered tokens", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("Send", mock.Anything, "tok-s1", wantMsg).Return(errors.Wrap(notification.ErrUnregistered, "NotRegistered"))
		sender.On("Send", mock.Anything, "tok-s2", wantMsg).Return(nil)
		svc, tokens := newService(t, sender, nil)
		register(t, svc, "s1", "tok-s1")
		register(t, svc, "s2", "tok-s2")

		res, err := svc.Send(ctx, admin, notification.NewNotification{Title: "Exam", Body: "Tomorrow 9am", Audience: notification.AudienceAll})
		require.NoError(t, err)
		assert.Equal(t, notification.Result{Sent: 1, Failed: 1}, res)

		all, err := tokens.AllTokens(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"tok-s2"}, all)
	})

	t.Run("Should deny non admins", func(t *testing.T) {
		sender := new(mockSender)
		svc, _ := newService(t, sender, nil)
		_, err := svc.Send(ctx, teacher, notification.NewNotification{Title: "Exam", Body: "Tomorrow 9am", Audience: notification.AudienceAll})
		_, ok := errors.Cause(err).(*core.PermissionError)
		assert.True(t, ok, "got %v", err)
		sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Should require a target", func(t *testing.T) {
		svc, _ := newService(t, new(mockSender), nil)
		_, err := svc.Send(ctx, admin, notification.NewNotification{Title: "Exam", Body: "Tomorrow 9am", Audience: notification.AudienceUser})
		assert.Error(t, err)
	})
}

func TestService_RegisterToken(t *testing.T) {
	ctx := context.Background()
	svc, tokens := newService(t, new(mockSender), nil)

	register(t, svc, "s1", "tok-1")
	register(t, svc, "s2", "tok-1") // device changed hands

	got, err := tokens.TokensForUsers(ctx, []string{"s1"})
	require.NoError(t, err)
	assert.Empty(t, got)
	got, err = tokens.TokensForUsers(ctx, []string{"s2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-1"}, got)

	err = svc.RegisterToken(ctx, access.Subject{UID: "s1"}, notification.NewToken{Token: "tok-2"})
	_, ok := errors.Cause(err).(*core.PermissionError)
	assert.True(t, ok, "subjects without role are denied, got %v", err)
}
