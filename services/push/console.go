package pushsvc

import (
	"context"
	"fmt"
	"sync"

	"github.com/mystudenthub/backend/core"
	"github.com/mystudenthub/backend/core/notification"
)

// Delivery is a message recorded by ConsoleSender.
type Delivery struct {
	Token   string
	Message notification.Message
}

// ConsoleSender logs messages instead of delivering them. Used in development and tests.
type ConsoleSender struct {
	logger core.Logger

	mu   sync.Mutex
	sent []Delivery
}

var _ notification.Sender = (*ConsoleSender)(nil)

func NewConsoleSender(logger core.Logger) *ConsoleSender {
	return &ConsoleSender{logger: logger}
}

func (s *ConsoleSender) Send(ctx context.Context, token string, msg notification.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.sent = append(s.sent, Delivery{Token: token, Message: msg})
	s.mu.Unlock()
	s.logger.Debug(fmt.Sprintf("push to %s: %s", token, msg.Notification.Title))
	return nil
}

func (s *ConsoleSender) Sent() []Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Delivery, len(s.sent))
	copy(out, s.sent)
	return out
}
