package broadcastsvc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/mystudenthub/backend/core"
)

// Publisher re-publishes forwarded events locally, see broadcast.Bus.
type Publisher interface {
	Publish(ctx context.Context, ev *core.PermissionError) int
}

type envelope struct {
	Origin string                `json:"origin"`
	Event  *core.PermissionError `json:"event"`
}

// RedisForwarder shares permission failures between instances through a Redis channel.
// Handle sends local events out; Listen replays events from other instances on the local bus.
type RedisForwarder struct {
	rdb     *redis.Client
	channel string
	origin  string
	logger  core.Logger
}

func NewRedisForwarder(rdb *redis.Client, conf *core.Config, logger core.Logger) *RedisForwarder {
	return &RedisForwarder{
		rdb:     rdb,
		channel: conf.Redis.Channel,
		origin:  uuid.NewString(),
		logger:  logger,
	}
}

// Handle matches broadcast.Handler. Events received from other instances are not sent back out.
func (f *RedisForwarder) Handle(ctx context.Context, ev *core.PermissionError) {
	if forwarded(ctx) {
		return
	}
	raw, err := json.Marshal(envelope{Origin: f.origin, Event: ev})
	if err != nil {
		f.logger.Warn(fmt.Sprintf("broadcast: encoding event: %v", err), err)
		return
	}
	if err = f.rdb.Publish(ctx, f.channel, raw).Err(); err != nil {
		f.logger.Warn(fmt.Sprintf("broadcast: forwarding event: %v", err), err)
	}
}

// Listen subscribes to the channel and publishes foreign events on bus until ctx is done.
// It returns once the subscription is active.
func (f *RedisForwarder) Listen(ctx context.Context, bus Publisher) error {
	sub := f.rdb.Subscribe(ctx, f.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return errors.Wrap(err, "redis subscribe")
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var env envelope
				if err := json.Unmarshal([]byte(m.Payload), &env); err != nil || env.Event == nil {
					f.logger.Warn("broadcast: bad redis payload", err)
					continue
				}
				if env.Origin == f.origin {
					continue
				}
				bus.Publish(withForwarded(ctx), env.Event)
			}
		}
	}()
	return nil
}

type forwardedKey struct{}

func withForwarded(ctx context.Context) context.Context {
	return context.WithValue(ctx, forwardedKey{}, true)
}

func forwarded(ctx context.Context) bool {
	v, _ := ctx.Value(forwardedKey{}).(bool)
	return v
}
