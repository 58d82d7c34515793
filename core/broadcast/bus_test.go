package broadcast

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mystudenthub/backend/core"
)

func newEvent(path string, op core.Operation) *core.PermissionError {
	return &core.PermissionError{Path: path, Operation: op}
}

func TestBus(t *testing.T) {
	ctx := context.Background()

	t.Run("Should drop events when nobody listens", func(t *testing.T) {
		bus := NewBus(nil)
		assert.NotPanics(t, func() {
			assert.Equal(t, 0, bus.Publish(ctx, newEvent("materials/m1", core.OpDelete)))
		})
		// subscribing later does not replay the dropped event
		var got []*core.PermissionError
		unsub := bus.Subscribe(func(_ context.Context, ev *core.PermissionError) { got = append(got, ev) })
		defer unsub()
		assert.Empty(t, got)
	})

	t.Run("Should deliver to every subscriber", func(t *testing.T) {
		bus := NewBus(nil)
		var mu sync.Mutex
		var paths []string
		for i := 0; i < 3; i++ {
			bus.Subscribe(func(_ context.Context, ev *core.PermissionError) {
				mu.Lock()
				paths = append(paths, ev.Path)
				mu.Unlock()
			})
		}
		ev := newEvent("users/u1", core.OpGet)
		ev.RequestResourceData = map[string]interface{}{"role": "admin"}
		assert.Equal(t, 3, bus.Publish(ctx, ev))
		assert.Equal(t, []string{"users/u1", "users/u1", "users/u1"}, paths)
	})

	t.Run("Should stop delivering after unsubscribe", func(t *testing.T) {
		bus := NewBus(nil)
		var count int
		unsub := bus.Subscribe(func(context.Context, *core.PermissionError) { count++ })
		bus.Publish(ctx, newEvent("circles/c1", core.OpCreate))
		unsub()
		unsub() // idempotent
		bus.Publish(ctx, newEvent("circles/c1", core.OpCreate))
		assert.Equal(t, 1, count)
		assert.Equal(t, 0, bus.Subscribers())
	})

	t.Run("Should survive a panicking subscriber", func(t *testing.T) {
		bus := NewBus(nil)
		var count int
		bus.Subscribe(func(context.Context, *core.PermissionError) { panic("boom") })
		bus.Subscribe(func(context.Context, *core.PermissionError) { count++ })
		require.NotPanics(t, func() { bus.Publish(ctx, newEvent("materials/m2", core.OpUpdate)) })
		assert.Equal(t, 1, count)
	})

	t.Run("Should drop everything once closed", func(t *testing.T) {
		bus := NewBus(nil)
		var count int
		bus.Subscribe(func(context.Context, *core.PermissionError) { count++ })
		bus.Close()
		assert.Equal(t, 0, bus.Publish(ctx, newEvent("users/u2", core.OpList)))
		bus.Subscribe(func(context.Context, *core.PermissionError) { count++ })
		assert.Equal(t, 0, bus.Publish(ctx, newEvent("users/u2", core.OpList)))
		assert.Equal(t, 0, count)
	})

	t.Run("Should ignore nil events", func(t *testing.T) {
		bus := NewBus(nil)
		bus.Subscribe(func(context.Context, *core.PermissionError) { t.Error("unexpected delivery") })
		assert.Equal(t, 0, bus.Publish(ctx, nil))
	})
}
