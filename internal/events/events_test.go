package events

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jwebster45206/verse-engine/pkg/effects"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Reduce noise in tests
	}))
}

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBus_FanOutPerWorld(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	a, cancelA, err := bus.Subscribe(ctx, "garden")
	require.NoError(t, err)
	b, cancelB, err := bus.Subscribe(ctx, "garden")
	require.NoError(t, err)
	other, cancelOther, err := bus.Subscribe(ctx, "orchard")
	require.NoError(t, err)
	defer cancelOther()

	require.NoError(t, bus.Publish(ctx, Event{Type: EventTypeOneShot, WorldID: "garden"}))
	assert.Equal(t, EventTypeOneShot, receive(t, a).Type)
	assert.Equal(t, EventTypeOneShot, receive(t, b).Type)
	assert.Empty(t, other)

	cancelA()
	cancelA()
	assert.Equal(t, 1, bus.Subscribers("garden"))
	_, ok := <-a
	assert.False(t, ok, "cancel closes the channel")
	cancelB()
}

func TestBus_ContextEndsSubscription(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	ch, _, err := bus.Subscribe(ctx, "garden")
	require.NoError(t, err)

	cancel()
	assert.Eventually(t, func() bool { return bus.Subscribers("garden") == 0 }, time.Second, 10*time.Millisecond)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestSink_TranslatesEffects(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, unsubscribe, err := bus.Subscribe(ctx, "garden")
	require.NoError(t, err)
	defer unsubscribe()

	sink := NewSink("garden", bus, testLogger())
	go sink.Run(ctx)

	sink.PlayAmbient(effects.AmbientSeason, 2)
	sink.RenderIncrementalText("春", 0.1)
	sink.SetVisualEffectActive(effects.EffectRain, true)

	ev := receive(t, sub)
	assert.Equal(t, EventTypeAmbientChanged, ev.Type)
	assert.Equal(t, "garden", ev.WorldID)
	assert.Equal(t, "season", ev.Data["kind"])
	assert.Equal(t, 2, ev.Data["index"])

	ev = receive(t, sub)
	assert.Equal(t, EventTypeTextRendered, ev.Type)
	assert.Equal(t, "春", ev.Data["buffer"])

	ev = receive(t, sub)
	assert.Equal(t, EventTypeEffectChanged, ev.Type)
	assert.Equal(t, true, ev.Data["active"])
}

func TestBroadcaster_RoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	b := NewBroadcaster(client, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, unsubscribe, err := b.Subscribe(ctx, "garden")
	require.NoError(t, err)
	defer unsubscribe()

	sink := NewSink("garden", b, testLogger())
	go sink.Run(ctx)
	sink.SetTitleText("春晓")

	ev := receive(t, sub)
	assert.Equal(t, EventTypeTitleChanged, ev.Type)
	assert.Equal(t, "春晓", ev.Data["title"])
	assert.Equal(t, "garden", ev.WorldID)
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "world-events:garden", Channel("garden"))
}
