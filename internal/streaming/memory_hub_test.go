package streaming

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanmmay/b0t-sub000/internal/store"
	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

func ev(runID, typ string) *store.RunEvent {
	return &store.RunEvent{RunID: runID, Type: typ}
}

func receive(t *testing.T, ch <-chan *store.RunEvent) *store.RunEvent {
	t.Helper()
	select {
	case got := <-ch:
		return got
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func assertEmpty(t *testing.T, ch <-chan *store.RunEvent) {
	t.Helper()
	select {
	case got := <-ch:
		t.Fatalf("unexpected event: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishSubscribe(t *testing.T) {
	hub := NewMemoryHub(0)
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel()

	event := &store.RunEvent{RunID: "run-1", StepID: "s1", Type: schema.EventStepCompleted, Sequence: 3}
	require.NoError(t, hub.Publish(ctx, event))

	got := receive(t, ch)
	assert.Same(t, event, got)
}

func TestFilterByRunID(t *testing.T) {
	hub := NewMemoryHub(0)
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{RunID: "run-1"})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, ev("run-1", schema.EventStepStarted)))
	require.NoError(t, hub.Publish(ctx, ev("run-2", schema.EventStepStarted)))

	assert.Equal(t, "run-1", receive(t, ch).RunID)
	assertEmpty(t, ch)
}

func TestFilterByEventType(t *testing.T) {
	hub := NewMemoryHub(0)
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{
		EventTypes: []string{schema.EventStepFailed, schema.EventRunFailed},
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, ev("run-1", schema.EventStepFailed)))
	require.NoError(t, hub.Publish(ctx, ev("run-1", schema.EventStepStarted)))
	require.NoError(t, hub.Publish(ctx, ev("run-1", schema.EventRunFailed)))

	received := []string{receive(t, ch).Type, receive(t, ch).Type}
	assert.Equal(t, []string{schema.EventStepFailed, schema.EventRunFailed}, received)
	assertEmpty(t, ch)
}

func TestMultipleSubscribers(t *testing.T) {
	hub := NewMemoryHub(0)
	ctx := context.Background()

	ch1, cancel1, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel1()
	ch2, cancel2, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel2()

	require.NoError(t, hub.Publish(ctx, ev("run-1", schema.EventRunCompleted)))

	for _, ch := range []<-chan *store.RunEvent{ch1, ch2} {
		assert.Equal(t, schema.EventRunCompleted, receive(t, ch).Type)
	}
}

func TestCancelSubscription(t *testing.T) {
	hub := NewMemoryHub(0)
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)

	cancel()
	cancel() // idempotent

	require.NoError(t, hub.Publish(ctx, ev("run-1", schema.EventStepCompleted)))

	_, open := <-ch
	assert.False(t, open, "cancel closes the channel")

	hub.mu.RLock()
	assert.Empty(t, hub.subs)
	hub.mu.RUnlock()
}

func TestBackpressure(t *testing.T) {
	hub := NewMemoryHub(8)
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel()

	// None of these should block.
	for i := 0; i < 18; i++ {
		require.NoError(t, hub.Publish(ctx, ev("run-1", "tick")))
	}

	drained := 0
	for len(ch) > 0 {
		<-ch
		drained++
	}
	assert.Equal(t, 8, drained)
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewMemoryHub(0)
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = hub.Publish(ctx, ev("run-concurrent", "tick"))
			}
		}()
		go func() {
			defer wg.Done()
			ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
			if err != nil {
				return
			}
			for range 5 {
				select {
				case <-ch:
				case <-time.After(10 * time.Millisecond):
				}
			}
			cancel()
		}()
	}
	wg.Wait()

	hub.mu.RLock()
	assert.Empty(t, hub.subs)
	hub.mu.RUnlock()
}

func TestCancelledContext(t *testing.T) {
	hub := NewMemoryHub(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, hub.Publish(ctx, ev("run-1", "tick")), context.Canceled)
	_, _, err := hub.Subscribe(ctx, EventFilter{})
	assert.ErrorIs(t, err, context.Canceled)
}

// --- PublishingLog ---

type memEventLog struct {
	mu     sync.Mutex
	events []*store.RunEvent
	err    error
}

func (m *memEventLog) AppendRunEvent(_ context.Context, e *store.RunEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	e.Sequence = int64(len(m.events) + 1)
	m.events = append(m.events, e)
	return nil
}

func (m *memEventLog) ListRunEvents(_ context.Context, runID string) ([]*store.RunEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.RunEvent
	for _, e := range m.events {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestPublishingLog(t *testing.T) {
	hub := NewMemoryHub(0)
	ctx := context.Background()
	inner := &memEventLog{}
	log := NewPublishingLog(inner, hub, nil)

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{RunID: "run-1"})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, log.AppendRunEvent(ctx, ev("run-1", schema.EventRunStarted)))
	require.NoError(t, log.AppendRunEvent(ctx, ev("run-1", schema.EventStepStarted)))

	assert.EqualValues(t, 1, receive(t, ch).Sequence, "published after the sequence is assigned")
	assert.EqualValues(t, 2, receive(t, ch).Sequence)

	stored, err := log.ListRunEvents(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	inner.err = errors.New("disk full")
	assert.Error(t, log.AppendRunEvent(ctx, ev("run-1", schema.EventStepCompleted)))
	assertEmpty(t, ch)
}
