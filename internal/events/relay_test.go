package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/events"
)

type stubLister struct {
	events []events.Event
	calls  []time.Time
}

func (s *stubLister) ListPending(_ context.Context, since time.Time, limit int) ([]events.Event, error) {
	s.calls = append(s.calls, since)
	var out []events.Event
	for _, ev := range s.events {
		if ev.OccurredAt.After(since) {
			out = append(out, ev)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// failingNotifier fails exactly once, on the failAt-th delivery.
type failingNotifier struct {
	failAt int
	seen   int
}

func (f *failingNotifier) Notify(context.Context, events.Event) error {
	f.seen++
	if f.seen == f.failAt {
		return errors.New("boom")
	}
	return nil
}

func relayRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func relayEvent(topic string, at time.Time) events.Event {
	return events.Event{
		ID:          uuid.New(),
		Topic:       topic,
		AggregateID: uuid.New(),
		Payload:     []byte(`{}`),
		OccurredAt:  at,
	}
}

func TestRelayDispatchesAndAdvancesCursor(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	lister := &stubLister{events: []events.Event{
		relayEvent(events.TopicSaleCompleted, base),
		relayEvent(events.TopicStockLow, base.Add(time.Minute)),
	}}
	sink := &captureNotifier{}
	relay := &events.Relay{Store: lister, Notifiers: []events.Notifier{sink}, R: relayRedis(t)}

	n, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Len(t, sink.events, 2)

	// A second pass starts after the last dispatched event.
	n, err = relay.RunOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	require.Equal(t, base.Add(time.Minute), lister.calls[1])
}

func TestRelayResumesAfterNotifierFailure(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	lister := &stubLister{events: []events.Event{
		relayEvent(events.TopicSaleCompleted, base),
		relayEvent(events.TopicSaleVoided, base.Add(time.Minute)),
	}}
	relay := &events.Relay{
		Store:     lister,
		Notifiers: []events.Notifier{&failingNotifier{failAt: 2}},
		R:         relayRedis(t),
	}

	n, err := relay.RunOnce(context.Background())
	require.Error(t, err)
	require.Equal(t, 1, n)

	// The failed event stays ahead of the cursor, so the next pass retries it.
	n, err = relay.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, base, lister.calls[1])
}

func TestRelayWorksWithoutRedisCursor(t *testing.T) {
	lister := &stubLister{events: []events.Event{
		relayEvent(events.TopicSaleCompleted, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)),
	}}
	sink := &captureNotifier{}
	relay := &events.Relay{Store: lister, Notifiers: []events.Notifier{sink}}

	n, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
