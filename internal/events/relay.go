package events

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Lister reads persisted events newer than a marker.
type Lister interface {
	ListPending(ctx context.Context, since time.Time, limit int) ([]Event, error)
}

// Relay re-dispatches persisted events to notifiers. It keeps a cursor in
// Redis so a restarted worker resumes where the previous one stopped instead
// of replaying the whole table.
type Relay struct {
	Store     Lister
	Notifiers []Notifier
	R         *redis.Client
	CursorKey string
	BatchSize int
	Log       zerolog.Logger
}

func (r *Relay) cursorKey() string {
	if r.CursorKey != "" {
		return r.CursorKey
	}
	return "kasir:events:cursor"
}

func (r *Relay) batchSize() int {
	if r.BatchSize > 0 {
		return r.BatchSize
	}
	return 100
}

// RunOnce drains a single batch and advances the cursor past every event that
// all notifiers accepted. It returns the number of events dispatched.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	if r == nil || r.Store == nil {
		return 0, errors.New("events: relay store not configured")
	}
	since, err := r.loadCursor(ctx)
	if err != nil {
		return 0, err
	}
	batch, err := r.Store.ListPending(ctx, since, r.batchSize())
	if err != nil {
		return 0, err
	}
	dispatched := 0
	for _, ev := range batch {
		if err := r.dispatch(ctx, ev); err != nil {
			return dispatched, err
		}
		dispatched++
		if err := r.saveCursor(ctx, ev.OccurredAt); err != nil {
			return dispatched, err
		}
	}
	return dispatched, nil
}

func (r *Relay) dispatch(ctx context.Context, ev Event) error {
	for _, notifier := range r.Notifiers {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, ev); err != nil {
			r.Log.Error().Err(err).
				Str("topic", ev.Topic).
				Str("event_id", ev.ID.String()).
				Msg("relay notify")
			return err
		}
	}
	return nil
}

func (r *Relay) loadCursor(ctx context.Context) (time.Time, error) {
	if r.R == nil {
		return time.Time{}, nil
	}
	raw, err := r.R.Get(ctx, r.cursorKey()).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		// A corrupt marker only costs a replay, never a stall.
		return time.Time{}, nil
	}
	return ts, nil
}

func (r *Relay) saveCursor(ctx context.Context, at time.Time) error {
	if r.R == nil {
		return nil
	}
	return r.R.Set(ctx, r.cursorKey(), at.Format(time.RFC3339Nano), 0).Err()
}
