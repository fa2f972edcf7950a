package cart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SnapshotStore persists whole-cart snapshots so register sessions survive a
// process restart. The cart exposes its state as plain data; the snapshot
// store owns the serialization format.
type SnapshotStore interface {
	Save(ctx context.Context, id string, st State) error
	Load(ctx context.Context, id string) (State, bool, error)
	Delete(ctx context.Context, id string) error
}

// Store keeps the live carts per register session and serializes access to
// each of them. The cart itself has no internal locking, so every mutation
// and read goes through the store's mutex.
type Store struct {
	MaxQuantityPerItem int
	TTL                time.Duration
	Snapshots          SnapshotStore
	Now                func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	cart    *Cart
	touched time.Time
}

func (s *Store) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 12 * time.Hour
	}
	return s.TTL
}

func (s *Store) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create opens a new register session with an empty cart and returns its id.
func (s *Store) Create(ctx context.Context) (string, error) {
	id := uuid.NewString()
	s.mu.Lock()
	if s.sessions == nil {
		s.sessions = make(map[string]*session)
	}
	c := New(s.MaxQuantityPerItem)
	s.sessions[id] = &session{cart: c, touched: s.now()}
	s.mu.Unlock()
	if s.Snapshots != nil {
		_ = s.Snapshots.Save(ctx, id, c.State())
	}
	return id, nil
}

// With runs fn against the session's cart under the store lock. When fn
// succeeds the session is touched and its snapshot refreshed; when fn fails
// the cart is guaranteed unchanged by the mutation contract and nothing is
// persisted.
func (s *Store) With(ctx context.Context, id string, fn func(*Cart) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.resolveLocked(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		return err
	}
	s.sessions[id].touched = s.now()
	if s.Snapshots != nil {
		_ = s.Snapshots.Save(ctx, id, c.State())
	}
	return nil
}

// View runs fn against the session's cart for read-only access.
func (s *Store) View(ctx context.Context, id string, fn func(*Cart)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.resolveLocked(ctx, id)
	if err != nil {
		return err
	}
	fn(c)
	return nil
}

// Delete closes the session and removes its snapshot.
func (s *Store) Delete(ctx context.Context, id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	if s.Snapshots != nil {
		_ = s.Snapshots.Delete(ctx, id)
	}
}

// Sweep drops sessions idle past the TTL and reports how many were removed.
// Their snapshots expire on their own.
func (s *Store) Sweep() int {
	cutoff := s.now().Add(-s.ttl())
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int
	for id, sess := range s.sessions {
		if sess.touched.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Active reports the number of sessions currently held in memory.
func (s *Store) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// resolveLocked finds the live session, falling back to the snapshot store
// for sessions owned by a previous process. Callers hold s.mu.
func (s *Store) resolveLocked(ctx context.Context, id string) (*Cart, error) {
	if s.sessions == nil {
		s.sessions = make(map[string]*session)
	}
	if sess, ok := s.sessions[id]; ok {
		if sess.touched.After(s.now().Add(-s.ttl())) {
			return sess.cart, nil
		}
		delete(s.sessions, id)
	}
	if s.Snapshots != nil {
		st, ok, err := s.Snapshots.Load(ctx, id)
		if err == nil && ok {
			c := FromState(st, s.MaxQuantityPerItem)
			s.sessions[id] = &session{cart: c, touched: s.now()}
			return c, nil
		}
	}
	return nil, ErrSessionNotFound
}
