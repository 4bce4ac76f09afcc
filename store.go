package navgate

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
)

type sessionSubscriber struct {
	id int
	fn func(Session)
}

// SessionStore holds the current Session and notifies subscribers when it
// changes. Hydration runs at most once per store; SetSession and ClearSession
// both leave the store hydrated since they describe known auth state.
type SessionStore struct {
	mu      sync.RWMutex
	session Session
	subs    []sessionSubscriber
	nextSub int

	hydrateOnce sync.Once
	hydrateErr  error

	logger   Logger
	provider LoggerProvider
	activity ActivitySink
}

// NewSessionStore creates a store in the unhydrated state.
func NewSessionStore() *SessionStore {
	s := &SessionStore{
		activity: noopActivitySink{},
	}
	s.provider, s.logger = ResolveLogger("navgate.session_store", nil, nil)
	return s
}

// WithLogger sets the logger used by the store.
func (s *SessionStore) WithLogger(logger Logger) *SessionStore {
	if logger != nil {
		_, s.logger = ResolveLogger("navgate.session_store", nil, logger)
	}
	return s
}

// WithLoggerProvider resolves a scoped logger from the provider.
func (s *SessionStore) WithLoggerProvider(provider LoggerProvider) *SessionStore {
	if provider != nil {
		s.provider, s.logger = ResolveLogger("navgate.session_store", provider, s.logger)
	}
	return s
}

// WithActivitySink registers the sink that receives hydrate/set/clear events.
func (s *SessionStore) WithActivitySink(sink ActivitySink) *SessionStore {
	s.activity = normalizeActivitySink(sink)
	return s
}

// Snapshot returns a copy of the current session.
func (s *SessionStore) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.clone()
}

// Hydrated reports whether boot-time restoration has finished.
func (s *SessionStore) Hydrated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Hydrated
}

// Subscribe registers fn to run after every session change, in subscription
// order. The returned function removes the subscription.
func (s *SessionStore) Subscribe(fn func(Session)) func() {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, sessionSubscriber{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Hydrate restores the boot session through the loader, exactly once per
// store. Concurrent and repeated calls return the first outcome. A loader
// failure still hydrates the store with an anonymous session so routing can
// proceed, and the wrapped error is reported to the caller.
func (s *SessionStore) Hydrate(ctx context.Context, loader SessionLoader) error {
	s.hydrateOnce.Do(func() {
		s.hydrateErr = s.hydrate(ctx, loader)
	})
	return s.hydrateErr
}

func (s *SessionStore) hydrate(ctx context.Context, loader SessionLoader) error {
	if loader == nil {
		s.apply(AnonymousSession())
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventHydrateSuccess,
			Identity:  "anon",
		})
		return nil
	}

	loaded, err := loader.Load(ctx)
	if err != nil {
		s.logger.Error("Session hydration failed", "error", err)
		s.apply(AnonymousSession())
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventHydrateFailure,
			Identity:  "anon",
			Metadata:  map[string]any{"error": err.Error()},
		})
		return errors.Wrap(err, ErrHydrationFailed.Category, ErrHydrationFailed.Message).
			WithTextCode(ErrHydrationFailed.TextCode)
	}

	loaded.Hydrated = true
	if loaded.User == nil {
		loaded.Authenticated = false
	}

	s.apply(loaded)

	event := ActivityEvent{
		EventType: ActivityEventHydrateSuccess,
		Identity:  loaded.Identity(),
	}
	if loaded.User != nil {
		event.UserID = loaded.User.ID
	}
	s.recordActivity(ctx, event)

	return nil
}

// SetSession replaces the current session with an authenticated one for the
// given user. A nil user clears the session instead.
func (s *SessionStore) SetSession(ctx context.Context, user *SessionUser) {
	if user == nil {
		s.ClearSession(ctx)
		return
	}

	u := *user
	next := Session{Hydrated: true, Authenticated: true, User: &u}
	if s.apply(next) {
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventSessionSet,
			UserID:    u.ID,
			Identity:  next.Identity(),
		})
	}
}

// ClearSession drops the authenticated user. The store stays hydrated: a
// logout is known state, not a return to booting.
func (s *SessionStore) ClearSession(ctx context.Context) {
	if s.apply(AnonymousSession()) {
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventSessionCleared,
			Identity:  "anon",
		})
	}
}

// apply swaps in the next session and notifies subscribers outside the lock.
// Returns false when the value did not change, in which case nothing fires.
func (s *SessionStore) apply(next Session) bool {
	next = next.clone()

	s.mu.Lock()
	if s.session.Equal(next) {
		s.mu.Unlock()
		return false
	}
	s.session = next
	subs := make([]sessionSubscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(next.clone())
	}

	return true
}

func (s *SessionStore) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if err := s.activity.Record(ctx, event); err != nil {
		s.logger.Warn("session store activity sink error", "error", err)
	}
}
