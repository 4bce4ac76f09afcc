package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-navgate"
	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when no persisted session exists for a key.
var ErrSessionNotFound = errors.New("session not found")

// ErrRedisUnavailable wraps transport level Redis failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// DefaultKeyPrefix namespaces session keys in Redis.
const DefaultKeyPrefix = "navgate:session"

// DefaultTTL is how long a persisted session survives without a refresh.
const DefaultTTL = 24 * time.Hour

// Config holds connection settings for the session store.
type Config struct {
	// Addr is the Redis host:port.
	Addr string

	// Password is optional.
	Password string

	// DB selects the Redis logical database.
	DB int

	// KeyPrefix overrides the default key namespace (optional).
	KeyPrefix string

	// TTL overrides the default session lifetime (optional).
	TTL time.Duration
}

// Store persists session users keyed by an opaque session ID.
type Store struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger navgate.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithKeyPrefix sets the Redis key namespace.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithTTL sets how long persisted sessions live without a refresh.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(logger navgate.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLoggerProvider resolves a scoped logger from the provider.
func WithLoggerProvider(provider navgate.LoggerProvider) Option {
	return func(s *Store) {
		_, s.logger = navgate.ResolveLogger("navgate.redisstore", provider, s.logger)
	}
}

// NewStore creates a session store backed by the given Redis client.
func NewStore(client redis.UniversalClient, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, errors.New("redisstore: client is required")
	}

	store := &Store{
		client: client,
		prefix: DefaultKeyPrefix,
		ttl:    DefaultTTL,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}

	return store, nil
}

// Connect dials Redis with the given config and returns a ready store.
func Connect(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redisstore: addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	baseOpts := []Option{WithKeyPrefix(cfg.KeyPrefix), WithTTL(cfg.TTL)}
	return NewStore(client, append(baseOpts, opts...)...)
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

// Save persists the session user under the given session ID.
func (s *Store) Save(ctx context.Context, sessionID string, user *navgate.SessionUser) error {
	if sessionID == "" {
		return errors.New("redisstore: session ID is required")
	}
	if user == nil {
		return errors.New("redisstore: user is required")
	}

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("redisstore: encode session: %w", err)
	}

	if err := s.client.Set(ctx, s.key(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get retrieves the persisted session user, or ErrSessionNotFound.
func (s *Store) Get(ctx context.Context, sessionID string) (*navgate.SessionUser, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var user navgate.SessionUser
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("redisstore: decode session: %w", err)
	}

	return &user, nil
}

// Delete removes a persisted session. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Touch extends the TTL of a persisted session, or ErrSessionNotFound.
func (s *Store) Touch(ctx context.Context, sessionID string) error {
	ok, err := s.client.Expire(ctx, s.key(sessionID), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

// Loader returns a session loader for boot-time hydration. A missing session
// resolves to an anonymous session, transport failures surface as errors so
// the caller can decide how to degrade.
func (s *Store) Loader(sessionID string) navgate.SessionLoader {
	return navgate.SessionLoaderFunc(func(ctx context.Context) (navgate.Session, error) {
		if sessionID == "" {
			return navgate.AnonymousSession(), nil
		}

		user, err := s.Get(ctx, sessionID)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				return navgate.AnonymousSession(), nil
			}
			return navgate.Session{}, err
		}

		return navgate.Session{
			Hydrated:      true,
			Authenticated: true,
			User:          user,
		}, nil
	})
}

// Ping reports Redis availability.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
