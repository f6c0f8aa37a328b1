package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

type RedisConfig struct {
	URL          string
	Prefix       string
	TTL          time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	PoolSize     int
	MinIdleConns int
}

// RedisStore keeps sessions as JSON values under <prefix>:<id>. Every call
// goes through a circuit breaker so a dead Redis fails fast.
type RedisStore struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
	prefix string
	ttl    time.Duration
	logger *zerolog.Logger
}

func NewRedisStore(cfg RedisConfig, logger *zerolog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.RetryBackoff > 0 {
		opts.MinRetryBackoff = cfg.RetryBackoff
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "pwcheck:session"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	s := &RedisStore{
		client: redis.NewClient(opts),
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
	s.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-session-store",
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		_ = s.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return s, nil
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":" + id
}

func (s *RedisStore) Load(ctx context.Context, id string) (State, error) {
	v, err := s.cb.Execute(func() (interface{}, error) {
		return s.client.Get(ctx, s.key(id)).Bytes()
	})
	if errors.Is(err, redis.Nil) {
		return State{}, nil
	}
	if err != nil {
		return State{}, s.unavailable("load", err)
	}

	var st State
	if err := json.Unmarshal(v.([]byte), &st); err != nil {
		// A corrupt entry is treated as a fresh session.
		s.logger.Warn().Err(err).Str("session", logID(id)).Msg("discarding corrupt session state")
		return State{}, nil
	}
	return st, nil
}

func (s *RedisStore) Save(ctx context.Context, id string, st State) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}
	_, err = s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Set(ctx, s.key(id), payload, s.ttl).Err()
	})
	if err != nil {
		return s.unavailable("save", err)
	}
	return nil
}

// claimScript sets the shown state unless the stored value already has it.
var claimScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if v and string.find(v, '"hash_shown":true', 1, true) then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return 1
`)

func (s *RedisStore) Claim(ctx context.Context, id string) (bool, error) {
	payload, err := json.Marshal(State{HashShown: true})
	if err != nil {
		return false, fmt.Errorf("failed to marshal session state: %w", err)
	}
	v, err := s.cb.Execute(func() (interface{}, error) {
		return claimScript.Run(ctx, s.client, []string{s.key(id)}, payload, s.ttl.Milliseconds()).Int64()
	})
	if err != nil {
		return false, s.unavailable("claim", err)
	}
	return v.(int64) == 1, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Del(ctx, s.key(id)).Err()
	})
	if err != nil {
		return s.unavailable("delete", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return s.unavailable("ping", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) unavailable(op string, err error) error {
	return fmt.Errorf("%w: redis %s: %v", ErrUnavailable, op, err)
}
