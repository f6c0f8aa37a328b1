// Package session keeps the per-visitor form state between requests.
//
// State is deliberately tiny: the only thing remembered is whether a hash
// was already shown, so a second submission in the same session can be
// refused without hashing again.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrUnavailable   = errors.New("session store unavailable")
	ErrUnknownDriver = errors.New("unknown session driver")
)

// State is the per-session form state.
type State struct {
	HashShown bool `json:"hash_shown"`
}

// Store persists State by session id. Unknown ids load as the zero State.
type Store interface {
	Load(ctx context.Context, id string) (State, error)
	Save(ctx context.Context, id string, st State) error
	Delete(ctx context.Context, id string) error
	// Claim atomically sets HashShown for id. It reports false when the flag
	// was already set, so concurrent requests in one session see exactly one
	// winner.
	Claim(ctx context.Context, id string) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

type Config struct {
	Driver          string
	TTL             time.Duration
	CleanupInterval time.Duration
	Redis           RedisConfig
}

// NewStore builds the store selected by cfg.Driver.
func NewStore(cfg Config, logger *zerolog.Logger) (Store, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		return NewMemoryStore(cfg.TTL, cfg.CleanupInterval), nil
	case DriverRedis:
		rc := cfg.Redis
		if rc.TTL == 0 {
			rc.TTL = cfg.TTL
		}
		rs, err := NewRedisStore(rc, logger)
		if err != nil {
			return nil, err
		}
		return rs, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// NewID returns a fresh random session id.
func NewID() string {
	return uuid.New().String()
}

// logID shortens id for log lines; the full id is a bearer value.
func logID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// ValidID reports whether id looks like an id produced by NewID.
func ValidID(id string) bool {
	u, err := uuid.Parse(id)
	return err == nil && u.Version() == 4
}
