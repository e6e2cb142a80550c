// Package store keeps finished assessments so the HTTP surface can serve
// them after the request that produced them. Entries have an explicit
// lifecycle: a time-to-live and, for the memory driver, an LRU bound.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/regalign/internal/schema"
)

// ErrNotFound is returned for unknown or expired job ids.
var ErrNotFound = errors.New("store: job not found")

// Job is one stored assessment.
type Job struct {
	ID        string          `json:"job_id"`
	CreatedAt time.Time       `json:"created_at"`
	Analysis  schema.Analysis `json:"analysis"`
	Report    []byte          `json:"-"`
}

// Store persists jobs. Implementations are safe for concurrent use.
type Store interface {
	// Save stores j, assigning an id and creation time when unset, and
	// returns the stored job.
	Save(ctx context.Context, j Job) (Job, error)
	Get(ctx context.Context, id string) (Job, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config selects and sizes a Store.
type Config struct {
	Driver string `toml:"driver"`
	// Path is the sqlite database file.
	Path string `toml:"path"`
	// TTL bounds how long a job stays retrievable; zero keeps jobs until evicted.
	TTL Duration `toml:"ttl"`
	// MaxEntries bounds the number of retained jobs; zero is unbounded.
	MaxEntries int `toml:"max_entries"`
}

// Open builds the Store named by cfg.Driver.
func Open(cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		return NewMemory(cfg.MaxEntries, cfg.TTL.D()), nil
	case DriverSQLite:
		s, err := OpenSQLite(cfg.Path, cfg.MaxEntries, cfg.TTL.D())
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// NewID returns a fresh job id.
func NewID() string {
	return uuid.NewString()
}

func stamp(j Job, now time.Time) Job {
	if j.ID == "" {
		j.ID = NewID()
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	return j
}

// Duration is a time.Duration that reads from config as a string such as "1h30m".
type Duration time.Duration

// D returns d as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("store: duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}
