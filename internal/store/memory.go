package store

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Memory is an in-process Store bounded by entry count (least recently
// used first) and age.
type Memory struct {
	cache *expirable.LRU[string, Job]
}

// NewMemory returns a Memory holding at most maxEntries jobs (0 for no
// bound), each for at most ttl (0 for no expiry).
func NewMemory(maxEntries int, ttl time.Duration) *Memory {
	return &Memory{cache: expirable.NewLRU[string, Job](max(maxEntries, 0), nil, ttl)}
}

func (m *Memory) Save(_ context.Context, j Job) (Job, error) {
	j = stamp(j, time.Now())
	m.cache.Add(j.ID, j)
	return j, nil
}

func (m *Memory) Get(_ context.Context, id string) (Job, error) {
	j, ok := m.cache.Get(id)
	if !ok {
		return Job{}, ErrNotFound
	}
	return j, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	if !m.cache.Remove(id) {
		return ErrNotFound
	}
	return nil
}

// Len reports the number of live jobs.
func (m *Memory) Len() int { return m.cache.Len() }

func (m *Memory) Close() error {
	m.cache.Purge()
	return nil
}
