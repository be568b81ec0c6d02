// Package progress keeps the latest run progress per chat and throttles updates.
package progress

import (
	"context"
	"math"
	"sync"
	"time"
)

const (
	DefaultMinInterval = 3 * time.Second
	DefaultTTL         = time.Hour
)

type Progress struct {
	Current    int       `json:"current"`
	Total      int       `json:"total"`
	Percentage float64   `json:"percentage"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func newProgress(current, total int, now time.Time) Progress {
	percentage := 0.0
	if total > 0 {
		percentage = math.Round(float64(current)/float64(total)*1000) / 10
	}

	return Progress{Current: current, Total: total, Percentage: percentage, UpdatedAt: now}
}

// Store saves progress per chat. Update returns false when the previous update of the
// chat happened less than the minimal interval ago and force is not set.
type Store interface {
	Update(ctx context.Context, chatID int64, current, total int, force bool) (bool, error)
	Get(ctx context.Context, chatID int64) (*Progress, error)
	Clear(ctx context.Context, chatID int64) error
}

type Options struct {
	MinInterval time.Duration `yaml:"min_interval"`
	TTL         time.Duration `yaml:"ttl"`
}

func (o *Options) applyDefaults() {
	if o.MinInterval <= 0 {
		o.MinInterval = DefaultMinInterval
	}
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
}

type memoryEntry struct {
	progress Progress
	expires  time.Time
}

// MemoryStore is the Store used when Redis is disabled.
type MemoryStore struct {
	mu      sync.Mutex
	opts    Options
	entries map[int64]memoryEntry
	now     func() time.Time
}

func NewMemoryStore(opts Options) *MemoryStore {
	opts.applyDefaults()

	return &MemoryStore{
		opts:    opts,
		entries: map[int64]memoryEntry{},
		now:     time.Now,
	}
}

func (s *MemoryStore) Update(ctx context.Context, chatID int64, current, total int, force bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if entry, ok := s.entries[chatID]; ok && now.Before(entry.expires) && !force {
		if now.Sub(entry.progress.UpdatedAt) < s.opts.MinInterval {
			return false, nil
		}
	}

	s.entries[chatID] = memoryEntry{
		progress: newProgress(current, total, now),
		expires:  now.Add(s.opts.TTL),
	}
	return true, nil
}

func (s *MemoryStore) Get(ctx context.Context, chatID int64) (*Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[chatID]
	if !ok || !s.now().Before(entry.expires) {
		return nil, nil
	}

	progress := entry.progress
	return &progress, nil
}

func (s *MemoryStore) Clear(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, chatID)
	return nil
}
