package jobs

import (
	"context"
	"hash/fnv"
	"slices"
	"strings"
	"sync"
	"time"

	"docverify/pkg/platform/sentinel"
)

const shardCount = 16

// InMemoryStore spreads jobs over shards, each with its own lock, so status
// updates from workers do not contend with pollers of unrelated jobs.
// Finished jobs expire ttl after they finish; Get, List and Sweep evict them.
type InMemoryStore struct {
	shards [shardCount]*shard
	ttl    time.Duration
	now    func() time.Time
}

type shard struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

type MemoryOption func(*InMemoryStore)

// WithMemoryClock overrides the clock used for expiry.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *InMemoryStore) { s.now = now }
}

func NewInMemoryStore(ttl time.Duration, opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{ttl: ttl, now: time.Now}
	for i := range s.shards {
		s.shards[i] = &shard{jobs: make(map[string]Job)}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return s.shards[h.Sum32()%shardCount]
}

func (s *InMemoryStore) expired(j Job) bool {
	return s.ttl > 0 && j.FinishedAt != nil && s.now().Sub(*j.FinishedAt) > s.ttl
}

func (s *InMemoryStore) Get(_ context.Context, id string) (*Job, error) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	j, ok := sh.jobs[id]
	sh.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if s.expired(j) {
		sh.mu.Lock()
		delete(sh.jobs, id)
		sh.mu.Unlock()
		return nil, sentinel.ErrNotFound
	}
	return &j, nil
}

func (s *InMemoryStore) Set(_ context.Context, job *Job) error {
	sh := s.shardFor(job.ID)
	sh.mu.Lock()
	sh.jobs[job.ID] = *job
	sh.mu.Unlock()
	return nil
}

// List returns live jobs newest first and evicts expired ones on the way.
func (s *InMemoryStore) List(_ context.Context) ([]*Job, error) {
	var out []*Job
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, j := range sh.jobs {
			if s.expired(j) {
				delete(sh.jobs, id)
				continue
			}
			out = append(out, &j)
		}
		sh.mu.Unlock()
	}
	slices.SortFunc(out, newestFirst)
	return out, nil
}

// Sweep evicts every expired job and reports how many were removed.
func (s *InMemoryStore) Sweep(_ context.Context) int {
	if s.ttl <= 0 {
		return 0
	}
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, j := range sh.jobs {
			if s.expired(j) {
				delete(sh.jobs, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

func newestFirst(a, b *Job) int {
	if c := b.SubmittedAt.Compare(a.SubmittedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}
