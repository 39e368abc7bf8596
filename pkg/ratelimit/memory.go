package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const shardCount = 32

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type shard struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// MemoryLimiter is the default Limiter: an in-memory table of per-key
// token buckets, sharded across shardCount independent mutexes so one hot
// key's lock contention never blocks lookups for unrelated keys. Each
// bucket is sized from Config (Max events per Window, refilled
// continuously at Max/Window) — a token-bucket realization of the
// configured sliding window, the same primitive the bucket table. Idle
// buckets are swept periodically so the table doesn't grow unbounded
// across the lifetime of a long-running process.
type MemoryLimiter struct {
	shards [shardCount]*shard
	stopCh chan struct{}
}

// NewMemoryLimiter constructs a limiter and starts its background sweep
// goroutine, which once a minute removes buckets untouched for more than
// 10 minutes to bound memory.
func NewMemoryLimiter() *MemoryLimiter {
	m := &MemoryLimiter{stopCh: make(chan struct{})}
	for i := range m.shards {
		m.shards[i] = &shard{buckets: make(map[string]*bucket)}
	}
	go m.sweep()
	return m
}

// Close stops the background sweep. Safe to call once.
func (m *MemoryLimiter) Close() {
	close(m.stopCh)
}

func (m *MemoryLimiter) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return m.shards[h.Sum32()%shardCount]
}

func (m *MemoryLimiter) Allow(_ context.Context, key string, cfg Config) (bool, time.Duration, error) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		ratePerSec := rate.Limit(float64(cfg.Max) / cfg.Window.Seconds())
		b = &bucket{limiter: rate.NewLimiter(ratePerSec, cfg.Max)}
		s.buckets[key] = b
	}
	b.lastSeen = time.Now()

	reservation := b.limiter.ReserveN(time.Now(), 1)
	if !reservation.OK() {
		return false, cfg.Window, nil
	}
	delay := reservation.Delay()
	if delay > 0 {
		reservation.Cancel()
		return false, delay, nil
	}
	return true, 0, nil
}

func (m *MemoryLimiter) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-10 * time.Minute)
			for _, s := range m.shards {
				s.mu.Lock()
				for key, b := range s.buckets {
					if b.lastSeen.Before(cutoff) {
						delete(s.buckets, key)
					}
				}
				s.mu.Unlock()
			}
		}
	}
}
