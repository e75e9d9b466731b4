package assign

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/kilianp07/dutysched/core/model"
)

// lockManager hands out one exclusive lock per key. Keys are acquired in a
// fixed global order so that callers never deadlock.
type lockManager struct {
	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

func newLockManager() *lockManager {
	return &lockManager{sems: map[string]*semaphore.Weighted{}}
}

func resourceKey(id string) string { return "r:" + id }
func dutyKey(id string) string     { return "d:" + id }

// lockKeys returns the sorted, deduplicated lock keys for the given resource
// and duty ids. Resource keys sort before duty keys.
func lockKeys(resources []string, duties []string) []string {
	seen := map[string]bool{}
	var rk, dk []string
	for _, id := range resources {
		if k := resourceKey(id); id != "" && !seen[k] {
			seen[k] = true
			rk = append(rk, k)
		}
	}
	for _, id := range duties {
		if k := dutyKey(id); id != "" && !seen[k] {
			seen[k] = true
			dk = append(dk, k)
		}
	}
	sort.Strings(rk)
	sort.Strings(dk)
	return append(rk, dk...)
}

func (m *lockManager) sem(key string) *semaphore.Weighted {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sems[key]
	if !ok {
		s = semaphore.NewWeighted(1)
		m.sems[key] = s
	}
	return s
}

// acquire locks keys in order within timeout. On failure every lock taken so
// far is released and AssignmentTimeoutError is returned, unless ctx itself
// ended, in which case its error is returned.
func (m *lockManager) acquire(ctx context.Context, timeout time.Duration, keys []string) (func(), error) {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	held := make([]*semaphore.Weighted, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Release(1)
		}
	}
	for _, k := range keys {
		s := m.sem(k)
		if err := s.Acquire(wctx, 1); err != nil {
			release()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &model.AssignmentTimeoutError{Keys: keys, Wait: timeout}
		}
		held = append(held, s)
	}
	return release, nil
}
