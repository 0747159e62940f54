package service

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
)

type lineageSemaphore struct {
	sem  *semaphore.Weighted
	refs int
}

// LocalLineageLocker serializes lineages within one process. Entries are removed
// once no goroutine holds or waits for them.
type LocalLineageLocker struct {
	mu      sync.Mutex
	entries map[keysDomain.Lineage]*lineageSemaphore
}

// NewLocalLineageLocker creates a LocalLineageLocker.
func NewLocalLineageLocker() *LocalLineageLocker {
	return &LocalLineageLocker{entries: make(map[keysDomain.Lineage]*lineageSemaphore)}
}

func (l *LocalLineageLocker) Lock(ctx context.Context, lineage keysDomain.Lineage) (func(), error) {
	l.mu.Lock()
	entry, ok := l.entries[lineage]
	if !ok {
		entry = &lineageSemaphore{sem: semaphore.NewWeighted(1)}
		l.entries[lineage] = entry
	}
	entry.refs++
	l.mu.Unlock()

	if err := entry.sem.Acquire(ctx, 1); err != nil {
		l.release(lineage, entry)
		return nil, fmt.Errorf("%w: %w", keysDomain.ErrLockTimeout, err)
	}

	return sync.OnceFunc(func() {
		entry.sem.Release(1)
		l.release(lineage, entry)
	}), nil
}

func (l *LocalLineageLocker) release(lineage keysDomain.Lineage, entry *lineageSemaphore) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, lineage)
	}
}

// size returns the number of tracked lineages.
func (l *LocalLineageLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
