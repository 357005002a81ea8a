package cache

import (
	"time"

	"go.uber.org/zap"
)

// Txn is an optimistic write against one key. It holds a snapshot of the key
// taken when it began; Rollback puts that snapshot's value back exactly,
// including the key being absent. If the key was invalidated after the
// snapshot was taken, the restored value is stale. Commit and Rollback are
// idempotent and only the first of them has an effect.
type Txn[T any] struct {
	c             *Cache
	key           Key
	sk            string
	epoch         uint64
	invalidations uint64
	snapshot      *entry
	done          bool
}

// BeginOptimistic snapshots key and supersedes its in-flight fetches so a
// late response cannot overwrite the optimistic value.
func BeginOptimistic[T any](c *Cache, key Key) *Txn[T] {
	sk := storeKey(key)
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.metaLocked(sk)
	m.txns++
	t := &Txn[T]{c: c, key: key, sk: sk, epoch: c.epoch, invalidations: m.invalidations}
	if e, ok := c.entries.Peek(sk); ok {
		snapshot := *e
		t.snapshot = &snapshot
	}
	c.bumpLocked(sk)

	c.logger.Debug("Began optimistic update",
		zap.String("key", key.String()),
		zap.Bool("had_value", t.snapshot != nil && t.snapshot.hasValue))
	return t
}

// Current returns the value stored for the key right now
func (t *Txn[T]) Current() (T, bool) {
	return Peek[T](t.c, t.key)
}

// Apply stores value as the key's fresh data. It returns false once the
// transaction has finished or the cache was cleared since it began.
func (t *Txn[T]) Apply(value T) bool {
	c := t.c
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.done || c.epoch != t.epoch {
		return false
	}

	var staleTime time.Duration
	if t.snapshot != nil {
		staleTime = t.snapshot.staleTime
	}
	c.bumpLocked(t.sk)
	c.entries.Add(t.sk, &entry{
		key:       t.key,
		value:     value,
		hasValue:  true,
		updatedAt: c.now(),
		staleTime: staleTime,
	})
	return true
}

// Commit keeps the applied value
func (t *Txn[T]) Commit() {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.done {
		return
	}
	t.done = true
	t.finishLocked()
}

// Rollback restores the snapshot. After a Clear it does nothing, so a
// rollback can never resurrect data from before a logout.
func (t *Txn[T]) Rollback() {
	c := t.c
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.done {
		return
	}
	t.done = true
	defer t.finishLocked()
	if c.epoch != t.epoch {
		return
	}

	m := c.metaLocked(t.sk)
	invalidated := m.invalidations != t.invalidations
	c.bumpLocked(t.sk)
	if t.snapshot == nil {
		c.entries.Remove(t.sk)
	} else {
		snapshot := *t.snapshot
		snapshot.invalidated = snapshot.invalidated || invalidated
		c.entries.Add(t.sk, &snapshot)
	}
	c.logger.Debug("Rolled back optimistic update",
		zap.String("key", t.key.String()),
		zap.Bool("invalidated_since_begin", invalidated))
}

func (t *Txn[T]) finishLocked() {
	if m, ok := t.c.meta[t.sk]; ok {
		m.txns--
		t.c.pruneLocked(t.sk)
	}
}
