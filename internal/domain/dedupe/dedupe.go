// Package dedupe tracks single-use values such as OAuth authorization codes
// so a replayed value is recognised and rejected.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Defaults for NewInMemoryDeduper.
const (
	DefaultMaxSize = 1024
	DefaultTTL     = 10 * time.Minute
)

// Deduper records seen IDs to ensure each is accepted at most once.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so it may be accepted again.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

type entry struct {
	id       string
	recorded time.Time
}

// inMemoryDeduper keeps IDs in insertion order. Entries older than ttl are
// dropped lazily, and the oldest entry is evicted once maxSize is reached.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	size    atomic.Int64
}

// NewInMemoryDeduper creates a bounded in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: DefaultMaxSize,
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

// SeenAndRecord reports whether id was recorded within the ttl, recording
// it when it was not.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.expire(now)

	if _, ok := d.seen[id]; ok {
		return true
	}

	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		d.remove(d.order.Front())
	}
	d.seen[id] = d.order.PushBack(entry{id: id, recorded: now})
	d.size.Store(int64(d.order.Len()))
	return false
}

// Unrecord removes id if present.
func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[id]; ok {
		d.remove(el)
	}
}

// Size returns the current number of entries.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}

// expire drops entries older than ttl. Must be called with d.mu held.
func (d *inMemoryDeduper) expire(now time.Time) {
	if d.ttl <= 0 {
		return
	}
	for el := d.order.Front(); el != nil; el = d.order.Front() {
		if now.Sub(el.Value.(entry).recorded) < d.ttl {
			return
		}
		d.remove(el)
	}
}

// remove must be called with d.mu held.
func (d *inMemoryDeduper) remove(el *list.Element) {
	if el == nil {
		return
	}
	delete(d.seen, el.Value.(entry).id)
	d.order.Remove(el)
	d.size.Store(int64(d.order.Len()))
}
