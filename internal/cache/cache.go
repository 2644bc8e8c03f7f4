package cache

import (
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	DefaultCapacity           = 4
	DefaultSlidingExpiration  = 300 * time.Second
	DefaultAbsoluteExpiration = 60 * time.Minute
)

// Options configures a Bounded cache. Zero values select the defaults.
type Options struct {
	// Capacity is the maximum number of entries held at once.
	Capacity int
	// SlidingExpiration is reset every time an entry is read.
	SlidingExpiration time.Duration
	// AbsoluteExpiration is measured from insertion and never reset.
	AbsoluteExpiration time.Duration
	// OnEvict, if set, is called with the key of every entry dropped to make room.
	OnEvict func(key string)
}

type entry struct {
	value      []byte
	insertedAt time.Time
	lastAccess time.Time
}

// Bounded is a fixed-capacity in-memory cache. Eviction is first-in first-out by
// insertion order; an entry is absent once either its sliding or its absolute
// window has elapsed. It is safe for concurrent use by multiple goroutines.
type Bounded struct {
	mu       sync.Mutex
	items    *orderedmap.OrderedMap[string, *entry] // oldest insertion first
	capacity int
	sliding  time.Duration
	absolute time.Duration
	onEvict  func(string)
	closed   bool
	now      func() time.Time
}

var _ Store = (*Bounded)(nil)

// NewBounded creates an empty cache.
func NewBounded(opts Options) *Bounded {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.SlidingExpiration <= 0 {
		opts.SlidingExpiration = DefaultSlidingExpiration
	}
	if opts.AbsoluteExpiration <= 0 {
		opts.AbsoluteExpiration = DefaultAbsoluteExpiration
	}
	return &Bounded{
		items:    orderedmap.New[string, *entry](opts.Capacity),
		capacity: opts.Capacity,
		sliding:  opts.SlidingExpiration,
		absolute: opts.AbsoluteExpiration,
		onEvict:  opts.OnEvict,
		now:      time.Now,
	}
}

// Get returns the cached value and resets its sliding window.
// Expired entries are removed on the way out.
func (c *Bounded) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, false
	}
	e, ok := c.items.Get(key)
	if !ok {
		return nil, false
	}
	now := c.now()
	if c.expired(e, now) {
		c.items.Delete(key)
		return nil, false
	}
	e.lastAccess = now
	return e.value, true
}

// Put stores value under key with both windows starting now. When the cache is
// full the oldest insertion is evicted first, whether or not it has expired.
// Re-inserting an existing key moves it to the back of the eviction order.
func (c *Bounded) Put(key string, value []byte) {
	var evicted []string
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	// Set keeps an existing key in place, so drop it first to move it to the back.
	c.items.Delete(key)
	for c.items.Len() >= c.capacity {
		oldest := c.items.Oldest()
		c.items.Delete(oldest.Key)
		evicted = append(evicted, oldest.Key)
	}
	now := c.now()
	c.items.Set(key, &entry{
		value:      value,
		insertedAt: now,
		lastAccess: now,
	})
	onEvict := c.onEvict
	c.mu.Unlock()

	if onEvict != nil {
		for _, k := range evicted {
			onEvict(k)
		}
	}
}

// Len reports the number of stored entries, including expired ones that have
// not been touched since they lapsed.
func (c *Bounded) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Len()
}

// Close drops every entry. Further calls are no-ops and the cache stays empty.
func (c *Bounded) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.items = orderedmap.New[string, *entry]()
	return nil
}

func (c *Bounded) expired(e *entry, now time.Time) bool {
	return now.Sub(e.lastAccess) >= c.sliding || now.Sub(e.insertedAt) >= c.absolute
}
