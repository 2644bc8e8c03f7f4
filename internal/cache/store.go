package cache

// Store defines the minimal key-value cache contract used by the post client.
// A miss (never stored, evicted or expired) is reported as ok == false, never as an error.
// Implementations must be safe for concurrent use by multiple goroutines.
type Store interface {
	Get(key string) (value []byte, ok bool)
	Put(key string, value []byte)
	Len() int
	Close() error
}
