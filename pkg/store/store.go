// ABOUTME: Minimal adapter interface over the ordered key-value engine
// ABOUTME: Point get/put plus ascending prefix iteration; no delete, no batch

package store

// Store is the surface the engines consume from the underlying ordered
// byte-keyed engine. Implementations must provide atomic single-key get/put
// and iteration in ascending byte order. Retry policy, batching and caching
// belong to the implementation, not to callers.
type Store interface {
	// Get returns the value for key, or ok=false if the key is absent.
	Get(key []byte) (value []byte, ok bool, err error)

	// Put stores value under key, overwriting any previous value.
	Put(key, value []byte) error

	// IteratePrefix visits every key with the given prefix in ascending
	// byte order. A non-nil error from fn aborts the iteration and is
	// returned unchanged.
	IteratePrefix(prefix []byte, fn func(key, value []byte) error) error

	// Close releases the underlying engine resources.
	Close() error
}
