package store

import (
	"sync"
	"time"

	"github.com/emberkv/emberkv/pkg/resp"
)

// Keyspace is the single in-memory map of live keys to RESP values, with a
// side index of per-key expiration deadlines. Expiration is lazy: a key
// past its deadline is not reaped by a background sweep, it is simply
// treated as absent (and removed) the next time it is looked up.
//
// The architecture this is built for (spec.md's single-threaded event loop)
// needs no locking at all. This type carries one anyway, grounded in the
// teacher's own example server (example/memory_kv/server.go), which guards
// its equivalent map with a sync.RWMutex because the event loop it runs
// under (gnet) can be configured multicore. The mutex costs nothing in the
// single-core default and saves the multicore option from a data race.
type Keyspace struct {
	mu       sync.Mutex
	clock    Clock
	values   map[string]resp.Value
	expiries map[string]time.Time
}

// New builds an empty Keyspace using clock to evaluate expirations.
func New(clock Clock) *Keyspace {
	return &Keyspace{
		clock:    clock,
		values:   make(map[string]resp.Value),
		expiries: make(map[string]time.Time),
	}
}

// expiredLocked reports whether key has an expiration deadline that has
// passed. Caller must hold mu.
func (k *Keyspace) expiredLocked(key string) bool {
	deadline, ok := k.expiries[key]
	return ok && !k.clock.Now().Before(deadline)
}

// sweepLocked removes key from both maps if it has expired. Caller must
// hold mu. Returns whether the key was removed.
func (k *Keyspace) sweepLocked(key string) bool {
	if !k.expiredLocked(key) {
		return false
	}
	delete(k.values, key)
	delete(k.expiries, key)
	return true
}

// Get looks up key, sweeping it first if its deadline has passed.
func (k *Keyspace) Get(key string) (resp.Value, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.sweepLocked(key)
	v, ok := k.values[key]
	return v, ok
}

// Set stores v under key. If expireIn is non-nil, it replaces any existing
// expiration with one expireIn from now. If expireIn is nil, an existing
// expiration on key is left untouched — SET does not implicitly clear TTL
// unless the caller asks it to (see DESIGN.md for this Open Question's
// resolution). A key whose deadline has already passed is swept first, so
// that stale deadline never carries over to the new value.
func (k *Keyspace) Set(key string, v resp.Value, expireIn *time.Duration) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.sweepLocked(key)
	k.values[key] = v
	if expireIn != nil {
		k.expiries[key] = k.clock.Now().Add(*expireIn)
	}
}

// ClearExpiration drops any expiration deadline on key, making it persist
// forever until explicitly overwritten or deleted.
func (k *Keyspace) ClearExpiration(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.expiries, key)
}

// Del removes the given keys, sweeping each first, and returns how many of
// them existed (post-sweep) prior to removal.
func (k *Keyspace) Del(keys ...string) int64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	var removed int64
	for _, key := range keys {
		k.sweepLocked(key)
		if _, ok := k.values[key]; ok {
			delete(k.values, key)
			delete(k.expiries, key)
			removed++
		}
	}
	return removed
}

// Exists returns the count of the given keys currently present, after
// sweeping each for expiration.
func (k *Keyspace) Exists(keys ...string) int64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	var count int64
	for _, key := range keys {
		k.sweepLocked(key)
		if _, ok := k.values[key]; ok {
			count++
		}
	}
	return count
}

// TTL reports the remaining seconds to live for key: -2 if the key does not
// exist (after sweeping), -1 if it exists with no expiration, otherwise the
// remaining whole seconds (rounded up so a key with any time left never
// reports 0).
func (k *Keyspace) TTL(key string) int64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.sweepLocked(key)
	if _, ok := k.values[key]; !ok {
		return -2
	}
	deadline, ok := k.expiries[key]
	if !ok {
		return -1
	}
	remaining := deadline.Sub(k.clock.Now())
	if remaining <= 0 {
		return -2
	}
	secs := int64(remaining / time.Second)
	if remaining%time.Second != 0 {
		secs++
	}
	return secs
}

// Len returns the number of live keys, without sweeping — an O(1)
// approximation that may still count since-expired keys until they are
// next looked up.
func (k *Keyspace) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.values)
}
