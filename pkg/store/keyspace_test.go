package store

import (
	"testing"
	"time"

	"github.com/emberkv/emberkv/pkg/resp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestKeyspace() (*Keyspace, *fakeClock) {
	c := &fakeClock{now: time.Unix(1000, 0)}
	return New(c), c
}

func TestGetMissingKey(t *testing.T) {
	k, _ := newTestKeyspace()
	_, ok := k.Get("missing")
	assert.False(t, ok)
}

func TestSetThenGet(t *testing.T) {
	k, _ := newTestKeyspace()
	k.Set("a", resp.StringOf("1"), nil)
	v, ok := k.Get("a")
	require.True(t, ok)
	assert.Equal(t, resp.StringOf("1"), v)
}

func TestSetWithExpirationSweepsAfterDeadline(t *testing.T) {
	k, clock := newTestKeyspace()
	ttl := 5 * time.Second
	k.Set("a", resp.StringOf("1"), &ttl)

	_, ok := k.Get("a")
	assert.True(t, ok)

	clock.advance(6 * time.Second)
	_, ok = k.Get("a")
	assert.False(t, ok, "key must be swept once its deadline has passed")
}

func TestSetWithoutExpireInPreservesExistingTTL(t *testing.T) {
	k, clock := newTestKeyspace()
	ttl := 5 * time.Second
	k.Set("a", resp.StringOf("1"), &ttl)
	k.Set("a", resp.StringOf("2"), nil)

	clock.advance(6 * time.Second)
	_, ok := k.Get("a")
	assert.False(t, ok, "the pre-existing expiration must still apply")
}

func TestClearExpiration(t *testing.T) {
	k, clock := newTestKeyspace()
	ttl := 5 * time.Second
	k.Set("a", resp.StringOf("1"), &ttl)
	k.ClearExpiration("a")

	clock.advance(10 * time.Second)
	_, ok := k.Get("a")
	assert.True(t, ok, "clearing expiration makes the key persist")
}

func TestDelCountsOnlyExistingKeys(t *testing.T) {
	k, _ := newTestKeyspace()
	k.Set("a", resp.StringOf("1"), nil)
	n := k.Del("a", "b")
	assert.Equal(t, int64(1), n)

	_, ok := k.Get("a")
	assert.False(t, ok)
}

func TestExists(t *testing.T) {
	k, _ := newTestKeyspace()
	k.Set("a", resp.StringOf("1"), nil)
	k.Set("b", resp.StringOf("2"), nil)
	assert.Equal(t, int64(2), k.Exists("a", "b", "c"))
}

func TestExistsSweepsExpired(t *testing.T) {
	k, clock := newTestKeyspace()
	ttl := time.Second
	k.Set("a", resp.StringOf("1"), &ttl)
	clock.advance(2 * time.Second)
	assert.Equal(t, int64(0), k.Exists("a"))
}

func TestTTLStates(t *testing.T) {
	k, clock := newTestKeyspace()
	assert.Equal(t, int64(-2), k.TTL("missing"))

	k.Set("persistent", resp.StringOf("1"), nil)
	assert.Equal(t, int64(-1), k.TTL("persistent"))

	ttl := 10 * time.Second
	k.Set("expiring", resp.StringOf("1"), &ttl)
	assert.Equal(t, int64(10), k.TTL("expiring"))

	clock.advance(4 * time.Second)
	assert.Equal(t, int64(6), k.TTL("expiring"))

	clock.advance(10 * time.Second)
	assert.Equal(t, int64(-2), k.TTL("expiring"))
}

func TestLen(t *testing.T) {
	k, _ := newTestKeyspace()
	assert.Equal(t, 0, k.Len())
	k.Set("a", resp.StringOf("1"), nil)
	k.Set("b", resp.StringOf("2"), nil)
	assert.Equal(t, 2, k.Len())
}
