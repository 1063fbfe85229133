// Package store implements the expiring keyspace: the map of live keys to
// RESP values, plus the lazy-expiration side index of per-key deadlines.
package store

import "time"

// Clock abstracts the passage of time so expiration logic can be tested
// without sleeping. realClock is what production wiring uses; tests inject
// a fake that they advance explicitly.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock is the production Clock backed by the monotonic system clock.
var RealClock Clock = realClock{}
