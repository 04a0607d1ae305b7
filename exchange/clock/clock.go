// Package clock provides the engine's time source. All timestamps in the
// exchange are Unix milliseconds; trading-window decisions derive from
// the same source so tests can pin time.
package clock

import (
	"sync/atomic"
	"time"
)

// Clock yields monotonic millisecond timestamps.
type Clock interface {
	Now() int64
}

// System is the wall clock.
type System struct{}

func (System) Now() int64 { return time.Now().UnixMilli() }

// Manual is a test clock; Advance is safe for concurrent use.
type Manual struct {
	now atomic.Int64
}

// NewManual returns a manual clock pinned at now.
func NewManual(now int64) *Manual {
	m := &Manual{}
	m.now.Store(now)
	return m
}

func (m *Manual) Now() int64 { return m.now.Load() }

// Advance moves the clock forward by d milliseconds.
func (m *Manual) Advance(d int64) { m.now.Add(d) }

// Set pins the clock at now.
func (m *Manual) Set(now int64) { m.now.Store(now) }
