// Package routerinfo implements the relay's backend-aligned clock: the only
// clock consulted for token expiry and ping timestamps, deliberately never
// the host's wall clock.
package routerinfo

import (
	"sync"
	"time"
)

// Info tracks a backend timestamp plus a local monotonic offset from the
// instant it was last set, so CurrentTime advances in step with the host
// clock without ever reading it directly.
type Info struct {
	mu              sync.Mutex
	backendTimestamp uint64
	setAt           time.Time
}

// New returns an Info with backend_timestamp = 0 and its monotonic zero at
// construction time.
func New() *Info {
	return &Info{setAt: time.Now()}
}

// SetTimestamp atomically stores ts as the backend timestamp and resets the
// monotonic zero to now, called whenever a backend response arrives.
func (r *Info) SetTimestamp(ts uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backendTimestamp = ts
	r.setAt = time.Now()
}

// CurrentTime returns backend_timestamp + seconds elapsed since the last
// SetTimestamp call, as a fractional second count.
func (r *Info) CurrentTime() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return float64(r.backendTimestamp) + time.Since(r.setAt).Seconds()
}

// CurrentTimeSeconds is CurrentTime truncated to whole seconds, the form
// token expiry checks use.
func (r *Info) CurrentTimeSeconds() uint64 {
	return uint64(r.CurrentTime())
}
