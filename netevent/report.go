// File: netevent/report.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package netevent

import (
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// reporter fans a dropped-datagram report out to the user callback and a
// rate-limited log line. A flooding peer must not be able to flood logs.
type reporter struct {
	fn         Reporter
	log        zerolog.Logger
	limit      *rate.Limiter
	suppressed atomic.Uint64
}

func newReporter(s *settings) *reporter {
	return &reporter{
		fn:    s.reporter,
		log:   s.log,
		limit: rate.NewLimiter(s.reportRate, s.reportBurst),
	}
}

func (r *reporter) report(socket string, err error) {
	if r.fn != nil {
		r.fn(err)
	}
	if !r.limit.Allow() {
		r.suppressed.Add(1)
		return
	}
	ev := r.log.Warn().Str("socket", socket).Err(err)
	if n := r.suppressed.Swap(0); n > 0 {
		ev = ev.Uint64("suppressed", n)
	}
	ev.Msg("event dropped")
}
