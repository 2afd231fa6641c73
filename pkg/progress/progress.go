// Package progress logs throughput of long-running loops.
package progress

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/logger"
)

// Reporter counts processed units and periodically logs count, elapsed time
// and rate at debug level. Periodic reporting is disabled when the interval
// is not positive or the logger drops debug records; Inc then only bumps a
// counter. A Reporter is not safe for concurrent use.
type Reporter struct {
	ctx      context.Context
	logger   *slog.Logger
	what     string
	interval time.Duration
	periodic bool
	now      func() time.Time

	start     time.Time
	lastAt    time.Time
	lastCount int64
	count     int64
}

func New(ctx context.Context, l *slog.Logger, what string, interval time.Duration) *Reporter {
	if l == nil {
		l = slog.Default()
	}
	r := &Reporter{
		ctx:      ctx,
		logger:   l,
		what:     what,
		interval: interval,
		periodic: interval > 0 && logger.DebugEnabled(ctx, l),
		now:      time.Now,
	}
	r.start = r.now()
	r.lastAt = r.start
	return r
}

// Inc records one processed unit.
func (r *Reporter) Inc() {
	r.count++
	if !r.periodic {
		return
	}
	now := r.now()
	if now.Sub(r.lastAt) < r.interval {
		return
	}
	window := now.Sub(r.lastAt).Seconds()
	r.logger.DebugContext(r.ctx, "progress",
		"what", r.what,
		"processed", r.count,
		"elapsed", now.Sub(r.start).Round(time.Millisecond).String(),
		"rate_per_sec", rate(r.count-r.lastCount, window),
		"overall_rate_per_sec", rate(r.count, now.Sub(r.start).Seconds()),
	)
	r.lastAt = now
	r.lastCount = r.count
}

// Count returns the number of units recorded so far.
func (r *Reporter) Count() int64 { return r.count }

// Done logs the final totals at info level regardless of configuration.
func (r *Reporter) Done() {
	elapsed := r.now().Sub(r.start)
	r.logger.InfoContext(r.ctx, "progress complete",
		"what", r.what,
		"processed", r.count,
		"elapsed", elapsed.Round(time.Millisecond).String(),
		"rate_per_sec", rate(r.count, elapsed.Seconds()),
	)
}

func rate(n int64, seconds float64) float64 {
	if seconds <= 0 {
		return 0
	}
	return float64(n) / seconds
}
