package pipeline

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"
)

// logThrottle runs a log call for the first occurrence of a key and then at
// most once per interval of the pipeline clock, reporting how many calls
// were skipped in between.
type logThrottle struct {
	clock    clock.Clock
	interval time.Duration

	mu      sync.Mutex
	entries map[string]*throttleEntry
}

type throttleEntry struct {
	limiter    *rate.Limiter
	suppressed int
}

func newLogThrottle(clk clock.Clock, interval time.Duration) *logThrottle {
	if clk == nil {
		clk = clock.New()
	}
	if interval <= 0 {
		interval = DefaultErrorLogInterval
	}
	return &logThrottle{clock: clk, interval: interval, entries: make(map[string]*throttleEntry)}
}

// Do calls fn with the number of suppressed calls since the last run, or
// skips it. It reports whether fn ran.
func (t *logThrottle) Do(key string, fn func(suppressed int)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok {
		e = &throttleEntry{limiter: rate.NewLimiter(rate.Every(t.interval), 1)}
		t.entries[key] = e
	}

	if !e.limiter.AllowN(t.clock.Now(), 1) {
		e.suppressed++
		return false
	}
	fn(e.suppressed)
	e.suppressed = 0
	return true
}
