package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives frame progress during Run. total is 0 when the
// source length is unknown.
type ProgressCallback interface {
	OnStart(total int)
	OnProgress(current, total int)
	OnComplete()
	OnError(current int, err error)
}

// NoOpProgressCallback implements ProgressCallback but does nothing.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(total int)              {}
func (NoOpProgressCallback) OnProgress(current, total int)  {}
func (NoOpProgressCallback) OnComplete()                    {}
func (NoOpProgressCallback) OnError(current int, err error) {}

// ConsoleProgressCallback prints a single updating status line.
type ConsoleProgressCallback struct {
	writer         io.Writer
	prefix         string
	width          int
	updateInterval time.Duration

	mutex      sync.Mutex
	startTime  time.Time
	lastUpdate time.Time
	errors     int
}

// NewConsoleProgressCallback creates a console reporter. A nil writer
// means os.Stderr.
func NewConsoleProgressCallback(writer io.Writer, prefix string) *ConsoleProgressCallback {
	if writer == nil {
		writer = os.Stderr
	}
	return &ConsoleProgressCallback{
		writer:         writer,
		prefix:         prefix,
		width:          40,
		updateInterval: 100 * time.Millisecond,
	}
}

// WithWidth sets the progress bar width.
func (c *ConsoleProgressCallback) WithWidth(width int) *ConsoleProgressCallback {
	c.width = width
	return c
}

// WithUpdateInterval sets how frequently the line is redrawn.
func (c *ConsoleProgressCallback) WithUpdateInterval(interval time.Duration) *ConsoleProgressCallback {
	c.updateInterval = interval
	return c
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.startTime = time.Now()
	c.lastUpdate = time.Time{}
	c.errors = 0
	if total > 0 {
		_, _ = fmt.Fprintf(c.writer, "%s0/%d frames\n", c.prefix, total)
		return
	}
	_, _ = fmt.Fprintf(c.writer, "%sstreaming frames\n", c.prefix)
}

func (c *ConsoleProgressCallback) OnProgress(current, total int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	if now.Sub(c.lastUpdate) < c.updateInterval && (total == 0 || current < total) {
		return
	}
	c.lastUpdate = now
	c.draw(current, total, now)
}

func (c *ConsoleProgressCallback) OnComplete() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	elapsed := time.Since(c.startTime)
	_, _ = fmt.Fprintf(c.writer, "\n%sCompleted in %v (%d frame errors)\n", c.prefix, elapsed.Round(time.Millisecond), c.errors)
}

func (c *ConsoleProgressCallback) OnError(current int, err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.errors++
	_, _ = fmt.Fprintf(c.writer, "\n%sError at frame %d: %v\n", c.prefix, current, err)
}

func (c *ConsoleProgressCallback) draw(current, total int, now time.Time) {
	var status string
	if total > 0 {
		filled := c.width * min(current, total) / total
		bar := strings.Repeat("#", filled) + strings.Repeat("-", c.width-filled)
		status = fmt.Sprintf("\r%s[%s] %d/%d", c.prefix, bar, current, total)
	} else {
		status = fmt.Sprintf("\r%s%d frames", c.prefix, current)
	}
	if elapsed := now.Sub(c.startTime); elapsed > 0 && current > 0 {
		status += fmt.Sprintf(" %.1f fps", float64(current)/elapsed.Seconds())
	}
	_, _ = fmt.Fprint(c.writer, status)
}

// LogProgressCallback logs progress every interval frames using slog.
type LogProgressCallback struct {
	logger    *slog.Logger
	level     slog.Level
	prefix    string
	interval  int
	lastLog   int
	startTime time.Time
}

// NewLogProgressCallback creates a log-based reporter. A nil logger means
// slog.Default().
func NewLogProgressCallback(logger *slog.Logger, level slog.Level, prefix string) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgressCallback{
		logger:   logger,
		level:    level,
		prefix:   prefix,
		interval: 100,
	}
}

// WithInterval sets how frequently to log progress (every N frames).
func (l *LogProgressCallback) WithInterval(interval int) *LogProgressCallback {
	l.interval = interval
	return l
}

func (l *LogProgressCallback) OnStart(total int) {
	l.startTime = time.Now()
	l.lastLog = 0
	l.logger.Log(nil, l.level, l.prefix+"Replay started", "total", total)
}

func (l *LogProgressCallback) OnProgress(current, total int) {
	if current-l.lastLog < l.interval && current != total {
		return
	}
	l.lastLog = current
	elapsed := time.Since(l.startTime)
	l.logger.Log(nil, l.level, l.prefix+"Replay progress",
		"current", current,
		"total", total,
		"fps", fmt.Sprintf("%.1f", float64(current)/elapsed.Seconds()),
		"elapsed", elapsed.Round(time.Millisecond),
	)
}

func (l *LogProgressCallback) OnComplete() {
	l.logger.Log(nil, l.level, l.prefix+"Replay completed", "elapsed", time.Since(l.startTime).Round(time.Millisecond))
}

func (l *LogProgressCallback) OnError(current int, err error) {
	l.logger.Log(nil, slog.LevelError, l.prefix+"Frame error", "current", current, "error", err)
}

// MultiProgressCallback fans out to several callbacks.
type MultiProgressCallback struct {
	callbacks []ProgressCallback
}

// NewMultiProgressCallback creates a progress callback that reports to multiple callbacks.
func NewMultiProgressCallback(callbacks ...ProgressCallback) *MultiProgressCallback {
	return &MultiProgressCallback{callbacks: callbacks}
}

// Add adds another progress callback.
func (m *MultiProgressCallback) Add(callback ProgressCallback) {
	m.callbacks = append(m.callbacks, callback)
}

func (m *MultiProgressCallback) OnStart(total int) {
	for _, cb := range m.callbacks {
		cb.OnStart(total)
	}
}

func (m *MultiProgressCallback) OnProgress(current, total int) {
	for _, cb := range m.callbacks {
		cb.OnProgress(current, total)
	}
}

func (m *MultiProgressCallback) OnComplete() {
	for _, cb := range m.callbacks {
		cb.OnComplete()
	}
}

func (m *MultiProgressCallback) OnError(current int, err error) {
	for _, cb := range m.callbacks {
		cb.OnError(current, err)
	}
}

// FrameTracker accumulates per-run counters. It implements ProgressCallback
// so it can be combined with the reporters above.
type FrameTracker struct {
	mutex     sync.RWMutex
	startTime time.Time
	total     int
	current   int
	failed    int
}

// NewFrameTracker creates an empty tracker.
func NewFrameTracker() *FrameTracker {
	return &FrameTracker{}
}

func (ft *FrameTracker) OnStart(total int) {
	ft.mutex.Lock()
	defer ft.mutex.Unlock()
	ft.startTime = time.Now()
	ft.total = total
	ft.current = 0
	ft.failed = 0
}

func (ft *FrameTracker) OnProgress(current, total int) {
	ft.mutex.Lock()
	defer ft.mutex.Unlock()
	ft.current = current
	ft.total = total
}

func (ft *FrameTracker) OnComplete() {}

func (ft *FrameTracker) OnError(current int, err error) {
	ft.mutex.Lock()
	defer ft.mutex.Unlock()
	ft.failed++
}

// Counts returns the frames processed, the frames that failed and the
// expected total.
func (ft *FrameTracker) Counts() (current, failed, total int) {
	ft.mutex.RLock()
	defer ft.mutex.RUnlock()
	return ft.current, ft.failed, ft.total
}

// PercentComplete returns the completion percentage, or 0 for unknown totals.
func (ft *FrameTracker) PercentComplete() float64 {
	ft.mutex.RLock()
	defer ft.mutex.RUnlock()
	if ft.total == 0 {
		return 0
	}
	return float64(ft.current) / float64(ft.total) * 100.0
}
