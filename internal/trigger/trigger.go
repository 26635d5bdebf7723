package trigger

import (
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Defaults for the hazard side effects.
const (
	DefaultCaptureCooldown    = 3 * time.Second
	DefaultRevealDelay        = 3 * time.Second
	DefaultFooterRestoreDelay = 5 * time.Second
	DefaultCapturePrefix      = "rip"
	DefaultFooterBaseText     = "Move the poster to reposition it."
	DefaultCaptureMessage     = "Screenshot captured!"

	captureTimeLayout = "20060102_150405"
)

// CaptureFilename returns "<prefix>_<yyyyMMdd_HHmmss>.png" for t.
func CaptureFilename(prefix string, t time.Time) string {
	return prefix + "_" + t.Format(captureTimeLayout) + ".png"
}

// Cooldown allows an action at most once per period. The first call is
// always allowed; later calls need strictly more than period to have passed.
type Cooldown struct {
	clock  clock.Clock
	period time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewCooldown creates a cooldown gate on clk.
func NewCooldown(clk clock.Clock, period time.Duration) *Cooldown {
	return &Cooldown{clock: clk, period: period}
}

// Allow reports whether the action may run now and, if so, records it.
func (c *Cooldown) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	if !c.last.IsZero() && now.Sub(c.last) <= c.period {
		return false
	}
	c.last = now
	return true
}

// OneShot runs a callback once, after a delay, the first time it is triggered.
type OneShot struct {
	clock clock.Clock
	delay time.Duration

	mu    sync.Mutex
	armed bool
	timer *clock.Timer
}

// NewOneShot creates an unarmed one-shot on clk.
func NewOneShot(clk clock.Clock, delay time.Duration) *OneShot {
	return &OneShot{clock: clk, delay: delay}
}

// Trigger schedules fn on the first call and ignores every later call.
// It returns true when fn was scheduled.
func (o *OneShot) Trigger(fn func()) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.armed {
		return false
	}
	o.armed = true
	o.timer = o.clock.AfterFunc(o.delay, fn)
	return true
}

// Armed reports whether Trigger has been called.
func (o *OneShot) Armed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.armed
}

// Stop cancels a pending callback. The one-shot stays armed.
func (o *OneShot) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.timer != nil {
		o.timer.Stop()
	}
}

// Footer shows a transient message under a base text and restores the base
// text after a delay. A new message replaces the pending restore.
type Footer struct {
	clock clock.Clock
	base  string
	delay time.Duration
	show  func(text string)

	mu    sync.Mutex
	gen   uint64
	timer *clock.Timer
}

// NewFooter creates a footer that writes through show. show may be called
// from a timer goroutine.
func NewFooter(clk clock.Clock, base string, delay time.Duration, show func(text string)) *Footer {
	return &Footer{clock: clk, base: base, delay: delay, show: show}
}

// Show displays base + "\n" + msg and schedules the restore.
func (f *Footer) Show(msg string) {
	if f.show == nil {
		return
	}
	f.mu.Lock()
	if f.timer != nil {
		f.timer.Stop()
	}
	f.gen++
	gen := f.gen
	f.timer = f.clock.AfterFunc(f.delay, func() { f.restore(gen) })
	f.mu.Unlock()

	f.show(f.base + "\n" + msg)
}

func (f *Footer) restore(gen uint64) {
	f.mu.Lock()
	stale := gen != f.gen
	f.mu.Unlock()
	if stale {
		return
	}
	f.show(f.base)
}

// Stop cancels a pending restore.
func (f *Footer) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timer != nil {
		f.timer.Stop()
	}
	f.gen++
}

// Config holds the hazard side-effect timing.
type Config struct {
	CaptureCooldown    time.Duration
	RevealDelay        time.Duration
	FooterRestoreDelay time.Duration
	FooterBaseText     string
	CapturePrefix      string
	CaptureMessage     string
}

// DefaultConfig returns the default hazard side-effect settings.
func DefaultConfig() Config {
	return Config{
		CaptureCooldown:    DefaultCaptureCooldown,
		RevealDelay:        DefaultRevealDelay,
		FooterRestoreDelay: DefaultFooterRestoreDelay,
		FooterBaseText:     DefaultFooterBaseText,
		CapturePrefix:      DefaultCapturePrefix,
		CaptureMessage:     DefaultCaptureMessage,
	}
}

// Actions are the external collaborators fired for hazards. Nil actions are
// skipped. Reveal and Footer may run on a timer goroutine.
type Actions struct {
	Capture func(frame image.Image, filename string)
	Reveal  func()
	Footer  func(text string)
}

// Hazard gates the capture and reveal side effects for hazard detections.
type Hazard struct {
	clock   clock.Clock
	cfg     Config
	actions Actions

	capture *Cooldown
	reveal  *OneShot
	footer  *Footer
}

// NewHazard wires the gates for cfg on clk.
func NewHazard(clk clock.Clock, cfg Config, actions Actions) *Hazard {
	if clk == nil {
		clk = clock.New()
	}
	return &Hazard{
		clock:   clk,
		cfg:     cfg,
		actions: actions,
		capture: NewCooldown(clk, cfg.CaptureCooldown),
		reveal:  NewOneShot(clk, cfg.RevealDelay),
		footer:  NewFooter(clk, cfg.FooterBaseText, cfg.FooterRestoreDelay, actions.Footer),
	}
}

// Result reports which side effects one Observe call started.
type Result struct {
	Captured    bool
	RevealArmed bool
	CaptureName string
}

// Observe is called once per kept hazard candidate. It never blocks on the
// actions beyond calling them.
func (h *Hazard) Observe(frame image.Image) Result {
	var res Result

	if h.actions.Capture != nil && h.capture.Allow() {
		res.Captured = true
		res.CaptureName = CaptureFilename(h.cfg.CapturePrefix, h.clock.Now())
		h.actions.Capture(frame, res.CaptureName)
		h.footer.Show(h.cfg.CaptureMessage)
		slog.Info("Hazard capture requested", "filename", res.CaptureName)
	}

	if h.actions.Reveal != nil && h.reveal.Trigger(h.actions.Reveal) {
		res.RevealArmed = true
		slog.Info("Hazard reveal scheduled", "delay", h.cfg.RevealDelay)
	}

	return res
}

// Footer returns the footer used for transient messages.
func (h *Hazard) Footer() *Footer {
	return h.footer
}

// Stop cancels pending timers.
func (h *Hazard) Stop() {
	h.reveal.Stop()
	h.footer.Stop()
}
