package detector

import (
	"log/slog"

	"github.com/chewxy/math32"
)

// StabilizerConfig tunes the class hysteresis filter.
type StabilizerConfig struct {
	SwitchThreshold float32 // |logit| below which a class change is ignored
	GCInterval      int     // frames between table size checks
	MaxEntries      int     // table size that triggers eviction
	EvictCount      int     // oldest entries removed per eviction
}

// DefaultStabilizerConfig returns the default hysteresis settings.
func DefaultStabilizerConfig() StabilizerConfig {
	return StabilizerConfig{
		SwitchThreshold: 0.0005,
		GCInterval:      30,
		MaxEntries:      100,
		EvictCount:      50,
	}
}

// Stabilizer suppresses single-frame class flips for candidates that occupy
// the same tensor slot across frames. It is not safe for concurrent use.
type Stabilizer struct {
	cfg     StabilizerConfig
	classes map[uint32]uint32
	order   []uint32 // slot ids in insertion order
	frames  int
}

// NewStabilizer creates an empty stabilizer.
func NewStabilizer(cfg StabilizerConfig) *Stabilizer {
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = DefaultStabilizerConfig().GCInterval
	}
	return &Stabilizer{
		cfg:     cfg,
		classes: make(map[uint32]uint32),
	}
}

// Stabilize resolves the class of c in place and records it for c.SlotID.
// It returns true when the prior class was kept over the new decision.
func (s *Stabilizer) Stabilize(c *RawCandidate) bool {
	overridden := false
	prev, seen := s.classes[c.SlotID]
	if seen && prev != c.ClassID && math32.Abs(c.ClassLogit) < s.cfg.SwitchThreshold {
		c.ClassID = prev
		overridden = true
	}
	if !seen {
		s.order = append(s.order, c.SlotID)
	}
	s.classes[c.SlotID] = c.ClassID
	return overridden
}

// StabilizeAll runs Stabilize over every candidate and returns the number of
// overridden decisions.
func (s *Stabilizer) StabilizeAll(cands []RawCandidate) int {
	n := 0
	for i := range cands {
		if s.Stabilize(&cands[i]) {
			n++
		}
	}
	return n
}

// EndFrame advances the frame counter and evicts the oldest entries when the
// table has grown past MaxEntries on a GC frame. It returns the number of
// evicted entries.
func (s *Stabilizer) EndFrame() int {
	s.frames++
	if s.frames%s.cfg.GCInterval != 0 || len(s.classes) <= s.cfg.MaxEntries {
		return 0
	}

	n := min(s.cfg.EvictCount, len(s.order))
	for _, slot := range s.order[:n] {
		delete(s.classes, slot)
	}
	s.order = append(s.order[:0:0], s.order[n:]...)

	slog.Debug("Evicted class assignments", "evicted", n, "remaining", len(s.classes))
	return n
}

// Class returns the recorded class for a slot.
func (s *Stabilizer) Class(slot uint32) (uint32, bool) {
	c, ok := s.classes[slot]
	return c, ok
}

// Len returns the number of tracked slots.
func (s *Stabilizer) Len() int {
	return len(s.classes)
}

// Reset clears all assignments and the frame counter.
func (s *Stabilizer) Reset() {
	clear(s.classes)
	s.order = s.order[:0]
	s.frames = 0
}
