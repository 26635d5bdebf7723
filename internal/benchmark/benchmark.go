// Package benchmark times the frame pipeline stages on synthetic detector
// output.
package benchmark

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/MeKo-Tech/ripwatch/internal/detector"
	"github.com/MeKo-Tech/ripwatch/internal/display"
	"github.com/MeKo-Tech/ripwatch/internal/overlay"
	"github.com/MeKo-Tech/ripwatch/internal/pipeline"
	"github.com/MeKo-Tech/ripwatch/internal/tensor"
	"github.com/MeKo-Tech/ripwatch/internal/tensor/mock"
)

// Timer provides simple timing utilities for benchmarking.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewTimer creates a new timer with the given name.
func NewTimer(name string) *Timer {
	return &Timer{
		name:  name,
		start: time.Now(),
	}
}

// Stop stops the timer and returns the elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// String returns a formatted string representation of the timer.
func (t *Timer) String() string {
	return fmt.Sprintf("%s: %v", t.name, t.duration)
}

// MemoryStats holds memory usage statistics.
type MemoryStats struct {
	AllocBytes      uint64  `json:"alloc_bytes"`
	TotalAllocBytes uint64  `json:"total_alloc_bytes"`
	Mallocs         uint64  `json:"mallocs"`
	NumGC           uint32  `json:"num_gc"`
	GCCPUFraction   float64 `json:"gc_cpu_fraction"`
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return MemoryStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		Mallocs:         m.Mallocs,
		NumGC:           m.NumGC,
		GCCPUFraction:   m.GCCPUFraction,
	}
}

// String returns a formatted string representation of memory stats.
func (m MemoryStats) String() string {
	return fmt.Sprintf("Alloc: %d KB, Total: %d KB, GC: %d (%.2f%% CPU)",
		m.AllocBytes/1024,
		m.TotalAllocBytes/1024,
		m.NumGC,
		m.GCCPUFraction*100)
}

// Result holds the result of a benchmark run.
type Result struct {
	Name         string        `json:"name"`
	Iterations   int           `json:"iterations"`
	Duration     time.Duration `json:"duration_ns"`
	P50          time.Duration `json:"p50_ns"`
	P95          time.Duration `json:"p95_ns"`
	Max          time.Duration `json:"max_ns"`
	AllocsPerOp  uint64        `json:"allocs_per_op"`
	BytesPerOp   uint64        `json:"bytes_per_op"`
	MemoryBefore MemoryStats   `json:"-"`
	MemoryAfter  MemoryStats   `json:"-"`
	Error        error         `json:"-"`
	Err          string        `json:"error,omitempty"`
}

// Average returns the mean duration per iteration.
func (r Result) Average() time.Duration {
	if r.Iterations == 0 {
		return 0
	}
	return r.Duration / time.Duration(r.Iterations)
}

// String returns a formatted string representation of the benchmark result.
func (r Result) String() string {
	if r.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Error)
	}
	return fmt.Sprintf("%s: %d iterations, avg: %v, p50: %v, p95: %v, max: %v, %d allocs/op, %d B/op",
		r.Name, r.Iterations, r.Average(), r.P50, r.P95, r.Max, r.AllocsPerOp, r.BytesPerOp)
}

// Benchmark represents a benchmark function.
type Benchmark struct {
	Name string
	Func func() error
}

// Suite manages multiple benchmarks.
type Suite struct {
	benchmarks []Benchmark
	results    []Result
	mu         sync.Mutex
}

// NewSuite creates a new benchmark suite.
func NewSuite() *Suite {
	return &Suite{}
}

// Add adds a benchmark to the suite.
func (s *Suite) Add(name string, fn func() error) {
	s.benchmarks = append(s.benchmarks, Benchmark{Name: name, Func: fn})
}

// Names returns the registered benchmark names in order.
func (s *Suite) Names() []string {
	names := make([]string, len(s.benchmarks))
	for i, b := range s.benchmarks {
		names[i] = b.Name
	}
	return names
}

// Run runs a single benchmark with the specified number of iterations.
func (s *Suite) Run(name string, iterations int) Result {
	for _, b := range s.benchmarks {
		if b.Name == name {
			return runBenchmark(b, iterations)
		}
	}
	err := fmt.Errorf("benchmark '%s' not found", name)
	return Result{Name: name, Error: err, Err: err.Error()}
}

// RunAll runs all benchmarks in the suite.
func (s *Suite) RunAll(iterations int) []Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = make([]Result, 0, len(s.benchmarks))
	for _, b := range s.benchmarks {
		s.results = append(s.results, runBenchmark(b, iterations))
	}
	return s.results
}

// Results returns the last run results.
func (s *Suite) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

// PrintResults writes formatted benchmark results to w.
func (s *Suite) PrintResults(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Benchmark Results:")
	_, _ = fmt.Fprintln(w, "==================")
	for _, r := range s.Results() {
		_, _ = fmt.Fprintln(w, r.String())
	}
}

func runBenchmark(b Benchmark, iterations int) Result {
	if iterations < 1 {
		iterations = 1
	}
	samples := make([]time.Duration, 0, iterations)

	// Force garbage collection before measuring
	runtime.GC()
	memBefore := GetMemoryStats()

	timer := NewTimer(b.Name)
	var err error
	for range iterations {
		start := time.Now()
		if e := b.Func(); e != nil {
			err = e
			break
		}
		samples = append(samples, time.Since(start))
	}
	duration := timer.Stop()
	memAfter := GetMemoryStats()

	res := Result{
		Name:         b.Name,
		Iterations:   len(samples),
		Duration:     duration,
		MemoryBefore: memBefore,
		MemoryAfter:  memAfter,
		Error:        err,
	}
	if err != nil {
		res.Err = err.Error()
	}
	if n := uint64(len(samples)); n > 0 {
		res.AllocsPerOp = (memAfter.Mallocs - memBefore.Mallocs) / n
		res.BytesPerOp = (memAfter.TotalAllocBytes - memBefore.TotalAllocBytes) / n
	}
	res.P50, res.P95, res.Max = percentiles(samples)
	return res
}

func percentiles(samples []time.Duration) (p50, p95, maxD time.Duration) {
	if len(samples) == 0 {
		return 0, 0, 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	at := func(q float64) time.Duration {
		return sorted[int(q*float64(len(sorted)-1))]
	}
	return at(0.5), at(0.95), sorted[len(sorted)-1]
}

// Workload describes the synthetic frames fed to the stage benchmarks.
type Workload struct {
	Channels   int
	Candidates int
	// Frames is the number of distinct tensors cycled through.
	Frames  int
	Input   display.Size
	Display display.Size
	Seed    int64
}

// DefaultWorkload returns a 6-channel workload at a typical model size.
func DefaultWorkload() Workload {
	return Workload{
		Channels:   6,
		Candidates: 100,
		Frames:     16,
		Input:      display.Size{Width: 640, Height: 640},
		Display:    display.Size{Width: 1280, Height: 720},
		Seed:       1,
	}
}

// PipelineBenchmark registers one benchmark per pipeline stage.
type PipelineBenchmark struct {
	*Suite
	workload Workload
	tensors  []tensor.Tensor
	pipeline *pipeline.Pipeline
}

// NewPipelineBenchmark builds the stage benchmarks for w.
func NewPipelineBenchmark(w Workload) (*PipelineBenchmark, error) {
	if _, err := detector.FormatFor(w.Channels); err != nil {
		return nil, err
	}
	if w.Frames < 1 {
		w.Frames = 1
	}
	if !w.Input.Valid() || !w.Display.Valid() {
		return nil, fmt.Errorf("invalid workload sizes: input %vx%v display %vx%v",
			w.Input.Width, w.Input.Height, w.Display.Width, w.Display.Height)
	}

	rng := rand.New(rand.NewSource(w.Seed)) //nolint:gosec // G404: synthetic workload
	pb := &PipelineBenchmark{Suite: NewSuite(), workload: w}
	for range w.Frames {
		pb.tensors = append(pb.tensors, mock.Random(rng, w.Channels, w.Candidates, w.Input.Width, w.Input.Height))
	}

	if err := pb.register(); err != nil {
		return nil, err
	}
	return pb, nil
}

func (pb *PipelineBenchmark) register() error {
	w := pb.workload
	decoder := detector.NewDecoder(detector.DefaultThresholds())

	// Candidates are decoded once so later stages time only themselves.
	decoded := make([][]detector.RawCandidate, len(pb.tensors))
	for i, t := range pb.tensors {
		_, cands, err := decoder.Decode(t, w.Input.Width, w.Input.Height)
		if err != nil {
			return err
		}
		decoded[i] = cands
	}

	var next int
	cycle := func() int {
		i := next % len(pb.tensors)
		next++
		return i
	}

	pb.Add("Decode", func() error {
		_, _, err := decoder.Decode(pb.tensors[cycle()], w.Input.Width, w.Input.Height)
		return err
	})

	stab := detector.NewStabilizer(detector.DefaultStabilizerConfig())
	scratch := make([]detector.RawCandidate, 0, w.Candidates)
	pb.Add("Stabilize", func() error {
		scratch = append(scratch[:0], decoded[cycle()]...)
		stab.StabilizeAll(scratch)
		stab.EndFrame()
		return nil
	})

	pb.Add("NMS", func() error {
		detector.NonMaxSuppression(decoded[cycle()], detector.DefaultIoUThreshold)
		return nil
	})

	mapper := display.Mapper{Labels: display.NewLabelTable()}
	dets := make([]display.Detection, 0, w.Candidates)
	pb.Add("Map", func() error {
		dets = dets[:0]
		for _, c := range decoded[cycle()] {
			dets = append(dets, mapper.ToDetection(c, w.Input, w.Display))
		}
		return nil
	})

	pool := overlay.NewPool(overlay.NewRecorder(), overlay.DefaultMaxMarkers)
	pb.Add("Sync", func() error {
		kept := detector.NonMaxSuppression(decoded[cycle()], detector.DefaultIoUThreshold)
		frameDets := make([]display.Detection, 0, len(kept))
		for _, c := range kept {
			frameDets = append(frameDets, mapper.ToDetection(c, w.Input, w.Display))
		}
		pool.Sync(frameDets)
		return nil
	})

	p, err := pipeline.NewBuilder().
		WithDisplay(pipeline.StaticDisplay(w.Display)).
		WithRenderer(overlay.NewRecorder()).
		WithHazardClass(^uint32(0)).
		WithLogger(slog.New(slog.DiscardHandler)).
		Build()
	if err != nil {
		return err
	}
	pb.pipeline = p
	pb.Add("ProcessFrame", func() error {
		_, err := p.ProcessFrame(pipeline.Frame{Tensor: pb.tensors[cycle()], ImageSize: w.Input})
		return err
	})
	return nil
}

// Workload returns the workload the benchmarks run on.
func (pb *PipelineBenchmark) Workload() Workload {
	return pb.workload
}

// Close releases the pipeline used by the ProcessFrame benchmark.
func (pb *PipelineBenchmark) Close() {
	if pb.pipeline != nil {
		pb.pipeline.Close()
	}
}
