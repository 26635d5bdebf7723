package pipeline

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/ripwatch/internal/detector"
	"github.com/MeKo-Tech/ripwatch/internal/display"
	"github.com/MeKo-Tech/ripwatch/internal/overlay"
	"github.com/MeKo-Tech/ripwatch/internal/tensor"
	"github.com/MeKo-Tech/ripwatch/internal/tensor/mock"
)

// scenarioState holds one scenario's pipeline and its observations.
type scenarioState struct {
	builder *Builder
	p       *Pipeline
	rec     *overlay.Recorder
	clock   *clock.Mock
	log     *hookLog

	frame   Frame
	result  *Result
	lastErr error
}

func newScenarioState() *scenarioState {
	s := &scenarioState{rec: overlay.NewRecorder(), clock: clock.NewMock(), log: &hookLog{}}
	s.clock.Set(time.Date(2024, 7, 9, 14, 3, 5, 0, time.UTC))
	return s
}

func (s *scenarioState) pipeline() (*Pipeline, error) {
	if s.p != nil {
		return s.p, nil
	}
	if s.builder == nil {
		return nil, fmt.Errorf("no pipeline configured")
	}
	p, err := s.builder.Build()
	if err != nil {
		return nil, err
	}
	s.p = p
	return p, nil
}

func (s *scenarioState) aPipeline(width, height, markers int) error {
	s.builder = NewBuilder().
		WithDisplay(StaticDisplay{Width: float32(width), Height: float32(height)}).
		WithMaxPointerMarkers(markers).
		WithRenderer(s.rec).
		WithClock(s.clock).
		WithHooks(s.log.hooks()).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return nil
}

func (s *scenarioState) hazardClass(id int) error {
	if s.builder == nil {
		return fmt.Errorf("no pipeline configured")
	}
	s.builder.WithHazardClass(uint32(id)) //nolint:gosec // G115: small test values
	return nil
}

func (s *scenarioState) aFrameWithCandidates(channels, width, height int, table *godog.Table) error {
	if channels != 5 {
		return fmt.Errorf("only 5-channel tables are supported, got %d", channels)
	}
	if len(table.Rows) < 2 {
		return fmt.Errorf("candidate table needs a header and at least one row")
	}

	header := table.Rows[0].Cells
	cols := make([]mock.Column, 0, len(table.Rows)-1)
	for _, row := range table.Rows[1:] {
		values := map[string]float32{}
		for i, cell := range row.Cells {
			v, err := strconv.ParseFloat(cell.Value, 32)
			if err != nil {
				return fmt.Errorf("parse %q: %w", cell.Value, err)
			}
			values[header[i].Value] = float32(v)
		}
		cols = append(cols, mock.SingleClass(values["x"], values["y"], values["w"], values["h"], values["conf"]))
	}

	s.frame = Frame{
		Tensor:    mock.Build(channels, cols...),
		ImageSize: display.Size{Width: float32(width), Height: float32(height)},
		Image:     image.NewRGBA(image.Rect(0, 0, width, height)),
	}
	return nil
}

func (s *scenarioState) theFrameIsProcessed() error {
	p, err := s.pipeline()
	if err != nil {
		return err
	}
	s.result, s.lastErr = p.ProcessFrame(s.frame)
	return nil
}

func (s *scenarioState) anUnsupportedFrameIsProcessed(channels, count int) error {
	s.frame = Frame{
		Tensor:    tensor.Tensor{Data: make([]float32, channels*count), Shape: []int64{1, int64(channels), int64(count)}},
		ImageSize: display.Size{Width: 640, Height: 640},
	}
	return s.theFrameIsProcessed()
}

func (s *scenarioState) aBinaryFrameIsProcessed(slot int, logit float64) error {
	cols := make([]mock.Column, slot+1)
	for i := range cols {
		cols[i] = mock.BinaryLogit(float32(40*i+20), 100, 10, 10, 0, 0)
	}
	cols[slot] = mock.BinaryLogit(300, 300, 40, 40, 0.9, float32(logit))
	s.frame = Frame{
		Tensor:    mock.Build(6, cols...),
		ImageSize: display.Size{Width: 640, Height: 640},
	}
	if err := s.theFrameIsProcessed(); err != nil {
		return err
	}
	return s.lastErr
}

func (s *scenarioState) secondsPass(n int) error {
	s.clock.Add(time.Duration(n) * time.Second)
	return nil
}

func (s *scenarioState) detectionCount(n int) error {
	if s.lastErr != nil {
		return fmt.Errorf("frame failed: %w", s.lastErr)
	}
	if got := s.result.Count(); got != n {
		return fmt.Errorf("expected %d detections, got %d", n, got)
	}
	return nil
}

func (s *scenarioState) detection(i int) (display.Detection, error) {
	if s.result == nil || i < 1 || i > s.result.Count() {
		return display.Detection{}, fmt.Errorf("no detection %d", i)
	}
	return s.result.Detections[i-1], nil
}

func (s *scenarioState) detectionHasConfidence(i int, conf float64) error {
	det, err := s.detection(i)
	if err != nil {
		return err
	}
	if math.Abs(float64(det.Confidence)-conf) > 1e-6 {
		return fmt.Errorf("expected confidence %.3f, got %.3f", conf, det.Confidence)
	}
	return nil
}

func (s *scenarioState) detectionHasClass(i, class int) error {
	det, err := s.detection(i)
	if err != nil {
		return err
	}
	if int(det.ClassID) != class {
		return fmt.Errorf("expected class %d, got %d", class, det.ClassID)
	}
	return nil
}

func (s *scenarioState) activeBoxes(n int) error {
	if got, _ := s.rec.ActiveCounts(); got != n {
		return fmt.Errorf("expected %d active boxes, got %d", n, got)
	}
	return nil
}

func (s *scenarioState) activeMarkers(n int) error {
	if _, got := s.rec.ActiveCounts(); got != n {
		return fmt.Errorf("expected %d active markers, got %d", n, got)
	}
	return nil
}

func (s *scenarioState) boxHandles(n int) error {
	if got, _ := s.rec.Created(); got != n {
		return fmt.Errorf("expected %d box handles, got %d", n, got)
	}
	return nil
}

func (s *scenarioState) lastCount(n int) error {
	s.log.mu.Lock()
	defer s.log.mu.Unlock()
	if len(s.log.counts) == 0 {
		return fmt.Errorf("no count reported")
	}
	if got := s.log.counts[len(s.log.counts)-1]; got != n {
		return fmt.Errorf("expected last count %d, got %d", n, got)
	}
	return nil
}

func (s *scenarioState) unsupportedFormatError() error {
	if !detector.IsUnsupportedFormat(s.lastErr) {
		return fmt.Errorf("expected unsupported format error, got %v", s.lastErr)
	}
	return nil
}

func (s *scenarioState) capturesRequested(n int) error {
	s.log.mu.Lock()
	defer s.log.mu.Unlock()
	if got := len(s.log.captures); got != n {
		return fmt.Errorf("expected %d captures, got %d", n, got)
	}
	return nil
}

func (s *scenarioState) revealFired(n int) error {
	return eventually(func() error {
		if got := s.log.revealCount(); got != n {
			return fmt.Errorf("expected %d reveals, got %d", n, got)
		}
		return nil
	})
}

func (s *scenarioState) footerReads(text string) error {
	return eventually(func() error {
		if got := s.log.lastFooter(); got != text {
			return fmt.Errorf("expected footer %q, got %q", text, got)
		}
		return nil
	})
}

// eventually retries check for up to a second; delayed hooks run on timer
// goroutines.
func eventually(check func() error) error {
	deadline := time.Now().Add(time.Second)
	for {
		err := check()
		if err == nil || time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Millisecond)
	}
}

func initializeScenario(sc *godog.ScenarioContext) {
	var s *scenarioState

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		s = newScenarioState()
		return ctx, nil
	})
	sc.After(func(ctx context.Context, _ *godog.Scenario, err error) (context.Context, error) {
		if s != nil && s.p != nil {
			s.p.Close()
		}
		return ctx, nil
	})

	sc.Step(`^a pipeline with a (\d+)x(\d+) display and at most (\d+) pointer markers$`,
		func(w, h, m int) error { return s.aPipeline(w, h, m) })
	sc.Step(`^hazard class (\d+)$`, func(id int) error { return s.hazardClass(id) })
	sc.Step(`^a (\d+)-channel frame of (\d+)x(\d+) with candidates:$`,
		func(c, w, h int, t *godog.Table) error { return s.aFrameWithCandidates(c, w, h, t) })
	sc.Step(`^the frame is processed$`, func() error { return s.theFrameIsProcessed() })
	sc.Step(`^a (\d+)-channel frame with (\d+) candidates is processed$`,
		func(c, n int) error { return s.anUnsupportedFrameIsProcessed(c, n) })
	sc.Step(`^a 6-channel frame where slot (\d+) has class logit (-?[\d.]+) is processed$`,
		func(slot int, logit float64) error { return s.aBinaryFrameIsProcessed(slot, logit) })
	sc.Step(`^(\d+) seconds? pass(?:es)?$`, func(n int) error { return s.secondsPass(n) })

	sc.Step(`^there (?:is|are) exactly (\d+) detections?$`, func(n int) error { return s.detectionCount(n) })
	sc.Step(`^detection (\d+) has confidence ([\d.]+)$`,
		func(i int, c float64) error { return s.detectionHasConfidence(i, c) })
	sc.Step(`^detection (\d+) has class (\d+)$`, func(i, c int) error { return s.detectionHasClass(i, c) })
	sc.Step(`^(\d+) box annotations? (?:is|are) active$`, func(n int) error { return s.activeBoxes(n) })
	sc.Step(`^(\d+) pointer markers? (?:is|are) active$`, func(n int) error { return s.activeMarkers(n) })
	sc.Step(`^(\d+) box handles? exists?$`, func(n int) error { return s.boxHandles(n) })
	sc.Step(`^the last reported count is (\d+)$`, func(n int) error { return s.lastCount(n) })
	sc.Step(`^the frame failed with an unsupported format error$`, func() error { return s.unsupportedFormatError() })
	sc.Step(`^(\d+) captures? (?:was|were) requested$`, func(n int) error { return s.capturesRequested(n) })
	sc.Step(`^the reveal hook fired (\d+) times?$`, func(n int) error { return s.revealFired(n) })
	sc.Step(`^the footer eventually reads "([^"]*)"$`, func(text string) error { return s.footerReads(text) })
}

func TestFeatures(t *testing.T) {
	format := os.Getenv("GODOG_FORMAT")
	if format == "" {
		format = "progress"
	}

	suite := godog.TestSuite{
		Name:                "annotate",
		ScenarioInitializer: initializeScenario,
		Options: &godog.Options{
			Format:   format,
			Tags:     os.Getenv("GODOG_TAGS"),
			Paths:    []string{"features"},
			Strict:   true,
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
