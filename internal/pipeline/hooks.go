package pipeline

import "image"

// Hooks are the outbound callbacks of the pipeline. Every hook is optional.
// OnReveal and OnAnnotationShown may be called from a timer goroutine.
type Hooks struct {
	// OnCount receives the number of finalized detections, once per frame.
	OnCount func(n int)
	// OnCapture receives the camera frame and a timestamped filename for a
	// hazard screenshot. It must not block.
	OnCapture func(frame image.Image, filename string)
	// OnReveal fires once, a delay after the first hazard.
	OnReveal func()
	// OnAnnotationShown receives footer text updates.
	OnAnnotationShown func(text string)
	// OnStats receives the inference stats text, empty when cleared.
	OnStats func(text string)
	// OnFrame receives every processed frame result.
	OnFrame func(res *Result)
}

// Chain returns hooks that call h and then next for every callback.
func (h Hooks) Chain(next Hooks) Hooks {
	return Hooks{
		OnCount:           chain1(h.OnCount, next.OnCount),
		OnCapture:         chainCapture(h.OnCapture, next.OnCapture),
		OnReveal:          chain0(h.OnReveal, next.OnReveal),
		OnAnnotationShown: chain1(h.OnAnnotationShown, next.OnAnnotationShown),
		OnStats:           chain1(h.OnStats, next.OnStats),
		OnFrame:           chain1(h.OnFrame, next.OnFrame),
	}
}

func chain0(a, b func()) func() {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func() { a(); b() }
}

func chain1[T any](a, b func(T)) func(T) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(v T) { a(v); b(v) }
}

func chainCapture(a, b func(image.Image, string)) func(image.Image, string) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(img image.Image, name string) { a(img, name); b(img, name) }
}
