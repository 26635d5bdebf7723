package mempool

import (
	"sync"
)

// Sized pools for []float32 and []bool scratch buffers used on the per-frame path.

const sizeStep = 1024

// sizeClass rounds n up to the next multiple of sizeStep, minimum sizeStep.
func sizeClass(n int) int {
	if n <= sizeStep {
		return sizeStep
	}
	r := (n + sizeStep - 1) / sizeStep
	return r * sizeStep
}

// sizedPool keeps one sync.Pool per size class.
type sizedPool[T any] struct {
	pools sync.Map // key: size class (int), value: *sync.Pool
}

func (s *sizedPool[T]) pool(cls int) *sync.Pool {
	pAny, _ := s.pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]T, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		return nil
	}
	return p
}

func (s *sizedPool[T]) get(n int) []T {
	if n < 0 {
		n = 0
	}
	cls := sizeClass(n)
	p := s.pool(cls)
	if p == nil {
		return make([]T, cls)[:n]
	}
	buf, ok := p.Get().([]T)
	if !ok || cap(buf) < cls {
		buf = make([]T, cls)
	}
	buf = buf[:n]
	var zero T
	for i := range buf {
		buf[i] = zero
	}
	return buf
}

func (s *sizedPool[T]) put(buf []T) {
	if buf == nil {
		return
	}
	cls := sizeClass(cap(buf))
	if cls != cap(buf) {
		// Foreign buffer with an odd capacity; let the GC have it.
		return
	}
	p := s.pool(cls)
	if p == nil {
		return
	}
	p.Put(buf[:cap(buf)]) //nolint:staticcheck
}

var (
	float32Pool sizedPool[float32]
	boolPool    sizedPool[bool]
)

// GetFloat32 retrieves a zeroed []float32 of length n from the pool.
// The caller must return it via PutFloat32 when done.
func GetFloat32(n int) []float32 {
	return float32Pool.get(n)
}

// PutFloat32 returns a buffer to the pool. It is safe to pass a nil slice.
func PutFloat32(buf []float32) {
	float32Pool.put(buf)
}

// GetBool retrieves a []bool of length n with every element false.
// The caller must return it via PutBool when done.
func GetBool(n int) []bool {
	return boolPool.get(n)
}

// PutBool returns a buffer to the pool. It is safe to pass a nil slice.
func PutBool(buf []bool) {
	boolPool.put(buf)
}
