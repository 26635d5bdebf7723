package pipeline

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func TestLogThrottle(t *testing.T) {
	th := newLogThrottle(clock.NewMock(), time.Hour)

	var got []int
	record := func(n int) { got = append(got, n) }

	assert.True(t, th.Do("unsupported_format", record))
	assert.False(t, th.Do("unsupported_format", record))
	assert.False(t, th.Do("unsupported_format", record))
	assert.True(t, th.Do("malformed_tensor", record), "keys are throttled independently")
	assert.Equal(t, []int{0, 0}, got)
}

func TestLogThrottle_ReportsSuppressedAfterInterval(t *testing.T) {
	clk := clock.NewMock()
	th := newLogThrottle(clk, 10*time.Second)

	var got []int
	record := func(n int) { got = append(got, n) }

	th.Do("k", record)
	th.Do("k", record)
	th.Do("k", record)

	clk.Add(9 * time.Second)
	assert.False(t, th.Do("k", record))

	clk.Add(2 * time.Second)
	assert.True(t, th.Do("k", record))
	assert.Equal(t, []int{0, 3}, got)
}

func TestLogThrottle_Defaults(t *testing.T) {
	th := newLogThrottle(nil, 0)
	assert.Equal(t, DefaultErrorLogInterval, th.interval)
	assert.NotNil(t, th.clock)
}
