package reporter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/saltyorg/autoplay/internal/media"
)

func TestCheckCurrent(t *testing.T) {
	r := New(nil)
	defer r.Close()

	assert.ErrorIs(t, r.checkCurrent("ps-1"), ErrStaleSessionReport, "nothing bound")

	r.Bind(&media.PlaybackStream{PlaySessionID: "ps-1"})
	assert.NoError(t, r.checkCurrent("ps-1"))

	r.Bind(&media.PlaybackStream{PlaySessionID: "ps-2"})
	assert.ErrorIs(t, r.checkCurrent("ps-1"), ErrStaleSessionReport)
}

func TestHeartbeatLimiterToleratesEarlyTicks(t *testing.T) {
	l := heartbeatLimiter(10 * time.Second)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, l.AllowN(start, 1))
	assert.False(t, l.AllowN(start.Add(time.Second), 1), "well inside the interval")
	assert.True(t, l.AllowN(start.Add(9800*time.Millisecond), 1), "tick slightly early")
	assert.True(t, l.AllowN(start.Add(19900*time.Millisecond), 1), "next tick slightly early")
	assert.False(t, l.AllowN(start.Add(20*time.Second), 1), "double tick")
}
