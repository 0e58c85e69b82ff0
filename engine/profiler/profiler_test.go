package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Kalix-Works/helix-go/common"
)

func TestTickReportsAfterInterval(t *testing.T) {
	p := NewProfiler(WithInterval(10 * time.Millisecond))

	assert.False(t, p.Tick(common.FrameStats{DrawCount: 1}))
	time.Sleep(15 * time.Millisecond)
	assert.True(t, p.Tick(common.FrameStats{DrawCount: 1}))

	// The interval window restarts after a report.
	assert.False(t, p.Tick(common.FrameStats{}))
}
