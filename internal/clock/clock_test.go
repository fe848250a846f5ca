package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedAdvance(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	clk := &Fixed{Time: base}
	assert.True(t, clk.Now().Equal(base))

	clk.Advance(90 * time.Minute)
	assert.True(t, clk.Now().Equal(base.Add(90*time.Minute)))
}

func TestDayBounds(t *testing.T) {
	at := time.Date(2025, 3, 10, 14, 30, 12, 0, time.UTC)
	start, end := DayBounds(at)
	assert.True(t, start.Equal(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)))
	assert.True(t, end.Equal(time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)))

	// Midnight itself belongs to the day it opens.
	start, end = DayBounds(start)
	assert.True(t, start.Equal(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)))
	assert.True(t, end.Equal(time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)))
}
