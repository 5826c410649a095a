package cover

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestEstimator(t *testing.T, fullTravel time.Duration) (*PositionEstimator, *time.Time) {
	e, err := NewPositionEstimator(fullTravel)
	assert.NoError(t, err)

	now := time.Now()
	e.now = func() time.Time { return now }
	return e, &now
}

func TestNewPositionEstimatorRejectsNonPositiveTravel(t *testing.T) {
	_, err := NewPositionEstimator(0)
	assert.Error(t, err)

	_, err = NewPositionEstimator(-time.Second)
	assert.Error(t, err)
}

func TestEstimateBeforeFirstStart(t *testing.T) {
	e, _ := newTestEstimator(t, 30*time.Second)

	_, ok := e.Estimate()
	assert.False(t, ok)
}

func TestEstimateExtrapolatesFromStartPosition(t *testing.T) {
	e, now := newTestEstimator(t, 30*time.Second)

	e.Start(DirectionOpening, 40)
	*now = now.Add(15 * time.Second)

	got, ok := e.Estimate()
	assert.True(t, ok)
	assert.Equal(t, 90, got) // 40 + 15/30*100
}

func TestEstimateSaturatesAtRails(t *testing.T) {
	t.Run("closing never goes below 0", func(t *testing.T) {
		e, now := newTestEstimator(t, 30*time.Second)
		e.Start(DirectionClosing, 20)
		*now = now.Add(100 * time.Second)

		got, ok := e.Estimate()
		assert.True(t, ok)
		assert.Equal(t, 0, got)
	})

	t.Run("opening never goes above 100", func(t *testing.T) {
		e, now := newTestEstimator(t, 30*time.Second)
		e.Start(DirectionOpening, 80)
		*now = now.Add(100 * time.Second)

		got, ok := e.Estimate()
		assert.True(t, ok)
		assert.Equal(t, 100, got)
	})
}

func TestStartWithoutPositionAssumesOppositeRail(t *testing.T) {
	t.Run("opening starts from 0", func(t *testing.T) {
		e, _ := newTestEstimator(t, 30*time.Second)
		e.Start(DirectionOpening, PositionUnknown)

		got, ok := e.Estimate()
		assert.True(t, ok)
		assert.Equal(t, 0, got)
	})

	t.Run("closing starts from 100", func(t *testing.T) {
		e, _ := newTestEstimator(t, 30*time.Second)
		e.Start(DirectionClosing, PositionUnknown)

		got, ok := e.Estimate()
		assert.True(t, ok)
		assert.Equal(t, 100, got)
	})
}

func TestStopFreezesEstimate(t *testing.T) {
	e, now := newTestEstimator(t, 30*time.Second)

	e.Start(DirectionOpening, 0)
	*now = now.Add(9 * time.Second)

	assert.Equal(t, 30, e.Stop())

	// further elapsed time must not move a stopped estimate
	*now = now.Add(time.Minute)
	first, ok := e.Estimate()
	assert.True(t, ok)
	second, ok := e.Estimate()
	assert.True(t, ok)
	assert.Equal(t, 30, first)
	assert.Equal(t, first, second)

	// idempotent after stop
	assert.Equal(t, 30, e.Stop())
}

func TestStopBecomesNextStartBase(t *testing.T) {
	e, now := newTestEstimator(t, 30*time.Second)

	e.Start(DirectionOpening, 0)
	*now = now.Add(15 * time.Second)
	assert.Equal(t, 50, e.Stop())

	e.Start(DirectionClosing, e.Stop())
	*now = now.Add(3 * time.Second)

	got, ok := e.Estimate()
	assert.True(t, ok)
	assert.Equal(t, 40, got)
}
