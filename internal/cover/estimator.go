package cover

import (
	"time"

	"github.com/pkg/errors"
)

type Direction int

const (
	DirectionNone    Direction = 0
	DirectionOpening Direction = 1
	DirectionClosing Direction = -1
)

func (d Direction) String() string {
	switch d {
	case DirectionOpening:
		return "opening"
	case DirectionClosing:
		return "closing"
	}
	return "none"
}

// PositionUnknown lets Start fall back to the rail position opposite the
// movement: 0 when opening, 100 when closing.
const PositionUnknown = -1

// PositionEstimator tracks a cover position purely from elapsed time and
// commanded direction. The hardware reports no position feedback, so the
// estimate is a linear extrapolation against the full-travel duration,
// clamped to [0,100]. Not safe for concurrent use; the owning controller
// serializes access.
type PositionEstimator struct {
	fullTravel time.Duration
	now        func() time.Time

	direction Direction
	startTime time.Time
	position  int
	known     bool
}

func NewPositionEstimator(fullTravel time.Duration) (*PositionEstimator, error) {
	if fullTravel <= 0 {
		return nil, errors.Errorf("cover: full travel duration must be positive, got %s", fullTravel)
	}
	return &PositionEstimator{fullTravel: fullTravel, now: time.Now}, nil
}

// Start begins motion in the given direction from position, or from the
// rail opposite the movement when position is PositionUnknown.
func (e *PositionEstimator) Start(direction Direction, position int) {
	e.direction = direction
	e.startTime = e.now()

	if position == PositionUnknown {
		if direction == DirectionOpening {
			position = 0
		} else {
			position = 100
		}
	}
	e.position = clampPosition(position)
	e.known = true
}

// Estimate returns the current position estimate. It reports false until
// the first Start. Pure read: safe to call any number of times.
func (e *PositionEstimator) Estimate() (int, bool) {
	if !e.known {
		return 0, false
	}
	if e.direction == DirectionNone {
		return e.position, true
	}

	elapsed := e.now().Sub(e.startTime).Seconds()
	progress := elapsed / e.fullTravel.Seconds() * 100 * float64(e.direction)

	p := float64(e.position) + progress
	if p < 0 {
		p = 0
	} else if p > 100 {
		p = 100
	}
	return int(p), true
}

// Stop freezes the extrapolated estimate. Estimate keeps returning the
// frozen value until the next Start.
func (e *PositionEstimator) Stop() int {
	if e.direction != DirectionNone {
		e.position, _ = e.Estimate()
		e.direction = DirectionNone
		e.startTime = time.Time{}
	}
	return e.position
}

func clampPosition(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
