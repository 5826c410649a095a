package cover

import (
	"context"
	"testing"
	"time"

	"github.com/jmertens/nikobus2mqtt/internal/bus"
	"github.com/jmertens/nikobus2mqtt/internal/event"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func newTestController(t *testing.T, fullTravel time.Duration) (*Controller, *bus.Recorder, *event.Recorder) {
	commander := &bus.Recorder{}
	sink := &event.Recorder{}

	c, err := NewController(Config{
		Name:       "living room",
		Address:    "4707",
		Channel:    2,
		FullTravel: fullTravel,
		UpdateTick: 10 * time.Millisecond,
	}, commander, sink)
	assert.NoError(t, err)

	return c, commander, sink
}

func commandValues(commander *bus.Recorder) []byte {
	var out []byte
	for _, cmd := range commander.Commands() {
		out = append(out, cmd.Value)
	}
	return out
}

func TestNewControllerRejectsInvalidFullTravel(t *testing.T) {
	_, err := NewController(Config{Name: "x", FullTravel: 0}, &bus.Recorder{}, &event.Recorder{})
	assert.Error(t, err)
}

func TestOpenStopLifecycle(t *testing.T) {
	ctx := context.Background()
	c, commander, _ := newTestController(t, 200*time.Millisecond)
	c.RestorePosition(0)

	assert.NoError(t, c.Open(ctx))
	assert.True(t, c.InMotion())
	assert.Equal(t, StateOpening, c.State())

	time.Sleep(100 * time.Millisecond)
	assert.NoError(t, c.Stop(ctx))

	assert.False(t, c.InMotion())
	assert.Equal(t, []byte{bus.CmdOpen, bus.CmdStop}, commandValues(commander))

	// half the travel time elapsed, give or take scheduling
	pos := c.Position()
	assert.Greater(t, pos, 20)
	assert.Less(t, pos, 80)

	// frozen: no further drift once stopped
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, pos, c.Position())
}

func TestCloseWhileOpeningStopsFirst(t *testing.T) {
	ctx := context.Background()
	c, commander, _ := newTestController(t, 200*time.Millisecond)
	c.RestorePosition(0)

	assert.NoError(t, c.Open(ctx))
	time.Sleep(120 * time.Millisecond)

	assert.NoError(t, c.Close(ctx))
	assert.Equal(t, StateClosing, c.State())
	assert.Equal(t, []byte{bus.CmdOpen, bus.CmdStop, bus.CmdClose}, commandValues(commander))

	time.Sleep(40 * time.Millisecond)
	assert.NoError(t, c.Stop(ctx))

	// the closing segment started from the frozen opening estimate
	pos := c.Position()
	assert.Greater(t, pos, 10)
	assert.Less(t, pos, 60)
}

func TestSetPositionSchedulesStop(t *testing.T) {
	ctx := context.Background()
	c, commander, _ := newTestController(t, 200*time.Millisecond)

	// default position is 100, target 50 means closing for half the travel
	assert.NoError(t, c.SetPosition(ctx, 50))
	assert.Equal(t, StateClosing, c.State())

	time.Sleep(250 * time.Millisecond)

	assert.False(t, c.InMotion())
	assert.Equal(t, []byte{bus.CmdClose, bus.CmdStop}, commandValues(commander))

	pos := c.Position()
	assert.Greater(t, pos, 25)
	assert.Less(t, pos, 75)
}

func TestManualStopCancelsScheduledStop(t *testing.T) {
	ctx := context.Background()
	c, commander, _ := newTestController(t, 200*time.Millisecond)

	assert.NoError(t, c.SetPosition(ctx, 0))
	time.Sleep(50 * time.Millisecond)
	assert.NoError(t, c.Stop(ctx))

	// wait past the original deadline: no second stop may be sent
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, []byte{bus.CmdClose, bus.CmdStop}, commandValues(commander))
}

func TestSetPositionRejectsOutOfRangeTarget(t *testing.T) {
	c, _, _ := newTestController(t, 200*time.Millisecond)

	assert.Error(t, c.SetPosition(context.Background(), -1))
	assert.Error(t, c.SetPosition(context.Background(), 101))
}

func TestTransportFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	c, commander, _ := newTestController(t, 200*time.Millisecond)
	commander.Err = errors.New("bus gone")

	assert.Error(t, c.Open(ctx))
	assert.False(t, c.InMotion())
	assert.Equal(t, StateOpen, c.State())
	assert.Equal(t, 100, c.Position())
	assert.Empty(t, commander.Commands())
}

func TestBroadcastsPositionWhileInMotion(t *testing.T) {
	ctx := context.Background()
	c, _, sink := newTestController(t, 200*time.Millisecond)
	c.RestorePosition(0)

	assert.NoError(t, c.Open(ctx))
	time.Sleep(100 * time.Millisecond)
	assert.NoError(t, c.Stop(ctx))

	updates := sink.Named(event.CoverPosition)
	assert.NotEmpty(t, updates)
	for _, u := range updates {
		assert.Equal(t, "4707", u.Data["address"])
		assert.Equal(t, 2, u.Data["channel"])
	}
}

func TestRestorePositionIgnoredWhileMoving(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestController(t, 200*time.Millisecond)
	c.RestorePosition(40)
	assert.Equal(t, 40, c.Position())

	assert.NoError(t, c.Open(ctx))
	c.RestorePosition(0)
	assert.NoError(t, c.Stop(ctx))

	assert.GreaterOrEqual(t, c.Position(), 40)
}
