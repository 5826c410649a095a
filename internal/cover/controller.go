package cover

import (
	"context"
	"sync"
	"time"

	"github.com/jmertens/nikobus2mqtt/internal/bus"
	"github.com/jmertens/nikobus2mqtt/internal/event"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	StateOpen    = "open"
	StateClosed  = "closed"
	StateOpening = "opening"
	StateClosing = "closing"
)

// fullOperationBuffer pads the window after which an unstopped motion is
// assumed finished: the module halts at the rail on its own.
const fullOperationBuffer = 3 * time.Second

type Config struct {
	Name    string
	Address string
	Channel int

	// FullTravel is the 0 to 100 traversal time. Must be positive.
	FullTravel time.Duration

	// UpdateTick paces the live position broadcast while in motion.
	// Defaults to one second.
	UpdateTick time.Duration
}

// Controller drives one roller channel: it sends open/close/stop
// commands over the bus and keeps a best-effort position estimate, since
// the module itself never reports where the cover is. A command that
// fails on the bus leaves the motion state untouched; the estimate can
// drift from reality until the next stop recalibrates it.
type Controller struct {
	cfg  Config
	tick time.Duration

	commander bus.Commander
	sink      event.Sink

	mu           sync.Mutex
	estimator    *PositionEstimator
	position     int
	direction    Direction
	inMotion     bool
	cancelMotion context.CancelFunc
}

func NewController(cfg Config, commander bus.Commander, sink event.Sink) (*Controller, error) {
	estimator, err := NewPositionEstimator(cfg.FullTravel)
	if err != nil {
		return nil, errors.Wrapf(err, "cover %s", cfg.Name)
	}

	tick := cfg.UpdateTick
	if tick <= 0 {
		tick = time.Second
	}

	return &Controller{
		cfg:       cfg,
		tick:      tick,
		commander: commander,
		sink:      sink,
		estimator: estimator,
		position:  100,
	}, nil
}

func (c *Controller) Name() string    { return c.cfg.Name }
func (c *Controller) Address() string { return c.cfg.Address }
func (c *Controller) Channel() int    { return c.cfg.Channel }

// Position returns the current estimate: live extrapolation while in
// motion, the last frozen value otherwise.
func (c *Controller) Position() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentLocked()
}

func (c *Controller) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() string {
	switch c.direction {
	case DirectionOpening:
		return StateOpening
	case DirectionClosing:
		return StateClosing
	}
	if c.position == 0 {
		return StateClosed
	}
	return StateOpen
}

func (c *Controller) InMotion() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inMotion
}

// RestorePosition seeds the last persisted position at startup.
func (c *Controller) RestorePosition(position int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inMotion {
		logrus.Warnf("cover %s: position restore ignored while in motion", c.cfg.Name)
		return
	}
	c.position = clampPosition(position)
	logrus.Infof("cover %s: position restored to %d", c.cfg.Name, c.position)
}

func (c *Controller) Open(ctx context.Context) error {
	logrus.Infof("cover %s: open", c.cfg.Name)

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.startMotionLocked(ctx, DirectionOpening)
	return err
}

func (c *Controller) Close(ctx context.Context) error {
	logrus.Infof("cover %s: close", c.cfg.Name)

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.startMotionLocked(ctx, DirectionClosing)
	return err
}

func (c *Controller) Stop(ctx context.Context) error {
	logrus.Infof("cover %s: stop", c.cfg.Name)

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked(ctx)
}

// SetPosition moves toward target and schedules a stop once the travel
// time for the position delta has elapsed. Best effort: the deadline is
// proportional, not feedback-driven. A manual stop, open or close
// cancels the pending deadline.
func (c *Controller) SetPosition(ctx context.Context, target int) error {
	if target < 0 || target > 100 {
		return errors.Errorf("cover %s: target position %d is out of range 0-100", c.cfg.Name, target)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.currentLocked()
	logrus.Infof("cover %s: set position to %d (current %d)", c.cfg.Name, target, current)

	direction := DirectionOpening
	if target < current {
		direction = DirectionClosing
	}

	motionCtx, err := c.startMotionLocked(ctx, direction)
	if err != nil {
		return err
	}

	delta := target - current
	if delta < 0 {
		delta = -delta
	}
	deadline := time.Duration(float64(c.cfg.FullTravel) * float64(delta) / 100)

	go c.stopAtDeadline(motionCtx, deadline)
	return nil
}

// startMotionLocked performs the stop-then-restart sequence: an in-flight
// motion is finalized first, so its frozen estimate becomes the start
// position of the new segment.
func (c *Controller) startMotionLocked(ctx context.Context, direction Direction) (context.Context, error) {
	if c.inMotion {
		if err := c.stopLocked(ctx); err != nil {
			return nil, err
		}
	}

	value := bus.CmdOpen
	if direction == DirectionClosing {
		value = bus.CmdClose
	}
	if err := c.commander.SetOutputState(ctx, c.cfg.Address, c.cfg.Channel, value); err != nil {
		logrus.Errorf("cover %s: %s command failed: %s", c.cfg.Name, direction, err)
		return nil, errors.Wrapf(err, "cover %s: %s command", c.cfg.Name, direction)
	}

	c.estimator.Start(direction, c.position)
	c.direction = direction
	c.inMotion = true

	motionCtx, cancel := context.WithCancel(context.Background())
	c.cancelMotion = cancel
	go c.broadcastPosition(motionCtx)

	return motionCtx, nil
}

func (c *Controller) stopLocked(ctx context.Context) error {
	if err := c.commander.SetOutputState(ctx, c.cfg.Address, c.cfg.Channel, bus.CmdStop); err != nil {
		logrus.Errorf("cover %s: stop command failed: %s", c.cfg.Name, err)
		return errors.Wrapf(err, "cover %s: stop command", c.cfg.Name)
	}

	if c.cancelMotion != nil {
		c.cancelMotion()
		c.cancelMotion = nil
	}
	if c.inMotion {
		c.position = c.estimator.Stop()
		c.direction = DirectionNone
		c.inMotion = false
		c.publishPosition(c.stateLocked(), c.position)
		logrus.Infof("cover %s: stopped at %d", c.cfg.Name, c.position)
	}
	return nil
}

// broadcastPosition publishes the interpolated position every tick while
// in motion. Once the full travel time plus a buffer has elapsed without
// a stop, the cover must have reached the rail: the motion is finalized
// locally without sending a stop command.
func (c *Controller) broadcastPosition(ctx context.Context) {
	start := time.Now()
	t := time.NewTicker(c.tick)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Debugf("cover %s: position broadcast exit", c.cfg.Name)
			return
		case <-t.C:
		}

		if time.Since(start) > c.cfg.FullTravel+fullOperationBuffer {
			c.finalizeAtRail(ctx)
			return
		}

		c.mu.Lock()
		position, ok := c.estimator.Estimate()
		state := c.stateLocked()
		c.mu.Unlock()
		if ok {
			c.publishPosition(state, position)
		}
	}
}

func (c *Controller) finalizeAtRail(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ctx.Err() != nil || !c.inMotion {
		return
	}

	c.position = c.estimator.Stop()
	c.direction = DirectionNone
	c.inMotion = false
	if c.cancelMotion != nil {
		c.cancelMotion()
		c.cancelMotion = nil
	}
	c.publishPosition(c.stateLocked(), c.position)
	logrus.Infof("cover %s: full travel elapsed, assumed at %d", c.cfg.Name, c.position)
}

// stopAtDeadline issues the scheduled stop for SetPosition unless the
// motion context gets cancelled first. A cancelled deadline never sends
// a stop command.
func (c *Controller) stopAtDeadline(ctx context.Context, after time.Duration) {
	t := time.NewTimer(after)
	defer t.Stop()

	select {
	case <-ctx.Done():
		logrus.Debugf("cover %s: scheduled stop cancelled", c.cfg.Name)
		return
	case <-t.C:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return
	}

	logrus.Debugf("cover %s: scheduled stop", c.cfg.Name)
	_ = c.stopLocked(context.Background())
}

func (c *Controller) currentLocked() int {
	if c.inMotion {
		if position, ok := c.estimator.Estimate(); ok {
			return position
		}
	}
	return c.position
}

func (c *Controller) publishPosition(state string, position int) {
	c.sink.Publish(event.CoverPosition, map[string]interface{}{
		"address":  c.cfg.Address,
		"channel":  c.cfg.Channel,
		"state":    state,
		"position": position,
	})
}
