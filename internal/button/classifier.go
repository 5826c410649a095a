package button

import (
	"context"
	"sync"
	"time"

	"github.com/jmertens/nikobus2mqtt/internal/event"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DiscoveryFunc is invoked once per resolved press, after the terminal
// classification event has been published.
type DiscoveryFunc func(ctx context.Context, address string) error

// Config holds the press timing parameters. Thresholds must satisfy
// 0 < Short < Medium < Long.
type Config struct {
	Debounce time.Duration
	Short    time.Duration
	Medium   time.Duration
	Long     time.Duration
}

func (c Config) validate() error {
	if c.Debounce <= 0 {
		return errors.Errorf("button: debounce must be positive, got %s", c.Debounce)
	}
	if c.Short <= 0 || c.Medium <= c.Short || c.Long <= c.Medium {
		return errors.Errorf(
			"button: press thresholds must be increasing, got %s/%s/%s",
			c.Short, c.Medium, c.Long,
		)
	}
	return nil
}

// session tracks a single physical press while it is being resolved.
// The bus repeats the raw signal roughly every debounce interval for as
// long as the button stays depressed.
type session struct {
	address    string
	start      time.Time
	lastSignal time.Time
	cancel     context.CancelFunc
}

// Classifier turns raw repeated button signals into a single terminal
// press classification per physical press, plus held ticks while the
// button remains down. At most one session is active at a time: a signal
// for a different address abandons the previous press outright.
type Classifier struct {
	cfg      Config
	sink     event.Sink
	discover DiscoveryFunc
	now      func() time.Time

	mu      sync.Mutex
	session *session
}

func NewClassifier(cfg Config, sink event.Sink, discover DiscoveryFunc) (*Classifier, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Classifier{
		cfg:      cfg,
		sink:     sink,
		discover: discover,
		now:      time.Now,
	}, nil
}

// HandleSignal processes one raw "signal active" notification for address.
// A repeat for the active session's address only keeps the session alive;
// anything else starts a fresh session, cancelling the previous one.
func (c *Classifier) HandleSignal(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if c.session != nil && c.session.address == address {
		c.session.lastSignal = now
		return
	}

	if c.session != nil {
		logrus.Debugf("button %s: superseded by %s", c.session.address, address)
		c.session.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{address: address, start: now, lastSignal: now, cancel: cancel}
	c.session = s

	logrus.Debugf("button %s: press started", address)

	go c.watchRelease(ctx, s)
	go c.fireHeldAfter(ctx, address, event.Held1, c.cfg.Short)
	go c.fireHeldAfter(ctx, address, event.Held2, c.cfg.Medium)
	go c.fireHeldAfter(ctx, address, event.Held3, c.cfg.Long)
}

// Close abandons any in-flight press session.
func (c *Classifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.session.cancel()
		c.session = nil
	}
}

// watchRelease polls until no repeat signal has arrived for a full
// debounce interval, then resolves the press. A new session for another
// address wins over a concurrent finalization: the session slot is only
// torn down here while the context is still live.
func (c *Classifier) watchRelease(ctx context.Context, s *session) {
	t := time.NewTimer(c.cfg.Debounce)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Debugf("button %s: press watcher cancelled", s.address)
			return
		case <-t.C:
		}

		c.mu.Lock()
		if ctx.Err() != nil {
			c.mu.Unlock()
			return
		}
		now := c.now()
		if now.Sub(s.lastSignal) < c.cfg.Debounce {
			c.mu.Unlock()
			t.Reset(c.cfg.Debounce)
			continue
		}

		duration := now.Sub(s.start)
		s.cancel()
		c.session = nil
		c.mu.Unlock()

		logrus.Debugf("button %s: released after %s", s.address, duration)
		c.classify(s.address, duration)

		if c.discover != nil {
			if err := c.discover(context.Background(), s.address); err != nil {
				logrus.Errorf("button %s: discovery failed: %s", s.address, err)
			}
		}
		return
	}
}

// fireHeldAfter publishes a held tick once the press has lasted d,
// unless the session ends first.
func (c *Classifier) fireHeldAfter(ctx context.Context, address, name string, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return
	case <-t.C:
	}

	c.mu.Lock()
	cancelled := ctx.Err() != nil
	c.mu.Unlock()
	if cancelled {
		return
	}

	logrus.Debugf("button %s: held for %s", address, d)
	c.sink.Publish(name, map[string]interface{}{"address": address})
}

func (c *Classifier) classify(address string, duration time.Duration) {
	payload := map[string]interface{}{"address": address}

	switch {
	case duration < c.cfg.Short:
		c.sink.Publish(event.ShortPress, payload)
	case duration < c.cfg.Medium:
		c.sink.Publish(event.Held1, payload)
	case duration < c.cfg.Long:
		c.sink.Publish(event.Held2, payload)
	default:
		// Very long presses fire both events. Downstream automations
		// may listen to either.
		c.sink.Publish(event.Held3, payload)
		c.sink.Publish(event.LongPress, payload)
	}
}
