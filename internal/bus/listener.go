package bus

import (
	"bufio"
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SignalHandler receives the address of every raw button signal seen on
// the bus. Signals repeat while the physical button stays depressed.
type SignalHandler func(address string)

// Listener scans feedback frames and forwards button signals. Frames
// that are not button presses (module state reports, echoes of our own
// commands) are ignored here and left to out-of-band consumers.
type Listener struct {
	codec   Codec
	handler SignalHandler
}

func NewListener(codec Codec, handler SignalHandler) *Listener {
	return &Listener{codec: codec, handler: handler}
}

// Listen reads frames until r is exhausted or ctx is cancelled.
func (l *Listener) Listen(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			logrus.Debug("bus: listener exit")
			return nil
		}

		frame := scanner.Text()
		if address, ok := l.codec.DecodeButtonAddress(frame); ok {
			logrus.Tracef("bus: button signal from %s", address)
			l.handler(address)
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "bus: feedback read failed")
	}
	return nil
}
