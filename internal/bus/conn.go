package bus

import (
	"context"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tarm/serial"
)

// Codec turns output commands into wire frames and recognizes button
// feedback frames. Exact framing and checksums live behind this seam.
type Codec interface {
	EncodeSetOutputState(address string, channel int, value byte) ([]byte, error)
	DecodeButtonAddress(frame string) (address string, ok bool)
}

// Conn is a bus connection over a serial device or a TCP gateway.
// Connection strings: "serial:/dev/ttyUSB0" or "tcp:192.168.1.5:9999".
type Conn struct {
	rw    io.ReadWriteCloser
	codec Codec

	mu sync.Mutex // serializes frame writes
}

func Dial(connectionString string, codec Codec) (*Conn, error) {
	i := strings.Index(connectionString, ":")
	if i < 0 {
		return nil, errors.Errorf("bus: malformed connection string %q", connectionString)
	}
	scheme, target := connectionString[:i], connectionString[i+1:]

	var rw io.ReadWriteCloser
	var err error
	switch scheme {
	case "serial":
		rw, err = serial.OpenPort(&serial.Config{Name: target, Baud: 9600})
	case "tcp":
		rw, err = net.Dial("tcp", target)
	default:
		return nil, errors.Errorf("bus: unsupported connection scheme %q", scheme)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "bus: connect to %s failed", connectionString)
	}

	logrus.Infof("bus: connected to %s", connectionString)
	return &Conn{rw: rw, codec: codec}, nil
}

func (c *Conn) SetOutputState(ctx context.Context, address string, channel int, value byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	frame, err := c.codec.EncodeSetOutputState(address, channel, value)
	if err != nil {
		return errors.Wrapf(err, "bus: encode command for %s:%d failed", address, channel)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.rw.Write(frame); err != nil {
		return errors.Wrapf(err, "bus: send command for %s:%d failed", address, channel)
	}

	logrus.Debugf("bus: sent output state %#02x to %s:%d", value, address, channel)
	return nil
}

// Reader exposes the feedback side of the connection for a Listener.
func (c *Conn) Reader() io.Reader {
	return c.rw
}

func (c *Conn) Close() error {
	return c.rw.Close()
}
