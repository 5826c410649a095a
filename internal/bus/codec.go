package bus

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// buttonFramePrefix marks the raw "button touched" feedback frames the
// wall buttons repeat on the bus while held.
const buttonFramePrefix = "#N"

// ASCIICodec speaks the textual frame dialect of a bus PC-link gateway.
// Checksummed native framing belongs to the gateway, not here.
type ASCIICodec struct{}

func (ASCIICodec) EncodeSetOutputState(address string, channel int, value byte) ([]byte, error) {
	if address == "" {
		return nil, errors.New("bus: empty module address")
	}
	if channel < 1 {
		return nil, errors.Errorf("bus: invalid channel %d for %s", channel, address)
	}
	return []byte(fmt.Sprintf("#W%s%d%02X\r", address, channel, value)), nil
}

func (ASCIICodec) DecodeButtonAddress(frame string) (string, bool) {
	frame = strings.TrimSpace(frame)
	if !strings.HasPrefix(frame, buttonFramePrefix) {
		return "", false
	}
	address := frame[len(buttonFramePrefix):]
	if address == "" {
		return "", false
	}
	return address, true
}
