package bus

import "context"

// Output command values understood by roller module channels. Other
// module kinds use the same call shape with a brightness byte instead.
const (
	CmdStop  byte = 0x00
	CmdOpen  byte = 0x01
	CmdClose byte = 0x02
)

// Commander sends a "set output state" command for one module channel.
type Commander interface {
	SetOutputState(ctx context.Context, address string, channel int, value byte) error
}
