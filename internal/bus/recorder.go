package bus

import (
	"context"
	"sync"
)

// Command is a single recorded SetOutputState call.
type Command struct {
	Address string
	Channel int
	Value   byte
}

// Recorder is a Commander that records every command, for tests.
// Set Err to make every send fail.
type Recorder struct {
	mu       sync.Mutex
	commands []Command

	Err error
}

func (r *Recorder) SetOutputState(_ context.Context, address string, channel int, value byte) error {
	if r.Err != nil {
		return r.Err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, Command{Address: address, Channel: channel, Value: value})
	return nil
}

func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Command, len(r.commands))
	copy(out, r.commands)
	return out
}
