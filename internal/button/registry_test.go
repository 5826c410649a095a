package button

import (
	"context"
	"testing"

	"github.com/jmertens/nikobus2mqtt/internal/event"
	"github.com/stretchr/testify/assert"
)

func TestRegistryDeduplicates(t *testing.T) {
	sink := &event.Recorder{}
	r := NewRegistry(sink)

	assert.NoError(t, r.Discover(context.Background(), "C9A5"))
	assert.NoError(t, r.Discover(context.Background(), "C9A5"))
	assert.NoError(t, r.Discover(context.Background(), "0012"))

	assert.Len(t, sink.Named(event.ButtonDiscovered), 2)
	assert.Equal(t, []string{"0012", "C9A5"}, r.Known())
}
