package button

import (
	"context"
	"sort"
	"sync"

	"github.com/jmertens/nikobus2mqtt/internal/event"
	"github.com/sirupsen/logrus"
)

// Registry deduplicates button addresses resolved by the classifier.
// The first sighting of an address publishes a discovery event so the
// surrounding system can register the new button.
type Registry struct {
	sink event.Sink

	mu    sync.Mutex
	known map[string]struct{}
}

func NewRegistry(sink event.Sink) *Registry {
	return &Registry{sink: sink, known: map[string]struct{}{}}
}

// Discover satisfies DiscoveryFunc.
func (r *Registry) Discover(_ context.Context, address string) error {
	r.mu.Lock()
	_, seen := r.known[address]
	if !seen {
		r.known[address] = struct{}{}
	}
	r.mu.Unlock()

	if seen {
		return nil
	}

	logrus.Infof("button %s: discovered", address)
	r.sink.Publish(event.ButtonDiscovered, map[string]interface{}{"address": address})
	return nil
}

// Known returns the discovered addresses, sorted.
func (r *Registry) Known() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.known))
	for address := range r.known {
		out = append(out, address)
	}
	sort.Strings(out)
	return out
}
