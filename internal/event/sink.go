package event

// Event names published by the button classifier and the cover controller.
const (
	ShortPress       = "short_press"
	Held1            = "held_1"
	Held2            = "held_2"
	Held3            = "held_3"
	LongPress        = "long_press"
	ButtonDiscovered = "button_discovered"
	CoverPosition    = "cover_position"
)

// Sink receives named events with a payload mapping. Classification and
// position updates are driven by background timers, so output always goes
// through a sink rather than a return value.
type Sink interface {
	Publish(name string, data map[string]interface{})
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(name string, data map[string]interface{})

func (f SinkFunc) Publish(name string, data map[string]interface{}) {
	f(name, data)
}
