// Package dispatch implements the per-device event registry that wires a
// poller's emissions to their sinks (queues, loggers) without the poller
// knowing what consumes them.
package dispatch

import "context"

// Kind is the closed set of event kinds a poller can emit.
type Kind int

const (
	WeightRead Kind = iota
	EventChanged
	Run
	Stop
	Error
	TimeoutError
)

func (k Kind) String() string {
	switch k {
	case WeightRead:
		return "WEIGHT_READ"
	case EventChanged:
		return "EVENT_CHANGED"
	case Run:
		return "RUN"
	case Stop:
		return "STOP"
	case Error:
		return "ERROR"
	case TimeoutError:
		return "TIMEOUT_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Sink receives a dispatched payload. Payload's concrete type depends on
// kind: *model.Measurement for WeightRead, *model.StateEvent for
// EventChanged/Run/Stop, error for Error/TimeoutError.
type Sink func(ctx context.Context, payload any) error

// Registry maps event kinds to an ordered list of sinks for one device.
type Registry struct {
	sinks map[Kind][]Sink
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sinks: make(map[Kind][]Sink)}
}

// On appends a sink for kind and returns the registry for chaining.
func (r *Registry) On(kind Kind, sink Sink) *Registry {
	r.sinks[kind] = append(r.sinks[kind], sink)
	return r
}

// Has reports whether any sink is registered for kind.
func (r *Registry) Has(kind Kind) bool {
	return len(r.sinks[kind]) > 0
}

// Dispatch awaits every registered sink for kind in registration order.
// A failing sink does not stop subsequent sinks from running; the first
// error encountered is returned to the caller after all sinks have run.
func (r *Registry) Dispatch(ctx context.Context, kind Kind, payload any) error {
	var first error
	for _, sink := range r.sinks[kind] {
		if err := sink(ctx, payload); err != nil && first == nil {
			first = err
		}
	}
	return first
}
