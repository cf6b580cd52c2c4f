package device

import (
	"log"

	"github.com/openastro/astrocore/image"
)

// EventKind tags the variant carried by a CallbackData payload (spec §3's
// CallbackDataPtr tagged sum type).
type EventKind int

const (
	ImageReady EventKind = iota
	CalibrationPoint
	CalibrationComplete
	TrackingPoint
	ProgressInfo
	BacklashPoint
	BacklashResult
	CalibrationImageProgress
	Heartbeat
	CoolerInfo
	DewHeaterEvent
	TemperatureEvent
)

// Event is one bus payload: a Kind tag plus an arbitrary Data value whose
// concrete type depends on Kind.  Producers do not know their consumers.
type Event struct {
	Kind EventKind
	Data interface{}
}

// Callback receives Events pushed by a single producer, in the order
// emitted.
type Callback func(Event)

// Bus is a set-of-callbacks keyed by producing capability.  Registering a
// callback is O(1); emitting iterates registered callbacks and recovers
// from a panicking sink so that one bad sink never stops another (spec
// §4.B, §7).  Grounded on the teacher's RouteTable/HTTPer registration
// pattern (server.RouteTable), generalized from HTTP handlers to typed
// callback funcs per the Shared Mutable Callback Sets redesign flag
// (spec §9): a subscription handle unregisters on Unsubscribe instead of
// requiring a manual matching remove call keyed by pointer identity.
type Bus struct {
	subs map[int]Callback
	next int
}

// NewBus returns an empty, ready-to-use Bus.
func NewBus() *Bus {
	return &Bus{subs: map[int]Callback{}}
}

// Subscription is a handle returned by Subscribe; call Unsubscribe to stop
// receiving events.
type Subscription struct {
	bus *Bus
	id  int
}

// Unsubscribe removes the associated callback from the bus.
func (s Subscription) Unsubscribe() {
	delete(s.bus.subs, s.id)
}

// Subscribe registers cb and returns a handle to later unregister it.
func (b *Bus) Subscribe(cb Callback) Subscription {
	id := b.next
	b.next++
	b.subs[id] = cb
	return Subscription{bus: b, id: id}
}

// Emit delivers ev to every registered callback.  Calls run synchronously on
// the caller's goroutine, so a single sink always sees its events in the
// order Emit was called; there is no ordering guarantee across sinks. A
// panicking callback is recovered and logged, never propagated to the
// producer or to other sinks.
func (b *Bus) Emit(ev Event) {
	for _, cb := range b.subs {
		func(cb Callback) {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("device: callback panicked: %v", r)
				}
			}()
			cb(ev)
		}(cb)
	}
}

// ImageReadyPayload is the Data for an ImageReady event.
type ImageReadyPayload struct {
	Entry image.QueueEntry
}
