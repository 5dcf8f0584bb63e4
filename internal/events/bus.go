// Package events is the in-process bus the card, metrics, LED and SSE
// layers communicate over.
package events

import (
	"github.com/kelindar/event"
)

// Bus is a typed fan-out over a kelindar/event dispatcher. Handlers run on
// the dispatcher's goroutine for their type, in publish order.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{dispatcher: event.NewDispatcher()}
}

func publish[T Event](b *Bus, ev T) {
	event.Publish(b.dispatcher, ev)
}

// Publish delivers ev to every subscriber of its concrete type. Types not
// declared in this package are dropped.
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case LinkStateChangedEvent:
		publish(b, e)
	case ClockStateChangedEvent:
		publish(b, e)
	case JackStateChangedEvent:
		publish(b, e)
	case CardPowerChangedEvent:
		publish(b, e)
	case LogEntryEvent:
		publish(b, e)
	}
}

// Subscribe registers handler, a func taking one of the event types, and
// returns its cancel function. Any other handler shape is ignored and gets
// a no-op cancel.
//
//	cancel := bus.Subscribe(func(e JackStateChangedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(LinkStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ClockStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(JackStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CardPowerChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	}
	return func() {}
}

// SubscribeToChannel forwards events of type T into ch for select-loop
// consumers such as the SSE handlers. A full channel drops the event
// rather than stall the dispatcher.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
