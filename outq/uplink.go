package outq

// This file provides the default Uplink implementation: event delivery to
// the application. Built on Broadcaster and grounded on Stream.ReadChan's
// submit-then-wait idiom in streams.go's addToRead (Submit followed by
// <-s.readFeedback to make sure delivery propagates before returning) --
// extended here with an accept/refuse signal that stream-data delivery
// never needed but connection-close and stream-update events do.

// Event is what a subscriber receives off a registered channel: the event
// kind, its kind-specific payload, and the feedback path Accept reports
// through. A subscriber must call Accept exactly once.
type Event struct {
	Kind    EventKind
	Payload interface{}
	done    chan bool
}

// Accept reports whether the subscriber consumed the event. A refusal
// leaves the triggering state transition unapplied.
func (e Event) Accept(consumed bool) {
	e.done <- consumed
}

// BroadcastUplink is the default Uplink. It assumes exactly one active
// subscriber at a time -- the application's event loop -- the same
// single-reader assumption a per-stream readFeedback channel makes;
// registering more than one subscriber races on which Accept call EventRecv
// observes.
type BroadcastUplink struct {
	b         Broadcaster
	listeners int
}

// NewBroadcastUplink constructs a BroadcastUplink over a fresh Broadcaster
// with the given per-subscriber buffer length.
func NewBroadcastUplink(buflen int) *BroadcastUplink {
	return &BroadcastUplink{b: NewBroadcaster(buflen)}
}

// RegisterNewChan registers and returns a new subscriber channel.
func (u *BroadcastUplink) RegisterNewChan(size int) chan interface{} {
	u.listeners++
	return u.b.RegisterNewChan(size)
}

// EventRecv implements Uplink: it submits the event and blocks for the
// subscriber's Accept call. With nobody registered yet, the event is
// treated as refused -- there is no one to consume it.
func (u *BroadcastUplink) EventRecv(kind EventKind, payload interface{}) bool {
	if u.listeners == 0 {
		return false
	}
	done := make(chan bool, 1)
	u.b.Submit(Event{Kind: kind, Payload: payload, done: done})
	return <-done
}

// Close tears down every subscriber channel.
func (u *BroadcastUplink) Close() error {
	return u.b.Close()
}
