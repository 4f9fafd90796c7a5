package outq

import broadcast "github.com/dustin/go-broadcast"

// Broadcaster wraps broadcast.Broadcaster with a bookkeeping layer that
// remembers every channel it registered so Close can tear them all down,
// since the upstream broadcast.Broadcaster forgets its subscribers once
// it closes.
type Broadcaster struct {
	broadcast.Broadcaster
	channels []chan interface{}
}

// NewBroadcaster constructs a Broadcaster with the given per-subscriber
// buffer length.
func NewBroadcaster(buflen int) Broadcaster {
	return Broadcaster{Broadcaster: broadcast.NewBroadcaster(buflen)}
}

// RegisterNewChan allocates, registers and returns a new subscriber
// channel of the given buffer size.
func (b *Broadcaster) RegisterNewChan(size int) chan interface{} {
	c := make(chan interface{}, size)
	b.channels = append(b.channels, c)
	b.Register(c)
	return c
}

// Close closes every channel this Broadcaster registered, then the
// underlying broadcaster itself.
func (b *Broadcaster) Close() error {
	for _, c := range b.channels {
		close(c)
	}
	return b.Broadcaster.Close()
}
