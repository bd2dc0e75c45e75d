// Package broadcast carries protocol messages between the peers of one
// session.
//
// Every transport here is best effort: no acknowledgement, no retry and no
// persistence. A publisher's own messages reach each other peer in the order
// they were published and never come back to the publisher.
package broadcast

import (
	"context"
	"errors"

	"github.com/lox/deathmoves/internal/protocol"
)

// ErrClosed is returned when publishing on a closed channel.
var ErrClosed = errors.New("broadcast: channel closed")

// Handler receives one delivered message. Handlers run on the channel's
// delivery goroutine and must not block for long.
type Handler func(ctx context.Context, msg *protocol.Message)

// Channel is a session-wide publish/subscribe transport.
type Channel interface {
	// Publish sends msg to every other peer. The message's Sender is set to
	// the publishing peer.
	Publish(ctx context.Context, msg *protocol.Message) error

	// Subscribe registers h and returns a function that removes it.
	Subscribe(h Handler) (unsubscribe func())

	// Close stops delivery and releases the transport.
	Close() error
}

// handlers is a copy-on-write handler list shared by the implementations.
type handlers struct {
	next  int
	items map[int]Handler
	order []int
}

func (hs *handlers) add(h Handler) int {
	if hs.items == nil {
		hs.items = make(map[int]Handler)
	}
	id := hs.next
	hs.next++
	hs.items[id] = h
	hs.order = append(hs.order, id)
	return id
}

func (hs *handlers) remove(id int) {
	if _, ok := hs.items[id]; !ok {
		return
	}
	delete(hs.items, id)
	for i, v := range hs.order {
		if v == id {
			hs.order = append(hs.order[:i:i], hs.order[i+1:]...)
			break
		}
	}
}

func (hs *handlers) snapshot() []Handler {
	out := make([]Handler, 0, len(hs.order))
	for _, id := range hs.order {
		out = append(out, hs.items[id])
	}
	return out
}
