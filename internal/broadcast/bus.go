package broadcast

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/lox/deathmoves/internal/protocol"
)

const peerQueueSize = 256

// DropFunc decides whether the message addressed to the peer with userID is
// lost in transit. It exists to exercise lossy delivery in tests.
type DropFunc func(userID string, msg *protocol.Message) bool

// Bus is an in-process session. Each joined Peer is a Channel.
type Bus struct {
	mu     sync.Mutex
	peers  []*Peer
	drop   DropFunc
	logger *log.Logger
}

// NewBus creates an empty session.
func NewBus(logger *log.Logger) *Bus {
	return &Bus{logger: logger.WithPrefix("bus")}
}

// SetDrop installs a loss filter. nil delivers everything.
func (b *Bus) SetDrop(fn DropFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drop = fn
}

// Join adds a peer and sends the updated roster to everyone.
func (b *Bus) Join(p protocol.Participant) *Peer {
	ctx, cancel := context.WithCancel(context.Background())
	peer := &Peer{
		bus:    b,
		self:   p,
		queue:  make(chan *protocol.Message, peerQueueSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go peer.deliver()

	b.mu.Lock()
	b.peers = append(b.peers, peer)
	b.mu.Unlock()

	b.logger.Debug("Peer joined", "user", p.UserID)
	b.sendRoster()
	return peer
}

// Participants returns the joined peers in join order.
func (b *Bus) Participants() []protocol.Participant {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]protocol.Participant, 0, len(b.peers))
	for _, p := range b.peers {
		out = append(out, p.self)
	}
	return out
}

func (b *Bus) leave(peer *Peer) {
	b.mu.Lock()
	for i, p := range b.peers {
		if p == peer {
			b.peers = append(b.peers[:i:i], b.peers[i+1:]...)
			break
		}
	}
	b.mu.Unlock()
	b.logger.Debug("Peer left", "user", peer.self.UserID)
	b.sendRoster()
}

func (b *Bus) sendRoster() {
	msg, err := protocol.NewMessage(protocol.Roster{Participants: b.Participants()})
	if err != nil {
		b.logger.Error("Failed to build roster", "error", err)
		return
	}
	b.relay(nil, msg)
}

// relay enqueues msg for every peer except from. Holding the lock while
// enqueueing keeps each sender's stream in order.
func (b *Bus) relay(from *Peer, msg *protocol.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, p := range b.peers {
		if p == from {
			continue
		}
		if b.drop != nil && b.drop(p.self.UserID, msg) {
			b.logger.Debug("Dropped message", "type", msg.Type, "to", p.self.UserID)
			continue
		}
		select {
		case p.queue <- msg.Clone():
		default:
			b.logger.Warn("Peer queue full, dropping message", "type", msg.Type, "to", p.self.UserID)
		}
	}
}

// Peer is one participant's view of a Bus.
type Peer struct {
	bus   *Bus
	self  protocol.Participant
	queue chan *protocol.Message

	mu sync.Mutex
	hs handlers

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Self returns the participant this peer was joined as.
func (p *Peer) Self() protocol.Participant {
	return p.self
}

// Publish implements Channel.
func (p *Peer) Publish(ctx context.Context, msg *protocol.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.ctx.Err() != nil {
		return ErrClosed
	}
	out := msg.Clone()
	out.Sender = p.self.UserID
	p.bus.relay(p, out)
	return nil
}

// Subscribe implements Channel.
func (p *Peer) Subscribe(h Handler) func() {
	p.mu.Lock()
	id := p.hs.add(h)
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			p.hs.remove(id)
			p.mu.Unlock()
		})
	}
}

// Close leaves the bus and stops delivery. It must not be called from a
// Handler.
func (p *Peer) Close() error {
	p.closeOnce.Do(func() {
		p.bus.leave(p)
		p.cancel()
		<-p.done
	})
	return nil
}

func (p *Peer) deliver() {
	defer close(p.done)
	for {
		select {
		case msg := <-p.queue:
			if msg.Sender != "" && msg.Sender == p.self.UserID {
				continue
			}
			p.mu.Lock()
			hs := p.hs.snapshot()
			p.mu.Unlock()
			for _, h := range hs {
				h(p.ctx, msg)
			}
		case <-p.ctx.Done():
			return
		}
	}
}
