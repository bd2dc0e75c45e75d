package broadcast

import (
	"context"
	"sync"

	"github.com/lox/deathmoves/internal/protocol"
)

// Roster tracks who is connected to the session from ROSTER messages. The
// local participant is known before the first roster arrives; after that
// the roster's own entry for it wins, since the hub holds the authenticated
// identity.
type Roster struct {
	self protocol.Participant

	mu           sync.RWMutex
	participants []protocol.Participant
}

// NewRoster creates a roster for the local participant self.
func NewRoster(self protocol.Participant) *Roster {
	return &Roster{self: self, participants: []protocol.Participant{self}}
}

// Attach subscribes the roster to ch.
func (r *Roster) Attach(ch Channel) func() {
	return ch.Subscribe(r.Handle)
}

// Handle applies ROSTER messages and ignores everything else.
func (r *Roster) Handle(_ context.Context, msg *protocol.Message) {
	if msg.Type != protocol.TypeRoster {
		return
	}
	payload, err := protocol.Decode(msg)
	if err != nil {
		return
	}
	r.Update(payload.(protocol.Roster))
}

// Update replaces the known participants. Duplicate user ids keep the first
// entry. The local participant keeps its place at the front and takes its
// name and privilege from the roster when it is listed there.
func (r *Roster) Update(roster protocol.Roster) {
	self := r.self
	seen := make(map[string]bool, len(roster.Participants))
	next := []protocol.Participant{self}
	for _, p := range roster.Participants {
		if p.UserID == "" || seen[p.UserID] {
			continue
		}
		seen[p.UserID] = true
		if p.UserID == self.UserID {
			next[0] = p
			continue
		}
		next = append(next, p)
	}

	r.mu.Lock()
	r.participants = next
	r.mu.Unlock()
}

// Participants returns everyone connected, self first.
func (r *Roster) Participants() []protocol.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]protocol.Participant(nil), r.participants...)
}

// IsPrivileged reports whether userID is a connected game master.
func (r *Roster) IsPrivileged(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.participants {
		if p.UserID == userID {
			return p.Privileged
		}
	}
	return false
}

// EligibleParticipants returns the connected non-privileged participants.
func (r *Roster) EligibleParticipants() []protocol.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []protocol.Participant
	for _, p := range r.participants {
		if !p.Privileged {
			out = append(out, p)
		}
	}
	return out
}
