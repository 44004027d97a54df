// Package room implements named broadcast groups and the registry that owns
// them.
//
// A Room only keeps references to its members; members are owned by the
// server. All Room and Registry methods are safe for concurrent use.
package room

import (
	"sync"

	"github.com/Tyrowin/linechat/internal/protocol"
	"go.uber.org/zap"
)

// Member is a participant that can receive room broadcasts.
//
// PostRoomMessage is called while the room lock is held and must not
// block.
type Member interface {
	Name() string
	PostRoomMessage(text string, from *Room)
}

// Room is a named set of members. Enter, Leave and Post are serialized by a
// single mutex, so a member that has left never receives a later post.
type Room struct {
	name    string
	logger  *zap.SugaredLogger
	mu      sync.Mutex
	members map[Member]struct{}
}

func newRoom(name string, logger *zap.SugaredLogger) *Room {
	return &Room{
		name:    name,
		logger:  logger.With("room", name),
		members: make(map[Member]struct{}),
	}
}

// Name returns the room's name.
func (r *Room) Name() string {
	return r.name
}

// Enter adds m to the room. Entering twice has no further effect.
func (r *Room) Enter(m Member) {
	r.mu.Lock()
	r.members[m] = struct{}{}
	count := len(r.members)
	r.mu.Unlock()

	r.logger.Debugw("member entered", "member", m.Name(), "members", count)
}

// Leave removes m from the room. It is a no-op if m is not a member.
func (r *Room) Leave(m Member) {
	r.mu.Lock()
	_, ok := r.members[m]
	delete(r.members, m)
	count := len(r.members)
	r.mu.Unlock()

	if ok {
		r.logger.Debugw("member left", "member", m.Name(), "members", count)
	}
}

// Post relays text from sender to every other member and returns the number
// of recipients. Delivery is fire-and-forget.
func (r *Room) Post(sender Member, text string) int {
	line := protocol.FormatRoomMessage(r.name, sender.Name(), text)

	r.mu.Lock()
	defer r.mu.Unlock()

	delivered := 0
	for m := range r.members {
		if m == sender {
			continue
		}
		m.PostRoomMessage(line, r)
		delivered++
	}
	return delivered
}

// Has reports whether m is currently a member.
func (r *Room) Has(m Member) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.members[m]
	return ok
}

// Len returns the number of members.
func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.members)
}
