package hub

import (
	"time"

	"github.com/amerhub/amerhub/internal/logging"
	"github.com/amerhub/amerhub/internal/protocol"
)

// RoomKind classifies a broadcast group.
type RoomKind string

const (
	RoomKindApplicationChat RoomKind = "application-chat"
	RoomKindAdHoc           RoomKind = "ad-hoc"
)

type room struct {
	id        string
	kind      RoomKind
	members   map[string]bool
	createdAt time.Time
	messages  int64
}

// RoomManager owns the room → member and member → room indexes. Both
// sides of the membership relation are updated inside the manager
// goroutine, in one operation, so they can never disagree.
type RoomManager struct {
	ops  chan func()
	done chan struct{}
	reg  *SessionRegistry
	log  *logging.Logger

	rooms    map[string]*room
	memberOf map[string]map[string]bool // session id → room id set
}

// NewRoomManager creates a room manager and starts its owner goroutine.
func NewRoomManager(reg *SessionRegistry, log *logging.Logger) *RoomManager {
	m := &RoomManager{
		ops:      make(chan func(), 64),
		done:     make(chan struct{}),
		reg:      reg,
		log:      log.Sub("rooms"),
		rooms:    make(map[string]*room),
		memberOf: make(map[string]map[string]bool),
	}
	go m.run()
	return m
}

func (m *RoomManager) run() {
	for {
		select {
		case <-m.done:
			return
		case op := <-m.ops:
			op()
		}
	}
}

// Stop terminates the owner goroutine.
func (m *RoomManager) Stop() {
	close(m.done)
}

func (m *RoomManager) do(fn func()) {
	ran := make(chan struct{})
	select {
	case m.ops <- func() { fn(); close(ran) }:
		<-ran
	case <-m.done:
	}
}

// Join adds a session to a room, creating the room on first join. A
// session holds at most one application-chat room at a time: joining a
// second one leaves the first. Existing members are notified; the
// joiner is not.
func (m *RoomManager) Join(sess *Session, roomID string, kind RoomKind) {
	m.do(func() {
		if kind == RoomKindApplicationChat {
			for other := range m.memberOf[sess.ID] {
				if r, ok := m.rooms[other]; ok && r.kind == RoomKindApplicationChat && other != roomID {
					m.removeLocked(sess, other, true)
				}
			}
		}

		r, ok := m.rooms[roomID]
		if !ok {
			r = &room{
				id:        roomID,
				kind:      kind,
				members:   make(map[string]bool),
				createdAt: time.Now(),
			}
			m.rooms[roomID] = r
			m.log.Debug().Str("roomId", roomID).Str("kind", string(kind)).Msg("room created")
		}
		if r.members[sess.ID] {
			return
		}

		notice := protocol.MustNew(protocol.KindRoomJoined, protocol.RoomEventData{
			RoomID:      roomID,
			SessionID:   sess.ID,
			DisplayName: sess.DisplayName,
			Kind:        string(r.kind),
		})
		for member := range r.members {
			m.reg.Send(member, notice)
		}

		r.members[sess.ID] = true
		set := m.memberOf[sess.ID]
		if set == nil {
			set = make(map[string]bool)
			m.memberOf[sess.ID] = set
		}
		set[roomID] = true
	})
}

// Leave removes a session from a room and deletes the room once empty.
func (m *RoomManager) Leave(sess *Session, roomID string) error {
	var err error
	m.do(func() {
		r, ok := m.rooms[roomID]
		if !ok {
			err = ErrRoomNotFound
			return
		}
		if !r.members[sess.ID] {
			err = ErrNotRoomMember
			return
		}
		m.removeLocked(sess, roomID, true)
	})
	return err
}

// removeLocked detaches a session from a room inside the owner loop,
// notifying remaining members when notify is set.
func (m *RoomManager) removeLocked(sess *Session, roomID string, notify bool) {
	r, ok := m.rooms[roomID]
	if !ok {
		return
	}
	delete(r.members, sess.ID)
	delete(m.memberOf[sess.ID], roomID)
	if len(m.memberOf[sess.ID]) == 0 {
		delete(m.memberOf, sess.ID)
	}

	if notify {
		notice := protocol.MustNew(protocol.KindRoomLeft, protocol.RoomEventData{
			RoomID:      roomID,
			SessionID:   sess.ID,
			DisplayName: sess.DisplayName,
		})
		for member := range r.members {
			m.reg.Send(member, notice)
		}
	}

	if len(r.members) == 0 {
		delete(m.rooms, roomID)
		m.log.Debug().Str("roomId", roomID).Msg("room destroyed")
	}
}

// Broadcast fans an envelope out to every member except the excluded
// ids, returning the count of attempted deliveries.
func (m *RoomManager) Broadcast(roomID string, env protocol.Envelope, exclude ...string) int {
	var delivered int
	m.do(func() {
		delivered = m.broadcastLocked(roomID, env, exclude...)
	})
	return delivered
}

// BroadcastFrom delivers a message from a room member to everyone else
// in the room. The membership check and the fan-out happen in one loop
// operation, so delivery order within a room is the loop's processing
// order. Non-members fail closed.
func (m *RoomManager) BroadcastFrom(senderID, roomID string, env protocol.Envelope) (int, error) {
	var (
		delivered int
		err       error
	)
	m.do(func() {
		r, ok := m.rooms[roomID]
		if !ok {
			err = ErrRoomNotFound
			return
		}
		if !r.members[senderID] {
			err = ErrNotRoomMember
			return
		}
		r.messages++
		delivered = m.broadcastLocked(roomID, env, senderID)
	})
	return delivered, err
}

func (m *RoomManager) broadcastLocked(roomID string, env protocol.Envelope, exclude ...string) int {
	r, ok := m.rooms[roomID]
	if !ok {
		return 0
	}
	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	delivered := 0
	for member := range r.members {
		if skip[member] {
			continue
		}
		if m.reg.Send(member, env) {
			delivered++
		}
	}
	return delivered
}

// IsMember reports membership of a session in a room.
func (m *RoomManager) IsMember(sessionID, roomID string) bool {
	var ok bool
	m.do(func() {
		if r, found := m.rooms[roomID]; found {
			ok = r.members[sessionID]
		}
	})
	return ok
}

// Exists reports whether a room is currently alive.
func (m *RoomManager) Exists(roomID string) bool {
	var ok bool
	m.do(func() { _, ok = m.rooms[roomID] })
	return ok
}

// RoomsOf returns the room ids a session has joined.
func (m *RoomManager) RoomsOf(sessionID string) []string {
	var out []string
	m.do(func() {
		for id := range m.memberOf[sessionID] {
			out = append(out, id)
		}
	})
	return out
}

// Members returns the current member session ids of a room.
func (m *RoomManager) Members(roomID string) []string {
	var out []string
	m.do(func() {
		if r, ok := m.rooms[roomID]; ok {
			for member := range r.members {
				out = append(out, member)
			}
		}
	})
	return out
}

// Dissolve force-empties a room without per-member leave notices. Used
// when a chat session ends and the room is torn down as a whole.
func (m *RoomManager) Dissolve(roomID string) {
	m.do(func() {
		r, ok := m.rooms[roomID]
		if !ok {
			return
		}
		for member := range r.members {
			delete(m.memberOf[member], roomID)
			if len(m.memberOf[member]) == 0 {
				delete(m.memberOf, member)
			}
		}
		delete(m.rooms, roomID)
		m.log.Debug().Str("roomId", roomID).Msg("room dissolved")
	})
}

// DropSession removes a session from every room it joined, with leave
// notifications to remaining members.
func (m *RoomManager) DropSession(sess *Session) {
	m.do(func() {
		for roomID := range m.memberOf[sess.ID] {
			m.removeLocked(sess, roomID, true)
		}
	})
}

// Count returns the number of live rooms.
func (m *RoomManager) Count() int {
	var n int
	m.do(func() { n = len(m.rooms) })
	return n
}
