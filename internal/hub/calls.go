package hub

import (
	"time"

	"github.com/google/uuid"

	"github.com/amerhub/amerhub/internal/logging"
	"github.com/amerhub/amerhub/internal/protocol"
)

// Voice call statuses and kinds.
const (
	CallStatusWaiting = "waiting"
	CallStatusActive  = "active"

	CallKindAudio = "audio"
	CallKindVideo = "video"
)

type voiceCall struct {
	id           string
	roomID       string
	kind         string
	status       string
	initiatorID  string
	participants map[string]bool
	createdAt    time.Time
}

// CallCoordinator tracks voice-call sessions and relays opaque
// signaling payloads between participants. The call table is owned by
// one goroutine; payloads are never inspected.
type CallCoordinator struct {
	ops   chan func()
	done  chan struct{}
	reg   *SessionRegistry
	rooms *RoomManager
	log   *logging.Logger

	calls     map[string]*voiceCall
	bySession map[string]map[string]bool // session id → call id set
}

// NewCallCoordinator creates a coordinator and starts its owner goroutine.
func NewCallCoordinator(reg *SessionRegistry, rooms *RoomManager, log *logging.Logger) *CallCoordinator {
	c := &CallCoordinator{
		ops:       make(chan func(), 64),
		done:      make(chan struct{}),
		reg:       reg,
		rooms:     rooms,
		log:       log.Sub("calls"),
		calls:     make(map[string]*voiceCall),
		bySession: make(map[string]map[string]bool),
	}
	go c.run()
	return c
}

func (c *CallCoordinator) run() {
	for {
		select {
		case <-c.done:
			return
		case op := <-c.ops:
			op()
		}
	}
}

// Stop terminates the owner goroutine.
func (c *CallCoordinator) Stop() {
	close(c.done)
}

func (c *CallCoordinator) do(fn func()) {
	ran := make(chan struct{})
	select {
	case c.ops <- func() { fn(); close(ran) }:
		<-ran
	case <-c.done:
	}
}

// Start allocates a call scoped to a room the initiator belongs to and
// invites the other room members. The initiator is the first
// participant; the call waits until a second one joins.
func (c *CallCoordinator) Start(sess *Session, roomID, kind string) (protocol.CallEventData, error) {
	var (
		created protocol.CallEventData
		err     error
	)
	if kind != CallKindVideo {
		kind = CallKindAudio
	}
	c.do(func() {
		if !c.rooms.IsMember(sess.ID, roomID) {
			err = ErrNotRoomMember
			return
		}
		call := &voiceCall{
			id:           uuid.New().String(),
			roomID:       roomID,
			kind:         kind,
			status:       CallStatusWaiting,
			initiatorID:  sess.ID,
			participants: map[string]bool{sess.ID: true},
			createdAt:    time.Now(),
		}
		c.calls[call.id] = call
		c.track(sess.ID, call.id)

		c.rooms.Broadcast(roomID, protocol.MustNew(protocol.KindVoiceCallStarted, protocol.CallEventData{
			CallID:      call.id,
			RoomID:      roomID,
			Kind:        kind,
			SessionID:   sess.ID,
			DisplayName: sess.DisplayName,
			Status:      call.status,
		}), sess.ID)

		c.log.Info().Str("callId", call.id).Str("roomId", roomID).Str("kind", kind).Msg("call started")

		created = protocol.CallEventData{
			CallID:       call.id,
			RoomID:       roomID,
			Kind:         kind,
			Status:       call.status,
			Participants: 1,
		}
	})
	return created, err
}

// Join adds a participant and flips the call active once two or more
// are present. Existing participants learn about the join; this is how
// participant-count UI state stays consistent.
func (c *CallCoordinator) Join(sess *Session, callID string) (protocol.CallEventData, error) {
	var (
		joined protocol.CallEventData
		err    error
	)
	c.do(func() {
		call, ok := c.calls[callID]
		if !ok {
			err = ErrCallNotFound
			return
		}
		if call.participants[sess.ID] {
			err = ErrAlreadyParticipant
			return
		}

		notice := protocol.MustNew(protocol.KindParticipantJoined, protocol.CallEventData{
			CallID:       callID,
			SessionID:    sess.ID,
			DisplayName:  sess.DisplayName,
			Participants: len(call.participants) + 1,
		})
		for participant := range call.participants {
			c.reg.Send(participant, notice)
		}

		call.participants[sess.ID] = true
		c.track(sess.ID, callID)
		if len(call.participants) >= 2 {
			call.status = CallStatusActive
		}

		joined = protocol.CallEventData{
			CallID:       callID,
			RoomID:       call.roomID,
			Kind:         call.kind,
			Status:       call.status,
			Participants: len(call.participants),
		}
	})
	return joined, err
}

// Signal relays an opaque media-negotiation payload to a named target.
// The payload is forwarded byte-for-byte; both ends must be current
// participants.
func (c *CallCoordinator) Signal(sess *Session, data protocol.VoiceSignalData) error {
	var err error
	c.do(func() {
		call, ok := c.calls[data.CallID]
		if !ok {
			err = ErrCallNotFound
			return
		}
		if !call.participants[sess.ID] {
			err = ErrNotParticipant
			return
		}
		if !call.participants[data.Target] {
			err = ErrNotParticipant
			return
		}
		c.reg.Send(data.Target, protocol.MustNew(protocol.KindVoiceSignal, protocol.VoiceSignalData{
			CallID:  data.CallID,
			From:    sess.ID,
			Payload: data.Payload,
		}))
	})
	return err
}

// End terminates a call for everyone. Only a participant may end it.
func (c *CallCoordinator) End(sess *Session, callID string) error {
	var err error
	c.do(func() {
		call, ok := c.calls[callID]
		if !ok {
			err = ErrCallNotFound
			return
		}
		if !call.participants[sess.ID] {
			err = ErrNotParticipant
			return
		}
		notice := protocol.MustNew(protocol.KindCallEnded, protocol.CallRefData{CallID: callID})
		for participant := range call.participants {
			c.reg.Send(participant, notice)
			c.untrack(participant, callID)
		}
		delete(c.calls, callID)
		c.log.Info().Str("callId", callID).Msg("call ended")
	})
	return err
}

// DropSession removes a disconnecting session from every call it is in.
// Remaining participants are told; a call with nobody left is removed.
func (c *CallCoordinator) DropSession(sess *Session) {
	c.do(func() {
		for callID := range c.bySession[sess.ID] {
			call, ok := c.calls[callID]
			if !ok {
				continue
			}
			delete(call.participants, sess.ID)
			if len(call.participants) == 0 {
				delete(c.calls, callID)
				continue
			}
			notice := protocol.MustNew(protocol.KindParticipantLeft, protocol.CallEventData{
				CallID:       callID,
				SessionID:    sess.ID,
				DisplayName:  sess.DisplayName,
				Participants: len(call.participants),
			})
			for participant := range call.participants {
				c.reg.Send(participant, notice)
			}
		}
		delete(c.bySession, sess.ID)
	})
}

func (c *CallCoordinator) track(sessionID, callID string) {
	set := c.bySession[sessionID]
	if set == nil {
		set = make(map[string]bool)
		c.bySession[sessionID] = set
	}
	set[callID] = true
}

func (c *CallCoordinator) untrack(sessionID, callID string) {
	delete(c.bySession[sessionID], callID)
	if len(c.bySession[sessionID]) == 0 {
		delete(c.bySession, sessionID)
	}
}

// Count returns the number of live calls.
func (c *CallCoordinator) Count() int {
	var n int
	c.do(func() { n = len(c.calls) })
	return n
}
