package hub

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/amerhub/amerhub/internal/logging"
	"github.com/amerhub/amerhub/internal/protocol"
)

// Message origins.
const (
	OriginHuman     = "human"
	OriginAutomated = "automated"
)

// MessageRouter validates, fans out and persists chat messages.
// Authorization is room membership, nothing else. Persistence and
// delivery are two independent effects of one send: a storage failure
// is logged and never blocks or masquerades as a delivery failure.
type MessageRouter struct {
	reg    *SessionRegistry
	rooms  *RoomManager
	store  MessageStore
	assist TextAssistant // nil disables automated replies
	log    *logging.Logger

	assistTimeout time.Duration
	routed        atomic.Int64
}

// NewMessageRouter creates a router. assist may be nil.
func NewMessageRouter(reg *SessionRegistry, rooms *RoomManager, store MessageStore, assist TextAssistant, assistTimeout time.Duration, log *logging.Logger) *MessageRouter {
	return &MessageRouter{
		reg:           reg,
		rooms:         rooms,
		store:         store,
		assist:        assist,
		assistTimeout: assistTimeout,
		log:           log.Sub("router"),
	}
}

// Send delivers a chat message from a session to a room it belongs to.
// Non-members fail closed with ErrNotRoomMember. On success the message
// is persisted, broadcast to everyone but the sender, and a delivery
// receipt returned for the sender.
func (r *MessageRouter) Send(sess *Session, data protocol.ChatMessageData) (protocol.MessageSentData, error) {
	msg := StoredMessage{
		ID:         uuid.New().String(),
		RoomID:     data.RoomID,
		SenderID:   sess.Identity,
		SenderName: sess.DisplayName,
		Content:    data.Content,
		Language:   data.Language,
		Origin:     OriginHuman,
		CreatedAt:  time.Now(),
	}

	env := protocol.MustNew(protocol.KindNewMessage, protocol.NewMessageData{
		MessageID:  msg.ID,
		RoomID:     msg.RoomID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Content:    msg.Content,
		Language:   msg.Language,
		Origin:     msg.Origin,
		Timestamp:  msg.CreatedAt,
	})

	delivered, err := r.rooms.BroadcastFrom(sess.ID, data.RoomID, env)
	if err != nil {
		return protocol.MessageSentData{}, err
	}
	r.routed.Add(1)

	r.persist(msg)

	if r.assist != nil && sess.Role == RoleApplicant && !r.officerPresent(data.RoomID, sess.ID) {
		go r.autoReply(data.RoomID, data.Content, data.Language)
	}

	return protocol.MessageSentData{
		MessageID: msg.ID,
		RoomID:    msg.RoomID,
		Timestamp: msg.CreatedAt,
		Delivered: delivered,
	}, nil
}

// officerPresent reports whether any member of the room other than the
// sender is an officer. Automated replies only fill in when no live
// officer is around to answer.
func (r *MessageRouter) officerPresent(roomID, senderID string) bool {
	for _, member := range r.rooms.Members(roomID) {
		if member == senderID {
			continue
		}
		if s, ok := r.reg.Get(member); ok && s.Role == RoleOfficer {
			return true
		}
	}
	return false
}

func (r *MessageRouter) persist(msg StoredMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.store.SaveMessage(ctx, msg); err != nil {
		r.log.Error().Err(err).Str("roomId", msg.RoomID).Msg("message persistence failed")
	}
}

// autoReply asks the assistant for a reply off the hot path. Failures
// are swallowed; the result is discarded when the room is gone by the
// time it arrives.
func (r *MessageRouter) autoReply(roomID, content, language string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.assistTimeout)
	defer cancel()

	reply, err := r.assist.Reply(ctx, roomID, content, language)
	if err != nil {
		r.log.Warn().Err(err).Str("roomId", roomID).Msg("assistant reply failed")
		return
	}
	if reply == "" {
		return
	}
	if !r.rooms.Exists(roomID) {
		r.log.Debug().Str("roomId", roomID).Msg("assistant reply discarded, room gone")
		return
	}

	msg := StoredMessage{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		SenderID:  "assistant",
		Content:   reply,
		Language:  language,
		Origin:    OriginAutomated,
		CreatedAt: time.Now(),
	}
	r.persist(msg)
	r.rooms.Broadcast(roomID, protocol.MustNew(protocol.KindNewMessage, protocol.NewMessageData{
		MessageID: msg.ID,
		RoomID:    msg.RoomID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		Language:  msg.Language,
		Origin:    msg.Origin,
		Timestamp: msg.CreatedAt,
	}))
	r.routed.Add(1)
}

// Routed returns the count of messages fanned out since start.
func (r *MessageRouter) Routed() int64 {
	return r.routed.Load()
}
