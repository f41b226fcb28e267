package hub

import (
	"context"
	"time"

	"github.com/amerhub/amerhub/internal/logging"
	"github.com/amerhub/amerhub/internal/protocol"
)

// StoredMessage is the durable form of a delivered chat message. The
// hub holds it only for the duration of a send; the MessageStore
// collaborator owns the durable copy.
type StoredMessage struct {
	ID         string
	RoomID     string
	SenderID   string
	SenderName string
	Content    string
	Language   string
	Origin     string
	CreatedAt  time.Time
}

// MessageStore persists delivered messages and serves chat history.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg StoredMessage) error
	History(ctx context.Context, roomID string, limit int) ([]StoredMessage, error)
}

// TextAssistant produces an optional automated reply for a room. Its
// failures are never surfaced to the room.
type TextAssistant interface {
	Reply(ctx context.Context, roomID, content, language string) (string, error)
}

// ApplicationDirectory supplies the rooms an identity should auto-join
// on connect, derived from the application records it may access.
type ApplicationDirectory interface {
	RoomsFor(ctx context.Context, identity, role string) ([]string, error)
}

// Options tune the hub's limits and timers.
type Options struct {
	MaxConnectionsPerIdentity int

	MessageLimit  int
	MessageWindow time.Duration
	AttemptLimit  int
	AttemptWindow time.Duration

	HeartbeatInterval time.Duration
	ProbeAfter        time.Duration
	CloseAfter        time.Duration

	RequestTTL   time.Duration
	HistoryLimit int

	AssistTimeout time.Duration
}

// Hub wires the coordination core together and owns the one teardown
// path every disconnect flavor funnels into.
type Hub struct {
	Registry   *SessionRegistry
	Rooms      *RoomManager
	Matchmaker *Matchmaker
	Calls      *CallCoordinator
	Router     *MessageRouter
	Limits     *RateLimiter

	heartbeat *HeartbeatMonitor
	directory ApplicationDirectory
	log       *logging.Logger
}

// New assembles a hub and starts its owner goroutines, including the
// heartbeat monitor. assist may be nil to disable automated replies.
func New(opts Options, store MessageStore, assist TextAssistant, directory ApplicationDirectory, log *logging.Logger) *Hub {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 30 * time.Second
	}
	if opts.ProbeAfter <= 0 {
		opts.ProbeAfter = 2 * opts.HeartbeatInterval
	}
	if opts.CloseAfter <= opts.ProbeAfter {
		opts.CloseAfter = 2 * opts.ProbeAfter
	}
	h := &Hub{
		directory: directory,
		log:       log.Sub("hub"),
	}
	h.Registry = NewSessionRegistry(opts.MaxConnectionsPerIdentity, log)
	h.Rooms = NewRoomManager(h.Registry, log)
	h.Matchmaker = NewMatchmaker(h.Registry, h.Rooms, store, opts.RequestTTL, opts.HistoryLimit, log)
	h.Calls = NewCallCoordinator(h.Registry, h.Rooms, log)
	h.Router = NewMessageRouter(h.Registry, h.Rooms, store, assist, opts.AssistTimeout, log)
	h.Limits = NewRateLimiter(opts.MessageLimit, opts.MessageWindow, opts.AttemptLimit, opts.AttemptWindow)
	h.heartbeat = NewHeartbeatMonitor(h.Registry, opts.HeartbeatInterval, opts.ProbeAfter, opts.CloseAfter, h.Deregister, log)
	h.heartbeat.Start()
	return h
}

// Deregister is the sole session teardown path. Heartbeat timeouts,
// read-loop errors and explicit closes all reduce to this call; running
// it twice leaves the same state as running it once.
func (h *Hub) Deregister(sessionID, reason string) {
	sess, ok := h.Registry.Deregister(sessionID)
	if !ok {
		return
	}
	h.log.Info().Str("sessionId", sessionID).Str("reason", reason).Msg("tearing down session")

	h.Matchmaker.DropSession(sess)
	h.Calls.DropSession(sess)
	h.Rooms.DropSession(sess)
	h.Limits.Forget(sessionID)
	sess.close()
}

// AutoJoin places a freshly registered session into the rooms its
// identity is entitled to and returns the joined room ids.
func (h *Hub) AutoJoin(ctx context.Context, sess *Session) []string {
	roomIDs, err := h.directory.RoomsFor(ctx, sess.Identity, sess.Role)
	if err != nil {
		h.log.Warn().Err(err).Str("identity", sess.Identity).Msg("directory lookup failed")
		return nil
	}
	// Per-application broadcast groups are ad-hoc rooms: an identity may
	// follow several applications at once. The one-at-a-time rule applies
	// to the matchmaker's chat rooms only.
	for _, roomID := range roomIDs {
		h.Rooms.Join(sess, roomID, RoomKindAdHoc)
	}
	return roomIDs
}

// Metrics reports current hub counters.
func (h *Hub) Metrics() protocol.MetricsData {
	return protocol.MetricsData{
		Sessions:        h.Registry.Count(),
		Rooms:           h.Rooms.Count(),
		PendingRequests: h.Matchmaker.PendingCount(),
		ActiveChats:     h.Matchmaker.ActiveChats(),
		ActiveCalls:     h.Calls.Count(),
		MessagesRouted:  h.Router.Routed(),
	}
}

// Close stops all owner goroutines.
func (h *Hub) Close() {
	h.heartbeat.Stop()
	h.Limits.Stop()
	h.Matchmaker.Stop()
	h.Calls.Stop()
	h.Rooms.Stop()
	h.Registry.Stop()
}
