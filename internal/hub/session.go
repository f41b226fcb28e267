// Package hub implements the real-time coordination core: session
// registry, room membership, help-request matchmaking, voice-call
// signaling, message routing, rate limiting and heartbeat reaping.
//
// Each shared index (sessions, rooms, pending requests, calls) is owned
// by a single goroutine and reached via its ops channel, so membership
// and matchmaking invariants hold without shared-memory locking.
package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amerhub/amerhub/internal/logging"
	"github.com/amerhub/amerhub/internal/protocol"
)

// Roles carried in the bearer credential.
const (
	RoleApplicant = "applicant"
	RoleOfficer   = "officer"
	RoleAdmin     = "admin"
)

// Presence states a session may advertise.
const (
	StatusOnline = "online"
	StatusAway   = "away"
	StatusBusy   = "busy"
)

// ValidRole reports whether role is one the hub understands.
func ValidRole(role string) bool {
	return role == RoleApplicant || role == RoleOfficer || role == RoleAdmin
}

// ValidStatus reports whether status is a known presence value.
func ValidStatus(status string) bool {
	return status == StatusOnline || status == StatusAway || status == StatusBusy
}

// Conn is the transport handle a session writes to. *websocket.Conn
// satisfies it; tests substitute an in-memory fake.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Session is one authenticated connection. Identity, role and display
// name are immutable after construction. Presence and last-activity are
// owned by the registry loop; nothing outside the registry touches them.
type Session struct {
	ID          string
	Identity    string
	Role        string
	DisplayName string
	Remote      string
	ConnectedAt time.Time

	conn Conn
	out  chan protocol.Envelope
	done chan struct{}
	once sync.Once
	log  *logging.Logger

	// registry-loop state
	presence   string
	lastActive time.Time
}

// sendQueueSize bounds the per-session outbound buffer. A full queue
// means the peer is not draining and the session is treated as not
// writable.
const sendQueueSize = 64

// NewSession wraps an authenticated connection and starts its writer.
func NewSession(conn Conn, identity, role, displayName, remote string, log *logging.Logger) *Session {
	s := &Session{
		ID:          uuid.New().String(),
		Identity:    identity,
		Role:        role,
		DisplayName: displayName,
		Remote:      remote,
		ConnectedAt: time.Now(),
		conn:        conn,
		out:         make(chan protocol.Envelope, sendQueueSize),
		done:        make(chan struct{}),
		log:         log,
		presence:    StatusOnline,
		lastActive:  time.Now(),
	}
	go s.writePump()
	return s
}

// writePump serializes all writes to the transport.
func (s *Session) writePump() {
	for {
		select {
		case <-s.done:
			return
		case env := <-s.out:
			if err := s.conn.WriteJSON(env); err != nil {
				s.log.Debug().Err(err).Str("sessionId", s.ID).Msg("transport write failed")
				s.close()
				return
			}
		}
	}
}

// enqueue attempts a non-blocking handoff to the writer. It reports
// whether delivery was attempted; false means the session is closed or
// its queue is full.
func (s *Session) enqueue(env protocol.Envelope) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.out <- env:
		return true
	default:
		return false
	}
}

// close stops the writer and closes the transport. Safe to call more
// than once.
func (s *Session) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// Close shuts the session down without registry involvement. For
// registered sessions the hub's deregister path is the right teardown;
// this exists for sessions rejected before registration.
func (s *Session) Close() {
	s.close()
}
