package hub

import (
	"time"

	"github.com/amerhub/amerhub/internal/logging"
	"github.com/amerhub/amerhub/internal/protocol"
)

// SessionInfo is a point-in-time view of a session handed out by the
// registry. It carries copies only, never live state.
type SessionInfo struct {
	ID          string
	Identity    string
	Role        string
	DisplayName string
	Presence    string
}

// SessionRegistry maps authenticated identities to live sessions. All
// state is owned by the registry goroutine; public methods post a
// closure to the loop and wait for it.
type SessionRegistry struct {
	ops  chan func()
	done chan struct{}
	log  *logging.Logger

	maxPerIdentity int

	sessions   map[string]*Session            // session id → session
	byIdentity map[string]map[string]*Session // identity → session id → session
}

// NewSessionRegistry creates a registry and starts its owner goroutine.
func NewSessionRegistry(maxPerIdentity int, log *logging.Logger) *SessionRegistry {
	r := &SessionRegistry{
		ops:            make(chan func(), 64),
		done:           make(chan struct{}),
		log:            log.Sub("registry"),
		maxPerIdentity: maxPerIdentity,
		sessions:       make(map[string]*Session),
		byIdentity:     make(map[string]map[string]*Session),
	}
	go r.run()
	return r
}

func (r *SessionRegistry) run() {
	for {
		select {
		case <-r.done:
			return
		case op := <-r.ops:
			op()
		}
	}
}

// Stop terminates the owner goroutine.
func (r *SessionRegistry) Stop() {
	close(r.done)
}

func (r *SessionRegistry) do(fn func()) {
	ran := make(chan struct{})
	select {
	case r.ops <- func() { fn(); close(ran) }:
		<-ran
	case <-r.done:
	}
}

// Register adds a session, enforcing the per-identity connection cap.
// Exceeding the cap rejects the new session; established connections
// are never evicted in its favor.
func (r *SessionRegistry) Register(s *Session) error {
	var err error
	r.do(func() {
		conns := r.byIdentity[s.Identity]
		if len(conns) >= r.maxPerIdentity {
			err = ErrConnectionLimit
			return
		}
		if conns == nil {
			conns = make(map[string]*Session)
			r.byIdentity[s.Identity] = conns
		}
		conns[s.ID] = s
		r.sessions[s.ID] = s
		r.log.Info().
			Str("sessionId", s.ID).
			Str("identity", s.Identity).
			Str("role", s.Role).
			Str("remote", s.Remote).
			Msg("session registered")
	})
	return err
}

// Deregister removes a session and returns it. The second return is
// false when the session was already gone, which makes double teardown
// (heartbeat racing an explicit disconnect) a no-op.
func (r *SessionRegistry) Deregister(sessionID string) (*Session, bool) {
	var (
		s  *Session
		ok bool
	)
	r.do(func() {
		s, ok = r.sessions[sessionID]
		if !ok {
			return
		}
		delete(r.sessions, sessionID)
		conns := r.byIdentity[s.Identity]
		delete(conns, sessionID)
		if len(conns) == 0 {
			delete(r.byIdentity, s.Identity)
		}
		r.log.Info().Str("sessionId", sessionID).Str("identity", s.Identity).Msg("session deregistered")
	})
	return s, ok
}

// Send delivers an envelope to a session, best-effort. It reports
// whether delivery was attempted: false when the session is gone or the
// transport is not writable. Nothing is acknowledged or retried here.
func (r *SessionRegistry) Send(sessionID string, env protocol.Envelope) bool {
	var ok bool
	r.do(func() {
		s, found := r.sessions[sessionID]
		if !found {
			return
		}
		ok = s.enqueue(env)
	})
	return ok
}

// Get returns the session for an id.
func (r *SessionRegistry) Get(sessionID string) (*Session, bool) {
	var (
		s  *Session
		ok bool
	)
	r.do(func() { s, ok = r.sessions[sessionID] })
	return s, ok
}

// Touch records inbound traffic for heartbeat staleness tracking.
func (r *SessionRegistry) Touch(sessionID string) {
	r.do(func() {
		if s, ok := r.sessions[sessionID]; ok {
			s.lastActive = time.Now()
		}
	})
}

// SetPresence updates a session's advertised status.
func (r *SessionRegistry) SetPresence(sessionID, status string) bool {
	var ok bool
	r.do(func() {
		s, found := r.sessions[sessionID]
		if !found {
			return
		}
		s.presence = status
		ok = true
	})
	return ok
}

// Presence returns a session's current status.
func (r *SessionRegistry) Presence(sessionID string) (string, bool) {
	var (
		status string
		ok     bool
	)
	r.do(func() {
		if s, found := r.sessions[sessionID]; found {
			status, ok = s.presence, true
		}
	})
	return status, ok
}

// ByRole returns snapshots of every session with the given role.
func (r *SessionRegistry) ByRole(role string) []SessionInfo {
	var out []SessionInfo
	r.do(func() {
		for _, s := range r.sessions {
			if s.Role != role {
				continue
			}
			out = append(out, SessionInfo{
				ID:          s.ID,
				Identity:    s.Identity,
				Role:        s.Role,
				DisplayName: s.DisplayName,
				Presence:    s.presence,
			})
		}
	})
	return out
}

// Stale partitions sessions by inactivity: ids idle longer than
// probeAfter (but not yet droppable) and ids idle longer than
// closeAfter, which the heartbeat monitor force-closes.
func (r *SessionRegistry) Stale(probeAfter, closeAfter time.Duration) (probe, drop []string) {
	now := time.Now()
	r.do(func() {
		for id, s := range r.sessions {
			idle := now.Sub(s.lastActive)
			switch {
			case idle >= closeAfter:
				drop = append(drop, id)
			case idle >= probeAfter:
				probe = append(probe, id)
			}
		}
	})
	return probe, drop
}

// Count returns the number of live sessions.
func (r *SessionRegistry) Count() int {
	var n int
	r.do(func() { n = len(r.sessions) })
	return n
}
