package hub

import (
	"net"
	"sync"
	"time"
)

// countWindow anchors at the first counted event; once the interval has
// elapsed the next event starts a fresh window.
type countWindow struct {
	start time.Time
	count int
}

// RateLimiter applies two independent ceilings: per-session message
// rate and per-source-address connection-attempt rate. Counters are
// plain mutex-guarded maps; a cleanup goroutine prunes idle keys.
type RateLimiter struct {
	mu       sync.Mutex
	messages map[string]*countWindow
	attempts map[string]*countWindow

	msgLimit   int
	msgWindow  time.Duration
	connLimit  int
	connWindow time.Duration

	stop chan struct{}
}

// NewRateLimiter creates a limiter and starts its cleanup loop.
func NewRateLimiter(msgLimit int, msgWindow time.Duration, connLimit int, connWindow time.Duration) *RateLimiter {
	l := &RateLimiter{
		messages:   make(map[string]*countWindow),
		attempts:   make(map[string]*countWindow),
		msgLimit:   msgLimit,
		msgWindow:  msgWindow,
		connLimit:  connLimit,
		connWindow: connWindow,
		stop:       make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Stop terminates the cleanup loop.
func (l *RateLimiter) Stop() {
	close(l.stop)
}

// AllowMessage counts one message for a session and reports whether it
// is within the ceiling. Exactly the ceiling count fits in one window;
// the next message is rejected until the window elapses.
func (l *RateLimiter) AllowMessage(sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return allow(l.messages, sessionID, l.msgLimit, l.msgWindow)
}

// AllowAttempt counts one connection attempt for a source address. The
// port is stripped so all connections from one host share a window.
func (l *RateLimiter) AllowAttempt(remoteAddr string) bool {
	host, _, _ := net.SplitHostPort(remoteAddr)
	if host == "" {
		host = remoteAddr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return allow(l.attempts, host, l.connLimit, l.connWindow)
}

// Forget drops a session's message counter on disconnect.
func (l *RateLimiter) Forget(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.messages, sessionID)
}

func allow(m map[string]*countWindow, key string, limit int, window time.Duration) bool {
	now := time.Now()
	w, ok := m[key]
	if !ok || now.Sub(w.start) >= window {
		m[key] = &countWindow{start: now, count: 1}
		return limit >= 1
	}
	w.count++
	return w.count <= limit
}

// cleanupLoop prunes windows whose interval has long elapsed.
func (l *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := time.Now()
			for key, w := range l.messages {
				if now.Sub(w.start) >= 2*l.msgWindow {
					delete(l.messages, key)
				}
			}
			for key, w := range l.attempts {
				if now.Sub(w.start) >= 2*l.connWindow {
					delete(l.attempts, key)
				}
			}
			l.mu.Unlock()
		}
	}
}
