package hub

import (
	"time"

	"github.com/amerhub/amerhub/internal/logging"
	"github.com/amerhub/amerhub/internal/protocol"
)

// HeartbeatMonitor reaps half-dead connections. On each tick it probes
// sessions quiet past the probe threshold and force-closes sessions
// quiet past the close threshold. A force close goes through the same
// deregister cascade as a clean disconnect, so stale connections
// release their rooms, calls and pending requests identically.
type HeartbeatMonitor struct {
	reg        *SessionRegistry
	interval   time.Duration
	probeAfter time.Duration
	closeAfter time.Duration
	drop       func(sessionID, reason string)
	log        *logging.Logger
	stop       chan struct{}
}

// NewHeartbeatMonitor creates a monitor; call Start to run it.
func NewHeartbeatMonitor(reg *SessionRegistry, interval, probeAfter, closeAfter time.Duration, drop func(sessionID, reason string), log *logging.Logger) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		reg:        reg,
		interval:   interval,
		probeAfter: probeAfter,
		closeAfter: closeAfter,
		drop:       drop,
		log:        log.Sub("heartbeat"),
		stop:       make(chan struct{}),
	}
}

// Start launches the tick loop.
func (h *HeartbeatMonitor) Start() {
	go h.run()
}

// Stop terminates the tick loop.
func (h *HeartbeatMonitor) Stop() {
	close(h.stop)
}

func (h *HeartbeatMonitor) run() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.Tick()
		}
	}
}

// Tick runs one probe-and-reap pass. Exported so tests can drive it
// without waiting on the ticker.
func (h *HeartbeatMonitor) Tick() {
	probe, drop := h.reg.Stale(h.probeAfter, h.closeAfter)
	if len(probe) > 0 {
		ping := protocol.Envelope{Kind: protocol.KindPing}
		for _, id := range probe {
			h.reg.Send(id, ping)
		}
	}
	for _, id := range drop {
		h.log.Warn().Str("sessionId", id).Msg("closing stale session")
		h.drop(id, "heartbeat timeout")
	}
}
