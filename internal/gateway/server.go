// Package gateway accepts WebSocket connections, authenticates them,
// and dispatches typed envelopes into the hub.
package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/amerhub/amerhub/internal/config"
	"github.com/amerhub/amerhub/internal/hub"
	"github.com/amerhub/amerhub/internal/logging"
	"github.com/amerhub/amerhub/internal/protocol"
	"github.com/amerhub/amerhub/internal/version"
)

// maxEnvelopeBytes caps a single inbound envelope.
const maxEnvelopeBytes = 256 * 1024

// Server is the amerhub HTTP + WebSocket connection gateway.
type Server struct {
	cfg     config.Config
	hub     *hub.Hub
	auth    *Verifier
	log     *logging.Logger
	version string

	startedAt  time.Time
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// New creates a gateway server in front of the given hub.
func New(cfg config.Config, h *hub.Hub, log *logging.Logger) *Server {
	allowedOrigins := cfg.Hub.AllowedOrigins
	return &Server{
		cfg:     cfg,
		hub:     h,
		auth:    NewVerifier(cfg.Hub.Auth.Secret),
		log:     log.Sub("gateway"),
		version: version.Version,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(allowedOrigins),
		},
	}
}

// checkWebSocketOrigin returns a function that validates WebSocket
// Origin headers. With no origins configured, only same-origin or
// non-browser clients are allowed.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.HubConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening for HTTP and WebSocket connections. It blocks
// until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Hub)

	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)

	handler := withMiddleware(mux, s.log, s.cfg.Hub.AllowedOrigins)

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
		BaseContext: func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if s.cfg.Hub.TLS.Enabled {
		cert, err := tls.LoadX509KeyPair(s.cfg.Hub.TLS.CertPath, s.cfg.Hub.TLS.KeyPath)
		if err != nil {
			ln.Close()
			return fmt.Errorf("loading TLS certificate: %w", err)
		}
		tlsCfg := &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
		ln = tls.NewListener(ln, tlsCfg)
		s.log.Info().Msg("TLS enabled")
	} else if s.cfg.Hub.Bind != "loopback" {
		s.log.Warn().Msg("TLS is not enabled, credentials will be transmitted in cleartext")
	}

	s.startedAt = time.Now()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Hub.Bind).
		Msg("gateway server ready")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
		s.hub.Close()
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("/", handleNotFound)
}

// handleWebSocket runs the full connection lifecycle: attempt rate
// limiting, credential verification, upgrade, registration, welcome,
// auto-join, and the read loop. A failed auth never leaves partial
// state behind: it is rejected before any session exists.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.hub.Limits.AllowAttempt(r.RemoteAddr) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("connection attempt rate limited")
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	claims, err := s.auth.VerifyRequest(r)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("credential rejected")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxEnvelopeBytes)

	sess := hub.NewSession(conn, claims.Identity, claims.Role, claims.DisplayName, r.RemoteAddr, s.log.Sub("ws"))

	if err := s.hub.Registry.Register(sess); err != nil {
		s.log.Warn().
			Str("identity", claims.Identity).
			Msg("connection cap exceeded, rejecting")
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, protocol.CodeConnectionLimit),
			time.Now().Add(time.Second))
		sess.Close()
		return
	}
	defer s.hub.Deregister(sess.ID, "connection closed")

	s.sendWelcome(sess)

	rooms := s.hub.AutoJoin(r.Context(), sess)
	for _, roomID := range rooms {
		s.hub.Registry.Send(sess.ID, protocol.MustNew(protocol.KindRoomJoined, protocol.RoomEventData{
			RoomID:    roomID,
			SessionID: sess.ID,
			Kind:      string(hub.RoomKindAdHoc),
		}))
	}

	s.readLoop(sess, conn)
}

// sendWelcome advertises capabilities and the limits enforced on this
// connection.
func (s *Server) sendWelcome(sess *hub.Session) {
	s.hub.Registry.Send(sess.ID, protocol.MustNew(protocol.KindConnection, protocol.WelcomeData{
		SessionID:   sess.ID,
		Identity:    sess.Identity,
		Role:        sess.Role,
		DisplayName: sess.DisplayName,
		Capabilities: []string{
			"rooms", "chat", "matchmaking", "voice-signaling", "presence",
		},
		Limits: protocol.LimitsData{
			MessagesPerWindow: s.cfg.Hub.Limits.MessagesPerMinute,
			WindowSeconds:     60,
			MaxConnections:    s.cfg.Hub.Limits.MaxConnectionsPerUser,
		},
		Server: protocol.ServerDetail{Version: s.version},
	}))
}

// readLoop processes inbound envelopes until the connection errors out.
func (s *Server) readLoop(sess *hub.Session, conn *websocket.Conn) {
	for {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("sessionId", sess.ID).Msg("client closed connection")
			} else {
				s.log.Debug().Err(err).Str("sessionId", sess.ID).Msg("read error")
			}
			return
		}

		s.hub.Registry.Touch(sess.ID)

		if env.Kind != protocol.KindPing && !s.hub.Limits.AllowMessage(sess.ID) {
			s.hub.Registry.Send(sess.ID, protocol.Errorf(protocol.CodeRateLimitExceeded, "message rate limit exceeded"))
			continue
		}

		s.dispatch(sess, env)
	}
}
