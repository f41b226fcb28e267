package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amerhub/amerhub/internal/config"
	"github.com/amerhub/amerhub/internal/hub"
	"github.com/amerhub/amerhub/internal/logging"
	"github.com/amerhub/amerhub/internal/protocol"
	"github.com/amerhub/amerhub/internal/store"
)

type testEnv struct {
	ts   *httptest.Server
	hub  *hub.Hub
	dir  *store.MemoryDirectory
	auth *Verifier
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Defaults()
	cfg.Hub.Auth.Secret = testSecret
	cfg.Hub.Limits.MessagesPerMinute = 100
	cfg.Hub.Limits.ConnectionAttemptsPerMinute = 100
	cfg.Hub.Limits.MaxConnectionsPerUser = 3
	if mutate != nil {
		mutate(&cfg)
	}

	log := logging.New(nil, "silent")
	dir := store.NewMemoryDirectory()
	h := hub.New(hub.Options{
		MaxConnectionsPerIdentity: cfg.Hub.Limits.MaxConnectionsPerUser,
		MessageLimit:              cfg.Hub.Limits.MessagesPerMinute,
		MessageWindow:             time.Minute,
		AttemptLimit:              cfg.Hub.Limits.ConnectionAttemptsPerMinute,
		AttemptWindow:             time.Minute,
		HeartbeatInterval:         time.Hour,
		ProbeAfter:                2 * time.Hour,
		CloseAfter:                4 * time.Hour,
		RequestTTL:                time.Minute,
		HistoryLimit:              50,
	}, store.NewMemoryMessageStore(), nil, dir, log)
	t.Cleanup(h.Close)

	srv := New(cfg, h, log)
	mux := http.NewServeMux()
	srv.registerHTTPRoutes(mux)
	ts := httptest.NewServer(withMiddleware(mux, log, cfg.Hub.AllowedOrigins))
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, hub: h, dir: dir, auth: NewVerifier(cfg.Hub.Auth.Secret)}
}

func (e *testEnv) wsURL() string {
	return "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/ws"
}

// dial connects an authenticated client and consumes the welcome.
func (e *testEnv) dial(t *testing.T, identity, role, name string) (*websocket.Conn, protocol.WelcomeData) {
	t.Helper()
	token, err := e.auth.Mint(identity, role, name, time.Minute)
	require.NoError(t, err)

	header := http.Header{"Authorization": {"Bearer " + token}}
	conn, resp, err := websocket.DefaultDialer.Dial(e.wsURL(), header)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	env := readKind(t, conn, protocol.KindConnection)
	var welcome protocol.WelcomeData
	require.NoError(t, env.Decode(&welcome))
	return conn, welcome
}

// readKind reads envelopes until one of the wanted kind arrives.
func readKind(t *testing.T, conn *websocket.Conn, kind string) protocol.Envelope {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))
	for {
		var env protocol.Envelope
		require.NoError(t, conn.ReadJSON(&env), "waiting for envelope of kind %q", kind)
		if env.Kind == kind {
			return env
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, kind string, payload any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(protocol.MustNew(kind, payload)))
}

func TestServer_RejectsUnauthenticatedUpgrade(t *testing.T) {
	e := newTestEnv(t, nil)

	_, resp, err := websocket.DefaultDialer.Dial(e.wsURL(), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_RejectsGarbageToken(t *testing.T) {
	e := newTestEnv(t, nil)

	_, resp, err := websocket.DefaultDialer.Dial(e.wsURL()+"?token=not-a-token", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_WelcomeAdvertisesLimits(t *testing.T) {
	e := newTestEnv(t, nil)

	_, welcome := e.dial(t, "a1", hub.RoleApplicant, "Applicant One")
	assert.NotEmpty(t, welcome.SessionID)
	assert.Equal(t, "a1", welcome.Identity)
	assert.Equal(t, hub.RoleApplicant, welcome.Role)
	assert.Equal(t, 100, welcome.Limits.MessagesPerWindow)
	assert.Contains(t, welcome.Capabilities, "matchmaking")
	assert.Contains(t, welcome.Capabilities, "voice-signaling")
}

func TestServer_AutoJoinsDirectoryRooms(t *testing.T) {
	e := newTestEnv(t, nil)
	e.dir.Grant("a1", "app_5")

	conn, welcome := e.dial(t, "a1", hub.RoleApplicant, "")
	env := readKind(t, conn, protocol.KindRoomJoined)
	var joined protocol.RoomEventData
	require.NoError(t, env.Decode(&joined))
	assert.Equal(t, "app_5", joined.RoomID)
	assert.True(t, e.hub.Rooms.IsMember(welcome.SessionID, "app_5"))
}

func TestServer_UnknownKind(t *testing.T) {
	e := newTestEnv(t, nil)
	conn, _ := e.dial(t, "a1", hub.RoleApplicant, "")

	send(t, conn, "make_coffee", nil)

	env := readKind(t, conn, protocol.KindError)
	var errData protocol.ErrorData
	require.NoError(t, env.Decode(&errData))
	assert.Equal(t, protocol.CodeUnknownKind, errData.Code)
}

func TestServer_MissingFields(t *testing.T) {
	e := newTestEnv(t, nil)
	conn, _ := e.dial(t, "a1", hub.RoleApplicant, "")

	send(t, conn, protocol.KindJoinRoom, protocol.JoinRoomData{})

	env := readKind(t, conn, protocol.KindError)
	var errData protocol.ErrorData
	require.NoError(t, env.Decode(&errData))
	assert.Equal(t, protocol.CodeMissingFields, errData.Code)
}

func TestServer_PingPong(t *testing.T) {
	e := newTestEnv(t, nil)
	conn, _ := e.dial(t, "a1", hub.RoleApplicant, "")

	send(t, conn, protocol.KindPing, nil)
	readKind(t, conn, protocol.KindPong)
}

func TestServer_ConnectionCapClosesExtraConnection(t *testing.T) {
	e := newTestEnv(t, func(cfg *config.Config) {
		cfg.Hub.Limits.MaxConnectionsPerUser = 1
	})

	e.dial(t, "a1", hub.RoleApplicant, "")

	token, err := e.auth.Mint("a1", hub.RoleApplicant, "", time.Minute)
	require.NoError(t, err)
	conn, resp, err := websocket.DefaultDialer.Dial(e.wsURL()+"?token="+token, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "expected policy violation close, got %v", err)
}

func TestServer_MessageRateLimit(t *testing.T) {
	e := newTestEnv(t, func(cfg *config.Config) {
		cfg.Hub.Limits.MessagesPerMinute = 2
	})
	conn, _ := e.dial(t, "a1", hub.RoleApplicant, "")

	for i := 0; i < 3; i++ {
		send(t, conn, protocol.KindGetRooms, nil)
	}

	env := readKind(t, conn, protocol.KindError)
	var errData protocol.ErrorData
	require.NoError(t, env.Decode(&errData))
	assert.Equal(t, protocol.CodeRateLimitExceeded, errData.Code)
}

func TestServer_MetricsAdminOnly(t *testing.T) {
	e := newTestEnv(t, nil)

	applicant, _ := e.dial(t, "a1", hub.RoleApplicant, "")
	send(t, applicant, protocol.KindGetMetrics, nil)
	env := readKind(t, applicant, protocol.KindError)
	var errData protocol.ErrorData
	require.NoError(t, env.Decode(&errData))
	assert.Equal(t, protocol.CodeAccessDenied, errData.Code)

	admin, _ := e.dial(t, "root", hub.RoleAdmin, "")
	send(t, admin, protocol.KindGetMetrics, nil)
	env = readKind(t, admin, protocol.KindMetrics)
	var metrics protocol.MetricsData
	require.NoError(t, env.Decode(&metrics))
	assert.Equal(t, 2, metrics.Sessions)
}

func TestServer_HelpRequestLifecycle(t *testing.T) {
	e := newTestEnv(t, nil)

	applicant, _ := e.dial(t, "a1", hub.RoleApplicant, "Aisha")
	officer, _ := e.dial(t, "o1", hub.RoleOfficer, "Omar")

	// applicant asks for help
	send(t, applicant, protocol.KindRequestAssistance, protocol.RequestAssistanceData{
		Service:       "passport-renewal",
		ApplicationID: "77",
	})

	env := readKind(t, applicant, protocol.KindRequestSent)
	var sent protocol.RequestSentData
	require.NoError(t, env.Decode(&sent))
	assert.Equal(t, 1, sent.Invited)

	// officer is invited
	env = readKind(t, officer, protocol.KindHelpRequest)
	var invite protocol.HelpRequestData
	require.NoError(t, env.Decode(&invite))
	assert.Equal(t, sent.RequestID, invite.RequestID)
	assert.Equal(t, "Aisha", invite.ApplicantName)

	// officer accepts, both sides land in the chat room
	send(t, officer, protocol.KindAcceptRequest, protocol.RequestRefData{RequestID: invite.RequestID})

	env = readKind(t, officer, protocol.KindChatSessionStarted)
	var started protocol.ChatStartedData
	require.NoError(t, env.Decode(&started))
	assert.Equal(t, "chat_app_77", started.RoomID)
	assert.Equal(t, "Aisha", started.ApplicantName)

	env = readKind(t, applicant, protocol.KindAmerConnected)
	var connected protocol.ChatStartedData
	require.NoError(t, env.Decode(&connected))
	assert.Equal(t, started.ChatID, connected.ChatID)
	assert.Equal(t, "Omar", connected.OfficerName)

	// chat flows both ways with receipts
	send(t, applicant, protocol.KindChatMessage, protocol.ChatMessageData{
		RoomID:  started.RoomID,
		Content: "I uploaded the documents yesterday.",
	})
	readKind(t, applicant, protocol.KindMessageSent)

	env = readKind(t, officer, protocol.KindNewMessage)
	var msg protocol.NewMessageData
	require.NoError(t, env.Decode(&msg))
	assert.Equal(t, "I uploaded the documents yesterday.", msg.Content)
	assert.Equal(t, "a1", msg.SenderID)

	// officer leaving the chat room ends the chat for the applicant
	send(t, officer, protocol.KindLeaveRoom, protocol.JoinRoomData{RoomID: started.RoomID})

	env = readKind(t, applicant, protocol.KindChatEnded)
	var ended protocol.ChatEndedData
	require.NoError(t, env.Decode(&ended))
	assert.Equal(t, started.ChatID, ended.ChatID)
}

func TestServer_NoOfficersAvailable(t *testing.T) {
	e := newTestEnv(t, nil)
	applicant, _ := e.dial(t, "a1", hub.RoleApplicant, "")

	send(t, applicant, protocol.KindRequestAssistance, protocol.RequestAssistanceData{Service: "visa"})
	readKind(t, applicant, protocol.KindNoOfficersAvailable)
}

func TestServer_VoiceCallOverWebSocket(t *testing.T) {
	e := newTestEnv(t, nil)
	caller, callerWelcome := e.dial(t, "a1", hub.RoleApplicant, "Caller")
	peer, peerWelcome := e.dial(t, "o1", hub.RoleOfficer, "Peer")

	send(t, caller, protocol.KindJoinRoom, protocol.JoinRoomData{RoomID: "app_1"})
	readKind(t, caller, protocol.KindRoomJoined)
	send(t, peer, protocol.KindJoinRoom, protocol.JoinRoomData{RoomID: "app_1"})
	readKind(t, peer, protocol.KindRoomJoined)

	send(t, caller, protocol.KindStartVoiceCall, protocol.StartVoiceCallData{RoomID: "app_1"})
	env := readKind(t, caller, protocol.KindVoiceCallCreated)
	var created protocol.CallEventData
	require.NoError(t, env.Decode(&created))

	env = readKind(t, peer, protocol.KindVoiceCallStarted)
	var invite protocol.CallEventData
	require.NoError(t, env.Decode(&invite))
	assert.Equal(t, created.CallID, invite.CallID)

	send(t, peer, protocol.KindJoinVoiceCall, protocol.CallRefData{CallID: created.CallID})
	readKind(t, peer, protocol.KindParticipantJoined)
	readKind(t, caller, protocol.KindParticipantJoined)

	// opaque signaling, caller to peer
	send(t, caller, protocol.KindVoiceSignal, protocol.VoiceSignalData{
		CallID:  created.CallID,
		Target:  peerWelcome.SessionID,
		Payload: []byte(`{"type":"offer","sdp":"v=0"}`),
	})
	env = readKind(t, peer, protocol.KindVoiceSignal)
	var signal protocol.VoiceSignalData
	require.NoError(t, env.Decode(&signal))
	assert.Equal(t, callerWelcome.SessionID, signal.From)
	assert.JSONEq(t, `{"type":"offer","sdp":"v=0"}`, string(signal.Payload))

	send(t, peer, protocol.KindEndVoiceCall, protocol.CallRefData{CallID: created.CallID})
	readKind(t, caller, protocol.KindCallEnded)
}

func TestServer_StatusUpdateBroadcast(t *testing.T) {
	e := newTestEnv(t, nil)
	first, firstWelcome := e.dial(t, "u1", hub.RoleOfficer, "First")
	second, _ := e.dial(t, "u2", hub.RoleApplicant, "Second")

	send(t, first, protocol.KindJoinRoom, protocol.JoinRoomData{RoomID: "shared"})
	readKind(t, first, protocol.KindRoomJoined)
	send(t, second, protocol.KindJoinRoom, protocol.JoinRoomData{RoomID: "shared"})
	readKind(t, second, protocol.KindRoomJoined)

	send(t, first, protocol.KindStatusUpdate, protocol.StatusUpdateData{Status: hub.StatusAway})

	env := readKind(t, second, protocol.KindUserStatusChanged)
	var changed protocol.StatusChangedData
	require.NoError(t, env.Decode(&changed))
	assert.Equal(t, firstWelcome.SessionID, changed.SessionID)
	assert.Equal(t, hub.StatusAway, changed.Status)

	// invalid status is rejected
	send(t, first, protocol.KindStatusUpdate, protocol.StatusUpdateData{Status: "gone-fishing"})
	env = readKind(t, first, protocol.KindError)
	var errData protocol.ErrorData
	require.NoError(t, env.Decode(&errData))
	assert.Equal(t, protocol.CodeInvalidStatus, errData.Code)
}

func TestServer_DisconnectCleansUp(t *testing.T) {
	e := newTestEnv(t, nil)
	conn, welcome := e.dial(t, "a1", hub.RoleApplicant, "")

	send(t, conn, protocol.KindJoinRoom, protocol.JoinRoomData{RoomID: "lobby"})
	readKind(t, conn, protocol.KindRoomJoined)
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return e.hub.Registry.Count() == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, e.hub.Rooms.Exists("lobby"))
	assert.Empty(t, e.hub.Rooms.RoomsOf(welcome.SessionID))
}

func TestServer_HealthEndpoint(t *testing.T) {
	e := newTestEnv(t, nil)

	resp, err := http.Get(e.ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}
