package gateway

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/amerhub/amerhub/internal/hub"
	"github.com/amerhub/amerhub/internal/protocol"
)

// dispatch routes one inbound envelope to the hub component that owns
// its kind. Every failure path answers with an error envelope carrying
// a stable code; the connection itself stays up.
func (s *Server) dispatch(sess *hub.Session, env protocol.Envelope) {
	switch env.Kind {
	case protocol.KindJoinRoom:
		s.handleJoinRoom(sess, env.Data)
	case protocol.KindLeaveRoom:
		s.handleLeaveRoom(sess, env.Data)
	case protocol.KindChatMessage:
		s.handleChatMessage(sess, env.Data)
	case protocol.KindRequestAssistance:
		s.handleRequestAssistance(sess, env.Data)
	case protocol.KindAcceptRequest:
		s.handleAcceptRequest(sess, env.Data)
	case protocol.KindDeclineRequest:
		s.handleDeclineRequest(sess, env.Data)
	case protocol.KindCancelRequest:
		s.handleCancelRequest(sess, env.Data)
	case protocol.KindStartVoiceCall:
		s.handleStartVoiceCall(sess, env.Data)
	case protocol.KindJoinVoiceCall:
		s.handleJoinVoiceCall(sess, env.Data)
	case protocol.KindEndVoiceCall:
		s.handleEndVoiceCall(sess, env.Data)
	case protocol.KindVoiceSignal:
		s.handleVoiceSignal(sess, env.Data)
	case protocol.KindStatusUpdate:
		s.handleStatusUpdate(sess, env.Data)
	case protocol.KindPing:
		s.reply(sess, protocol.KindPong, map[string]any{"timestamp": time.Now().UTC()})
	case protocol.KindGetRooms:
		s.handleGetRooms(sess)
	case protocol.KindGetMetrics:
		s.handleGetMetrics(sess)
	default:
		s.sendErr(sess, protocol.CodeUnknownKind, "unknown message kind: "+env.Kind)
	}
}

// reply sends an envelope back to the session, best effort.
func (s *Server) reply(sess *hub.Session, kind string, data any) {
	s.hub.Registry.Send(sess.ID, protocol.MustNew(kind, data))
}

// sendErr answers with a coded error envelope.
func (s *Server) sendErr(sess *hub.Session, code, msg string) {
	s.hub.Registry.Send(sess.ID, protocol.Errorf(code, msg))
}

// decode unmarshals an envelope payload. A malformed or absent payload
// is answered with MISSING_FIELDS and reported as not ok.
func (s *Server) decode(sess *hub.Session, raw json.RawMessage, v any) bool {
	if len(raw) == 0 {
		s.sendErr(sess, protocol.CodeMissingFields, "payload required")
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		s.sendErr(sess, protocol.CodeMissingFields, "malformed payload")
		return false
	}
	return true
}

func (s *Server) handleJoinRoom(sess *hub.Session, raw json.RawMessage) {
	var data protocol.JoinRoomData
	if !s.decode(sess, raw, &data) {
		return
	}
	if data.RoomID == "" {
		s.sendErr(sess, protocol.CodeMissingFields, "roomId is required")
		return
	}
	s.hub.Rooms.Join(sess, data.RoomID, hub.RoomKindAdHoc)
	s.reply(sess, protocol.KindRoomJoined, protocol.RoomEventData{
		RoomID:      data.RoomID,
		SessionID:   sess.ID,
		DisplayName: sess.DisplayName,
		Kind:        string(hub.RoomKindAdHoc),
	})
}

func (s *Server) handleLeaveRoom(sess *hub.Session, raw json.RawMessage) {
	var data protocol.JoinRoomData
	if !s.decode(sess, raw, &data) {
		return
	}
	if data.RoomID == "" {
		s.sendErr(sess, protocol.CodeMissingFields, "roomId is required")
		return
	}
	// Leaving a paired chat room ends the chat for both sides.
	if s.hub.Matchmaker.EndChatByRoom(sess, data.RoomID, "participant left") {
		return
	}
	if err := s.hub.Rooms.Leave(sess, data.RoomID); err != nil {
		s.sendErr(sess, roomErrCode(err), err.Error())
		return
	}
	s.reply(sess, protocol.KindRoomLeft, protocol.RoomEventData{
		RoomID:    data.RoomID,
		SessionID: sess.ID,
	})
}

func (s *Server) handleChatMessage(sess *hub.Session, raw json.RawMessage) {
	var data protocol.ChatMessageData
	if !s.decode(sess, raw, &data) {
		return
	}
	if data.RoomID == "" || data.Content == "" {
		s.sendErr(sess, protocol.CodeMissingFields, "roomId and content are required")
		return
	}
	receipt, err := s.hub.Router.Send(sess, data)
	if err != nil {
		s.sendErr(sess, roomErrCode(err), err.Error())
		return
	}
	s.reply(sess, protocol.KindMessageSent, receipt)
}

func (s *Server) handleRequestAssistance(sess *hub.Session, raw json.RawMessage) {
	var data protocol.RequestAssistanceData
	if !s.decode(sess, raw, &data) {
		return
	}
	if data.Service == "" {
		s.sendErr(sess, protocol.CodeMissingFields, "service is required")
		return
	}
	out, err := s.hub.Matchmaker.Request(sess, data)
	if err != nil {
		if errors.Is(err, hub.ErrNoOfficers) {
			s.reply(sess, protocol.KindNoOfficersAvailable, map[string]any{
				"service": data.Service,
			})
			return
		}
		s.sendErr(sess, protocol.CodeAccessDenied, err.Error())
		return
	}
	if out.ExistingChat != nil {
		s.reply(sess, protocol.KindChatSessionStarted, out.ExistingChat)
		return
	}
	s.reply(sess, protocol.KindRequestSent, protocol.RequestSentData{
		RequestID: out.RequestID,
		Invited:   out.Invited,
	})
}

func (s *Server) handleAcceptRequest(sess *hub.Session, raw json.RawMessage) {
	if sess.Role != hub.RoleOfficer && sess.Role != hub.RoleAdmin {
		s.sendErr(sess, protocol.CodeAccessDenied, "only officers may accept requests")
		return
	}
	var data protocol.RequestRefData
	if !s.decode(sess, raw, &data) {
		return
	}
	if data.RequestID == "" {
		s.sendErr(sess, protocol.CodeMissingFields, "requestId is required")
		return
	}
	started, err := s.hub.Matchmaker.Accept(sess, data.RequestID)
	if err != nil {
		s.sendErr(sess, requestErrCode(err), err.Error())
		return
	}
	s.reply(sess, protocol.KindChatSessionStarted, started)
}

func (s *Server) handleDeclineRequest(sess *hub.Session, raw json.RawMessage) {
	if sess.Role != hub.RoleOfficer && sess.Role != hub.RoleAdmin {
		s.sendErr(sess, protocol.CodeAccessDenied, "only officers may decline requests")
		return
	}
	var data protocol.RequestRefData
	if !s.decode(sess, raw, &data) {
		return
	}
	if data.RequestID == "" {
		s.sendErr(sess, protocol.CodeMissingFields, "requestId is required")
		return
	}
	if err := s.hub.Matchmaker.Decline(sess, data.RequestID); err != nil {
		s.sendErr(sess, requestErrCode(err), err.Error())
	}
}

func (s *Server) handleCancelRequest(sess *hub.Session, raw json.RawMessage) {
	var data protocol.RequestRefData
	if !s.decode(sess, raw, &data) {
		return
	}
	if data.RequestID == "" {
		s.sendErr(sess, protocol.CodeMissingFields, "requestId is required")
		return
	}
	if err := s.hub.Matchmaker.Cancel(sess, data.RequestID); err != nil {
		s.sendErr(sess, requestErrCode(err), err.Error())
		return
	}
	s.reply(sess, protocol.KindRequestCancelled, protocol.RequestRefData{RequestID: data.RequestID})
}

func (s *Server) handleStartVoiceCall(sess *hub.Session, raw json.RawMessage) {
	var data protocol.StartVoiceCallData
	if !s.decode(sess, raw, &data) {
		return
	}
	if data.RoomID == "" {
		s.sendErr(sess, protocol.CodeMissingFields, "roomId is required")
		return
	}
	created, err := s.hub.Calls.Start(sess, data.RoomID, data.Kind)
	if err != nil {
		s.sendErr(sess, roomErrCode(err), err.Error())
		return
	}
	s.reply(sess, protocol.KindVoiceCallCreated, created)
}

func (s *Server) handleJoinVoiceCall(sess *hub.Session, raw json.RawMessage) {
	var data protocol.CallRefData
	if !s.decode(sess, raw, &data) {
		return
	}
	if data.CallID == "" {
		s.sendErr(sess, protocol.CodeMissingFields, "callId is required")
		return
	}
	joined, err := s.hub.Calls.Join(sess, data.CallID)
	if err != nil {
		s.sendErr(sess, callErrCode(err), err.Error())
		return
	}
	s.reply(sess, protocol.KindParticipantJoined, joined)
}

func (s *Server) handleEndVoiceCall(sess *hub.Session, raw json.RawMessage) {
	var data protocol.CallRefData
	if !s.decode(sess, raw, &data) {
		return
	}
	if data.CallID == "" {
		s.sendErr(sess, protocol.CodeMissingFields, "callId is required")
		return
	}
	if err := s.hub.Calls.End(sess, data.CallID); err != nil {
		s.sendErr(sess, callErrCode(err), err.Error())
	}
}

func (s *Server) handleVoiceSignal(sess *hub.Session, raw json.RawMessage) {
	var data protocol.VoiceSignalData
	if !s.decode(sess, raw, &data) {
		return
	}
	if data.CallID == "" || len(data.Payload) == 0 {
		s.sendErr(sess, protocol.CodeMissingFields, "callId and payload are required")
		return
	}
	if err := s.hub.Calls.Signal(sess, data); err != nil {
		s.sendErr(sess, callErrCode(err), err.Error())
	}
}

func (s *Server) handleStatusUpdate(sess *hub.Session, raw json.RawMessage) {
	var data protocol.StatusUpdateData
	if !s.decode(sess, raw, &data) {
		return
	}
	if !hub.ValidStatus(data.Status) {
		s.sendErr(sess, protocol.CodeInvalidStatus, "status must be online, away or busy")
		return
	}
	if !s.hub.Registry.SetPresence(sess.ID, data.Status) {
		return
	}
	notice := protocol.MustNew(protocol.KindUserStatusChanged, protocol.StatusChangedData{
		SessionID:   sess.ID,
		Identity:    sess.Identity,
		DisplayName: sess.DisplayName,
		Status:      data.Status,
	})
	for _, roomID := range s.hub.Rooms.RoomsOf(sess.ID) {
		s.hub.Rooms.Broadcast(roomID, notice, sess.ID)
	}
}

func (s *Server) handleGetRooms(sess *hub.Session) {
	s.reply(sess, protocol.KindRoomList, protocol.RoomListData{
		Rooms: s.hub.Rooms.RoomsOf(sess.ID),
	})
}

func (s *Server) handleGetMetrics(sess *hub.Session) {
	if sess.Role != hub.RoleAdmin {
		s.sendErr(sess, protocol.CodeAccessDenied, "metrics are admin only")
		return
	}
	s.reply(sess, protocol.KindMetrics, s.hub.Metrics())
}

// roomErrCode maps room-scoped failures to wire codes.
func roomErrCode(err error) string {
	switch {
	case errors.Is(err, hub.ErrRoomNotFound):
		return protocol.CodeRoomNotFound
	case errors.Is(err, hub.ErrNotRoomMember):
		return protocol.CodeAccessDenied
	default:
		return protocol.CodeAccessDenied
	}
}

// requestErrCode maps matchmaking failures to wire codes. A request in
// the taken set answers differently from one never seen, so a losing
// officer learns the race outcome rather than a generic miss.
func requestErrCode(err error) string {
	switch {
	case errors.Is(err, hub.ErrRequestTaken):
		return protocol.CodeRequestAlreadyTaken
	case errors.Is(err, hub.ErrRequestNotFound):
		return protocol.CodeRequestNotFound
	default:
		return protocol.CodeAccessDenied
	}
}

// callErrCode maps call-scoped failures to wire codes.
func callErrCode(err error) string {
	switch {
	case errors.Is(err, hub.ErrCallNotFound):
		return protocol.CodeCallNotFound
	case errors.Is(err, hub.ErrNotParticipant):
		return protocol.CodeNotCallParticipant
	default:
		return protocol.CodeAccessDenied
	}
}
