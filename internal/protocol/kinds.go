package protocol

// Server-to-client envelope kinds.
const (
	KindConnection          = "connection"
	KindRoomJoined          = "room_joined"
	KindRoomLeft            = "room_left"
	KindNewMessage          = "new_message"
	KindMessageSent         = "message_sent"
	KindHelpRequest         = "help_request"
	KindRequestSent         = "request_sent"
	KindNoOfficersAvailable = "no_officers_available"
	KindChatSessionStarted  = "chat_session_started"
	KindAmerConnected       = "amer_connected"
	KindRequestTaken        = "request_taken"
	KindRequestDeclined     = "request_declined"
	KindRequestCancelled    = "request_cancelled"
	KindRequestExpired      = "request_expired"
	KindChatEnded           = "chat_ended"
	KindVoiceCallStarted    = "voice_call_started"
	KindVoiceCallCreated    = "voice_call_created"
	KindCallEnded           = "call_ended"
	KindParticipantJoined   = "participant_joined_call"
	KindParticipantLeft     = "participant_left_call"
	KindVoiceSignal         = "voice_signal"
	KindUserStatusChanged   = "user_status_changed"
	KindRoomList            = "room_list"
	KindMetrics             = "metrics"
	KindPong                = "pong"
	KindError               = "error"
)

// Client-to-server envelope kinds.
const (
	KindJoinRoom          = "join_room"
	KindLeaveRoom         = "leave_room"
	KindChatMessage       = "chat_message"
	KindRequestAssistance = "request_assistance"
	KindAcceptRequest     = "accept_request"
	KindDeclineRequest    = "decline_request"
	KindCancelRequest     = "cancel_request"
	KindStartVoiceCall    = "start_voice_call"
	KindJoinVoiceCall     = "join_voice_call"
	KindEndVoiceCall      = "end_voice_call"
	KindStatusUpdate      = "status_update"
	KindPing              = "ping"
	KindGetRooms          = "get_rooms"
	KindGetMetrics        = "get_metrics"
)

// Error codes carried by error envelopes.
const (
	CodeMissingFields       = "MISSING_FIELDS"
	CodeUnknownKind         = "UNKNOWN_KIND"
	CodeAccessDenied        = "ACCESS_DENIED"
	CodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	CodeRequestAlreadyTaken = "REQUEST_ALREADY_TAKEN"
	CodeRequestNotFound     = "REQUEST_NOT_FOUND"
	CodeRoomNotFound        = "ROOM_NOT_FOUND"
	CodeCallNotFound        = "CALL_NOT_FOUND"
	CodeNotCallParticipant  = "NOT_CALL_PARTICIPANT"
	CodeNoOfficersAvailable = "NO_OFFICERS_AVAILABLE"
	CodeConnectionLimit     = "CONNECTION_LIMIT"
	CodeInvalidStatus       = "INVALID_STATUS"
)
