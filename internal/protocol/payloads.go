package protocol

import (
	"encoding/json"
	"time"
)

// WelcomeData is sent in the "connection" envelope right after a
// successful upgrade. It advertises capabilities and the limits the
// server will enforce on this connection.
type WelcomeData struct {
	SessionID    string       `json:"sessionId"`
	Identity     string       `json:"identity"`
	Role         string       `json:"role"`
	DisplayName  string       `json:"displayName,omitempty"`
	Capabilities []string     `json:"capabilities"`
	Limits       LimitsData   `json:"limits"`
	Server       ServerDetail `json:"server"`
}

// LimitsData advertises the rate ceilings applied to the connection.
type LimitsData struct {
	MessagesPerWindow int `json:"messagesPerWindow"`
	WindowSeconds     int `json:"windowSeconds"`
	MaxConnections    int `json:"maxConnections"`
}

// ServerDetail identifies the hub.
type ServerDetail struct {
	Version string `json:"version"`
}

// RoomEventData notifies members about a join or leave.
type RoomEventData struct {
	RoomID      string `json:"roomId"`
	SessionID   string `json:"sessionId"`
	DisplayName string `json:"displayName,omitempty"`
	Kind        string `json:"roomKind,omitempty"`
}

// JoinRoomData / LeaveRoomData are the client-side room operations.
type JoinRoomData struct {
	RoomID string `json:"roomId"`
}

// ChatMessageData is an inbound chat message.
type ChatMessageData struct {
	RoomID   string `json:"roomId"`
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
}

// NewMessageData fans a message out to room members.
type NewMessageData struct {
	MessageID   string    `json:"messageId"`
	RoomID      string    `json:"roomId"`
	SenderID    string    `json:"senderId"`
	SenderName  string    `json:"senderName,omitempty"`
	Content     string    `json:"content"`
	Language    string    `json:"language,omitempty"`
	Origin      string    `json:"origin"` // "human" | "automated"
	Timestamp   time.Time `json:"timestamp"`
}

// MessageSentData is the delivery receipt returned to the sender.
type MessageSentData struct {
	MessageID string    `json:"messageId"`
	RoomID    string    `json:"roomId"`
	Timestamp time.Time `json:"timestamp"`
	Delivered int       `json:"delivered"`
}

// RequestAssistanceData is the applicant's ask for live help.
type RequestAssistanceData struct {
	Service       string `json:"service"`
	ApplicationID string `json:"applicationId,omitempty"`
	Language      string `json:"language,omitempty"`
}

// RequestSentData acknowledges a broadcast help request to its owner.
type RequestSentData struct {
	RequestID string `json:"requestId"`
	Invited   int    `json:"invited"`
}

// HelpRequestData is broadcast to available officers.
type HelpRequestData struct {
	RequestID     string    `json:"requestId"`
	ApplicantName string    `json:"applicantName,omitempty"`
	Service       string    `json:"service"`
	ApplicationID string    `json:"applicationId,omitempty"`
	Language      string    `json:"language,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// RequestRefData references a help request by id in accept, decline,
// cancel, taken, cancelled and expired envelopes.
type RequestRefData struct {
	RequestID string `json:"requestId"`
	TakenBy   string `json:"takenBy,omitempty"`
}

// ChatStartedData notifies both sides of a freshly paired chat session.
type ChatStartedData struct {
	ChatID        string `json:"chatId"`
	RequestID     string `json:"requestId"`
	RoomID        string `json:"roomId"`
	OfficerName   string `json:"officerName,omitempty"`
	ApplicantName string `json:"applicantName,omitempty"`
}

// ChatEndedData reports a chat session teardown.
type ChatEndedData struct {
	ChatID string `json:"chatId"`
	RoomID string `json:"roomId"`
	Reason string `json:"reason"`
}

// StartVoiceCallData opens a signaling session scoped to a room.
type StartVoiceCallData struct {
	RoomID string `json:"roomId"`
	Kind   string `json:"callKind,omitempty"` // "audio" | "video"
}

// CallRefData references a call by id.
type CallRefData struct {
	CallID string `json:"callId"`
}

// CallEventData describes call lifecycle changes to participants.
type CallEventData struct {
	CallID       string `json:"callId"`
	RoomID       string `json:"roomId,omitempty"`
	Kind         string `json:"callKind,omitempty"`
	SessionID    string `json:"sessionId,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
	Participants int    `json:"participants,omitempty"`
	Status       string `json:"status,omitempty"`
}

// VoiceSignalData relays opaque media-negotiation payloads. The hub
// never inspects Payload.
type VoiceSignalData struct {
	CallID  string          `json:"callId"`
	Target  string          `json:"target,omitempty"`
	From    string          `json:"from,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// StatusUpdateData changes the sender's advertised presence.
type StatusUpdateData struct {
	Status string `json:"status"` // "online" | "away" | "busy"
}

// StatusChangedData tells co-room members about a presence change.
type StatusChangedData struct {
	SessionID   string `json:"sessionId"`
	Identity    string `json:"identity"`
	DisplayName string `json:"displayName,omitempty"`
	Status      string `json:"status"`
}

// RoomListData answers get_rooms.
type RoomListData struct {
	Rooms []string `json:"rooms"`
}

// MetricsData answers get_metrics (admin only).
type MetricsData struct {
	Sessions        int   `json:"sessions"`
	Rooms           int   `json:"rooms"`
	PendingRequests int   `json:"pendingRequests"`
	ActiveChats     int   `json:"activeChats"`
	ActiveCalls     int   `json:"activeCalls"`
	MessagesRouted  int64 `json:"messagesRouted"`
}
