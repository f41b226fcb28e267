package hub

import "errors"

var (
	ErrConnectionLimit    = errors.New("connection limit reached for identity")
	ErrRoomNotFound       = errors.New("room not found")
	ErrNotRoomMember      = errors.New("session is not a member of the room")
	ErrNoOfficers         = errors.New("no officers available")
	ErrRequestNotFound    = errors.New("help request not found")
	ErrRequestTaken       = errors.New("help request already taken")
	ErrCallNotFound       = errors.New("call not found")
	ErrNotParticipant     = errors.New("session is not a call participant")
	ErrAlreadyParticipant = errors.New("session is already a call participant")
	ErrInvalidStatus      = errors.New("invalid presence status")
	ErrAccessDenied       = errors.New("access denied")
)
