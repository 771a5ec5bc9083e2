package domain

import "errors"

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")

	ErrDuplicateSession    = errors.New("session already registered")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrAlreadyJoined       = errors.New("already joined")
	ErrNotJoined           = errors.New("not joined")

	ErrRoomNotFound         = errors.New("room not found")
	ErrInvalidRoomKind      = errors.New("invalid room kind")
	ErrInvalidChannelName   = errors.New("channel name is required")
	ErrChannelAlreadyExists = errors.New("channel already exists")
	ErrNotAMessageRoom      = errors.New("room does not accept messages")

	ErrEmptyMessage   = errors.New("message empty")
	ErrMessageTooLong = errors.New("message too long")

	ErrPeerUnavailable    = errors.New("user not found or disconnected")
	ErrInvalidSignal      = errors.New("invalid signal format")
	ErrInvalidVoiceStatus = errors.New("invalid voice status")

	ErrRateLimited    = errors.New("rate limited")
	ErrInvalidPayload = errors.New("bad payload")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrUsernameTooLong, "UsernameTooLong"},
	{ErrUsernameEmpty, "UsernameEmpty"},
	{ErrDuplicateSession, "DuplicateSession"},
	{ErrParticipantNotFound, "NotFound"},
	{ErrAlreadyJoined, "AlreadyJoined"},
	{ErrNotJoined, "NotJoined"},
	{ErrRoomNotFound, "RoomNotFound"},
	{ErrInvalidRoomKind, "InvalidRoomKind"},
	{ErrInvalidChannelName, "InvalidChannelName"},
	{ErrChannelAlreadyExists, "ChannelAlreadyExists"},
	{ErrNotAMessageRoom, "NotAMessageRoom"},
	{ErrEmptyMessage, "EmptyMessage"},
	{ErrMessageTooLong, "MessageTooLong"},
	{ErrPeerUnavailable, "PeerUnavailable"},
	{ErrInvalidSignal, "InvalidSignal"},
	{ErrInvalidVoiceStatus, "InvalidVoiceStatus"},
	{ErrRateLimited, "RateLimited"},
	{ErrInvalidPayload, "InvalidPayload"},
}

// ErrorCode maps an error chain to the stable code sent to clients.
func ErrorCode(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "Internal"
}
