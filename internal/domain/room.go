package domain

import (
	"regexp"
	"strings"
)

type (
	RoomName string
	RoomID   string
	RoomKind string
)

const (
	KindMessage  RoomKind = "text"
	KindPresence RoomKind = "voice"
)

// presencePrefix keeps "Lobby" the text room and "Lobby" the voice room apart.
const presencePrefix = "voice-"

const (
	DefaultMessageRoom  RoomID = "general"
	DefaultPresenceRoom RoomID = "voice-general"
)

var whitespace = regexp.MustCompile(`\s+`)

func ParseRoomKind(s string) (RoomKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "message":
		return KindMessage, nil
	case "voice", "presence":
		return KindPresence, nil
	}
	return "", ErrInvalidRoomKind
}

// DeriveRoomID lowercases the name and collapses whitespace runs into single
// hyphens. Presence rooms are namespaced.
func DeriveRoomID(name string, kind RoomKind) (RoomID, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrInvalidChannelName
	}
	id := whitespace.ReplaceAllString(strings.ToLower(trimmed), "-")
	if kind == KindPresence {
		id = presencePrefix + id
	}
	return RoomID(id), nil
}

type Room struct {
	ID   RoomID   `json:"id"`
	Name RoomName `json:"name"`
	Kind RoomKind `json:"kind"`
}

func NewRoom(name string, kind RoomKind) (Room, error) {
	if kind != KindMessage && kind != KindPresence {
		return Room{}, ErrInvalidRoomKind
	}
	id, err := DeriveRoomID(name, kind)
	if err != nil {
		return Room{}, err
	}
	return Room{ID: id, Name: RoomName(strings.TrimSpace(name)), Kind: kind}, nil
}

func (r Room) IsMessageRoom() bool  { return r.Kind == KindMessage }
func (r Room) IsPresenceRoom() bool { return r.Kind == KindPresence }
