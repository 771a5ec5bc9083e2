package core

import "github.com/dkeye/Relay/internal/domain"

// RoomView is a self-sufficient snapshot of a room: message rooms carry their
// history, presence rooms the roster derived at snapshot time. The field
// matching the kind is always present, empty or not.
type RoomView struct {
	ID       domain.RoomID          `json:"id"`
	Name     domain.RoomName        `json:"name"`
	Kind     domain.RoomKind        `json:"kind"`
	Messages []domain.Message       `json:"messages,omitzero"`
	Users    []domain.ParticipantID `json:"users,omitzero"`
}

// RoomInfo is a read-only listing row for APIs (no history).
type RoomInfo struct {
	ID          domain.RoomID   `json:"id"`
	Name        domain.RoomName `json:"name"`
	Kind        domain.RoomKind `json:"kind"`
	MemberCount int             `json:"member_count"`
}
