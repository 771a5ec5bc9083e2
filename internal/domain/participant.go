// Package domain holds the relay entities and their validation rules.
package domain

import (
	"strings"
	"unicode/utf8"
)

const MaxUsernameLen = 36

type ParticipantID string

type VoiceState string

const (
	VoiceUnmuted VoiceState = "unmuted"
	VoiceMuted   VoiceState = "muted"
)

func ParseVoiceState(s string) (VoiceState, error) {
	switch VoiceState(s) {
	case VoiceUnmuted, VoiceMuted:
		return VoiceState(s), nil
	}
	return "", ErrInvalidVoiceStatus
}

// Participant is one connected session. Its room is the single source of
// truth for membership: rosters are always derived from it.
type Participant struct {
	ID       ParticipantID `json:"id"`
	Username string        `json:"username"`
	RoomID   RoomID        `json:"room,omitempty"`
	Voice    VoiceState    `json:"voiceState"`
}

// NewParticipant is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewParticipant(id ParticipantID, username string) (*Participant, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrUsernameEmpty
	}
	if utf8.RuneCountInString(username) > MaxUsernameLen {
		return nil, ErrUsernameTooLong
	}
	return &Participant{ID: id, Username: username, Voice: VoiceUnmuted}, nil
}

func (p *Participant) Joined() bool { return p.RoomID != "" }
