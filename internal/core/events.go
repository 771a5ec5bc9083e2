package core

import (
	"encoding/json"

	"github.com/dkeye/Relay/internal/domain"
)

type EventType string

const (
	EventSessionAssigned       EventType = "sessionAssigned"
	EventRoomDirectorySnapshot EventType = "roomDirectorySnapshot"
	EventMessagePosted         EventType = "messagePosted"
	EventRoomSync              EventType = "roomSync"
	EventRoomCreated           EventType = "roomCreated"
	EventParticipantJoined     EventType = "participantJoined"
	EventParticipantLeft       EventType = "participantLeft"
	EventPresenceSnapshot      EventType = "presenceSnapshot"
	EventSignal                EventType = "signal"
	EventVoiceStatusChanged    EventType = "voiceStatusChanged"
	EventSignalError           EventType = "signalError"
	EventError                 EventType = "error"
	EventWhoAmI                EventType = "whoami"
	EventPong                  EventType = "pong"
)

// Event is anything the relay pushes to a client. Payload structs embed
// Header so the type tag lands at the top level of the JSON object.
type Event interface {
	EventType() EventType
}

type Header struct {
	Type EventType `json:"type"`
}

func (h Header) EventType() EventType { return h.Type }

func Encode(e Event) (Frame, error) {
	return json.Marshal(e)
}

type SessionAssigned struct {
	Header
	Participant domain.Participant `json:"participant"`
}

func NewSessionAssigned(p domain.Participant) SessionAssigned {
	return SessionAssigned{Header{EventSessionAssigned}, p}
}

type RoomDirectorySnapshot struct {
	Header
	Rooms map[domain.RoomID]RoomView `json:"rooms"`
}

func NewRoomDirectorySnapshot(rooms map[domain.RoomID]RoomView) RoomDirectorySnapshot {
	return RoomDirectorySnapshot{Header{EventRoomDirectorySnapshot}, rooms}
}

type MessagePosted struct {
	Header
	RoomID  domain.RoomID  `json:"roomId"`
	Message domain.Message `json:"message"`
}

func NewMessagePosted(room domain.RoomID, m domain.Message) MessagePosted {
	return MessagePosted{Header{EventMessagePosted}, room, m}
}

type RoomSync struct {
	Header
	Room         RoomView             `json:"room"`
	Participants []domain.Participant `json:"participants"`
}

func NewRoomSync(room RoomView, participants []domain.Participant) RoomSync {
	return RoomSync{Header{EventRoomSync}, room, participants}
}

type RoomCreated struct {
	Header
	Room RoomView `json:"room"`
}

func NewRoomCreated(room RoomView) RoomCreated {
	return RoomCreated{Header{EventRoomCreated}, room}
}

type ParticipantJoined struct {
	Header
	RoomID      domain.RoomID      `json:"roomId"`
	Participant domain.Participant `json:"participant"`
}

func NewParticipantJoined(room domain.RoomID, p domain.Participant) ParticipantJoined {
	return ParticipantJoined{Header{EventParticipantJoined}, room, p}
}

type ParticipantLeft struct {
	Header
	ID domain.ParticipantID `json:"id"`
}

func NewParticipantLeft(id domain.ParticipantID) ParticipantLeft {
	return ParticipantLeft{Header{EventParticipantLeft}, id}
}

type PresenceSnapshot struct {
	Header
	Participants []domain.Participant `json:"participants"`
}

func NewPresenceSnapshot(participants []domain.Participant) PresenceSnapshot {
	return PresenceSnapshot{Header{EventPresenceSnapshot}, participants}
}

// Signal carries an opaque negotiation payload; the relay never looks inside.
type Signal struct {
	Header
	FromID  domain.ParticipantID `json:"fromId"`
	Payload json.RawMessage      `json:"payload"`
}

func NewSignal(from domain.ParticipantID, payload json.RawMessage) Signal {
	return Signal{Header{EventSignal}, from, payload}
}

type VoiceStatusChanged struct {
	Header
	ParticipantID domain.ParticipantID `json:"participantId"`
	Status        domain.VoiceState    `json:"status"`
}

func NewVoiceStatusChanged(id domain.ParticipantID, status domain.VoiceState) VoiceStatusChanged {
	return VoiceStatusChanged{Header{EventVoiceStatusChanged}, id, status}
}

type SignalError struct {
	Header
	Reason   string               `json:"reason"`
	Message  string               `json:"message"`
	TargetID domain.ParticipantID `json:"targetId"`
}

func NewSignalError(err error, target domain.ParticipantID) SignalError {
	return SignalError{Header{EventSignalError}, domain.ErrorCode(err), err.Error(), target}
}

type Error struct {
	Header
	Code  string `json:"code"`
	Error string `json:"error"`
}

func NewError(err error) Error {
	return Error{Header{EventError}, domain.ErrorCode(err), err.Error()}
}

type WhoAmI struct {
	Header
	Participant domain.Participant `json:"participant"`
	Room        domain.Room        `json:"room"`
}

func NewWhoAmI(p domain.Participant, room domain.Room) WhoAmI {
	return WhoAmI{Header{EventWhoAmI}, p, room}
}

type Pong struct {
	Header
}

func NewPong() Pong { return Pong{Header{EventPong}} }
