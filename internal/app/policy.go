package app

import "github.com/dkeye/Relay/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a recipient whose outbound queue is full.
type Policy interface {
	OnBackPressure(id domain.ParticipantID) BackpressureAction
}

// SimplePolicy disconnects slow consumers; their teardown then runs through
// the normal disconnect path.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.ParticipantID) BackpressureAction {
	return KickMember
}

// LenientPolicy only drops the frame.
type LenientPolicy struct{}

func (LenientPolicy) OnBackPressure(domain.ParticipantID) BackpressureAction {
	return DropFrame
}
