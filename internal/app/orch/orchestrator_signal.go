package orch

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

// Relay forwards an opaque negotiation payload to one participant, exactly
// once and unmodified. There is no retry; the caller reports failures back to
// the sender.
func (o *Orchestrator) Relay(from, to domain.ParticipantID, payload json.RawMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.participant(from); err != nil {
		return err
	}
	if _, err := o.Registry.Lookup(to); err != nil {
		log.Warn().Str("module", "orch.signal").Str("sid", string(from)).Str("target", string(to)).Msg("signal target not found")
		return fmt.Errorf("signal to %s: %w", to, domain.ErrPeerUnavailable)
	}
	if isEmptyPayload(payload) {
		return fmt.Errorf("signal to %s: %w", to, domain.ErrInvalidSignal)
	}
	o.publish(app.Delivery{Audience: app.ToOne(to), Event: core.NewSignal(from, payload)})
	log.Debug().Str("module", "orch.signal").Str("sid", string(from)).Str("target", string(to)).Int("bytes", len(payload)).Msg("signal relayed")
	return nil
}

func isEmptyPayload(payload json.RawMessage) bool {
	trimmed := bytes.TrimSpace(payload)
	return len(trimmed) == 0 ||
		bytes.Equal(trimmed, []byte("null")) ||
		bytes.Equal(trimmed, []byte(`""`))
}

// VoiceStatus fans a mute/unmute notice out to the other members of roomID.
// The sender's own voice state only changes while it sits in that presence room.
func (o *Orchestrator) VoiceStatus(sid domain.ParticipantID, status string, roomID domain.RoomID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	p, err := o.participant(sid)
	if err != nil {
		return err
	}
	state, err := domain.ParseVoiceState(status)
	if err != nil {
		return err
	}
	room, err := o.Rooms.Get(roomID)
	if err != nil {
		return fmt.Errorf("voice status for %q: %w", roomID, err)
	}
	if room.IsPresenceRoom() && p.RoomID == room.ID {
		if err := o.Registry.SetVoice(sid, state); err != nil {
			return err
		}
	}
	o.publish(app.Delivery{Audience: app.ToRoom(room.ID, sid), Event: core.NewVoiceStatusChanged(sid, state)})
	return nil
}
