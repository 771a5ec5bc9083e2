package orch

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

// Join registers a new participant and places it in the default room.
func (o *Orchestrator) Join(sid domain.ParticipantID, username string, conn core.SignalConnection) (domain.Participant, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.Registry.Lookup(sid); err == nil {
		return domain.Participant{}, domain.ErrAlreadyJoined
	}
	room, err := o.Rooms.Get(o.DefaultRoom)
	if err != nil {
		return domain.Participant{}, fmt.Errorf("default room %s: %w", o.DefaultRoom, err)
	}
	p, err := o.Registry.Register(sid, username, conn)
	if err != nil {
		return domain.Participant{}, err
	}
	if _, err := o.Registry.UpdateRoom(sid, room.ID); err != nil {
		return domain.Participant{}, err
	}
	p.RoomID = room.ID
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("username", p.Username).Str("room", string(room.ID)).Msg("joined")

	o.publish(
		app.Delivery{Audience: app.ToOne(sid), Event: core.NewSessionAssigned(p)},
		app.Delivery{Audience: app.ToOne(sid), Event: core.NewRoomDirectorySnapshot(o.directorySnapshot())},
		app.Delivery{Audience: app.ToOne(sid), Event: o.roomSync(room)},
		app.Delivery{Audience: app.ToRoom(room.ID, sid), Event: core.NewParticipantJoined(room.ID, p)},
		app.Delivery{Audience: app.ToAll(""), Event: core.NewPresenceSnapshot(o.Registry.ListAll())},
	)
	return p, nil
}

// SwitchRoom moves a participant. Switching to the current room only re-sends
// the room sync.
func (o *Orchestrator) SwitchRoom(sid domain.ParticipantID, target domain.RoomID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	p, err := o.participant(sid)
	if err != nil {
		return err
	}
	room, err := o.Rooms.Get(target)
	if err != nil {
		return fmt.Errorf("switch to %q: %w", target, err)
	}
	if p.RoomID == target {
		o.publish(app.Delivery{Audience: app.ToOne(sid), Event: o.roomSync(room)})
		return nil
	}

	from, err := o.Registry.UpdateRoom(sid, target)
	if err != nil {
		return err
	}
	p.RoomID = target
	p.Voice = domain.VoiceUnmuted
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("from_room", string(from)).Str("room", string(target)).Msg("switched room")

	ds := make([]app.Delivery, 0, 3)
	if room.IsPresenceRoom() {
		ds = append(ds, app.Delivery{Audience: app.ToRoom(target, sid), Event: core.NewParticipantJoined(target, p)})
	}
	ds = append(ds,
		app.Delivery{Audience: app.ToOne(sid), Event: o.roomSync(room)},
		app.Delivery{Audience: app.ToAll(""), Event: core.NewPresenceSnapshot(o.Registry.ListAll())},
	)
	o.publish(ds...)
	return nil
}

// HandleDisconnect tears down everything a participant owns. Unknown or
// already removed sessions are a no-op.
func (o *Orchestrator) HandleDisconnect(sid domain.ParticipantID) {
	o.mu.Lock()
	defer o.mu.Unlock()

	p, ok := o.Registry.Unregister(sid)
	if !ok {
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Msg("disconnect for unknown session")
		return
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(p.RoomID)).Msg("disconnected")

	o.publish(
		app.Delivery{Audience: app.ToAll(""), Event: core.NewParticipantLeft(sid)},
		app.Delivery{Audience: app.ToAll(""), Event: core.NewPresenceSnapshot(o.Registry.ListAll())},
	)
}
