package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

// CreateChannel is the only way new rooms enter the directory. On success
// every connected participant is told about the room.
func (o *Orchestrator) CreateChannel(kind domain.RoomKind, name string) (core.RoomView, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	room, err := o.Rooms.Create(name, kind)
	if err != nil {
		log.Info().Err(err).Str("module", "orch.channel").Str("name", name).Str("kind", string(kind)).Msg("channel rejected")
		return core.RoomView{}, err
	}
	view := o.roomView(room)
	o.publish(app.Delivery{Audience: app.ToAll(""), Event: core.NewRoomCreated(view)})
	return view, nil
}
