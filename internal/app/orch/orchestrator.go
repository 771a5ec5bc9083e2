// Package orch serialises every state transition of the relay. Each inbound
// event is applied under one lock and its notifications are enqueued before
// the lock is released, so a participant observes events in generation order.
package orch

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

type Orchestrator struct {
	Registry    *app.Registry
	Rooms       *app.Directory
	Fanout      *app.Fanout
	Policy      app.Policy
	DefaultRoom domain.RoomID
	Now         func() time.Time

	mu sync.Mutex
}

func New(reg *app.Registry, rooms *app.Directory, policy app.Policy) *Orchestrator {
	return &Orchestrator{
		Registry:    reg,
		Rooms:       rooms,
		Fanout:      app.NewFanout(reg),
		Policy:      policy,
		DefaultRoom: domain.DefaultMessageRoom,
		Now:         time.Now,
	}
}

// publish must be called with o.mu held.
func (o *Orchestrator) publish(ds ...app.Delivery) {
	res := o.Fanout.Deliver(ds...)
	if o.Policy == nil {
		return
	}
	for _, slow := range lo.Uniq(res.Dropped) {
		switch o.Policy.OnBackPressure(slow) {
		case app.KickMember:
			if conn, ok := o.Registry.Conn(slow); ok {
				log.Warn().Str("module", "orch").Str("sid", string(slow)).Msg("kicking slow consumer")
				conn.Close()
			}
		case app.DropFrame, app.NoAction:
		}
	}
}

func (o *Orchestrator) participant(id domain.ParticipantID) (domain.Participant, error) {
	p, err := o.Registry.Lookup(id)
	if err != nil {
		return domain.Participant{}, fmt.Errorf("session %s: %w", id, domain.ErrNotJoined)
	}
	return p, nil
}

func (o *Orchestrator) roomView(room domain.Room) core.RoomView {
	view := core.RoomView{ID: room.ID, Name: room.Name, Kind: room.Kind}
	if room.IsMessageRoom() {
		view.Messages, _ = o.Rooms.History(room.ID)
		if view.Messages == nil {
			view.Messages = []domain.Message{}
		}
	} else {
		view.Users = lo.Map(o.Registry.MembersOfRoom(room.ID), func(p domain.Participant, _ int) domain.ParticipantID {
			return p.ID
		})
	}
	return view
}

func (o *Orchestrator) directorySnapshot() map[domain.RoomID]core.RoomView {
	return lo.SliceToMap(o.Rooms.ListAll(), func(r domain.Room) (domain.RoomID, core.RoomView) {
		return r.ID, o.roomView(r)
	})
}

func (o *Orchestrator) roomSync(room domain.Room) core.RoomSync {
	return core.NewRoomSync(o.roomView(room), o.Registry.MembersOfRoom(room.ID))
}

// ListRooms is the read-only directory listing with derived member counts.
func (o *Orchestrator) ListRooms() []core.RoomInfo {
	counts := o.Registry.CountByRoom()
	return lo.Map(o.Rooms.ListAll(), func(r domain.Room, _ int) core.RoomInfo {
		return core.RoomInfo{ID: r.ID, Name: r.Name, Kind: r.Kind, MemberCount: counts[r.ID]}
	})
}

func (o *Orchestrator) Members(id domain.RoomID) ([]domain.Participant, error) {
	if _, err := o.Rooms.Get(id); err != nil {
		return nil, err
	}
	return o.Registry.MembersOfRoom(id), nil
}

func (o *Orchestrator) WhoAmI(id domain.ParticipantID) (domain.Participant, domain.Room, error) {
	p, err := o.participant(id)
	if err != nil {
		return domain.Participant{}, domain.Room{}, err
	}
	room, err := o.Rooms.Get(p.RoomID)
	if err != nil {
		return domain.Participant{}, domain.Room{}, err
	}
	return p, room, nil
}

// Room returns the current view of one room: history for message rooms,
// roster for presence rooms.
func (o *Orchestrator) Room(id domain.RoomID) (core.RoomView, error) {
	room, err := o.Rooms.Get(id)
	if err != nil {
		return core.RoomView{}, err
	}
	return o.roomView(room), nil
}
