package app

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

type AudienceKind int

const (
	AudienceOne AudienceKind = iota
	AudienceRoom
	AudienceAll
)

// Audience describes who receives an event. Exclude drops one participant
// (usually the originator) from room and global audiences.
type Audience struct {
	Kind    AudienceKind
	Target  domain.ParticipantID
	Room    domain.RoomID
	Exclude domain.ParticipantID
}

func ToOne(id domain.ParticipantID) Audience { return Audience{Kind: AudienceOne, Target: id} }

func ToRoom(room domain.RoomID, exclude domain.ParticipantID) Audience {
	return Audience{Kind: AudienceRoom, Room: room, Exclude: exclude}
}

func ToAll(exclude domain.ParticipantID) Audience {
	return Audience{Kind: AudienceAll, Exclude: exclude}
}

// Delivery is one event addressed to one audience.
type Delivery struct {
	Audience Audience
	Event    core.Event
}

// PublishResult reports delivery stats/backpressure to the orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []domain.ParticipantID
}

func (r *PublishResult) merge(o PublishResult) {
	r.SendTo += o.SendTo
	r.Dropped = append(r.Dropped, o.Dropped...)
}

// Fanout is the Broadcast Fanout. Audience resolution reads the registry;
// delivery is a non-blocking enqueue per recipient, at most once per call.
type Fanout struct {
	registry *Registry
}

func NewFanout(registry *Registry) *Fanout {
	return &Fanout{registry: registry}
}

func (f *Fanout) Resolve(a Audience) []Target {
	switch a.Kind {
	case AudienceOne:
		conn, ok := f.registry.Conn(a.Target)
		if !ok {
			return nil
		}
		return []Target{{ID: a.Target, Conn: conn}}
	case AudienceRoom:
		return f.registry.Targets(func(p domain.Participant) bool {
			return p.RoomID == a.Room && p.ID != a.Exclude
		})
	case AudienceAll:
		return f.registry.Targets(func(p domain.Participant) bool {
			return p.ID != a.Exclude
		})
	}
	return nil
}

// Deliver sends the deliveries in order. Each event is encoded once.
func (f *Fanout) Deliver(ds ...Delivery) PublishResult {
	var res PublishResult
	for _, d := range ds {
		res.merge(f.deliver(d))
	}
	return res
}

func (f *Fanout) deliver(d Delivery) PublishResult {
	res := PublishResult{}
	frame, err := core.Encode(d.Event)
	if err != nil {
		log.Error().Err(err).Str("module", "app.fanout").Str("event", string(d.Event.EventType())).Msg("encode event")
		return res
	}
	for _, t := range f.Resolve(d.Audience) {
		if err := t.Conn.TrySend(frame); err != nil {
			if errors.Is(err, core.ErrBackpressure) {
				res.Dropped = append(res.Dropped, t.ID)
			}
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "app.fanout").Str("event", string(d.Event.EventType())).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
