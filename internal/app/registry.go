package app

import (
	"cmp"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

type sessionEntry struct {
	Participant domain.Participant
	Conn        core.SignalConnection
	seq         uint64
}

// Target is a resolved recipient of a fanout.
type Target struct {
	ID   domain.ParticipantID
	Conn core.SignalConnection
}

// Registry is the Session Registry: every joined participant and its
// transport. It is also the only place room membership is stored.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.ParticipantID]*sessionEntry
	seq      uint64
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.ParticipantID]*sessionEntry),
	}
}

func (r *Registry) Register(id domain.ParticipantID, username string, conn core.SignalConnection) (domain.Participant, error) {
	p, err := domain.NewParticipant(id, username)
	if err != nil {
		return domain.Participant{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; ok {
		return domain.Participant{}, domain.ErrDuplicateSession
	}
	r.seq++
	r.sessions[id] = &sessionEntry{Participant: *p, Conn: conn, seq: r.seq}
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Str("username", p.Username).Msg("registered session")
	return *p, nil
}

func (r *Registry) Lookup(id domain.ParticipantID) (domain.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return e.Participant, nil
}

func (r *Registry) Conn(id domain.ParticipantID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[id]; ok {
		return e.Conn, true
	}
	return nil, false
}

// Unregister is idempotent: disconnect notifications can race.
func (r *Registry) Unregister(id domain.ParticipantID) (domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return domain.Participant{}, false
	}
	delete(r.sessions, id)
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Msg("unregistered session")
	return e.Participant, true
}

// UpdateRoom moves the participant and resets its voice state. It returns the
// previous room.
func (r *Registry) UpdateRoom(id domain.ParticipantID, room domain.RoomID) (domain.RoomID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return "", domain.ErrParticipantNotFound
	}
	prev := e.Participant.RoomID
	e.Participant.RoomID = room
	e.Participant.Voice = domain.VoiceUnmuted
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Str("from", string(prev)).Str("room", string(room)).Msg("updated room")
	return prev, nil
}

func (r *Registry) SetVoice(id domain.ParticipantID, state domain.VoiceState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	e.Participant.Voice = state
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ListAll returns participant snapshots in registration order.
func (r *Registry) ListAll() []domain.Participant {
	return r.list(func(domain.Participant) bool { return true })
}

// MembersOfRoom derives a room roster from each participant's current room.
func (r *Registry) MembersOfRoom(room domain.RoomID) []domain.Participant {
	return r.list(func(p domain.Participant) bool { return p.RoomID == room })
}

func (r *Registry) CountByRoom() map[domain.RoomID]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.CountValuesBy(lo.Values(r.sessions), func(e *sessionEntry) domain.RoomID {
		return e.Participant.RoomID
	})
}

// Targets resolves the transports of every participant matching keep.
func (r *Registry) Targets(keep func(domain.Participant) bool) []Target {
	return lo.Map(r.entries(keep), func(e sessionEntry, _ int) Target {
		return Target{ID: e.Participant.ID, Conn: e.Conn}
	})
}

func (r *Registry) list(keep func(domain.Participant) bool) []domain.Participant {
	return lo.Map(r.entries(keep), func(e sessionEntry, _ int) domain.Participant {
		return e.Participant
	})
}

// entries copies matching entries under the read lock.
func (r *Registry) entries(keep func(domain.Participant) bool) []sessionEntry {
	r.mu.RLock()
	out := make([]sessionEntry, 0, len(r.sessions))
	for _, e := range r.sessions {
		if keep(e.Participant) {
			out = append(out, *e)
		}
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b sessionEntry) int { return cmp.Compare(a.seq, b.seq) })
	return out
}
