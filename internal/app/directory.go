package app

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/dkeye/Relay/internal/domain"
)

type roomEntry struct {
	room    domain.Room
	history *domain.History // nil for presence rooms
}

// Directory is the Room Directory. Rooms are never deleted.
type Directory struct {
	mu           sync.RWMutex
	rooms        map[domain.RoomID]*roomEntry
	order        []domain.RoomID
	historyLimit int
}

func NewDirectory(historyLimit int) *Directory {
	return &Directory{
		rooms:        make(map[domain.RoomID]*roomEntry),
		historyLimit: historyLimit,
	}
}

// NewDefaultDirectory seeds the rooms that exist at process start.
func NewDefaultDirectory(historyLimit int) *Directory {
	d := NewDirectory(historyLimit)
	_ = d.Add(domain.Room{ID: domain.DefaultMessageRoom, Name: "General", Kind: domain.KindMessage})
	_ = d.Add(domain.Room{ID: domain.DefaultPresenceRoom, Name: "Voice General", Kind: domain.KindPresence})
	return d
}

// Create derives the id from name and rejects collisions.
func (d *Directory) Create(name string, kind domain.RoomKind) (domain.Room, error) {
	room, err := domain.NewRoom(name, kind)
	if err != nil {
		return domain.Room{}, err
	}
	if err := d.Add(room); err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

// Add inserts a fully formed room.
func (d *Directory) Add(room domain.Room) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.rooms[room.ID]; ok {
		return domain.ErrChannelAlreadyExists
	}
	e := &roomEntry{room: room}
	if room.IsMessageRoom() {
		e.history = domain.NewHistory(d.historyLimit)
	}
	d.rooms[room.ID] = e
	d.order = append(d.order, room.ID)
	log.Info().Str("module", "app.directory").Str("room", string(room.ID)).Str("kind", string(room.Kind)).Msg("room created")
	return nil
}

func (d *Directory) Get(id domain.RoomID) (domain.Room, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.rooms[id]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return e.room, nil
}

func (d *Directory) AppendMessage(id domain.RoomID, m domain.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.rooms[id]
	if !ok {
		return domain.ErrRoomNotFound
	}
	if e.history == nil {
		return domain.ErrNotAMessageRoom
	}
	e.history.Append(m)
	return nil
}

// History returns a copy of a message room's history, nil for presence rooms.
func (d *Directory) History(id domain.RoomID) ([]domain.Message, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	if e.history == nil {
		return nil, nil
	}
	return e.history.Items(), nil
}

// ListAll returns rooms in creation order.
func (d *Directory) ListAll() []domain.Room {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return lo.Map(d.order, func(id domain.RoomID, _ int) domain.Room {
		return d.rooms[id].room
	})
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}
