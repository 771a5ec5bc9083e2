package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxMessageLen       = 2000
	DefaultHistoryLimit = 50
)

type MessageID string

// Message is immutable once posted. Ordering is by Timestamp, never by ID.
type Message struct {
	ID        MessageID     `json:"id"`
	Content   string        `json:"content"`
	Sender    string        `json:"sender"`
	SenderID  ParticipantID `json:"senderId"`
	Timestamp int64         `json:"timestamp"`
}

func NewMessage(sender Participant, content string, at time.Time) (Message, error) {
	if strings.TrimSpace(content) == "" {
		return Message{}, ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > MaxMessageLen {
		return Message{}, ErrMessageTooLong
	}
	return Message{
		ID:        MessageID(uuid.NewString()),
		Content:   content,
		Sender:    sender.Username,
		SenderID:  sender.ID,
		Timestamp: at.UnixMilli(),
	}, nil
}

// History keeps the most recent messages of a room, oldest evicted first.
// Not safe for concurrent use; the owner serialises access.
type History struct {
	limit int
	items []Message
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit, items: make([]Message, 0, limit)}
}

func (h *History) Append(m Message) {
	if len(h.items) == h.limit {
		copy(h.items, h.items[1:])
		h.items = h.items[:len(h.items)-1]
	}
	h.items = append(h.items, m)
}

func (h *History) Len() int { return len(h.items) }

// Items returns a copy in send order.
func (h *History) Items() []Message {
	out := make([]Message, len(h.items))
	copy(out, h.items)
	return out
}
