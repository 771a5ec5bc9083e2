package orch

import (
	"fmt"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

// SendMessage appends to the sender's current room and echoes the message to
// every member, sender included.
func (o *Orchestrator) SendMessage(sid domain.ParticipantID, content string) (domain.Message, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	p, err := o.participant(sid)
	if err != nil {
		return domain.Message{}, err
	}
	msg, err := domain.NewMessage(p, content, o.Now())
	if err != nil {
		return domain.Message{}, err
	}
	if err := o.Rooms.AppendMessage(p.RoomID, msg); err != nil {
		return domain.Message{}, fmt.Errorf("post to %s: %w", p.RoomID, err)
	}
	o.publish(app.Delivery{Audience: app.ToRoom(p.RoomID, ""), Event: core.NewMessagePosted(p.RoomID, msg)})
	return msg, nil
}
