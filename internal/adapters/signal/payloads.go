package signal

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/dkeye/Relay/internal/domain"
)

var validate = validator.New()

type joinPayload struct {
	Name string `json:"name"`
}

type messagePayload struct {
	Content string `json:"content" validate:"required"`
}

type switchRoomPayload struct {
	RoomID string `json:"roomId" validate:"required"`
}

type relayPayload struct {
	ToID    string          `json:"toId" validate:"required"`
	Payload json.RawMessage `json:"payload"`
}

type voiceStatusPayload struct {
	Status string `json:"status" validate:"required,oneof=muted unmuted"`
	RoomID string `json:"roomId" validate:"required"`
}

// decode unmarshals and validates an inbound payload.
func decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return nil
}
