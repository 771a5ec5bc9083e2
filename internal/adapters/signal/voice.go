package signal

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

// handleRelay forwards a negotiation blob. Failures go back to the sender as
// signalError so it can drop its half-built peer.
func (ctl *SignalWSController) handleRelay(
	sid domain.ParticipantID,
	conn *WsSignalConn,
	data []byte,
) {
	var p relayPayload
	if err := decode(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad signal payload")
		ctl.sendJSON(conn, core.NewSignalError(domain.ErrInvalidSignal, domain.ParticipantID(p.ToID)))
		return
	}
	target := domain.ParticipantID(p.ToID)
	if err := ctl.Orch.Relay(sid, target, p.Payload); err != nil {
		if errors.Is(err, domain.ErrNotJoined) {
			ctl.sendError(conn, err)
			return
		}
		ctl.sendJSON(conn, core.NewSignalError(err, target))
	}
}

func (ctl *SignalWSController) handleVoiceStatus(
	sid domain.ParticipantID,
	conn *WsSignalConn,
	data []byte,
) {
	var p voiceStatusPayload
	if err := decode(data, &p); err != nil {
		ctl.sendError(conn, err)
		return
	}
	if err := ctl.Orch.VoiceStatus(sid, p.Status, domain.RoomID(p.RoomID)); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("voice status rejected")
		ctl.sendError(conn, err)
	}
}
