package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/domain"
)

func (ctl *SignalWSController) handleSwitchRoom(
	sid domain.ParticipantID,
	conn *WsSignalConn,
	data []byte,
) {
	var p switchRoomPayload
	if err := decode(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad switchRoom payload")
		ctl.sendError(conn, err)
		return
	}
	if err := ctl.Orch.SwitchRoom(sid, domain.RoomID(p.RoomID)); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("room_id", p.RoomID).Msg("switch rejected")
		ctl.sendError(conn, err)
	}
}

func (ctl *SignalWSController) handleSendMessage(
	sid domain.ParticipantID,
	conn *WsSignalConn,
	data []byte,
) {
	var p messagePayload
	if err := decode(data, &p); err != nil {
		ctl.sendError(conn, err)
		return
	}
	if !ctl.opts.MessageLimiter.Allow(string(sid)) {
		ctl.sendError(conn, domain.ErrRateLimited)
		return
	}
	if _, err := ctl.Orch.SendMessage(sid, p.Content); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("message rejected")
		ctl.sendError(conn, err)
	}
}
