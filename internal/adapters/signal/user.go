package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

func (ctl *SignalWSController) handleJoin(
	sid domain.ParticipantID,
	conn *WsSignalConn,
	data []byte,
) {
	var p joinPayload
	if err := decode(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, err)
		return
	}
	if _, err := ctl.Orch.Join(sid, p.Name, conn); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("join rejected")
		ctl.sendError(conn, err)
	}
}

func (ctl *SignalWSController) handleWhoAmI(
	sid domain.ParticipantID,
	conn *WsSignalConn,
) {
	p, room, err := ctl.Orch.WhoAmI(sid)
	if err != nil {
		ctl.sendError(conn, err)
		return
	}
	ctl.sendJSON(conn, core.NewWhoAmI(p, room))
}
