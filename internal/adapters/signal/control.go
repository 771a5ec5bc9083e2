package signal

import "github.com/dkeye/Relay/internal/core"

func (ctl *SignalWSController) handlePing(
	conn *WsSignalConn,
) {
	ctl.sendJSON(conn, core.NewPong())
}
