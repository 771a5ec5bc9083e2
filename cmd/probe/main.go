// Command probe joins two participants to a presence room and checks that a
// WebRTC connection between them can be negotiated through the relay alone.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/dkeye/Relay/internal/adapters/rtc"
)

type inbound struct {
	Type        string          `json:"type"`
	FromID      string          `json:"fromId"`
	Payload     json.RawMessage `json:"payload"`
	Reason      string          `json:"reason"`
	Message     string          `json:"message"`
	Code        string          `json:"code"`
	Participant struct {
		ID string `json:"id"`
	} `json:"participant"`
	Room struct {
		ID string `json:"id"`
	} `json:"room"`
}

type client struct {
	name string
	id   string
	ws   *websocket.Conn
	wmu  sync.Mutex
	peer *rtc.Peer
}

func dial(url, name string) (*client, error) {
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &client{name: name, ws: ws}, nil
}

// write serialises websocket writes; pion callbacks run on their own goroutines.
func (c *client) write(v any) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.ws.WriteJSON(v)
}

func (c *client) waitFor(typ string, timeout time.Duration) (inbound, error) {
	if err := c.ws.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return inbound{}, err
	}
	defer func() { _ = c.ws.SetReadDeadline(time.Time{}) }()
	for {
		var in inbound
		if err := c.ws.ReadJSON(&in); err != nil {
			return inbound{}, fmt.Errorf("%s waiting for %s: %w", c.name, typ, err)
		}
		if in.Type == "error" {
			return inbound{}, fmt.Errorf("%s waiting for %s: server error %s", c.name, typ, in.Code)
		}
		if in.Type == typ {
			return in, nil
		}
	}
}

func (c *client) enter(room string, timeout time.Duration) error {
	if err := c.write(map[string]any{"type": "join", "name": c.name}); err != nil {
		return err
	}
	in, err := c.waitFor("sessionAssigned", timeout)
	if err != nil {
		return err
	}
	c.id = in.Participant.ID
	if err := c.write(map[string]any{"type": "switchRoom", "roomId": room}); err != nil {
		return err
	}
	for {
		in, err := c.waitFor("roomSync", timeout)
		if err != nil {
			return err
		}
		if in.Room.ID == room {
			return nil
		}
	}
}

// readLoop feeds relayed payloads into the peer until the socket closes.
func (c *client) readLoop(errc chan<- error) {
	for {
		var in inbound
		if err := c.ws.ReadJSON(&in); err != nil {
			return
		}
		switch in.Type {
		case "signal":
			var s rtc.SignalPayload
			if err := json.Unmarshal(in.Payload, &s); err != nil {
				log.Warn().Err(err).Str("module", "probe").Str("peer", c.name).Msg("bad signal payload")
				continue
			}
			if err := c.peer.HandleSignal(s); err != nil {
				errc <- fmt.Errorf("%s apply signal: %w", c.name, err)
				return
			}
		case "signalError":
			errc <- fmt.Errorf("%s: relay reported %s: %s", c.name, in.Reason, in.Message)
			return
		}
	}
}

func main() {
	url := pflag.String("url", "ws://localhost:3000/api/ws/signal", "signaling endpoint")
	room := pflag.String("room", "voice-general", "presence room to meet in")
	stun := pflag.StringSlice("stun", nil, "STUN server URLs")
	timeout := pflag.Duration("timeout", 15*time.Second, "overall deadline")
	pflag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := run(*url, *room, *stun, *timeout); err != nil {
		log.Fatal().Err(err).Str("module", "probe").Msg("probe failed")
	}
	log.Info().Str("module", "probe").Msg("peers connected through the relay")
}

func run(url, room string, stun []string, timeout time.Duration) error {
	a, err := dial(url, "probe-a")
	if err != nil {
		return err
	}
	defer a.ws.Close()
	b, err := dial(url, "probe-b")
	if err != nil {
		return err
	}
	defer b.ws.Close()

	for _, c := range []*client{a, b} {
		if err := c.enter(room, timeout); err != nil {
			return err
		}
	}

	cfg := rtc.DefaultWebRTCConfig(stun...)
	for _, pair := range [][2]*client{{a, b}, {b, a}} {
		self, other := pair[0], pair[1]
		self.peer, err = rtc.NewPeer(cfg, self.name, func(s rtc.SignalPayload) {
			msg := map[string]any{"type": "signal", "toId": other.id, "payload": s}
			if err := self.write(msg); err != nil {
				log.Error().Err(err).Str("module", "probe").Str("peer", self.name).Msg("send signal")
			}
		})
		if err != nil {
			return err
		}
		defer self.peer.Close()
	}

	errc := make(chan error, 2)
	go a.readLoop(errc)
	go b.readLoop(errc)

	if err := a.peer.Offer(); err != nil {
		return err
	}

	deadline := time.After(timeout)
	for _, c := range []*client{a, b} {
		select {
		case <-c.peer.Connected():
			log.Info().Str("module", "probe").Str("peer", c.name).Msg("connected")
		case <-c.peer.Failed():
			return fmt.Errorf("%s: peer connection failed", c.name)
		case err := <-errc:
			return err
		case <-deadline:
			return fmt.Errorf("%s: not connected after %s", c.name, timeout)
		}
	}
	return nil
}
