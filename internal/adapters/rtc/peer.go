// Package rtc drives one side of a WebRTC negotiation whose offers, answers
// and candidates travel through the relay as opaque signal payloads.
package rtc

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// SignalPayload is what a peer puts in the payload of a signal event. The
// relay never inspects it.
type SignalPayload struct {
	Description *webrtc.SessionDescription `json:"description,omitempty"`
	Candidate   *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

func DefaultWebRTCConfig(stun ...string) webrtc.Configuration {
	if len(stun) == 0 {
		return webrtc.Configuration{}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: stun}},
	}
}

type Peer struct {
	pc       *webrtc.PeerConnection
	name     string
	onSignal func(SignalPayload)

	mu      sync.Mutex
	pending []webrtc.ICECandidateInit

	connected chan struct{}
	failed    chan struct{}
	once      sync.Once
}

// NewPeer wires pion callbacks. onSignal is called for every local
// description and trickled candidate that must reach the remote side.
func NewPeer(cfg webrtc.Configuration, name string, onSignal func(SignalPayload)) (*Peer, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	p := &Peer{
		pc:        pc,
		name:      name,
		onSignal:  onSignal,
		connected: make(chan struct{}),
		failed:    make(chan struct{}),
	}

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		c := cand.ToJSON()
		p.onSignal(SignalPayload{Candidate: &c})
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("peer", name).Str("peer_connection_state", s.String()).Msg("Peer state")
		switch s {
		case webrtc.PeerConnectionStateConnected:
			p.once.Do(func() { close(p.connected) })
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			p.once.Do(func() { close(p.failed) })
		}
	})

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		log.Debug().Str("module", "rtc").Str("peer", name).Str("label", dc.Label()).Msg("data channel opened by remote")
	})

	return p, nil
}

// Offer starts the negotiation from this side.
func (p *Peer) Offer() error {
	if _, err := p.pc.CreateDataChannel("probe", nil); err != nil {
		return err
	}
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return err
	}
	p.onSignal(SignalPayload{Description: &offer})
	return nil
}

// HandleSignal applies a payload received from the remote side. Candidates
// arriving before the remote description are held back.
func (p *Peer) HandleSignal(s SignalPayload) error {
	switch {
	case s.Description != nil:
		return p.applyDescription(*s.Description)
	case s.Candidate != nil:
		if p.pc.RemoteDescription() == nil {
			p.mu.Lock()
			p.pending = append(p.pending, *s.Candidate)
			p.mu.Unlock()
			return nil
		}
		return p.pc.AddICECandidate(*s.Candidate)
	}
	return errors.New("empty signal payload")
}

func (p *Peer) applyDescription(desc webrtc.SessionDescription) error {
	if err := p.pc.SetRemoteDescription(desc); err != nil {
		return err
	}
	p.flushPending()
	if desc.Type != webrtc.SDPTypeOffer {
		return nil
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return err
	}
	p.onSignal(SignalPayload{Description: &answer})
	return nil
}

func (p *Peer) flushPending() {
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()
	for _, c := range pending {
		if err := p.pc.AddICECandidate(c); err != nil {
			log.Warn().Err(err).Str("module", "rtc").Str("peer", p.name).Msg("add buffered candidate")
		}
	}
}

func (p *Peer) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *Peer) Connected() <-chan struct{} { return p.connected }

func (p *Peer) Failed() <-chan struct{} { return p.failed }

func (p *Peer) Close() {
	if err := p.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Str("peer", p.name).Msg("close error")
		return
	}
	log.Info().Str("module", "rtc").Str("peer", p.name).Msg("closed")
}
