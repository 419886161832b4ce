package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/nestriproj/moonlight-gateway/internal/common"
	"github.com/nestriproj/moonlight-gateway/internal/protocol"
)

// orderedChannelIDs are opened ordered/reliable: general, stats, mouse*,
// keyboard, touch and controllers. Host audio is also opened ordered;
// host video gets an unreliable, unordered channel instead. No per-pad
// controller channels are opened.
var orderedChannelIDs = []protocol.ChannelID{
	protocol.ChannelGeneral, protocol.ChannelStats,
	protocol.ChannelMouseReliable, protocol.ChannelMouseAbsolute, protocol.ChannelMouseRelative,
	protocol.ChannelKeyboard, protocol.ChannelTouch, protocol.ChannelControllers,
}

// WebRTCTransport fans video/audio/input over fixed-id WebRTC data
// channels (spec §4.2/§6.4): video is unreliable/unordered, everything
// else preserves order within its own channel.
type WebRTCTransport struct {
	peerId common.PeerId
	pc     *webrtc.PeerConnection
	ice    *iceHelper

	mu       sync.RWMutex
	channels map[protocol.ChannelID]*namedDataChannel

	videoQueueSize int
	audioQueueSize int
	videoFrames    *frameQueue[*protocol.VideoDecodeUnit]
	audioSamples   *frameQueue[[]byte]

	events chan Event
	closed bool
}

// NewWebRTCTransport creates a peer connection, opens the fixed set of
// data channels, and wires each one's incoming binary frames into the
// shared event queue so the streamer core's read loop sees one stream
// regardless of which channel produced the message.
func NewWebRTCTransport(peerId common.PeerId, videoQueueSize, audioQueueSize int) (*WebRTCTransport, error) {
	t := &WebRTCTransport{
		peerId:         peerId,
		channels:       make(map[protocol.ChannelID]*namedDataChannel),
		videoQueueSize: videoQueueSize,
		audioQueueSize: audioQueueSize,
		videoFrames:    newFrameQueue[*protocol.VideoDecodeUnit](videoQueueSize),
		audioSamples:   newFrameQueue[[]byte](audioQueueSize),
		events:         make(chan Event, 64),
	}

	pc, err := CreatePeerConnection(func() {
		t.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}
	t.pc = pc
	t.ice = newICEHelper(pc)

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		candidate := init.Candidate
		msg := protocol.StreamerIpcMessage{
			Type: protocol.TypePeerWebSocket,
			PeerWebSocket: &protocol.IpcStreamerPeerWebSocket{
				PeerId: protocol.PeerId(peerId),
				Message: protocol.StreamServerMessage{
					Type: protocol.ServerMsgWebRtc,
					WebRtc: &protocol.StreamSignalingMessage{
						AddIceCandidate: &protocol.RtcIceCandidate{
							Candidate:        candidate,
							SdpMid:           init.SDPMid,
							SdpMLineIndex:    init.SDPMLineIndex,
							UsernameFragment: init.UsernameFragment,
						},
					},
				},
			},
		}
		t.emit(Event{SendIPC: &msg})
	})

	for _, id := range orderedChannelIDs {
		if err := t.openChannel(id, true); err != nil {
			t.Close()
			return nil, err
		}
	}
	if err := t.openChannel(protocol.ChannelHostVideo, false); err != nil {
		t.Close()
		return nil, err
	}
	if err := t.openChannel(protocol.ChannelHostAudio, true); err != nil {
		t.Close()
		return nil, err
	}

	go t.videoFrames.drain(t.writeVideoUnit)
	go t.audioSamples.drain(t.writeAudioSample)

	return t, nil
}

func (t *WebRTCTransport) openChannel(id protocol.ChannelID, ordered bool) error {
	maxRetransmits := uint16(0)
	init := &webrtc.DataChannelInit{Ordered: &ordered}
	if !ordered {
		init.MaxRetransmits = &maxRetransmits
	}

	label := fmt.Sprintf("channel-%d", id)
	dc, err := t.pc.CreateDataChannel(label, init)
	if err != nil {
		return fmt.Errorf("failed to create data channel %d: %w", id, err)
	}

	named := newNamedDataChannel(dc, id, func(data []byte) {
		t.handleIncoming(id, data)
	})

	t.mu.Lock()
	t.channels[id] = named
	t.mu.Unlock()

	return nil
}

// AddICECandidate feeds a remote-trickled candidate into the held-until-ready helper.
func (t *WebRTCTransport) AddICECandidate(c webrtc.ICECandidateInit) {
	t.ice.addCandidate(c)
}

// SetRemoteDescription applies the remote SDP and flushes any held ICE candidates.
func (t *WebRTCTransport) SetRemoteDescription(desc webrtc.SessionDescription) error {
	if err := t.pc.SetRemoteDescription(desc); err != nil {
		return err
	}
	t.ice.flushHeldCandidates()
	return nil
}

func (t *WebRTCTransport) handleIncoming(id protocol.ChannelID, data []byte) {
	var pkt protocol.InboundPacket
	if err := json.Unmarshal(data, &pkt); err != nil {
		slog.Debug("webrtc: dropping malformed inbound packet", "channel", id, "err", err)
		return
	}
	t.emit(Event{RecvPacket: &pkt})
}

func (t *WebRTCTransport) emit(ev Event) {
	select {
	case t.events <- ev:
	default:
		slog.Debug("webrtc: event queue full, dropping event", "peer", t.peerId)
	}
}

func (t *WebRTCTransport) sendOnChannel(id protocol.ChannelID, payload any) error {
	t.mu.RLock()
	ch, ok := t.channels[id]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no channel %d open for peer %v", id, t.peerId)
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode packet for channel %d: %w", id, err)
	}
	return ch.sendBinary(encoded)
}

func (t *WebRTCTransport) Send(pkt protocol.OutboundPacket) error {
	if pkt.ControllerRumble != nil || pkt.ControllerTriggerRumble != nil {
		return t.sendOnChannel(protocol.ChannelControllers, pkt)
	}
	if pkt.Stats != nil {
		return t.sendOnChannel(protocol.ChannelStats, pkt)
	}
	return t.sendOnChannel(protocol.ChannelGeneral, pkt)
}

func (t *WebRTCTransport) SetupVideo(setup protocol.VideoSetup) int {
	if err := t.sendOnChannel(protocol.ChannelHostVideo, setup); err != nil {
		slog.Warn("webrtc: failed to push video setup", "peer", t.peerId, "err", err)
		common.GlobalMetrics().TransportErrorsTotal.WithLabelValues("webrtc").Inc()
		return 1
	}
	return 0
}

func (t *WebRTCTransport) SetupAudio(cfg protocol.AudioConfig, opus protocol.OpusMultistreamConfig) int {
	payload := struct {
		Config protocol.AudioConfig           `json:"config"`
		Opus   protocol.OpusMultistreamConfig `json:"opus"`
	}{cfg, opus}
	if err := t.sendOnChannel(protocol.ChannelHostAudio, payload); err != nil {
		slog.Warn("webrtc: failed to push audio config", "peer", t.peerId, "err", err)
		common.GlobalMetrics().TransportErrorsTotal.WithLabelValues("webrtc").Inc()
		return 1
	}
	return 0
}

// SendVideoUnit enqueues unit onto this peer's bounded video queue; the
// oldest queued frame is dropped to make room once the queue (sized
// from the peer's negotiated videoQueueSize) is full, so one stalled
// peer's data channel never blocks the streamer's single fan-out loop.
func (t *WebRTCTransport) SendVideoUnit(unit *protocol.VideoDecodeUnit) protocol.DecodeResult {
	if dropped := t.videoFrames.push(unit); dropped {
		common.GlobalMetrics().DroppedVideoFrames.Inc()
		return protocol.DecodeDropped
	}
	return protocol.DecodeOK
}

// writeVideoUnit is the queue's drain sink: the actual data channel write.
func (t *WebRTCTransport) writeVideoUnit(unit *protocol.VideoDecodeUnit) {
	t.mu.RLock()
	ch, ok := t.channels[protocol.ChannelHostVideo]
	t.mu.RUnlock()
	if !ok {
		return
	}
	if err := ch.sendBinary(unit.Data); err != nil {
		common.GlobalMetrics().DroppedVideoFrames.Inc()
	}
}

// SendAudioSample enqueues data onto this peer's bounded audio queue,
// same drop-oldest overflow policy as SendVideoUnit.
func (t *WebRTCTransport) SendAudioSample(data []byte) error {
	if dropped := t.audioSamples.push(data); dropped {
		common.GlobalMetrics().DroppedAudioSamples.Inc()
	}
	return nil
}

func (t *WebRTCTransport) writeAudioSample(data []byte) {
	t.mu.RLock()
	ch, ok := t.channels[protocol.ChannelHostAudio]
	t.mu.RUnlock()
	if !ok {
		return
	}
	if err := ch.sendBinary(data); err != nil {
		common.GlobalMetrics().DroppedAudioSamples.Inc()
	}
}

func (t *WebRTCTransport) OnIPCMessage(msg protocol.ServerIpcMessage) {
	switch msg.Type {
	case protocol.TypeWebSocket:
		if msg.WebSocket != nil {
			t.handleClientMessage(*msg.WebSocket)
		}
	case protocol.TypePeerWebSocket:
		if msg.PeerWebSocket != nil {
			t.handleClientMessage(msg.PeerWebSocket.Message)
		}
	}
}

func (t *WebRTCTransport) handleClientMessage(msg protocol.StreamClientMessage) {
	switch msg.Type {
	case protocol.ClientMsgWebRtc:
		if msg.WebRtc == nil {
			return
		}
		if msg.WebRtc.Description != nil {
			desc := webrtc.SessionDescription{
				Type: webrtc.NewSDPType(string(msg.WebRtc.Description.Type)),
				SDP:  msg.WebRtc.Description.SDP,
			}
			if err := t.SetRemoteDescription(desc); err != nil {
				slog.Warn("webrtc: failed to set remote description", "peer", t.peerId, "err", err)
			}
		}
		if msg.WebRtc.AddIceCandidate != nil {
			c := msg.WebRtc.AddIceCandidate
			t.AddICECandidate(webrtc.ICECandidateInit{
				Candidate:        c.Candidate,
				SDPMid:           c.SdpMid,
				SDPMLineIndex:    c.SdpMLineIndex,
				UsernameFragment: c.UsernameFragment,
			})
		}
	case protocol.ClientMsgStartStream:
		if msg.StartStream != nil {
			t.emit(Event{StartStream: msg.StartStream})
		}
	}
}

func (t *WebRTCTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.videoFrames.close()
	t.audioSamples.close()

	for _, ch := range t.channels {
		_ = ch.Close()
	}
	err := t.pc.Close()
	t.emit(Event{Closed: true})
	return err
}

// Poll implements EventSource: it blocks until the next event or ctx
// cancellation, so dropping ctx causes the loop to exit promptly.
func (t *WebRTCTransport) Poll(ctx context.Context) (Event, error) {
	select {
	case ev, ok := <-t.events:
		if !ok {
			return Event{Closed: true}, nil
		}
		return ev, nil
	case <-ctx.Done():
		return Event{Closed: true}, ctx.Err()
	}
}
