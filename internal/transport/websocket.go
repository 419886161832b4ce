package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nestriproj/moonlight-gateway/internal/common"
	"github.com/nestriproj/moonlight-gateway/internal/ipc"
	"github.com/nestriproj/moonlight-gateway/internal/protocol"
)

// WebSocketTransport carries every packet class over the single
// channel-prefixed binary stream the spec defines (§4.2/§6.4), but --
// unlike WebRTCTransport -- the streamer holds no direct socket to the
// browser for this kind: the browser's WebSocket terminates at the
// gateway, and every frame in either direction travels as raw bytes
// inside a PeerWebSocketTransport IPC message (spec §4.6 Downlink).
type WebSocketTransport struct {
	peerId  common.PeerId
	ipcSend *ipc.Sender[protocol.StreamerIpcMessage]

	mu     sync.Mutex
	closed bool

	videoFrames  *frameQueue[*protocol.VideoDecodeUnit]
	audioSamples *frameQueue[[]byte]

	events chan Event
}

func NewWebSocketTransport(peerId common.PeerId, ipcSend *ipc.Sender[protocol.StreamerIpcMessage], videoQueueSize, audioQueueSize int) *WebSocketTransport {
	t := &WebSocketTransport{
		peerId:       peerId,
		ipcSend:      ipcSend,
		videoFrames:  newFrameQueue[*protocol.VideoDecodeUnit](videoQueueSize),
		audioSamples: newFrameQueue[[]byte](audioQueueSize),
		events:       make(chan Event, 64),
	}
	go t.videoFrames.drain(t.writeVideoUnit)
	go t.audioSamples.drain(t.writeAudioSample)
	return t
}

// HandleInboundBytes is called by the streamer core when a
// PeerWebSocketTransport ServerIpcMessage arrives for this peer: the
// gateway has relayed one binary frame the browser sent.
func (t *WebSocketTransport) HandleInboundBytes(data []byte) {
	if len(data) < 1 {
		return
	}
	channel := protocol.ChannelID(data[0])
	payload := data[1:]

	if channel == protocol.ChannelGeneral {
		var msg protocol.StreamClientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			slog.Debug("websocket: dropping malformed general message", "peer", t.peerId, "err", err)
			return
		}
		if msg.Type == protocol.ClientMsgStartStream && msg.StartStream != nil {
			t.emit(Event{StartStream: msg.StartStream})
			return
		}
		t.emit(Event{RecvPacket: &protocol.InboundPacket{General: &msg}})
		return
	}

	var pkt protocol.InboundPacket
	if err := json.Unmarshal(payload, &pkt); err != nil {
		slog.Debug("websocket: dropping malformed inbound packet", "peer", t.peerId, "channel", channel, "err", err)
		return
	}
	t.emit(Event{RecvPacket: &pkt})
}

func (t *WebSocketTransport) emit(ev Event) {
	select {
	case t.events <- ev:
	default:
		slog.Debug("websocket: event queue full, dropping event", "peer", t.peerId)
	}
}

func (t *WebSocketTransport) sendFramed(channel protocol.ChannelID, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode packet for channel %d: %w", channel, err)
	}
	return t.sendRaw(channel, encoded)
}

func (t *WebSocketTransport) sendRaw(channel protocol.ChannelID, data []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("transport closed")
	}
	t.mu.Unlock()

	framed := make([]byte, 1+len(data))
	framed[0] = byte(channel)
	copy(framed[1:], data)

	t.ipcSend.Send(protocol.NewStreamerPeerWebSocketTransportMessage(protocol.PeerId(t.peerId), framed))
	return nil
}

func (t *WebSocketTransport) Send(pkt protocol.OutboundPacket) error {
	channel := protocol.ChannelGeneral
	switch {
	case pkt.Stats != nil:
		channel = protocol.ChannelStats
	case pkt.ControllerRumble != nil, pkt.ControllerTriggerRumble != nil:
		channel = protocol.ChannelControllers
	}
	return t.sendFramed(channel, pkt)
}

func (t *WebSocketTransport) SetupVideo(setup protocol.VideoSetup) int {
	if err := t.sendFramed(protocol.ChannelHostVideo, setup); err != nil {
		slog.Warn("websocket: failed to push video setup", "peer", t.peerId, "err", err)
		common.GlobalMetrics().TransportErrorsTotal.WithLabelValues("websocket").Inc()
		return 1
	}
	return 0
}

func (t *WebSocketTransport) SetupAudio(cfg protocol.AudioConfig, opus protocol.OpusMultistreamConfig) int {
	payload := struct {
		Config protocol.AudioConfig           `json:"config"`
		Opus   protocol.OpusMultistreamConfig `json:"opus"`
	}{cfg, opus}
	if err := t.sendFramed(protocol.ChannelHostAudio, payload); err != nil {
		slog.Warn("websocket: failed to push audio config", "peer", t.peerId, "err", err)
		common.GlobalMetrics().TransportErrorsTotal.WithLabelValues("websocket").Inc()
		return 1
	}
	return 0
}

// SendVideoUnit enqueues unit onto this peer's bounded video queue,
// same drop-oldest overflow policy as WebRTCTransport (spec §4.2/§5).
func (t *WebSocketTransport) SendVideoUnit(unit *protocol.VideoDecodeUnit) protocol.DecodeResult {
	if dropped := t.videoFrames.push(unit); dropped {
		common.GlobalMetrics().DroppedVideoFrames.Inc()
		return protocol.DecodeDropped
	}
	return protocol.DecodeOK
}

func (t *WebSocketTransport) writeVideoUnit(unit *protocol.VideoDecodeUnit) {
	if err := t.sendRaw(protocol.ChannelHostVideo, unit.Data); err != nil {
		common.GlobalMetrics().DroppedVideoFrames.Inc()
	}
}

func (t *WebSocketTransport) SendAudioSample(data []byte) error {
	if dropped := t.audioSamples.push(data); dropped {
		common.GlobalMetrics().DroppedAudioSamples.Inc()
	}
	return nil
}

func (t *WebSocketTransport) writeAudioSample(data []byte) {
	if err := t.sendRaw(protocol.ChannelHostAudio, data); err != nil {
		common.GlobalMetrics().DroppedAudioSamples.Inc()
	}
}

func (t *WebSocketTransport) OnIPCMessage(msg protocol.ServerIpcMessage) {
	switch msg.Type {
	case protocol.TypePeerWebSocketTransport:
		if msg.PeerWebSocketTransport != nil {
			t.HandleInboundBytes(msg.PeerWebSocketTransport.Data)
		}
	case protocol.TypeWebSocket:
		if msg.WebSocket != nil {
			if err := t.sendFramed(protocol.ChannelGeneral, *msg.WebSocket); err != nil {
				slog.Warn("websocket: failed to forward broadcast message", "peer", t.peerId, "err", err)
			}
		}
	case protocol.TypePeerWebSocket:
		if msg.PeerWebSocket != nil {
			if err := t.sendFramed(protocol.ChannelGeneral, msg.PeerWebSocket.Message); err != nil {
				slog.Warn("websocket: failed to forward control message", "peer", t.peerId, "err", err)
			}
		}
	}
}

func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.videoFrames.close()
	t.audioSamples.close()

	t.emit(Event{Closed: true})
	return nil
}

func (t *WebSocketTransport) Poll(ctx context.Context) (Event, error) {
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
