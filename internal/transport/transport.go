// Package transport implements the streamer-side carrier abstraction:
// a uniform send/receive/close surface over either WebRTC data
// channels/media tracks or a single WebSocket stream.
package transport

import (
	"context"

	"github.com/nestriproj/moonlight-gateway/internal/protocol"
)

// Transport is the capability set every carrier implements (spec
// §4.2/§9): send, setup codecs, push media, forward a control message,
// and close. No shared base implementation is assumed between variants.
type Transport interface {
	Send(pkt protocol.OutboundPacket) error
	SetupVideo(setup protocol.VideoSetup) int
	SetupAudio(cfg protocol.AudioConfig, opus protocol.OpusMultistreamConfig) int
	SendVideoUnit(unit *protocol.VideoDecodeUnit) protocol.DecodeResult
	SendAudioSample(data []byte) error
	OnIPCMessage(msg protocol.ServerIpcMessage)
	Close() error
}

// Event is one item yielded by a transport's EventSource.
type Event struct {
	SendIPC     *protocol.StreamerIpcMessage
	StartStream *protocol.WsStartStream
	RecvPacket  *protocol.InboundPacket
	Closed      bool
	Err         error
}

// EventSource is polled by the streamer core's per-transport read loop.
// Dropping the source (cancelling ctx) must cause the next Poll to
// return promptly so the loop can exit.
type EventSource interface {
	Poll(ctx context.Context) (Event, error)
}
