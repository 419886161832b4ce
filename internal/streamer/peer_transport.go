package streamer

import (
	"context"
	"fmt"

	"github.com/nestriproj/moonlight-gateway/internal/common"
	"github.com/nestriproj/moonlight-gateway/internal/protocol"
	"github.com/nestriproj/moonlight-gateway/internal/transport"
)

// NewPeerWebRTCTransport creates and registers a WebRTC transport for
// peerId, wiring its event pump into the core (called once the
// streamer has accepted a peer's SetTransport{kind: webrtc}).
func (c *Core) NewPeerWebRTCTransport(ctx context.Context, peerId common.PeerId, videoQueueSize, audioQueueSize int) error {
	tr, err := transport.NewWebRTCTransport(peerId, videoQueueSize, audioQueueSize)
	if err != nil {
		return fmt.Errorf("failed to create webrtc transport for peer %v: %w", peerId, err)
	}
	c.RegisterTransport(ctx, peerId, tr, tr)
	return nil
}

// NewPeerWebSocketTransport creates and registers a WebSocket-kind
// transport for peerId; the streamer has no socket of its own to this
// peer, so every frame travels as IPC bytes relayed by the gateway.
func (c *Core) NewPeerWebSocketTransport(ctx context.Context, peerId common.PeerId, videoQueueSize, audioQueueSize int) {
	tr := transport.NewWebSocketTransport(peerId, c.ipcSend, videoQueueSize, audioQueueSize)
	c.RegisterTransport(ctx, peerId, tr, tr)
}

// pushMediaSetup sends the video configuration (format 1 with the
// requested width, height and fps) to one peer's transport once its
// StartStream parameters are known; no audio configuration is pushed.
func pushMediaSetup(tr transport.Transport, params protocol.WsStartStream) {
	tr.SetupVideo(protocol.VideoSetup{
		Format: protocol.SupportedVideoFormats(1),
		Width:  params.Width,
		Height: params.Height,
		FPS:    params.FPS,
	})
}
