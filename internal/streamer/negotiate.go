package streamer

import (
	"context"
	"log/slog"
	"time"

	"github.com/nestriproj/moonlight-gateway/internal/collab"
	"github.com/nestriproj/moonlight-gateway/internal/common"
	"github.com/nestriproj/moonlight-gateway/internal/protocol"
	"github.com/nestriproj/moonlight-gateway/internal/transport"
)

// negotiateUpstream moves from Ready to Negotiating, starts the
// StreamingClient with the host/app/credentials carried by Init, and on
// success moves to Streaming and reports Setup over IPC (matching the
// original's post-connect Setup send in main.rs).
func (c *Core) negotiateUpstream(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return
	}
	c.state = StateNegotiating
	init := c.init
	c.mu.Unlock()

	client := c.deps.NewClient()

	host := collab.HostAddress{Address: init.HostAddress, HTTPPort: init.HostHttpPort}
	creds := collab.Credentials{
		ClientUniqueId:    init.ClientUniqueId,
		ClientCertificate: []byte(init.ClientCertificate),
		ClientPrivateKey:  []byte(init.ClientPrivateKey),
		ServerCertificate: []byte(init.ServerCertificate),
	}

	if err := client.Start(ctx, host, creds, init.AppId); err != nil {
		slog.Error("streamer: failed to start upstream session", "err", err)
		c.ipcSend.Send(protocol.NewStreamerBroadcastMessage(
			protocol.NewDebugLogMessage("failed to start upstream session", protocol.LogFatal),
		))
		c.shutdown()
		return
	}

	c.mu.Lock()
	c.streaming = client
	c.state = StateStreaming
	c.stats = newStatsAccumulator(c.broadcastVideoStats)
	c.stats.Start()
	c.mu.Unlock()

	common.GlobalMetrics().StreamerStartsTotal.Inc()

	c.ipcSend.Send(protocol.NewStreamerBroadcastMessage(
		protocol.StreamServerMessage{Type: protocol.ServerMsgSetup, Setup: &protocol.WsSetup{IceServers: init.Config.ICEServers}},
	))

	go c.pumpUpstreamEvents(client)
}

// handleStartStream pushes the peer's requested video parameters to its
// transport, sends that peer an empty ConnectionComplete and reports
// PeerReady over IPC; the upstream client is not contacted
// (spec §4.6 S6 "late joiner").
func (c *Core) handleStartStream(peerId common.PeerId, params protocol.WsStartStream) {
	c.mu.Lock()
	tr, ok := c.transports[peerId]
	c.mu.Unlock()
	if ok {
		pushMediaSetup(tr, params)
	}

	c.ipcSend.Send(protocol.NewStreamerPeerWebSocketMessage(protocol.PeerId(peerId),
		protocol.StreamServerMessage{Type: protocol.ServerMsgConnectionComplete}))
	c.ipcSend.Send(protocol.StreamerIpcMessage{Type: protocol.TypePeerReady, PeerReady: &protocol.IpcPeerReady{PeerId: protocol.PeerId(peerId)}})
}

// pumpUpstreamEvents fans video/audio/stats/rumble out to every
// connected peer transport, isolating per-peer send failures so one
// stalled browser can never block the rest (spec §4.5 "Downlink").
func (c *Core) pumpUpstreamEvents(client collab.StreamingClient) {
	for ev := range client.Events() {
		if ev.Err != nil {
			slog.Warn("streamer: upstream session error", "err", ev.Err)
		}
		if ev.Ended {
			c.shutdown()
			return
		}

		switch {
		case ev.VideoUnit != nil:
			c.fanoutVideo(ev.VideoUnit)
		case ev.AudioData != nil:
			c.fanoutAudio(ev.AudioData)
		case ev.Stats != nil:
			c.recordHostStats(*ev.Stats)
		case ev.Rtt != nil:
			c.broadcastRtt(*ev.Rtt)
		case ev.Rumble != nil:
			c.fanoutRumble(*ev.Rumble)
		}
	}
}

func (c *Core) snapshotTransports() map[common.PeerId]transport.Transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := make(map[common.PeerId]transport.Transport, len(c.transports))
	for id, tr := range c.transports {
		snap[id] = tr
	}
	return snap
}

func (c *Core) fanoutVideo(unit *protocol.VideoDecodeUnit) {
	start := time.Now()
	for id, tr := range c.snapshotTransports() {
		if tr.SendVideoUnit(unit) != protocol.DecodeOK {
			slog.Debug("streamer: dropped video unit for peer", "peer", id)
		}
	}
	c.recordStreamerProcessingTime(float64(time.Since(start)) / float64(time.Millisecond))
}

func (c *Core) fanoutAudio(data []byte) {
	for id, tr := range c.snapshotTransports() {
		if err := tr.SendAudioSample(data); err != nil {
			slog.Debug("streamer: dropped audio sample for peer", "peer", id, "err", err)
		}
	}
}

func (c *Core) fanoutRumble(rumble protocol.ControllerRumble) {
	for _, tr := range c.snapshotTransports() {
		_ = tr.Send(protocol.OutboundPacket{ControllerRumble: &rumble})
	}
}
