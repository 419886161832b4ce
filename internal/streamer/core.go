// Package streamer implements the per-room child process: one
// streamer owns exactly one upstream streaming session and fans its
// video/audio/input to every connected peer transport (spec §4.5).
package streamer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nestriproj/moonlight-gateway/internal/collab"
	"github.com/nestriproj/moonlight-gateway/internal/common"
	"github.com/nestriproj/moonlight-gateway/internal/ipc"
	"github.com/nestriproj/moonlight-gateway/internal/peerset"
	"github.com/nestriproj/moonlight-gateway/internal/protocol"
	"github.com/nestriproj/moonlight-gateway/internal/transport"
)

// State is the lifecycle state machine driving one streamer process
// (spec §4.5).
type State int

const (
	StateCreated State = iota
	StateReady
	StateNegotiating
	StateStreaming
	StateTerminating
	StateExit
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateReady:
		return "ready"
	case StateNegotiating:
		return "negotiating"
	case StateStreaming:
		return "streaming"
	case StateTerminating:
		return "terminating"
	case StateExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Deps bundles the collaborators a Core needs that this repo does not
// itself implement (spec §1/§9 Non-goals). Host/app resolution and
// pairing credential lookup happen gateway-side, before Init is sent
// (matching the original's Init message, which already carries
// resolved host address and credentials); the streamer only needs a
// way to construct the StreamingClient itself.
type Deps struct {
	NewClient func() collab.StreamingClient
}

// Core is the streamer's event loop: it owns the peer registry, every
// peer's transport, and (once negotiated) the upstream StreamingClient.
type Core struct {
	deps Deps

	mu         sync.Mutex
	state      State
	init       protocol.IpcInit
	videoQueue int
	audioQueue int

	peers          *peerset.Registry
	transports     map[common.PeerId]transport.Transport
	streaming      collab.StreamingClient
	activeGamepads uint8

	ipcSend *ipc.Sender[protocol.StreamerIpcMessage]
	ipcRecv *ipc.Receiver[protocol.ServerIpcMessage]

	stats *statsAccumulator

	terminate chan struct{}
	once      sync.Once
}

func NewCore(deps Deps, send *ipc.Sender[protocol.StreamerIpcMessage], recv *ipc.Receiver[protocol.ServerIpcMessage]) *Core {
	return &Core{
		deps:       deps,
		state:      StateCreated,
		peers:      peerset.NewRegistry(),
		transports: make(map[common.PeerId]transport.Transport),
		ipcSend:    send,
		ipcRecv:    recv,
		terminate:  make(chan struct{}),
	}
}

// Run starts the IPC loop and blocks until ctx is cancelled, then shuts
// the streamer down. A Stop message or a closed IPC receiver also shuts
// the streamer down but does not make Run return; Wait observes either.
func (c *Core) Run(ctx context.Context) {
	go c.ipcLoop(ctx)

	<-ctx.Done()
	c.shutdown()
}

func (c *Core) ipcLoop(ctx context.Context) {
	for {
		msg, ok := c.ipcRecv.Recv()
		if !ok {
			slog.Warn("streamer: ipc receiver closed, terminating")
			c.shutdown()
			return
		}
		c.handleIPC(ctx, msg)

		select {
		case <-c.terminate:
			return
		default:
		}
	}
}

func (c *Core) handleIPC(ctx context.Context, msg protocol.ServerIpcMessage) {
	switch msg.Type {
	case protocol.TypeInit:
		c.handleInit(ctx, msg.Init)
	case protocol.TypePeerConnected:
		c.handlePeerConnected(msg.PeerConnected)
	case protocol.TypePeerRoleChanged:
		c.handlePeerRoleChanged(msg.PeerRoleChanged)
	case protocol.TypePeerDisconnected:
		c.handlePeerDisconnected(msg.PeerDisconnected)
	case protocol.TypeWebSocket, protocol.TypePeerWebSocket, protocol.TypeWebSocketTransport, protocol.TypePeerWebSocketTransport:
		c.routeToTransport(ctx, msg)
	case protocol.TypeSetGuestsKeyboardMouseEnabled:
		if msg.SetGuestsKeyboardMouseEnabled != nil {
			c.peers.SetGuestsKeyboardMouseEnabled(msg.SetGuestsKeyboardMouseEnabled.Enabled)
		}
	case protocol.TypeStop:
		c.shutdown()
	default:
		slog.Debug("streamer: ignoring unknown ipc message", "type", msg.Type)
	}
}

// handleInit consumes exactly the first Init observed; every later one
// is logged and ignored (spec.md Open Question #1, pinned).
func (c *Core) handleInit(ctx context.Context, init *protocol.IpcInit) {
	if init == nil {
		return
	}

	c.mu.Lock()
	if c.state != StateCreated {
		c.mu.Unlock()
		slog.Debug("streamer: duplicate init ignored", "state", c.state)
		return
	}
	c.init = *init
	c.videoQueue = init.VideoQueueSize
	c.audioQueue = init.AudioQueueSize
	c.state = StateReady
	c.mu.Unlock()

	go c.negotiateUpstream(ctx)
}

func (c *Core) handlePeerConnected(p *protocol.IpcPeerConnected) {
	if p == nil {
		return
	}
	peerId := common.PeerId(p.PeerId)
	var slot protocol.PlayerSlot
	if p.PlayerSlot != nil {
		slot = *p.PlayerSlot
	}
	c.peers.AddPeer(peerId, slot, p.Role, p.VideoQueueSize, p.AudioQueueSize)
	common.GlobalMetrics().ActivePeers.Inc()
}

func (c *Core) handlePeerRoleChanged(p *protocol.IpcPeerRoleChanged) {
	if p == nil {
		return
	}
	var slot protocol.PlayerSlot
	if p.PlayerSlot != nil {
		slot = *p.PlayerSlot
	}
	c.peers.UpdateRole(common.PeerId(p.PeerId), p.NewRole, slot)
}

func (c *Core) handlePeerDisconnected(p *protocol.IpcPeerDisconnected) {
	if p == nil {
		return
	}
	peerId := common.PeerId(p.PeerId)
	c.peers.RemovePeer(peerId)
	common.GlobalMetrics().ActivePeers.Dec()

	c.mu.Lock()
	tr, ok := c.transports[peerId]
	delete(c.transports, peerId)
	c.mu.Unlock()
	if ok {
		_ = tr.Close()
	}
}

// routeToTransport forwards a server-originated message to whichever
// peer's transport it targets, registering a fresh WebRTC/WebSocket
// transport for that peer on first contact (the peer's SetTransport
// control message, forwarded by the gateway as PeerWebSocket).
func (c *Core) routeToTransport(ctx context.Context, msg protocol.ServerIpcMessage) {
	peerId, ok := peerIdOfMessage(msg)
	if !ok {
		return
	}

	if pw := msg.PeerWebSocket; pw != nil && pw.Message.Type == protocol.ClientMsgSetTransport && pw.Message.SetTransport != nil {
		c.ensureTransport(ctx, peerId, pw.Message.SetTransport.Kind)
	}

	c.mu.Lock()
	tr, ok := c.transports[peerId]
	c.mu.Unlock()
	if !ok {
		slog.Debug("streamer: dropping message for peer with no transport", "peer", peerId, "type", msg.Type)
		return
	}
	tr.OnIPCMessage(msg)
}

func peerIdOfMessage(msg protocol.ServerIpcMessage) (common.PeerId, bool) {
	switch msg.Type {
	case protocol.TypePeerWebSocket:
		if msg.PeerWebSocket == nil {
			return 0, false
		}
		return common.PeerId(msg.PeerWebSocket.PeerId), true
	case protocol.TypePeerWebSocketTransport:
		if msg.PeerWebSocketTransport == nil {
			return 0, false
		}
		return common.PeerId(msg.PeerWebSocketTransport.PeerId), true
	default:
		return 0, false
	}
}

// ensureTransport creates the transport kind negotiated by the peer if
// one is not already registered; idempotent so a retransmitted
// SetTransport never replaces a live connection.
func (c *Core) ensureTransport(ctx context.Context, peerId common.PeerId, kind protocol.TransportKind) {
	c.mu.Lock()
	_, exists := c.transports[peerId]
	c.mu.Unlock()
	if exists {
		return
	}

	info, _ := c.peers.Get(peerId)
	videoQueue, audioQueue := info.VideoQueueSize, info.AudioQueueSize
	if videoQueue == 0 {
		videoQueue = c.videoQueue
	}
	if audioQueue == 0 {
		audioQueue = c.audioQueue
	}

	switch kind {
	case protocol.TransportWebRTC:
		if err := c.NewPeerWebRTCTransport(ctx, peerId, videoQueue, audioQueue); err != nil {
			slog.Warn("streamer: failed to create webrtc transport", "peer", peerId, "err", err)
		}
	case protocol.TransportWebSocket:
		c.NewPeerWebSocketTransport(ctx, peerId, videoQueue, audioQueue)
	default:
		slog.Debug("streamer: unknown transport kind requested", "peer", peerId, "kind", kind)
	}
}

// RegisterTransport wires up a peer's transport and starts its event
// pump; called once a peer has negotiated its WebRTC/WebSocket leg.
func (c *Core) RegisterTransport(ctx context.Context, peerId common.PeerId, tr transport.Transport, source transport.EventSource) {
	c.mu.Lock()
	c.transports[peerId] = tr
	c.mu.Unlock()

	go c.pumpTransportEvents(ctx, peerId, source)
}

func (c *Core) pumpTransportEvents(ctx context.Context, peerId common.PeerId, source transport.EventSource) {
	for {
		ev, err := source.Poll(ctx)
		if err != nil {
			slog.Debug("streamer: transport poll ended", "peer", peerId, "err", err)
			return
		}
		if ev.Closed {
			return
		}
		if ev.SendIPC != nil {
			c.ipcSend.Send(*ev.SendIPC)
		}
		if ev.StartStream != nil {
			c.handleStartStream(peerId, *ev.StartStream)
		}
		if ev.RecvPacket != nil {
			c.handleInboundPacket(peerId, *ev.RecvPacket)
		}
	}
}

// handleInboundPacket gates keyboard/mouse and remaps gamepad ids
// before forwarding to the upstream streaming client -- enforcement
// lives here, inside the streamer, never in the gateway (spec §4.3).
func (c *Core) handleInboundPacket(peerId common.PeerId, pkt protocol.InboundPacket) {
	switch {
	case pkt.Key != nil, pkt.Text != nil, pkt.MousePosition != nil, pkt.MouseButton != nil, pkt.MouseMove != nil, pkt.Scroll != nil, pkt.HighResScroll != nil:
		if !c.peers.CanUseKeyboardMouse(peerId) {
			slog.Debug("streamer: dropping keyboard/mouse input from unauthorized peer", "peer", peerId)
			return
		}
	case pkt.ControllerState != nil:
		slot, ok := c.peers.MapGamepadId(peerId, pkt.ControllerState.Id)
		if !ok {
			return
		}
		if !c.gamepadActive(slot) {
			slog.Warn("streamer: dropping controller state for unregistered gamepad", "peer", peerId, "slot", slot)
			return
		}
		pkt.ControllerState.Id = slot
	case pkt.ControllerConnected != nil:
		slot, ok := c.peers.MapGamepadId(peerId, pkt.ControllerConnected.Id)
		if !ok {
			return
		}
		c.setGamepadActive(slot, true)
		pkt.ControllerConnected.Id = slot
	case pkt.ControllerDisconnected != nil:
		slot, ok := c.peers.MapGamepadId(peerId, pkt.ControllerDisconnected.Id)
		if !ok {
			return
		}
		c.setGamepadActive(slot, false)
		pkt.ControllerDisconnected.Id = slot
	}

	c.mu.Lock()
	client := c.streaming
	c.mu.Unlock()
	if client == nil {
		return
	}
	if err := client.SendInput(pkt); err != nil {
		slog.Debug("streamer: failed to forward input upstream", "peer", peerId, "err", err)
	}
}

// gamepadActive reports whether slot has a prior ControllerConnected
// with no matching ControllerDisconnected (spec §4.5 point 3).
func (c *Core) gamepadActive(slot uint8) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeGamepads&(1<<slot) != 0
}

func (c *Core) setGamepadActive(slot uint8, active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if active {
		c.activeGamepads |= 1 << slot
	} else {
		c.activeGamepads &^= 1 << slot
	}
}

func (c *Core) shutdown() {
	c.once.Do(func() {
		c.mu.Lock()
		c.state = StateTerminating
		client := c.streaming
		transports := make([]transport.Transport, 0, len(c.transports))
		for _, tr := range c.transports {
			transports = append(transports, tr)
		}
		c.mu.Unlock()

		if client != nil {
			common.RunBlocking(client.Stop)
		}
		for _, tr := range transports {
			_ = tr.Close()
		}
		if c.stats != nil {
			c.stats.Stop()
		}
		c.ipcSend.Close()

		c.mu.Lock()
		c.state = StateExit
		c.mu.Unlock()
		close(c.terminate)
	})
}

// Wait blocks until the streamer has fully terminated.
func (c *Core) Wait() {
	<-c.terminate
}

func (c *Core) currentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
