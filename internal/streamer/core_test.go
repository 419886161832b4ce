package streamer

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nestriproj/moonlight-gateway/internal/collab"
	"github.com/nestriproj/moonlight-gateway/internal/common"
	"github.com/nestriproj/moonlight-gateway/internal/ipc"
	"github.com/nestriproj/moonlight-gateway/internal/protocol"
)

// fakeTransport records every outbound packet handed to Send, standing
// in for a connected peer transport without any real carrier.
type fakeTransport struct {
	mu  sync.Mutex
	out []protocol.OutboundPacket
}

func (f *fakeTransport) Send(pkt protocol.OutboundPacket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, pkt)
	return nil
}

func (f *fakeTransport) sent() []protocol.OutboundPacket {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.OutboundPacket(nil), f.out...)
}

func (f *fakeTransport) SetupVideo(protocol.VideoSetup) int                                 { return 0 }
func (f *fakeTransport) SetupAudio(protocol.AudioConfig, protocol.OpusMultistreamConfig) int { return 0 }
func (f *fakeTransport) SendVideoUnit(*protocol.VideoDecodeUnit) protocol.DecodeResult {
	return protocol.DecodeOK
}
func (f *fakeTransport) SendAudioSample([]byte) error            { return nil }
func (f *fakeTransport) OnIPCMessage(protocol.ServerIpcMessage) {}
func (f *fakeTransport) Close() error                            { return nil }

type fakeStreamingClient struct {
	started chan struct{}
	events  chan collab.StreamingEvent
	inputs  []protocol.InboundPacket
}

func newFakeStreamingClient() *fakeStreamingClient {
	return &fakeStreamingClient{
		started: make(chan struct{}, 1),
		events:  make(chan collab.StreamingEvent, 8),
	}
}

func (f *fakeStreamingClient) Start(ctx context.Context, host collab.HostAddress, creds collab.Credentials, appId uint32) error {
	f.started <- struct{}{}
	return nil
}

func (f *fakeStreamingClient) Stop() {
	close(f.events)
}

func (f *fakeStreamingClient) SendInput(pkt protocol.InboundPacket) error {
	f.inputs = append(f.inputs, pkt)
	return nil
}

func (f *fakeStreamingClient) Events() <-chan collab.StreamingEvent {
	return f.events
}

// newTestCore wires a Core against a discarded outbound IPC sender and
// a never-fed inbound receiver, since these tests drive the core
// directly through its exported handlers rather than over the wire.
func newTestCore(t *testing.T) (*Core, *fakeStreamingClient) {
	t.Helper()

	client := newFakeStreamingClient()
	deps := Deps{NewClient: func() collab.StreamingClient { return client }}

	send := ipc.NewSender[protocol.StreamerIpcMessage](io.Discard, "test")
	pr, _ := io.Pipe()
	recv := ipc.NewReceiver[protocol.ServerIpcMessage](pr, "test")

	return NewCore(deps, send, recv), client
}

func TestCoreInitTransitionsToStreaming(t *testing.T) {
	core, client := newTestCore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	core.handleInit(ctx, &protocol.IpcInit{
		Config:         protocol.StreamerConfig{LogLevel: "info"},
		AppId:          42,
		VideoQueueSize: 4,
		AudioQueueSize: 4,
	})

	select {
	case <-client.started:
	case <-time.After(time.Second):
		t.Fatal("expected upstream client to start")
	}

	assert.Eventually(t, func() bool { return core.currentState() == StateStreaming }, time.Second, 10*time.Millisecond)
}

func TestCoreDuplicateInitIgnored(t *testing.T) {
	core, client := newTestCore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	core.handleInit(ctx, &protocol.IpcInit{Config: protocol.StreamerConfig{}})
	<-client.started

	require.Eventually(t, func() bool { return core.currentState() == StateStreaming }, time.Second, 10*time.Millisecond)

	core.handleInit(ctx, &protocol.IpcInit{Config: protocol.StreamerConfig{}})
	select {
	case <-client.started:
		t.Fatal("expected second Init to be ignored, but client.Start was invoked again")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCoreKeyboardMouseGating(t *testing.T) {
	core, client := newTestCore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	core.handleInit(ctx, &protocol.IpcInit{Config: protocol.StreamerConfig{}})
	<-client.started
	require.Eventually(t, func() bool { return core.currentState() == StateStreaming }, time.Second, 10*time.Millisecond)

	host := common.PeerId(1)
	guest := common.PeerId(2)
	core.peers.AddPeer(host, protocol.PlayerSlot1, protocol.RoleHost, 4, 4)
	core.peers.AddPeer(guest, protocol.PlayerSlot2, protocol.RolePlayer, 4, 4)

	core.handleInboundPacket(guest, protocol.InboundPacket{Key: &protocol.KeyEvent{VK: 0x41}})
	assert.Empty(t, client.inputs, "guest keyboard input should be dropped without guest access enabled")

	core.handleInboundPacket(host, protocol.InboundPacket{Key: &protocol.KeyEvent{VK: 0x41}})
	assert.Len(t, client.inputs, 1, "host keyboard input should always reach upstream")
}

func TestCoreGamepadRemap(t *testing.T) {
	core, client := newTestCore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	core.handleInit(ctx, &protocol.IpcInit{Config: protocol.StreamerConfig{}})
	<-client.started
	require.Eventually(t, func() bool { return core.currentState() == StateStreaming }, time.Second, 10*time.Millisecond)

	peer := common.PeerId(3)
	core.peers.AddPeer(peer, protocol.PlayerSlot3, protocol.RolePlayer, 4, 4)

	core.handleInboundPacket(peer, protocol.InboundPacket{ControllerState: &protocol.ControllerState{Id: 0}})
	assert.Empty(t, client.inputs, "controller state for a gamepad with no prior ControllerConnected must be dropped")

	core.handleInboundPacket(peer, protocol.InboundPacket{ControllerConnected: &protocol.ControllerConnected{Id: 0}})
	require.Len(t, client.inputs, 1)
	assert.Equal(t, uint8(2), client.inputs[0].ControllerConnected.Id)

	core.handleInboundPacket(peer, protocol.InboundPacket{ControllerState: &protocol.ControllerState{Id: 0}})
	require.Len(t, client.inputs, 2)
	assert.Equal(t, uint8(2), client.inputs[1].ControllerState.Id)

	core.handleInboundPacket(peer, protocol.InboundPacket{ControllerState: &protocol.ControllerState{Id: 1}})
	assert.Len(t, client.inputs, 2, "non-zero browser gamepad id must be dropped")

	core.handleInboundPacket(peer, protocol.InboundPacket{ControllerDisconnected: &protocol.ControllerDisconnected{Id: 0}})
	require.Len(t, client.inputs, 3)

	core.handleInboundPacket(peer, protocol.InboundPacket{ControllerState: &protocol.ControllerState{Id: 0}})
	assert.Len(t, client.inputs, 3, "controller state after disconnect must be dropped again")
}

func TestCoreBroadcastsRttFromUpstreamEvents(t *testing.T) {
	core, client := newTestCore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	core.handleInit(ctx, &protocol.IpcInit{Config: protocol.StreamerConfig{}})
	<-client.started
	require.Eventually(t, func() bool { return core.currentState() == StateStreaming }, time.Second, 10*time.Millisecond)

	peer := common.PeerId(1)
	tr := &fakeTransport{}
	core.mu.Lock()
	core.transports[peer] = tr
	core.mu.Unlock()

	rtt := protocol.StatsRtt{RttMs: 42}
	client.events <- collab.StreamingEvent{Rtt: &rtt}

	require.Eventually(t, func() bool { return len(tr.sent()) == 1 }, time.Second, 10*time.Millisecond)

	sent := tr.sent()[0]
	require.NotNil(t, sent.Stats)
	require.NotNil(t, sent.Stats.Rtt)
	assert.Equal(t, rtt, *sent.Stats.Rtt)
}

func TestCoreRecordsStreamerProcessingTimeDuringFanout(t *testing.T) {
	core, client := newTestCore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	core.handleInit(ctx, &protocol.IpcInit{Config: protocol.StreamerConfig{}})
	<-client.started
	require.Eventually(t, func() bool { return core.currentState() == StateStreaming }, time.Second, 10*time.Millisecond)

	core.mu.Lock()
	acc := core.stats
	core.mu.Unlock()
	require.NotNil(t, acc)

	core.fanoutVideo(&protocol.VideoDecodeUnit{Data: []byte("frame")})

	acc.mu.Lock()
	samples := len(acc.processingSamples)
	acc.mu.Unlock()
	assert.Equal(t, 1, samples, "fanoutVideo must record one streamer-processing-time sample")
}
