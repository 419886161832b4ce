package gateway

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nestriproj/moonlight-gateway/internal/common"
	"github.com/nestriproj/moonlight-gateway/internal/ipc"
	"github.com/nestriproj/moonlight-gateway/internal/protocol"
	"github.com/nestriproj/moonlight-gateway/internal/roomset"
)

type fakeSession struct {
	texts  [][]byte
	binary [][]byte
	fail   bool
}

func (f *fakeSession) SendText(data []byte) error {
	if f.fail {
		return fmt.Errorf("send failed")
	}
	f.texts = append(f.texts, data)
	return nil
}

func (f *fakeSession) SendBinary(data []byte) error {
	if f.fail {
		return fmt.Errorf("send failed")
	}
	f.binary = append(f.binary, data)
	return nil
}

func (f *fakeSession) Close() error {
	return nil
}

func slotPtr(s protocol.PlayerSlot) *protocol.PlayerSlot { return &s }

func TestBearerTokenExtractsFromAuthorizationHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Bearer abc123")
	assert.Equal(t, "abc123", bearerToken(req))
}

func TestBearerTokenEmptyWhenMissingOrMalformed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.Equal(t, "", bearerToken(req))

	req.Header.Set("Authorization", "Basic abc123")
	assert.Equal(t, "", bearerToken(req))
}

func TestNonEmptyPtr(t *testing.T) {
	assert.Nil(t, nonEmptyPtr(""))
	got := nonEmptyPtr("alice")
	require.NotNil(t, got)
	assert.Equal(t, "alice", *got)
}

// ipcFixture wires a real Sender/Receiver pair over an in-memory pipe
// so a test can observe exactly what a handler sent to the streamer
// child, mirroring internal/streamer's own ipc-backed tests.
func ipcFixture(t *testing.T) (*ipc.Sender[protocol.ServerIpcMessage], *ipc.Receiver[protocol.ServerIpcMessage]) {
	t.Helper()
	pr, pw := io.Pipe()
	send := ipc.NewSender[protocol.ServerIpcMessage](pw, "test")
	recv := ipc.NewReceiver[protocol.ServerIpcMessage](pr, "test")
	return send, recv
}

func TestHandleControlMessageLeaveRoomEndsSession(t *testing.T) {
	s := &Server{Rooms: roomset.NewManager(), children: common.NewSafeMap[string, *Child]()}
	room, err := s.Rooms.CreateRoom(1, 1, "Game")
	require.NoError(t, err)

	client := &roomset.Client{PeerId: common.PeerId(1), PlayerSlot: slotPtr(protocol.PlayerSlot1), Role: protocol.RoleHost, Session: &fakeSession{}}
	require.True(t, room.AddClient(client))

	done := s.handleControlMessage(room, client, protocol.StreamClientMessage{Type: protocol.ClientMsgLeaveRoom})
	assert.True(t, done)
}

func TestHandleControlMessageGuestCannotToggleKeyboardMouse(t *testing.T) {
	s := &Server{Rooms: roomset.NewManager(), children: common.NewSafeMap[string, *Child]()}
	room, err := s.Rooms.CreateRoom(1, 1, "Game")
	require.NoError(t, err)

	guest := &roomset.Client{PeerId: common.PeerId(2), PlayerSlot: slotPtr(protocol.PlayerSlot2), Role: protocol.RolePlayer, Session: &fakeSession{}}
	require.True(t, room.AddClient(guest))

	enabled := true
	done := s.handleControlMessage(room, guest, protocol.StreamClientMessage{
		Type:                          protocol.ClientMsgSetGuestsKeyboardMouseEnabled,
		SetGuestsKeyboardMouseEnabled: &protocol.WsSetGuestsKeyboardMouseEnabled{Enabled: enabled},
	})
	assert.False(t, done)
	assert.False(t, room.GuestsKeyboardMouseEnabled, "a guest must not be able to flip this room-wide setting")
}

func TestHandleControlMessageHostCanToggleKeyboardMouse(t *testing.T) {
	s := &Server{Rooms: roomset.NewManager(), children: common.NewSafeMap[string, *Child]()}
	room, err := s.Rooms.CreateRoom(1, 1, "Game")
	require.NoError(t, err)

	host := &roomset.Client{PeerId: common.PeerId(1), PlayerSlot: slotPtr(protocol.PlayerSlot1), Role: protocol.RoleHost, Session: &fakeSession{}}
	other := &fakeSession{}
	guest := &roomset.Client{PeerId: common.PeerId(2), PlayerSlot: slotPtr(protocol.PlayerSlot2), Role: protocol.RolePlayer, Session: other}
	require.True(t, room.AddClient(host))
	require.True(t, room.AddClient(guest))

	done := s.handleControlMessage(room, host, protocol.StreamClientMessage{
		Type:                          protocol.ClientMsgSetGuestsKeyboardMouseEnabled,
		SetGuestsKeyboardMouseEnabled: &protocol.WsSetGuestsKeyboardMouseEnabled{Enabled: true},
	})
	assert.False(t, done)
	assert.True(t, room.GuestsKeyboardMouseEnabled)
	assert.Len(t, other.texts, 1, "the room-wide toggle should be broadcast to every client")
}

func TestHandleControlMessageForwardsUnknownTypesToChild(t *testing.T) {
	s := &Server{Rooms: roomset.NewManager(), children: common.NewSafeMap[string, *Child]()}
	room, err := s.Rooms.CreateRoom(1, 1, "Game")
	require.NoError(t, err)

	send, recv := ipcFixture(t)
	room.IpcSender = send

	client := &roomset.Client{PeerId: common.PeerId(5), Role: protocol.RoleSpectator, Session: &fakeSession{}}
	require.True(t, room.AddClient(client))

	msg := protocol.StreamClientMessage{Type: protocol.ClientMsgWebRtc}
	done := s.handleControlMessage(room, client, msg)
	assert.False(t, done)

	got, ok := recv.Recv()
	require.True(t, ok)
	require.NotNil(t, got.PeerWebSocket)
	assert.Equal(t, client.PeerId, common.PeerId(got.PeerWebSocket.PeerId))
	assert.Equal(t, protocol.ClientMsgWebRtc, got.PeerWebSocket.Message.Type)
}

func TestHandleDisconnectHostClosesRoom(t *testing.T) {
	s := &Server{Rooms: roomset.NewManager(), children: common.NewSafeMap[string, *Child]()}
	room, err := s.Rooms.CreateRoom(1, 1, "Game")
	require.NoError(t, err)

	host := &roomset.Client{PeerId: common.PeerId(1), PlayerSlot: slotPtr(protocol.PlayerSlot1), Role: protocol.RoleHost, Session: &fakeSession{}}
	guestSession := &fakeSession{}
	guest := &roomset.Client{PeerId: common.PeerId(2), PlayerSlot: slotPtr(protocol.PlayerSlot2), Role: protocol.RolePlayer, Session: guestSession}
	require.True(t, room.AddClient(host))
	require.True(t, room.AddClient(guest))
	s.Rooms.RegisterPeer(host.PeerId, room.RoomId)
	s.Rooms.RegisterPeer(guest.PeerId, room.RoomId)

	s.handleDisconnect(room, host)

	assert.Len(t, guestSession.texts, 1, "the remaining guest should be told the room closed")
	_, exists := s.Rooms.GetRoom(room.RoomId)
	assert.False(t, exists, "a host departure must tear the room down even though a guest remains")
}

func TestHandleDisconnectGuestLeavesRoomIntact(t *testing.T) {
	s := &Server{Rooms: roomset.NewManager(), children: common.NewSafeMap[string, *Child]()}
	room, err := s.Rooms.CreateRoom(1, 1, "Game")
	require.NoError(t, err)

	host := &roomset.Client{PeerId: common.PeerId(1), PlayerSlot: slotPtr(protocol.PlayerSlot1), Role: protocol.RoleHost, Session: &fakeSession{}}
	guest := &roomset.Client{PeerId: common.PeerId(2), PlayerSlot: slotPtr(protocol.PlayerSlot2), Role: protocol.RolePlayer, Session: &fakeSession{}}
	require.True(t, room.AddClient(host))
	require.True(t, room.AddClient(guest))
	s.Rooms.RegisterPeer(host.PeerId, room.RoomId)
	s.Rooms.RegisterPeer(guest.PeerId, room.RoomId)

	s.handleDisconnect(room, guest)

	_, exists := s.Rooms.GetRoom(room.RoomId)
	assert.True(t, exists, "the room must survive a non-host departure while the host remains")
	_, stillThere := room.GetClient(guest.PeerId)
	assert.False(t, stillThere)
}

func TestHandleDisconnectLastGuestEmptiesRoom(t *testing.T) {
	s := &Server{Rooms: roomset.NewManager(), children: common.NewSafeMap[string, *Child]()}
	room, err := s.Rooms.CreateRoom(1, 1, "Game")
	require.NoError(t, err)

	guest := &roomset.Client{PeerId: common.PeerId(2), PlayerSlot: slotPtr(protocol.PlayerSlot1), Role: protocol.RolePlayer, Session: &fakeSession{}}
	require.True(t, room.AddClient(guest))
	s.Rooms.RegisterPeer(guest.PeerId, room.RoomId)

	s.handleDisconnect(room, guest)

	_, exists := s.Rooms.GetRoom(room.RoomId)
	assert.False(t, exists, "an empty room must be destroyed even without a host ever having joined")
}

func TestDestroyRoomClosesRegisteredChildExactlyOnce(t *testing.T) {
	s := &Server{Rooms: roomset.NewManager(), children: common.NewSafeMap[string, *Child]()}
	room, err := s.Rooms.CreateRoom(1, 1, "Game")
	require.NoError(t, err)

	send := ipc.NewSender[protocol.ServerIpcMessage](io.Discard, "test")
	child := &Child{Send: send, cmd: &exec.Cmd{}}
	s.children.Set(room.RoomId, child)

	s.destroyRoom(room)
	_, ok := s.children.Get(room.RoomId)
	assert.False(t, ok, "destroyRoom must remove the child from the registry")

	// Safe to call again: the room is already gone from the manager and
	// the child already removed from the registry.
	assert.NotPanics(t, func() { s.destroyRoom(room) })
}
