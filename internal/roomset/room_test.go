package roomset

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nestriproj/moonlight-gateway/internal/common"
	"github.com/nestriproj/moonlight-gateway/internal/protocol"
)

type fakeSession struct {
	sent [][]byte
	fail bool
}

func (f *fakeSession) SendText(data []byte) error {
	if f.fail {
		return fmt.Errorf("send failed")
	}
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeSession) SendBinary(data []byte) error {
	return f.SendText(data)
}

func (f *fakeSession) Close() error {
	return nil
}

func slotPtr(s protocol.PlayerSlot) *protocol.PlayerSlot { return &s }

func TestManagerCreateRoomUniqueId(t *testing.T) {
	m := NewManager()
	room, err := m.CreateRoom(1, 100, "Test Game")
	require.NoError(t, err)
	assert.Len(t, room.RoomId, 6)

	found, ok := m.GetRoom(room.RoomId)
	require.True(t, ok)
	assert.Equal(t, room, found)
}

func TestAddClientRejectsOccupiedSlot(t *testing.T) {
	room := newRoom("ABC123", 1, 1, "Game")

	host := &Client{PeerId: common.PeerId(1), PlayerSlot: slotPtr(protocol.PlayerSlot1), Role: protocol.RoleHost, Session: &fakeSession{}}
	assert.True(t, room.AddClient(host))

	dup := &Client{PeerId: common.PeerId(2), PlayerSlot: slotPtr(protocol.PlayerSlot1), Role: protocol.RolePlayer, Session: &fakeSession{}}
	assert.False(t, room.AddClient(dup))
}

func TestAddThenRemoveClientFreesSlot(t *testing.T) {
	room := newRoom("ABC123", 1, 1, "Game")

	c := &Client{PeerId: common.PeerId(1), PlayerSlot: slotPtr(protocol.PlayerSlot1), Role: protocol.RolePlayer, Session: &fakeSession{}}
	require.True(t, room.AddClient(c))

	slot, ok := room.NextAvailableSlot()
	require.True(t, ok)
	assert.Equal(t, protocol.PlayerSlot2, slot)

	removed, ok := room.RemoveClient(c.PeerId)
	require.True(t, ok)
	assert.Equal(t, c, removed)

	slot, ok = room.NextAvailableSlot()
	require.True(t, ok)
	assert.Equal(t, protocol.PlayerSlot1, slot)
	assert.True(t, room.IsEmpty())
}

func TestPromoteToPlayerAssignsLowestFreeSlot(t *testing.T) {
	room := newRoom("ABC123", 1, 1, "Game")

	host := &Client{PeerId: common.PeerId(1), PlayerSlot: slotPtr(protocol.PlayerSlot1), Role: protocol.RoleHost, Session: &fakeSession{}}
	spectator := &Client{PeerId: common.PeerId(2), Role: protocol.RoleSpectator, Session: &fakeSession{}}
	require.True(t, room.AddClient(host))
	require.True(t, room.AddClient(spectator))

	slot, ok := room.PromoteToPlayer(spectator.PeerId)
	require.True(t, ok)
	assert.Equal(t, protocol.PlayerSlot2, slot)

	c, ok := room.GetClient(spectator.PeerId)
	require.True(t, ok)
	assert.Equal(t, protocol.RolePlayer, c.Role)
	require.NotNil(t, c.PlayerSlot)
	assert.Equal(t, protocol.PlayerSlot2, *c.PlayerSlot)
}

func TestDemoteToSpectatorNeverDemotesHost(t *testing.T) {
	room := newRoom("ABC123", 1, 1, "Game")
	host := &Client{PeerId: common.PeerId(1), PlayerSlot: slotPtr(protocol.PlayerSlot1), Role: protocol.RoleHost, Session: &fakeSession{}}
	require.True(t, room.AddClient(host))

	assert.False(t, room.DemoteToSpectator(host.PeerId))
	c, _ := room.GetClient(host.PeerId)
	assert.Equal(t, protocol.RoleHost, c.Role)
}

func TestDemoteToSpectatorFreesSlot(t *testing.T) {
	room := newRoom("ABC123", 1, 1, "Game")
	host := &Client{PeerId: common.PeerId(1), PlayerSlot: slotPtr(protocol.PlayerSlot1), Role: protocol.RoleHost, Session: &fakeSession{}}
	player := &Client{PeerId: common.PeerId(2), PlayerSlot: slotPtr(protocol.PlayerSlot2), Role: protocol.RolePlayer, Session: &fakeSession{}}
	require.True(t, room.AddClient(host))
	require.True(t, room.AddClient(player))

	assert.True(t, room.DemoteToSpectator(player.PeerId))

	c, _ := room.GetClient(player.PeerId)
	assert.Equal(t, protocol.RoleSpectator, c.Role)
	assert.Nil(t, c.PlayerSlot)

	slot, ok := room.NextAvailableSlot()
	require.True(t, ok)
	assert.Equal(t, protocol.PlayerSlot2, slot)
}

func TestBroadcastIsolatesPerRecipientFailure(t *testing.T) {
	room := newRoom("ABC123", 1, 1, "Game")
	ok1 := &fakeSession{}
	failing := &fakeSession{fail: true}

	require.True(t, room.AddClient(&Client{PeerId: common.PeerId(1), PlayerSlot: slotPtr(protocol.PlayerSlot1), Role: protocol.RoleHost, Session: ok1}))
	require.True(t, room.AddClient(&Client{PeerId: common.PeerId(2), Role: protocol.RoleSpectator, Session: failing}))

	msg := protocol.NewDebugLogMessage("hello", protocol.LogInformError)
	failures := room.Broadcast(msg)

	assert.Len(t, failures, 1)
	_, hadFailure := failures[common.PeerId(2)]
	assert.True(t, hadFailure)
	assert.Len(t, ok1.sent, 1)
}

func TestManagerRemovePeerDeletesEmptyRoom(t *testing.T) {
	m := NewManager()
	room, err := m.CreateRoom(1, 1, "Game")
	require.NoError(t, err)

	client := &Client{PeerId: common.PeerId(1), PlayerSlot: slotPtr(protocol.PlayerSlot1), Role: protocol.RoleHost, Session: &fakeSession{}}
	require.True(t, room.AddClient(client))
	m.RegisterPeer(client.PeerId, room.RoomId)

	_, removed, ok := m.RemovePeer(client.PeerId)
	require.True(t, ok)
	assert.Equal(t, client, removed)

	_, exists := m.GetRoom(room.RoomId)
	assert.False(t, exists)
	assert.Zero(t, m.RoomCount())
}

func TestManagerRemovePeerKeepsNonEmptyRoom(t *testing.T) {
	m := NewManager()
	room, err := m.CreateRoom(1, 1, "Game")
	require.NoError(t, err)

	host := &Client{PeerId: common.PeerId(1), PlayerSlot: slotPtr(protocol.PlayerSlot1), Role: protocol.RoleHost, Session: &fakeSession{}}
	spectator := &Client{PeerId: common.PeerId(2), Role: protocol.RoleSpectator, Session: &fakeSession{}}
	require.True(t, room.AddClient(host))
	require.True(t, room.AddClient(spectator))
	m.RegisterPeer(host.PeerId, room.RoomId)
	m.RegisterPeer(spectator.PeerId, room.RoomId)

	_, _, ok := m.RemovePeer(spectator.PeerId)
	require.True(t, ok)

	_, exists := m.GetRoom(room.RoomId)
	assert.True(t, exists)
}
