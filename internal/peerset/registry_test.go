package peerset

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nestriproj/moonlight-gateway/internal/common"
	"github.com/nestriproj/moonlight-gateway/internal/protocol"
)

func TestGamepadMapping(t *testing.T) {
	r := NewRegistry()

	peer1 := common.PeerId(1)
	peer2 := common.PeerId(2)
	peer3 := common.PeerId(3)

	r.AddPeer(peer1, protocol.PlayerSlot1, protocol.RoleHost, 10, 10)
	r.AddPeer(peer2, protocol.PlayerSlot2, protocol.RolePlayer, 10, 10)
	r.AddPeer(peer3, protocol.PlayerSlot3, protocol.RolePlayer, 10, 10)

	slot, ok := r.MapGamepadId(peer1, 0)
	assert.True(t, ok)
	assert.Equal(t, uint8(0), slot)

	slot, ok = r.MapGamepadId(peer2, 0)
	assert.True(t, ok)
	assert.Equal(t, uint8(1), slot)

	slot, ok = r.MapGamepadId(peer3, 0)
	assert.True(t, ok)
	assert.Equal(t, uint8(2), slot)

	_, ok = r.MapGamepadId(peer1, 1)
	assert.False(t, ok)
}

func TestKeyboardMouseAccess(t *testing.T) {
	r := NewRegistry()

	peer1 := common.PeerId(1)
	peer2 := common.PeerId(2)

	r.AddPeer(peer1, protocol.PlayerSlot1, protocol.RoleHost, 10, 10)
	r.AddPeer(peer2, protocol.PlayerSlot2, protocol.RolePlayer, 10, 10)

	assert.True(t, r.CanUseKeyboardMouse(peer1))
	assert.False(t, r.CanUseKeyboardMouse(peer2))

	r.SetGuestsKeyboardMouseEnabled(true)
	assert.True(t, r.CanUseKeyboardMouse(peer1))
	assert.True(t, r.CanUseKeyboardMouse(peer2))

	r.SetGuestsKeyboardMouseEnabled(false)
	assert.True(t, r.CanUseKeyboardMouse(peer1))
	assert.False(t, r.CanUseKeyboardMouse(peer2))
}

func TestSpectatorNeverUsesKeyboardMouse(t *testing.T) {
	r := NewRegistry()
	peer := common.PeerId(1)
	r.AddPeer(peer, protocol.PlayerSlot1, protocol.RoleSpectator, 10, 10)

	r.SetGuestsKeyboardMouseEnabled(true)
	assert.False(t, r.CanUseKeyboardMouse(peer))
}

func TestUnknownPeerCannotUseKeyboardMouse(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.CanUseKeyboardMouse(common.PeerId(1)))
}

func TestRemovePeerReturnsPriorInfo(t *testing.T) {
	r := NewRegistry()
	peer := common.PeerId(1)
	r.AddPeer(peer, protocol.PlayerSlot2, protocol.RolePlayer, 4, 4)

	info, ok := r.RemovePeer(peer)
	assert.True(t, ok)
	assert.Equal(t, protocol.PlayerSlot2, info.PlayerSlot)

	_, ok = r.RemovePeer(peer)
	assert.False(t, ok)
}
