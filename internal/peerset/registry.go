// Package peerset implements the streamer-side peer registry (spec
// §4.3), grounded on the original relay's PeerManager. Per-peer
// permission and gamepad remap are enforced here -- inside the
// streamer, not the gateway -- so that bypassing the gateway (e.g.
// direct WebRTC signaling) can never grant input privileges.
package peerset

import (
	"log/slog"
	"sync"

	"github.com/nestriproj/moonlight-gateway/internal/common"
	"github.com/nestriproj/moonlight-gateway/internal/protocol"
)

// Info is what the streamer core keeps per connected peer.
type Info struct {
	PlayerSlot     protocol.PlayerSlot
	Role           protocol.RoomRole
	VideoQueueSize int
	AudioQueueSize int
}

// Registry is the single writer-locked map of peers for one streamer
// process. All operations are synchronous under one lock (spec §4.3).
type Registry struct {
	mu                        sync.RWMutex
	peers                     map[common.PeerId]Info
	guestsKeyboardMouseEnabled bool
}

func NewRegistry() *Registry {
	return &Registry{peers: make(map[common.PeerId]Info)}
}

// AddPeer upserts peer info for id.
func (r *Registry) AddPeer(id common.PeerId, slot protocol.PlayerSlot, role protocol.RoomRole, videoQueueSize, audioQueueSize int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slog.Debug("peerset: adding peer", "peer", id, "slot", slot, "role", role)
	r.peers[id] = Info{PlayerSlot: slot, Role: role, VideoQueueSize: videoQueueSize, AudioQueueSize: audioQueueSize}
}

// RemovePeer deletes id and returns its prior info, if any.
func (r *Registry) RemovePeer(id common.PeerId) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.peers[id]
	delete(r.peers, id)
	return info, ok
}

// UpdateRole changes a peer's role and stores slot as given. Info has no
// empty slot value, so the slot is not cleared for a Spectator: it keeps
// whatever slot the caller passes.
func (r *Registry) UpdateRole(id common.PeerId, role protocol.RoomRole, slot protocol.PlayerSlot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.peers[id]
	if !ok {
		return false
	}
	info.Role = role
	info.PlayerSlot = slot
	r.peers[id] = info
	return true
}

// Get returns the current info for id.
func (r *Registry) Get(id common.PeerId) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.peers[id]
	return info, ok
}

// CanUseKeyboardMouse: host always true, spectator always false,
// non-host player follows guestsKeyboardMouseEnabled, unknown peer false.
func (r *Registry) CanUseKeyboardMouse(id common.PeerId) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.peers[id]
	if !ok {
		return false
	}
	if info.Role.IsHost() {
		return true
	}
	if info.Role.IsSpectator() {
		return false
	}
	return r.guestsKeyboardMouseEnabled
}

// MapGamepadId returns the physical gamepad slot for a peer's browser
// gamepad id. Only browser id 0 is accepted; every other id is dropped
// since each peer may use exactly one pad.
func (r *Registry) MapGamepadId(id common.PeerId, browserPadId uint8) (uint8, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.peers[id]
	if !ok {
		return 0, false
	}
	if browserPadId != 0 {
		slog.Warn("peerset: peer tried to use unsupported gamepad id", "peer", id, "gamepad", browserPadId)
		return 0, false
	}
	return info.PlayerSlot.GamepadSlot(), true
}

func (r *Registry) SetGuestsKeyboardMouseEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slog.Debug("peerset: setting guests keyboard/mouse enabled", "enabled", enabled)
	r.guestsKeyboardMouseEnabled = enabled
}

func (r *Registry) GuestsKeyboardMouseEnabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.guestsKeyboardMouseEnabled
}

// PeerIds returns a snapshot of currently registered peer ids.
func (r *Registry) PeerIds() []common.PeerId {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]common.PeerId, 0, len(r.peers))
	for id := range r.peers {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) PeerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

func (r *Registry) HasPeers() bool {
	return r.PeerCount() > 0
}
