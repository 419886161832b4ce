package roomset

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nestriproj/moonlight-gateway/internal/common"
	"github.com/nestriproj/moonlight-gateway/internal/protocol"
)

func marshalServerMessage(msg protocol.StreamServerMessage) ([]byte, error) {
	encoded, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode server message %s: %w", msg.Type, err)
	}
	return encoded, nil
}

const maxRoomCreateAttempts = 8

// Manager owns every live Room and the peer-id -> room-id index used to
// route a disconnecting peer back to its room without a linear scan
// (grounded on the original web server's RoomManager).
type Manager struct {
	mu         sync.RWMutex
	rooms      map[string]*Room
	peerToRoom map[common.PeerId]string
}

func NewManager() *Manager {
	return &Manager{
		rooms:      make(map[string]*Room),
		peerToRoom: make(map[common.PeerId]string),
	}
}

// CreateRoom mints a fresh room with a unique 6-char id, retrying on
// the (vanishingly unlikely) collision against an already-live room.
func (m *Manager) CreateRoom(hostId, appId uint32, appName string) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for attempt := 0; attempt < maxRoomCreateAttempts; attempt++ {
		id, err := common.NewRoomID()
		if err != nil {
			return nil, fmt.Errorf("failed to mint room id: %w", err)
		}
		if _, exists := m.rooms[id]; exists {
			continue
		}
		room := newRoom(id, hostId, appId, appName)
		m.rooms[id] = room
		return room, nil
	}
	return nil, fmt.Errorf("failed to allocate a unique room id after %d attempts", maxRoomCreateAttempts)
}

func (m *Manager) GetRoom(roomId string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[roomId]
	return r, ok
}

// RegisterPeer records which room a peer belongs to, so RemovePeer can
// find it again given only the peer id (e.g. on WebSocket close).
func (m *Manager) RegisterPeer(peerId common.PeerId, roomId string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.peerToRoom[peerId] = roomId
}

// RemovePeer removes a peer from whichever room it belongs to and
// deletes the room if it is left empty. Returns the room it was in, if any.
func (m *Manager) RemovePeer(peerId common.PeerId) (*Room, *Client, bool) {
	m.mu.Lock()
	roomId, ok := m.peerToRoom[peerId]
	if !ok {
		m.mu.Unlock()
		return nil, nil, false
	}
	delete(m.peerToRoom, peerId)
	room, ok := m.rooms[roomId]
	m.mu.Unlock()
	if !ok {
		return nil, nil, false
	}

	client, removed := room.RemoveClient(peerId)
	if !removed {
		return room, nil, false
	}

	if room.IsEmpty() {
		m.mu.Lock()
		delete(m.rooms, roomId)
		m.mu.Unlock()
	}

	return room, client, true
}

// DeleteRoom removes a room unconditionally (used when a room is
// destroyed: the host leaves, the room empties, or the streamer child's
// IPC stream ends).
func (m *Manager) DeleteRoom(roomId string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, roomId)
}

func (m *Manager) RoomForPeer(peerId common.PeerId) (*Room, bool) {
	m.mu.RLock()
	roomId, ok := m.peerToRoom[peerId]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return m.GetRoom(roomId)
}

func (m *Manager) ListRooms() []*Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}
