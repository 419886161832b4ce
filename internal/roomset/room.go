// Package roomset implements the gateway-side room registry (spec
// §4.4), grounded on the original web server's Room/RoomManager. A
// Room tracks slot occupancy, connected clients, and the IPC sender to
// its streamer child; the registry maps room ids and peer ids to rooms.
package roomset

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/nestriproj/moonlight-gateway/internal/common"
	"github.com/nestriproj/moonlight-gateway/internal/ipc"
	"github.com/nestriproj/moonlight-gateway/internal/protocol"
)

// Session is the minimal surface a room needs from a peer's WebSocket
// handler to push a message; kept narrow so tests can fake it without
// pulling in gorilla/websocket.
type Session interface {
	SendText(data []byte) error
	SendBinary(data []byte) error
	Close() error
}

// Client is one connected participant -- player or spectator -- tied
// to one WebSocket session.
type Client struct {
	PeerId         common.PeerId
	PlayerSlot     *protocol.PlayerSlot
	Role           protocol.RoomRole
	DisplayName    *string
	ExternalUserId *string
	AvatarURL      *string
	Session        Session
	VideoQueueSize int
	AudioQueueSize int
}

func (c *Client) toRoomPlayer() *protocol.RoomPlayer {
	if c.PlayerSlot == nil {
		return nil
	}
	return &protocol.RoomPlayer{Slot: *c.PlayerSlot, Name: c.DisplayName, IsHost: c.Role.IsHost()}
}

func (c *Client) toParticipant() protocol.RoomParticipant {
	return protocol.RoomParticipant{
		Slot:           c.PlayerSlot,
		Role:           c.Role,
		Name:           c.DisplayName,
		ExternalUserId: c.ExternalUserId,
		AvatarURL:      c.AvatarURL,
	}
}

func (c *Client) IsSpectator() bool { return c.Role.IsSpectator() }
func (c *Client) IsPlayer() bool    { return c.Role.CanInput() }

// StreamSnapshot is everything a late joiner needs to start rendering
// without waiting for a full renegotiation (spec §3/S6).
type StreamSnapshot struct {
	Capabilities         protocol.StreamCapabilities
	Format               uint32
	Width, Height, FPS   uint32
	AudioSampleRate      uint32
	AudioChannelCount    uint32
	AudioStreams         uint32
	AudioCoupledStreams  uint32
	AudioSamplesPerFrame uint32
	AudioMapping         [8]uint8
}

// Room holds everything the gateway needs to render one RoomInfo and
// to route messages to its streamer child and its connected clients.
type Room struct {
	mu sync.RWMutex

	RoomId     string
	HostId     uint32
	AppId      uint32
	AppName    string
	MaxPlayers uint8

	clients       map[common.PeerId]*Client
	occupiedSlots [protocol.MaxPlayers]bool

	GuestsKeyboardMouseEnabled bool
	IceServers                 []protocol.RtcIceServer
	Snapshot                   *StreamSnapshot

	IpcSender *ipc.Sender[protocol.ServerIpcMessage]
}

func newRoom(roomId string, hostId, appId uint32, appName string) *Room {
	return &Room{
		RoomId:     roomId,
		HostId:     hostId,
		AppId:      appId,
		AppName:    appName,
		MaxPlayers: protocol.MaxPlayers,
		clients:    make(map[common.PeerId]*Client),
	}
}

func (r *Room) ToRoomInfo() protocol.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	players := make([]protocol.RoomPlayer, 0, len(r.clients))
	participants := make([]protocol.RoomParticipant, 0, len(r.clients))
	spectators := 0
	for _, c := range r.clients {
		if p := c.toRoomPlayer(); p != nil {
			players = append(players, *p)
		}
		participants = append(participants, c.toParticipant())
		if c.IsSpectator() {
			spectators++
		}
	}

	return protocol.RoomInfo{
		RoomId:         r.RoomId,
		HostId:         r.HostId,
		AppId:          r.AppId,
		AppName:        r.AppName,
		Players:        players,
		MaxPlayers:     r.MaxPlayers,
		Participants:   participants,
		SpectatorCount: spectators,
	}
}

// NextAvailableSlot returns the lowest unoccupied slot in [0,3].
func (r *Room) NextAvailableSlot() (protocol.PlayerSlot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i, occupied := range r.occupiedSlots {
		if !occupied {
			return protocol.PlayerSlot(i), true
		}
	}
	return 0, false
}

// AddClient registers c. Fails when c has a slot already taken or out
// of range; spectators (no slot) are always accepted.
func (r *Room) AddClient(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.PlayerSlot != nil {
		idx := int(*c.PlayerSlot)
		if idx >= protocol.MaxPlayers || r.occupiedSlots[idx] {
			return false
		}
		r.occupiedSlots[idx] = true
	}

	r.clients[c.PeerId] = c
	return true
}

// RemoveClient deletes id, freeing its slot if it held one.
func (r *Room) RemoveClient(id common.PeerId) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[id]
	if !ok {
		return nil, false
	}
	delete(r.clients, id)
	if c.PlayerSlot != nil {
		idx := int(*c.PlayerSlot)
		if idx < protocol.MaxPlayers {
			r.occupiedSlots[idx] = false
		}
	}
	return c, true
}

// PromoteToPlayer moves a spectator into the next free slot.
func (r *Room) PromoteToPlayer(id common.PeerId) (protocol.PlayerSlot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var slot protocol.PlayerSlot
	found := false
	for i, occupied := range r.occupiedSlots {
		if !occupied {
			slot = protocol.PlayerSlot(i)
			found = true
			break
		}
	}
	if !found {
		return 0, false
	}

	c, ok := r.clients[id]
	if !ok || !c.IsSpectator() {
		return 0, false
	}

	c.Role = protocol.RolePlayer
	c.PlayerSlot = &slot
	r.occupiedSlots[slot] = true
	return slot, true
}

// DemoteToSpectator clears a non-host player's slot. Never demotes the host.
func (r *Room) DemoteToSpectator(id common.PeerId) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[id]
	if !ok || c.Role.IsHost() {
		return false
	}

	if c.PlayerSlot != nil {
		idx := int(*c.PlayerSlot)
		if idx < protocol.MaxPlayers {
			r.occupiedSlots[idx] = false
		}
		c.PlayerSlot = nil
	}
	c.Role = protocol.RoleSpectator
	return true
}

func (r *Room) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients) == 0
}

func (r *Room) HasHost() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.clients {
		if c.Role.IsHost() {
			return true
		}
	}
	return false
}

func (r *Room) GetClient(id common.PeerId) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

// SetGuestsKeyboardMouseEnabled updates room state and notifies the streamer.
func (r *Room) SetGuestsKeyboardMouseEnabled(enabled bool) {
	r.mu.Lock()
	r.GuestsKeyboardMouseEnabled = enabled
	sender := r.IpcSender
	r.mu.Unlock()

	if sender != nil {
		sender.Send(protocol.NewSetGuestsKeyboardMouseEnabledMessage(enabled))
	}
}

// RecordSetup stashes the ICE servers relayed from the streamer so a
// late joiner can get them without a full renegotiation.
func (r *Room) RecordSetup(servers []protocol.RtcIceServer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.IceServers = servers
}

// RecordConnectionComplete stashes the last ConnectionComplete so it
// can be replayed to a late joiner (spec §3 streamSnapshot, S6).
func (r *Room) RecordConnectionComplete(c protocol.WsConnectionComplete) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Snapshot = &StreamSnapshot{
		Capabilities:         c.Capabilities,
		Format:               c.Format,
		Width:                c.Width,
		Height:               c.Height,
		FPS:                  c.FPS,
		AudioSampleRate:      c.AudioSampleRate,
		AudioChannelCount:    c.AudioChannelCount,
		AudioStreams:         c.AudioStreams,
		AudioCoupledStreams:  c.AudioCoupledStreams,
		AudioSamplesPerFrame: c.AudioSamplesPerFrame,
		AudioMapping:         c.AudioMapping,
	}
}

// Broadcast sends message to every connected client, best-effort;
// per-recipient failures are returned to the caller to log, never
// propagated as a broadcast-wide failure.
func (r *Room) Broadcast(message protocol.StreamServerMessage) map[common.PeerId]error {
	r.mu.RLock()
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.RUnlock()

	encoded, err := marshalServerMessage(message)
	if err != nil {
		return nil
	}

	failures := make(map[common.PeerId]error)
	for _, c := range clients {
		if err := c.Session.SendText(encoded); err != nil {
			failures[c.PeerId] = err
		}
	}
	return failures
}

// Clients returns a point-in-time snapshot of every connected client.
func (r *Room) Clients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	return clients
}

// BroadcastBinary sends a raw frame to every connected client, used for
// the rarely-exercised WebSocketTransport room-wide broadcast path
// (spec §4.6 Downlink).
func (r *Room) BroadcastBinary(data []byte) {
	for _, c := range r.Clients() {
		if err := c.Session.SendBinary(data); err != nil {
			slog.Debug("roomset: failed to broadcast binary frame to peer", "peer", c.PeerId, "err", err)
		}
	}
}

// SendToPeer sends message to exactly one client, if connected.
func (r *Room) SendToPeer(id common.PeerId, message protocol.StreamServerMessage) error {
	r.mu.RLock()
	c, ok := r.clients[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no such peer %v in room %s", id, r.RoomId)
	}

	encoded, err := marshalServerMessage(message)
	if err != nil {
		return err
	}
	return c.Session.SendText(encoded)
}
