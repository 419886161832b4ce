package gateway

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/nestriproj/moonlight-gateway/internal/common"
	"github.com/nestriproj/moonlight-gateway/internal/protocol"
	"github.com/nestriproj/moonlight-gateway/internal/roomset"
)

// runBridge is one peer's read loop: browser text frames are parsed as
// StreamClientMessage, with LeaveRoom and SetGuestsKeyboardMouseEnabled
// handled server-side and everything else forwarded to the streamer
// child; binary frames are relayed verbatim (spec §4.6 "Bridging"). It
// blocks until the connection closes or the peer leaves, then runs
// disconnect cleanup.
func (s *Server) runBridge(ctx context.Context, room *roomset.Room, client *roomset.Client, session *wsSession) {
	defer s.handleDisconnect(room, client)

	for {
		kind, data, err := session.conn.ReadMessage()
		if err != nil {
			return
		}

		switch kind {
		case websocket.BinaryMessage:
			if room.IpcSender != nil {
				room.IpcSender.Send(protocol.NewPeerWebSocketTransportMessage(client.PeerId, data))
			}
		case websocket.TextMessage:
			var msg protocol.StreamClientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				slog.Debug("gateway: dropping malformed client message", "peer", client.PeerId, "err", err)
				continue
			}
			if s.handleControlMessage(room, client, msg) {
				return
			}
		}
	}
}

// handleControlMessage processes the two messages the gateway itself
// understands; everything else is forwarded to the child untouched.
// Returns true when the peer's session should end (LeaveRoom).
func (s *Server) handleControlMessage(room *roomset.Room, client *roomset.Client, msg protocol.StreamClientMessage) bool {
	switch msg.Type {
	case protocol.ClientMsgLeaveRoom:
		return true
	case protocol.ClientMsgSetGuestsKeyboardMouseEnabled:
		if !client.Role.IsHost() || msg.SetGuestsKeyboardMouseEnabled == nil {
			return false
		}
		enabled := msg.SetGuestsKeyboardMouseEnabled.Enabled
		room.SetGuestsKeyboardMouseEnabled(enabled)
		room.Broadcast(protocol.NewGuestsKeyboardMouseEnabledMessage(enabled))
		return false
	default:
		if room.IpcSender != nil {
			room.IpcSender.Send(protocol.NewPeerWebSocketMessage(client.PeerId, msg))
		}
		return false
	}
}

// pumpDownlink relays child-to-parent messages: PeerWebSocket routes to
// one peer's session, WebSocket broadcasts to the room (recording
// Setup/ConnectionComplete into room state as it goes), and the binary
// variants route/broadcast similarly. Stop ends the loop (spec §4.6
// "Downlink").
func (s *Server) pumpDownlink(ctx context.Context, room *roomset.Room, child *Child) {
	for {
		msg, ok := child.Recv.Recv()
		if !ok {
			slog.Warn("gateway: streamer child ipc closed, destroying room", "room", room.RoomId)
			s.destroyRoom(room)
			return
		}

		switch msg.Type {
		case protocol.TypePeerWebSocket:
			if msg.PeerWebSocket == nil {
				continue
			}
			if err := room.SendToPeer(common.PeerId(msg.PeerWebSocket.PeerId), msg.PeerWebSocket.Message); err != nil {
				slog.Debug("gateway: failed to relay peer message", "peer", msg.PeerWebSocket.PeerId, "err", err)
			}
		case protocol.TypeWebSocket:
			if msg.WebSocket == nil {
				continue
			}
			switch msg.WebSocket.Type {
			case protocol.ServerMsgSetup:
				if msg.WebSocket.Setup != nil {
					room.RecordSetup(msg.WebSocket.Setup.IceServers)
				}
			case protocol.ServerMsgConnectionComplete:
				if msg.WebSocket.ConnectionComplete != nil {
					room.RecordConnectionComplete(*msg.WebSocket.ConnectionComplete)
				}
			}
			room.Broadcast(*msg.WebSocket)
		case protocol.TypePeerWebSocketTransport:
			if msg.PeerWebSocketTransport == nil {
				continue
			}
			if c, ok := room.GetClient(common.PeerId(msg.PeerWebSocketTransport.PeerId)); ok {
				if err := c.Session.SendBinary(msg.PeerWebSocketTransport.Data); err != nil {
					slog.Debug("gateway: failed to relay binary frame", "peer", c.PeerId, "err", err)
				}
			}
		case protocol.TypeWebSocketTransport:
			room.BroadcastBinary(msg.WebSocketTransport)
		case protocol.TypePeerReady:
			// informational only; the gateway has nothing further to do
			// once the streamer confirms a peer's transport is live.
		case protocol.TypeStop:
			s.destroyRoom(room)
			return
		default:
			slog.Debug("gateway: ignoring unknown streamer message", "type", msg.Type)
		}
	}
}

// handleDisconnect runs when a peer's WebSocket read loop ends: it
// notifies the child, removes the client from room state, and applies
// the host-departure vs. player/spectator-departure rules (spec §4.6
// "Disconnect").
func (s *Server) handleDisconnect(room *roomset.Room, client *roomset.Client) {
	if room.IpcSender != nil {
		room.IpcSender.Send(protocol.NewPeerDisconnectedMessage(client.PeerId))
	}

	wasHost := client.Role.IsHost()
	slot := client.PlayerSlot
	isSpectator := client.IsSpectator()

	s.Rooms.RemovePeer(client.PeerId)
	common.GlobalMetrics().ActivePeers.Dec()
	_ = client.Session.Close()

	if wasHost {
		room.Broadcast(protocol.NewRoomClosedMessage())
		s.destroyRoom(room)
		return
	}

	if slot != nil {
		room.Broadcast(protocol.NewPlayerLeftMessage(*slot))
	} else if isSpectator {
		room.Broadcast(protocol.NewRoomUpdatedMessage(room.ToRoomInfo()))
	}

	if room.IsEmpty() {
		s.destroyRoom(room)
	}
}

// destroyRoom guarantees the streamer child is killed exactly once,
// regardless of whether a host departure, an empty-room departure, or
// the child's own exit triggered it (spec §3 "drop-kill semantics are
// mandatory").
func (s *Server) destroyRoom(room *roomset.Room) {
	s.Rooms.DeleteRoom(room.RoomId)
	common.GlobalMetrics().ActiveRooms.Dec()

	if child, ok := s.children.Get(room.RoomId); ok {
		s.children.Delete(room.RoomId)
		_ = child.Close()
	}
}
