package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/nestriproj/moonlight-gateway/internal/collab"
	"github.com/nestriproj/moonlight-gateway/internal/common"
	"github.com/nestriproj/moonlight-gateway/internal/protocol"
	"github.com/nestriproj/moonlight-gateway/internal/roomset"
)

// Server accepts browser WebSocket connections, dispatches the first
// message to either the Init (host) or JoinRoom (guest) flow, and owns
// every live room's streamer child (spec §4.6).
type Server struct {
	Rooms    *roomset.Manager
	Hosts    collab.HostResolver
	Apps     collab.AppResolver
	Pairing  collab.PairingCredentials
	Auth     collab.Authenticator

	StreamerPath string
	StreamerArgs []string

	IceServers []protocol.RtcIceServer
	LogLevel   string

	Upgrader websocket.Upgrader

	children *common.SafeMap[string, *Child]
}

// NewServer builds a Server with a permissive default upgrader (origin
// checks are the reverse proxy's job in the teacher's deployment model).
func NewServer(rooms *roomset.Manager, hosts collab.HostResolver, apps collab.AppResolver, pairing collab.PairingCredentials) *Server {
	return &Server{
		Rooms:    rooms,
		Hosts:    hosts,
		Apps:     apps,
		Pairing:  pairing,
		children: common.NewSafeMap[string, *Child](),
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP authenticates the bearer token (when an Authenticator is
// configured), upgrades the connection, and hands it to the
// peer-acceptance flow: the first text frame must be Init or JoinRoom,
// anything else closes the connection (spec §4.6 "Peer acceptance").
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var identity collab.AuthenticatedUser
	if s.Auth != nil {
		token := bearerToken(r)
		user, err := s.Auth.Authenticate(ctx, token)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		identity = user
	}

	conn, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("gateway: websocket upgrade failed", "err", err)
		return
	}

	kind, first, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return
	}
	if kind != websocket.TextMessage {
		_ = conn.Close()
		return
	}

	var msg protocol.StreamClientMessage
	if err := json.Unmarshal(first, &msg); err != nil {
		slog.Debug("gateway: malformed first message, closing", "err", err)
		_ = conn.Close()
		return
	}

	session := newWSSession(conn)

	switch msg.Type {
	case protocol.ClientMsgInit:
		if msg.Init == nil {
			_ = conn.Close()
			return
		}
		s.handleInit(ctx, session, *msg.Init, identity)
	case protocol.ClientMsgJoinRoom:
		if msg.JoinRoom == nil {
			_ = conn.Close()
			return
		}
		s.handleJoinRoom(ctx, session, *msg.JoinRoom, identity)
	default:
		slog.Debug("gateway: first message was neither init nor joinRoom, closing", "type", msg.Type)
		_ = conn.Close()
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>",
// falling back to an empty string an Authenticator can treat as
// anonymous.
func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

// handleInit resolves the host/app/pairing collaborators, spawns the
// room's streamer child, registers slot 0 as Host, and relays Setup +
// RoomCreated to the new host browser (spec §4.6 "Init flow").
func (s *Server) handleInit(ctx context.Context, session *wsSession, init protocol.WsInit, identity collab.AuthenticatedUser) {
	host, err := s.Hosts.ResolveHost(ctx, init.HostId)
	if err != nil {
		s.rejectInit(session, fmt.Sprintf("failed to resolve host: %v", err))
		return
	}
	app, err := s.Apps.ResolveApp(ctx, init.AppId)
	if err != nil {
		s.rejectInit(session, fmt.Sprintf("failed to resolve app: %v", err))
		return
	}
	creds, err := s.Pairing.CredentialsFor(ctx, init.HostId)
	if err != nil {
		s.rejectInit(session, fmt.Sprintf("failed to resolve pairing credentials: %v", err))
		return
	}

	tag := fmt.Sprintf("streamer[host=%d]", init.HostId)
	child, err := StartChild(s.StreamerPath, s.StreamerArgs, tag)
	if err != nil {
		s.rejectInit(session, fmt.Sprintf("failed to start streamer: %v", err))
		return
	}

	room, err := s.Rooms.CreateRoom(init.HostId, init.AppId, app.Name)
	if err != nil {
		_ = child.Close()
		s.rejectInit(session, fmt.Sprintf("failed to allocate room: %v", err))
		return
	}
	room.IpcSender = child.Send
	room.IceServers = s.IceServers

	peerId := common.NextPeerID()
	hostSlot := protocol.PlayerSlot1
	client := &roomset.Client{
		PeerId:         peerId,
		PlayerSlot:     &hostSlot,
		Role:           protocol.RoleHost,
		DisplayName:    nonEmptyPtr(identity.DisplayName),
		ExternalUserId: nonEmptyPtr(identity.ExternalUserId),
		AvatarURL:      nonEmptyPtr(identity.AvatarURL),
		Session:        session,
		VideoQueueSize: init.VideoQueueSize,
		AudioQueueSize: init.AudioQueueSize,
	}
	room.AddClient(client)
	s.Rooms.RegisterPeer(peerId, room.RoomId)
	common.GlobalMetrics().ActiveRooms.Inc()
	common.GlobalMetrics().ActivePeers.Inc()

	child.Send.Send(protocol.NewInitMessage(protocol.IpcInit{
		Config:            protocol.StreamerConfig{ICEServers: s.IceServers, LogLevel: s.LogLevel},
		HostAddress:       host.Address,
		HostHttpPort:      host.HTTPPort,
		ClientUniqueId:    creds.ClientUniqueId,
		ClientPrivateKey:  string(creds.ClientPrivateKey),
		ClientCertificate: string(creds.ClientCertificate),
		ServerCertificate: string(creds.ServerCertificate),
		AppId:             init.AppId,
		VideoQueueSize:    init.VideoQueueSize,
		AudioQueueSize:    init.AudioQueueSize,
	}))
	child.Send.Send(protocol.NewPeerConnectedMessage(protocol.IpcPeerConnected{
		PeerId:         peerId,
		PlayerSlot:     &hostSlot,
		Role:           protocol.RoleHost,
		VideoQueueSize: init.VideoQueueSize,
		AudioQueueSize: init.AudioQueueSize,
	}))

	_ = session.SendText(marshal(protocol.NewSetupMessage(s.IceServers)))
	_ = session.SendText(marshal(protocol.NewRoomCreatedMessage(room.ToRoomInfo(), hostSlot)))

	s.children.Set(room.RoomId, child)
	go s.pumpDownlink(ctx, room, child)
	s.runBridge(ctx, room, client, session)
}

func (s *Server) rejectInit(session *wsSession, reason string) {
	_ = session.SendText(marshal(protocol.NewDebugLogMessage(reason, protocol.LogFatal)))
	_ = session.Close()
}

// handleJoinRoom allocates the next free Player slot, or refuses with
// RoomJoinFailed; a successful join replays Setup and, if available,
// the room's last ConnectionComplete so a late joiner can render
// without waiting for a full renegotiation (spec §4.6 "JoinRoom flow",
// S6).
func (s *Server) handleJoinRoom(ctx context.Context, session *wsSession, join protocol.WsJoinRoom, identity collab.AuthenticatedUser) {
	room, ok := s.Rooms.GetRoom(join.RoomId)
	if !ok {
		_ = session.SendText(marshal(protocol.NewRoomJoinFailedMessage("Room not found")))
		_ = session.Close()
		return
	}

	slot, ok := room.NextAvailableSlot()
	if !ok {
		_ = session.SendText(marshal(protocol.NewRoomJoinFailedMessage("Room is full")))
		_ = session.Close()
		return
	}

	peerId := common.NextPeerID()
	playerSlot := slot
	displayName := join.PlayerName
	if name := nonEmptyPtr(identity.DisplayName); name != nil {
		displayName = name
	}
	client := &roomset.Client{
		PeerId:         peerId,
		PlayerSlot:     &playerSlot,
		Role:           protocol.RolePlayer,
		DisplayName:    displayName,
		ExternalUserId: nonEmptyPtr(identity.ExternalUserId),
		AvatarURL:      nonEmptyPtr(identity.AvatarURL),
		Session:        session,
		VideoQueueSize: join.VideoQueueSize,
		AudioQueueSize: join.AudioQueueSize,
	}
	if !room.AddClient(client) {
		_ = session.SendText(marshal(protocol.NewRoomJoinFailedMessage("Room is full")))
		_ = session.Close()
		return
	}
	s.Rooms.RegisterPeer(peerId, room.RoomId)
	common.GlobalMetrics().ActivePeers.Inc()

	if room.IpcSender != nil {
		room.IpcSender.Send(protocol.NewPeerConnectedMessage(protocol.IpcPeerConnected{
			PeerId:         peerId,
			PlayerSlot:     &playerSlot,
			Role:           protocol.RolePlayer,
			VideoQueueSize: join.VideoQueueSize,
			AudioQueueSize: join.AudioQueueSize,
		}))
	}

	_ = session.SendText(marshal(protocol.NewRoomJoinedMessage(room.ToRoomInfo(), slot)))
	_ = session.SendText(marshal(protocol.NewSetupMessage(room.IceServers)))
	if snap := room.Snapshot; snap != nil {
		_ = session.SendText(marshal(protocol.NewConnectionCompleteMessage(protocol.WsConnectionComplete{
			Capabilities:         snap.Capabilities,
			Format:               snap.Format,
			Width:                snap.Width,
			Height:               snap.Height,
			FPS:                  snap.FPS,
			AudioSampleRate:      snap.AudioSampleRate,
			AudioChannelCount:    snap.AudioChannelCount,
			AudioStreams:         snap.AudioStreams,
			AudioCoupledStreams:  snap.AudioCoupledStreams,
			AudioSamplesPerFrame: snap.AudioSamplesPerFrame,
			AudioMapping:         snap.AudioMapping,
		})))
	}
	room.Broadcast(protocol.NewRoomUpdatedMessage(room.ToRoomInfo()))

	s.runBridge(ctx, room, client, session)
}

// nonEmptyPtr returns nil for an unset (empty) identity field rather
// than a pointer to "", so RoomParticipant.externalUserId etc. are
// omitted entirely for an anonymous/unauthenticated peer.
func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func marshal(msg protocol.StreamServerMessage) []byte {
	encoded, err := json.Marshal(msg)
	if err != nil {
		slog.Warn("gateway: failed to encode outbound message", "err", err)
		return nil
	}
	return encoded
}
