package protocol

// StreamerConfig travels inside Init; it is the only configuration the
// streamer process receives before it owns a room.
type StreamerConfig struct {
	ICEServers []RtcIceServer `json:"iceServers"`
	LogLevel   string         `json:"logLevel"`
}

// ServerIpcMessage is sent parent (gateway) to child (streamer). At most
// one field is populated per message (Stop carries none); Type
// discriminates which.
type ServerIpcMessage struct {
	Type string `json:"type"`

	Init                          *IpcInit                          `json:"init,omitempty"`
	PeerConnected                 *IpcPeerConnected                  `json:"peerConnected,omitempty"`
	PeerRoleChanged               *IpcPeerRoleChanged                `json:"peerRoleChanged,omitempty"`
	PeerDisconnected              *IpcPeerDisconnected                `json:"peerDisconnected,omitempty"`
	WebSocket                     *StreamClientMessage               `json:"webSocket,omitempty"`
	PeerWebSocket                 *IpcPeerWebSocket                  `json:"peerWebSocket,omitempty"`
	WebSocketTransport            []byte                              `json:"webSocketTransport,omitempty"`
	PeerWebSocketTransport        *IpcPeerWebSocketTransport          `json:"peerWebSocketTransport,omitempty"`
	SetGuestsKeyboardMouseEnabled *IpcSetGuestsKeyboardMouseEnabled  `json:"setGuestsKeyboardMouseEnabled,omitempty"`
}

const (
	TypeInit                          = "init"
	TypePeerConnected                  = "peerConnected"
	TypePeerRoleChanged                = "peerRoleChanged"
	TypePeerDisconnected               = "peerDisconnected"
	TypeWebSocket                      = "webSocket"
	TypePeerWebSocket                  = "peerWebSocket"
	TypeWebSocketTransport             = "webSocketTransport"
	TypePeerWebSocketTransport         = "peerWebSocketTransport"
	TypeSetGuestsKeyboardMouseEnabled  = "setGuestsKeyboardMouseEnabled"
	TypeStop                           = "stop"
	TypePeerReady                      = "peerReady"
)

type IpcInit struct {
	Config            StreamerConfig `json:"config"`
	HostAddress       string         `json:"hostAddress"`
	HostHttpPort      uint16         `json:"hostHttpPort"`
	ClientUniqueId    string         `json:"clientUniqueId,omitempty"`
	ClientPrivateKey  string         `json:"clientPrivateKey"`
	ClientCertificate string         `json:"clientCertificate"`
	ServerCertificate string         `json:"serverCertificate"`
	AppId             uint32         `json:"appId"`
	VideoQueueSize    int            `json:"videoFrameQueueSize"`
	AudioQueueSize    int            `json:"audioSampleQueueSize"`
}

type IpcPeerConnected struct {
	PeerId         PeerId      `json:"peerId"`
	PlayerSlot     *PlayerSlot `json:"playerSlot,omitempty"`
	Role           RoomRole    `json:"role"`
	VideoQueueSize int         `json:"videoFrameQueueSize"`
	AudioQueueSize int         `json:"audioSampleQueueSize"`
}

type IpcPeerRoleChanged struct {
	PeerId     PeerId      `json:"peerId"`
	NewRole    RoomRole    `json:"newRole"`
	PlayerSlot *PlayerSlot `json:"playerSlot,omitempty"`
}

type IpcPeerDisconnected struct {
	PeerId PeerId `json:"peerId"`
}

type IpcPeerWebSocket struct {
	PeerId  PeerId              `json:"peerId"`
	Message StreamClientMessage `json:"message"`
}

type IpcPeerWebSocketTransport struct {
	PeerId PeerId `json:"peerId"`
	Data   []byte `json:"data"`
}

type IpcSetGuestsKeyboardMouseEnabled struct {
	Enabled bool `json:"enabled"`
}

// StreamerIpcMessage is sent child (streamer) to parent (gateway).
type StreamerIpcMessage struct {
	Type string `json:"type"`

	WebSocket              *StreamServerMessage        `json:"webSocket,omitempty"`
	PeerWebSocket          *IpcStreamerPeerWebSocket   `json:"peerWebSocket,omitempty"`
	WebSocketTransport     []byte                       `json:"webSocketTransport,omitempty"`
	PeerWebSocketTransport *IpcPeerWebSocketTransport  `json:"peerWebSocketTransport,omitempty"`
	PeerReady              *IpcPeerReady                `json:"peerReady,omitempty"`
}

type IpcStreamerPeerWebSocket struct {
	PeerId  PeerId              `json:"peerId"`
	Message StreamServerMessage `json:"message"`
}

type IpcPeerReady struct {
	PeerId PeerId `json:"peerId"`
}

// Constructors keep call sites from hand-filling the Type discriminant.

func NewInitMessage(m IpcInit) ServerIpcMessage {
	return ServerIpcMessage{Type: TypeInit, Init: &m}
}

func NewPeerConnectedMessage(m IpcPeerConnected) ServerIpcMessage {
	return ServerIpcMessage{Type: TypePeerConnected, PeerConnected: &m}
}

func NewPeerDisconnectedMessage(peerId PeerId) ServerIpcMessage {
	return ServerIpcMessage{Type: TypePeerDisconnected, PeerDisconnected: &IpcPeerDisconnected{PeerId: peerId}}
}

func NewStopMessage() ServerIpcMessage {
	return ServerIpcMessage{Type: TypeStop}
}

func NewPeerWebSocketMessage(peerId PeerId, msg StreamClientMessage) ServerIpcMessage {
	return ServerIpcMessage{Type: TypePeerWebSocket, PeerWebSocket: &IpcPeerWebSocket{PeerId: peerId, Message: msg}}
}

// NewPeerWebSocketTransportMessage wraps a binary frame a browser sent
// on its WebSocket-kind transport so the streamer can decode it -- the
// gateway relays the bytes verbatim, it never interprets them (spec
// §4.6 "Bridging").
func NewPeerWebSocketTransportMessage(peerId PeerId, data []byte) ServerIpcMessage {
	return ServerIpcMessage{
		Type:                   TypePeerWebSocketTransport,
		PeerWebSocketTransport: &IpcPeerWebSocketTransport{PeerId: peerId, Data: data},
	}
}

func NewSetGuestsKeyboardMouseEnabledMessage(enabled bool) ServerIpcMessage {
	return ServerIpcMessage{
		Type:                          TypeSetGuestsKeyboardMouseEnabled,
		SetGuestsKeyboardMouseEnabled: &IpcSetGuestsKeyboardMouseEnabled{Enabled: enabled},
	}
}

func NewStreamerStopMessage() StreamerIpcMessage {
	return StreamerIpcMessage{Type: TypeStop}
}

func NewPeerReadyMessage(peerId PeerId) StreamerIpcMessage {
	return StreamerIpcMessage{Type: TypePeerReady, PeerReady: &IpcPeerReady{PeerId: peerId}}
}

func NewStreamerPeerWebSocketMessage(peerId PeerId, msg StreamServerMessage) StreamerIpcMessage {
	return StreamerIpcMessage{
		Type:          TypePeerWebSocket,
		PeerWebSocket: &IpcStreamerPeerWebSocket{PeerId: peerId, Message: msg},
	}
}

func NewStreamerBroadcastMessage(msg StreamServerMessage) StreamerIpcMessage {
	return StreamerIpcMessage{Type: TypeWebSocket, WebSocket: &msg}
}

// NewStreamerPeerWebSocketTransportMessage wraps a raw binary frame
// destined for one peer's WebSocket-kind transport -- the streamer has
// no socket of its own to that browser, so these bytes travel over IPC
// and the gateway relays them verbatim onto the peer's connection.
func NewStreamerPeerWebSocketTransportMessage(peerId PeerId, data []byte) StreamerIpcMessage {
	return StreamerIpcMessage{
		Type:                   TypePeerWebSocketTransport,
		PeerWebSocketTransport: &IpcPeerWebSocketTransport{PeerId: peerId, Data: data},
	}
}
