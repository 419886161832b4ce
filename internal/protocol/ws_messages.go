package protocol

// RtcSdpType mirrors the WebRTC SDP type enum used on session descriptions.
type RtcSdpType string

const (
	SdpOffer       RtcSdpType = "offer"
	SdpAnswer      RtcSdpType = "answer"
	SdpPranswer    RtcSdpType = "pranswer"
	SdpRollback    RtcSdpType = "rollback"
	SdpUnspecified RtcSdpType = "unspecified"
)

type RtcSessionDescription struct {
	Type RtcSdpType `json:"ty"`
	SDP  string     `json:"sdp"`
}

type RtcIceCandidate struct {
	Candidate        string  `json:"candidate"`
	SdpMid           *string `json:"sdpMid,omitempty"`
	SdpMLineIndex    *uint16 `json:"sdpMlineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// StreamSignalingMessage carries one leg of WebRTC negotiation; exactly
// one of Description/AddIceCandidate is set.
type StreamSignalingMessage struct {
	Description    *RtcSessionDescription `json:"description,omitempty"`
	AddIceCandidate *RtcIceCandidate      `json:"addIceCandidate,omitempty"`
}

type RtcIceServer struct {
	Urls       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

type StreamCapabilities struct {
	Touch bool `json:"touch"`
}

// LogMessageType classifies a DebugLog line's severity / intent.
type LogMessageType string

const (
	LogFatal            LogMessageType = "fatal"
	LogFatalDescription LogMessageType = "fatalDescription"
	LogRecover          LogMessageType = "recover"
	LogInformError      LogMessageType = "informError"
)

// RoomPlayer is the public view of one occupied slot, used in RoomInfo.
type RoomPlayer struct {
	Slot   PlayerSlot `json:"slot"`
	Name   *string    `json:"name,omitempty"`
	IsHost bool       `json:"isHost"`
}

// RoomParticipant additionally carries spectators and the Discord-style
// external identity fields (supplemented feature; see SPEC_FULL §10).
type RoomParticipant struct {
	Slot           *PlayerSlot `json:"slot,omitempty"`
	Role           RoomRole    `json:"role"`
	Name           *string     `json:"name,omitempty"`
	ExternalUserId *string     `json:"externalUserId,omitempty"`
	AvatarURL      *string     `json:"avatarUrl,omitempty"`
}

type RoomInfo struct {
	RoomId          string            `json:"roomId"`
	HostId          uint32            `json:"hostId"`
	AppId           uint32            `json:"appId"`
	AppName         string            `json:"appName"`
	Players         []RoomPlayer      `json:"players"`
	MaxPlayers      uint8             `json:"maxPlayers"`
	Participants    []RoomParticipant `json:"participants"`
	SpectatorCount  int               `json:"spectatorCount"`
}

// StreamClientMessage is a browser->server WebSocket text message.
// At most one field is populated per message (leaveRoom carries none);
// Type discriminates which.
type StreamClientMessage struct {
	Type string `json:"type"`

	Init                          *WsInit                          `json:"init,omitempty"`
	JoinRoom                      *WsJoinRoom                      `json:"joinRoom,omitempty"`
	SetGuestsKeyboardMouseEnabled *WsSetGuestsKeyboardMouseEnabled `json:"setGuestsKeyboardMouseEnabled,omitempty"`
	WebRtc                        *StreamSignalingMessage          `json:"webRtc,omitempty"`
	SetTransport                  *WsSetTransport                  `json:"setTransport,omitempty"`
	StartStream                   *WsStartStream                   `json:"startStream,omitempty"`
}

const (
	ClientMsgInit                          = "init"
	ClientMsgJoinRoom                      = "joinRoom"
	ClientMsgLeaveRoom                     = "leaveRoom"
	ClientMsgSetGuestsKeyboardMouseEnabled = "setGuestsKeyboardMouseEnabled"
	ClientMsgWebRtc                        = "webRtc"
	ClientMsgSetTransport                  = "setTransport"
	ClientMsgStartStream                   = "startStream"
)

type WsInit struct {
	HostId         uint32 `json:"hostId"`
	AppId          uint32 `json:"appId"`
	VideoQueueSize int    `json:"videoFrameQueueSize"`
	AudioQueueSize int    `json:"audioSampleQueueSize"`
}

type WsJoinRoom struct {
	RoomId         string  `json:"roomId"`
	PlayerName     *string `json:"playerName,omitempty"`
	VideoQueueSize int     `json:"videoFrameQueueSize"`
	AudioQueueSize int     `json:"audioSampleQueueSize"`
}

type WsSetGuestsKeyboardMouseEnabled struct {
	Enabled bool `json:"enabled"`
}

type WsSetTransport struct {
	Kind TransportKind `json:"kind"`
}

type WsStartStream struct {
	Bitrate              uint32                `json:"bitrate"`
	PacketSize           uint32                `json:"packetSize"`
	FPS                  uint32                `json:"fps"`
	Width                uint32                `json:"width"`
	Height               uint32                `json:"height"`
	PlayAudioLocal       bool                  `json:"playAudioLocal"`
	VideoSupportedFormats SupportedVideoFormats `json:"videoSupportedFormats"`
	VideoColorspace      Colorspace            `json:"videoColorspace"`
	VideoColorRangeFull  bool                  `json:"videoColorRangeFull"`
}

// StreamServerMessage is a server->browser WebSocket text message.
type StreamServerMessage struct {
	Type string `json:"type"`

	Setup               *WsSetup               `json:"setup,omitempty"`
	WebRtc               *StreamSignalingMessage `json:"webRtc,omitempty"`
	UpdateApp            *WsUpdateApp            `json:"updateApp,omitempty"`
	DebugLog              *WsDebugLog            `json:"debugLog,omitempty"`
	ConnectionComplete    *WsConnectionComplete  `json:"connectionComplete,omitempty"`
	ConnectionTerminated  *WsConnectionTerminated `json:"connectionTerminated,omitempty"`
	RoomCreated           *WsRoomSlot            `json:"roomCreated,omitempty"`
	RoomJoined            *WsRoomSlot            `json:"roomJoined,omitempty"`
	RoomUpdated           *WsRoomUpdated         `json:"roomUpdated,omitempty"`
	RoomJoinFailed        *WsRoomJoinFailed      `json:"roomJoinFailed,omitempty"`
	PlayerLeft            *WsPlayerLeft          `json:"playerLeft,omitempty"`
	GuestsKeyboardMouseEnabled *WsSetGuestsKeyboardMouseEnabled `json:"guestsKeyboardMouseEnabled,omitempty"`
}

const (
	ServerMsgSetup                      = "setup"
	ServerMsgWebRtc                     = "webRtc"
	ServerMsgUpdateApp                  = "updateApp"
	ServerMsgDebugLog                   = "debugLog"
	ServerMsgConnectionComplete         = "connectionComplete"
	ServerMsgConnectionTerminated       = "connectionTerminated"
	ServerMsgRoomCreated                = "roomCreated"
	ServerMsgRoomJoined                 = "roomJoined"
	ServerMsgRoomUpdated                = "roomUpdated"
	ServerMsgRoomJoinFailed             = "roomJoinFailed"
	ServerMsgPlayerLeft                 = "playerLeft"
	ServerMsgRoomClosed                 = "roomClosed"
	ServerMsgGuestsKeyboardMouseEnabled = "guestsKeyboardMouseEnabled"
)

type WsSetup struct {
	IceServers []RtcIceServer `json:"iceServers"`
}

type WsUpdateApp struct {
	AppId   uint32 `json:"appId"`
	Title   string `json:"title"`
}

type WsDebugLog struct {
	Message string          `json:"message"`
	Type    *LogMessageType `json:"type,omitempty"`
}

type WsConnectionComplete struct {
	Capabilities         StreamCapabilities `json:"capabilities"`
	Format               uint32             `json:"format"`
	Width                uint32             `json:"width"`
	Height               uint32             `json:"height"`
	FPS                  uint32             `json:"fps"`
	AudioSampleRate      uint32             `json:"audioSampleRate"`
	AudioChannelCount    uint32             `json:"audioChannelCount"`
	AudioStreams         uint32             `json:"audioStreams"`
	AudioCoupledStreams  uint32             `json:"audioCoupledStreams"`
	AudioSamplesPerFrame uint32             `json:"audioSamplesPerFrame"`
	AudioMapping         [8]uint8           `json:"audioMapping"`
}

type WsConnectionTerminated struct {
	ErrorCode int32 `json:"errorCode"`
}

type WsRoomSlot struct {
	Room       RoomInfo   `json:"room"`
	PlayerSlot PlayerSlot `json:"playerSlot"`
}

type WsRoomUpdated struct {
	Room RoomInfo `json:"room"`
}

type WsRoomJoinFailed struct {
	Reason string `json:"reason"`
}

type WsPlayerLeft struct {
	Slot PlayerSlot `json:"slot"`
}

// Constructors for the server message union, mirroring the IPC ones.

func NewSetupMessage(servers []RtcIceServer) StreamServerMessage {
	return StreamServerMessage{Type: ServerMsgSetup, Setup: &WsSetup{IceServers: servers}}
}

func NewDebugLogMessage(message string, ty LogMessageType) StreamServerMessage {
	return StreamServerMessage{Type: ServerMsgDebugLog, DebugLog: &WsDebugLog{Message: message, Type: &ty}}
}

func NewRoomCreatedMessage(room RoomInfo, slot PlayerSlot) StreamServerMessage {
	return StreamServerMessage{Type: ServerMsgRoomCreated, RoomCreated: &WsRoomSlot{Room: room, PlayerSlot: slot}}
}

func NewRoomJoinedMessage(room RoomInfo, slot PlayerSlot) StreamServerMessage {
	return StreamServerMessage{Type: ServerMsgRoomJoined, RoomJoined: &WsRoomSlot{Room: room, PlayerSlot: slot}}
}

func NewRoomUpdatedMessage(room RoomInfo) StreamServerMessage {
	return StreamServerMessage{Type: ServerMsgRoomUpdated, RoomUpdated: &WsRoomUpdated{Room: room}}
}

func NewRoomJoinFailedMessage(reason string) StreamServerMessage {
	return StreamServerMessage{Type: ServerMsgRoomJoinFailed, RoomJoinFailed: &WsRoomJoinFailed{Reason: reason}}
}

func NewPlayerLeftMessage(slot PlayerSlot) StreamServerMessage {
	return StreamServerMessage{Type: ServerMsgPlayerLeft, PlayerLeft: &WsPlayerLeft{Slot: slot}}
}

func NewRoomClosedMessage() StreamServerMessage {
	return StreamServerMessage{Type: ServerMsgRoomClosed}
}

func NewGuestsKeyboardMouseEnabledMessage(enabled bool) StreamServerMessage {
	return StreamServerMessage{
		Type:                       ServerMsgGuestsKeyboardMouseEnabled,
		GuestsKeyboardMouseEnabled: &WsSetGuestsKeyboardMouseEnabled{Enabled: enabled},
	}
}

func NewConnectionCompleteMessage(c WsConnectionComplete) StreamServerMessage {
	return StreamServerMessage{Type: ServerMsgConnectionComplete, ConnectionComplete: &c}
}
