package protocol

// ChannelID tags a packet class within one transport, identical across
// the WebRTC data-channel space and the WebSocket 1-byte frame prefix.
type ChannelID uint8

const (
	ChannelGeneral       ChannelID = 0
	ChannelStats         ChannelID = 1
	ChannelHostVideo     ChannelID = 2
	ChannelHostAudio     ChannelID = 3
	ChannelMouseReliable ChannelID = 4
	ChannelMouseAbsolute ChannelID = 5
	ChannelMouseRelative ChannelID = 6
	ChannelKeyboard      ChannelID = 7
	ChannelTouch         ChannelID = 8
	ChannelControllers   ChannelID = 9
	ChannelController0   ChannelID = 10
	// ChannelController15 is the last of sixteen per-pad channels
	// (ChannelController0..ChannelController0+15).
	ChannelController15 ChannelID = 25
)

// ChannelForGamepad returns the dedicated channel id for physical
// gamepad slot n (0-15).
func ChannelForGamepad(slot uint8) ChannelID {
	return ChannelController0 + ChannelID(slot)
}

// TransportKind names the carrier a peer has negotiated.
type TransportKind string

const (
	TransportWebRTC    TransportKind = "webrtc"
	TransportWebSocket TransportKind = "websocket"
)
