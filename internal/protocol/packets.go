package protocol

// OutboundPacket is something the streamer core hands to one peer's
// transport. Exactly one field is non-nil.
type OutboundPacket struct {
	General               *StreamServerMessage        `json:"general,omitempty"`
	Stats                 *StreamerStatsUpdate        `json:"stats,omitempty"`
	ControllerRumble       *ControllerRumble           `json:"controllerRumble,omitempty"`
	ControllerTriggerRumble *ControllerTriggerRumble   `json:"controllerTriggerRumble,omitempty"`
}

type ControllerRumble struct {
	Id             uint8  `json:"id"`
	LowFrequency   uint16 `json:"lowFrequency"`
	HighFrequency  uint16 `json:"highFrequency"`
}

type ControllerTriggerRumble struct {
	Id    uint8  `json:"id"`
	Left  uint16 `json:"left"`
	Right uint16 `json:"right"`
}

type StatsHostProcessingLatency struct {
	MinMs float64 `json:"minHostProcessingLatencyMs"`
	MaxMs float64 `json:"maxHostProcessingLatencyMs"`
	AvgMs float64 `json:"avgHostProcessingLatencyMs"`
}

// StreamerStatsUpdate is emitted roughly once a second by the video
// path, plus whenever the streaming client reports a fresh RTT sample.
type StreamerStatsUpdate struct {
	Rtt   *StatsRtt   `json:"rtt,omitempty"`
	Video *StatsVideo `json:"video,omitempty"`
}

type StatsRtt struct {
	RttMs         float64 `json:"rttMs"`
	RttVarianceMs float64 `json:"rttVarianceMs"`
}

type StatsVideo struct {
	HostProcessingLatency      *StatsHostProcessingLatency `json:"hostProcessingLatency,omitempty"`
	MinStreamerProcessingTimeMs float64                    `json:"minStreamerProcessingTimeMs"`
	MaxStreamerProcessingTimeMs float64                    `json:"maxStreamerProcessingTimeMs"`
	AvgStreamerProcessingTimeMs float64                    `json:"avgStreamerProcessingTimeMs"`
}

// VideoSetup/AudioConfig/OpusMultistreamConfig/VideoDecodeUnit describe
// the media-path parameters a transport pushes at the remote peer and
// the chunked encoded media it forwards; they are opaque to everything
// above the transport layer.
type VideoSetup struct {
	Format SupportedVideoFormats `json:"format"`
	Width  uint32                `json:"width"`
	Height uint32                `json:"height"`
	FPS    uint32                `json:"fps"`
}

type AudioConfig struct {
	SampleRate   uint32 `json:"sampleRate"`
	ChannelCount uint32 `json:"channelCount"`
}

type OpusMultistreamConfig struct {
	Streams         uint32   `json:"streams"`
	CoupledStreams  uint32   `json:"coupledStreams"`
	SamplesPerFrame uint32   `json:"samplesPerFrame"`
	Mapping         [8]uint8 `json:"mapping"`
}

type VideoDecodeUnit struct {
	Data      []byte
	FrameType int
	Timestamp int64
}

// DecodeResult is the transport's report of whether a video unit made
// it to the browser decoder.
type DecodeResult int

const (
	DecodeOK DecodeResult = iota
	DecodeDropped
	DecodeFailed
)

// InboundPacket is input coming from a peer's transport, annotated by
// the streamer core with the originating PeerId before dispatch.
type InboundPacket struct {
	General              *StreamClientMessage      `json:"general,omitempty"`
	MousePosition         *MousePosition            `json:"mousePosition,omitempty"`
	MouseButton           *MouseButtonEvent         `json:"mouseButton,omitempty"`
	MouseMove             *MouseMove                `json:"mouseMove,omitempty"`
	Scroll                *Scroll                   `json:"scroll,omitempty"`
	HighResScroll         *Scroll                   `json:"highResScroll,omitempty"`
	Key                   *KeyEvent                 `json:"key,omitempty"`
	Text                  *TextEvent                `json:"text,omitempty"`
	Touch                 *TouchEvent               `json:"touch,omitempty"`
	ControllerConnected   *ControllerConnected      `json:"controllerConnected,omitempty"`
	ControllerDisconnected *ControllerDisconnected  `json:"controllerDisconnected,omitempty"`
	ControllerState       *ControllerState          `json:"controllerState,omitempty"`
}

type MousePosition struct {
	X, Y             float64
	RefWidth, RefHeight uint32
}

type MouseAction int

const (
	MouseDown MouseAction = iota
	MouseUp
)

type MouseButtonEvent struct {
	Action MouseAction
	Button MouseButton
}

type MouseMove struct {
	DX, DY float64
}

type Scroll struct {
	DX, DY float64
}

type KeyAction int

const (
	KeyDown KeyAction = iota
	KeyUp
)

type KeyFlags uint8

type KeyEvent struct {
	Action KeyAction
	Mods   KeyModifiers
	VK     uint16
	Flags  KeyFlags
}

type TextEvent struct {
	Text string
}

type TouchEventType int

const (
	TouchDown TouchEventType = iota
	TouchMove
	TouchUp
	TouchCancel
)

type TouchEvent struct {
	PointerId                uint32
	X, Y                     float64
	PressureOrDistance       float64
	AreaMajor, AreaMinor     float64
	Rotation                 float64
	EventType                TouchEventType
}

type ControllerConnected struct {
	Id                uint8
	ControllerType     int
	SupportedButtons   ControllerButtons
	Capabilities       ControllerCapabilities
}

type ControllerDisconnected struct {
	Id uint8
}

type ControllerState struct {
	Id                     uint8
	Buttons                ControllerButtons
	LeftTrigger, RightTrigger uint8
	LeftX, LeftY           int16
	RightX, RightY         int16
}
