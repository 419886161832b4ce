package protocol

// Virtual-key codes, same numbering Windows and the streaming host use.
// https://github.com/awakecoding/Win32Keyboard/blob/master/vkcodes.h
const (
	VK_LBUTTON  uint16 = 0x01
	VK_RBUTTON  uint16 = 0x02
	VK_CANCEL   uint16 = 0x03
	VK_MBUTTON  uint16 = 0x04
	VK_XBUTTON1 uint16 = 0x05
	VK_XBUTTON2 uint16 = 0x06

	VK_BACK   uint16 = 0x08
	VK_TAB    uint16 = 0x09
	VK_CLEAR  uint16 = 0x0C
	VK_RETURN uint16 = 0x0D

	VK_SHIFT   uint16 = 0x10
	VK_CONTROL uint16 = 0x11
	VK_MENU    uint16 = 0x12
	VK_PAUSE   uint16 = 0x13
	VK_CAPITAL uint16 = 0x14

	VK_ESCAPE uint16 = 0x1B
	VK_SPACE  uint16 = 0x20
	VK_PRIOR  uint16 = 0x21
	VK_NEXT   uint16 = 0x22
	VK_END    uint16 = 0x23
	VK_HOME   uint16 = 0x24
	VK_LEFT   uint16 = 0x25
	VK_UP     uint16 = 0x26
	VK_RIGHT  uint16 = 0x27
	VK_DOWN   uint16 = 0x28
	VK_INSERT uint16 = 0x2D
	VK_DELETE uint16 = 0x2E

	VK_KEY_0 uint16 = 0x30
	VK_KEY_1 uint16 = 0x31
	VK_KEY_2 uint16 = 0x32
	VK_KEY_3 uint16 = 0x33
	VK_KEY_4 uint16 = 0x34
	VK_KEY_5 uint16 = 0x35
	VK_KEY_6 uint16 = 0x36
	VK_KEY_7 uint16 = 0x37
	VK_KEY_8 uint16 = 0x38
	VK_KEY_9 uint16 = 0x39

	VK_KEY_A uint16 = 0x41
	VK_KEY_B uint16 = 0x42
	VK_KEY_C uint16 = 0x43
	VK_KEY_D uint16 = 0x44
	VK_KEY_E uint16 = 0x45
	VK_KEY_F uint16 = 0x46
	VK_KEY_G uint16 = 0x47
	VK_KEY_H uint16 = 0x48
	VK_KEY_I uint16 = 0x49
	VK_KEY_J uint16 = 0x4A
	VK_KEY_K uint16 = 0x4B
	VK_KEY_L uint16 = 0x4C
	VK_KEY_M uint16 = 0x4D
	VK_KEY_N uint16 = 0x4E
	VK_KEY_O uint16 = 0x4F
	VK_KEY_P uint16 = 0x50
	VK_KEY_Q uint16 = 0x51
	VK_KEY_R uint16 = 0x52
	VK_KEY_S uint16 = 0x53
	VK_KEY_T uint16 = 0x54
	VK_KEY_U uint16 = 0x55
	VK_KEY_V uint16 = 0x56
	VK_KEY_W uint16 = 0x57
	VK_KEY_X uint16 = 0x58
	VK_KEY_Y uint16 = 0x59
	VK_KEY_Z uint16 = 0x5A

	VK_LWIN uint16 = 0x5B
	VK_RWIN uint16 = 0x5C

	VK_NUMPAD0 uint16 = 0x60
	VK_NUMPAD1 uint16 = 0x61
	VK_NUMPAD2 uint16 = 0x62
	VK_NUMPAD3 uint16 = 0x63
	VK_NUMPAD4 uint16 = 0x64
	VK_NUMPAD5 uint16 = 0x65
	VK_NUMPAD6 uint16 = 0x66
	VK_NUMPAD7 uint16 = 0x67
	VK_NUMPAD8 uint16 = 0x68
	VK_NUMPAD9 uint16 = 0x69

	VK_F1  uint16 = 0x70
	VK_F2  uint16 = 0x71
	VK_F3  uint16 = 0x72
	VK_F4  uint16 = 0x73
	VK_F5  uint16 = 0x74
	VK_F6  uint16 = 0x75
	VK_F7  uint16 = 0x76
	VK_F8  uint16 = 0x77
	VK_F9  uint16 = 0x78
	VK_F10 uint16 = 0x79
	VK_F11 uint16 = 0x7A
	VK_F12 uint16 = 0x7B

	VK_NUMLOCK uint16 = 0x90
	VK_SCROLL  uint16 = 0x91

	VK_LSHIFT   uint16 = 0xA0
	VK_RSHIFT   uint16 = 0xA1
	VK_LCONTROL uint16 = 0xA2
	VK_RCONTROL uint16 = 0xA3
	VK_LMENU    uint16 = 0xA4
	VK_RMENU    uint16 = 0xA5
)

// KeyModifiers is a bitmask matching the streaming host's own modifier
// encoding, carried verbatim through Key packets.
type KeyModifiers int8

const (
	ModShift KeyModifiers = 1 << 0
	ModCtrl  KeyModifiers = 1 << 1
	ModAlt   KeyModifiers = 1 << 2
	ModMeta  KeyModifiers = 1 << 3
)

// MouseButton enumerates the buttons a MouseButton packet can name.
type MouseButton int32

const (
	MouseLeft   MouseButton = 0
	MouseMiddle MouseButton = 1
	MouseRight  MouseButton = 2
	MouseX1     MouseButton = 3
	MouseX2     MouseButton = 4
)

// ControllerButtons is a bitmask of the streaming host's gamepad button set.
type ControllerButtons uint32

const (
	ButtonA       ControllerButtons = 1 << 0
	ButtonB       ControllerButtons = 1 << 1
	ButtonX       ControllerButtons = 1 << 2
	ButtonY       ControllerButtons = 1 << 3
	ButtonUp      ControllerButtons = 1 << 4
	ButtonDown    ControllerButtons = 1 << 5
	ButtonLeft    ControllerButtons = 1 << 6
	ButtonRight   ControllerButtons = 1 << 7
	ButtonLB      ControllerButtons = 1 << 8
	ButtonRB      ControllerButtons = 1 << 9
	ButtonPlay    ControllerButtons = 1 << 10
	ButtonBack    ControllerButtons = 1 << 11
	ButtonLSClick ControllerButtons = 1 << 12
	ButtonRSClick ControllerButtons = 1 << 13
	ButtonSpecial ControllerButtons = 1 << 14
)

// ControllerCapabilities is a bitmask of optional hardware features a
// connected pad reports supporting.
type ControllerCapabilities uint16

const (
	CapabilityRumble        ControllerCapabilities = 1 << 0
	CapabilityTriggerRumble ControllerCapabilities = 1 << 1
)

// SupportedVideoFormats is a bitmask of codecs the browser's decoder
// can accept, sent in StartStream.
type SupportedVideoFormats uint32

const (
	FormatH264         SupportedVideoFormats = 1 << 0
	FormatH264High8444 SupportedVideoFormats = 1 << 1
	FormatH265         SupportedVideoFormats = 1 << 2
	FormatH265Main10   SupportedVideoFormats = 1 << 3
	FormatAV1Main8     SupportedVideoFormats = 1 << 4
	FormatAV1Main10    SupportedVideoFormats = 1 << 5
)

// Colorspace names the video colorspace negotiated for the session.
type Colorspace string

const (
	ColorspaceRec601  Colorspace = "rec601"
	ColorspaceRec709  Colorspace = "rec709"
	ColorspaceRec2020 Colorspace = "rec2020"
)
