// Package collab defines the narrow interfaces the gateway and
// streamer cores consume for every Non-goal concern (spec §1/§9):
// host resolution, app catalogue lookup, pairing credential storage,
// peer persistence, and the streaming protocol itself. None of these
// are implemented here beyond trivial local-development stand-ins --
// a production deployment supplies its own.
package collab

import (
	"context"

	"github.com/nestriproj/moonlight-gateway/internal/protocol"
)

// HostResolver turns a gateway-assigned hostId into the network
// address of the machine running the game/app to stream. A real
// implementation would consult whatever inventory system operators
// use to track their streaming hosts.
type HostResolver interface {
	ResolveHost(ctx context.Context, hostId uint32) (HostAddress, error)
}

type HostAddress struct {
	Address  string
	HTTPPort uint16
}

// AppResolver turns a gateway-assigned appId into a human-readable
// name (for RoomInfo.AppName) and anything else the streamer needs to
// launch it on the resolved host.
type AppResolver interface {
	ResolveApp(ctx context.Context, appId uint32) (AppInfo, error)
}

type AppInfo struct {
	Name string
}

// PairingCredentials supplies the client certificate/key pair and the
// expected host certificate used to authenticate to a streaming host.
// Pairing cryptography itself is a Non-goal; this interface only
// carries already-minted material to the streamer.
type PairingCredentials interface {
	CredentialsFor(ctx context.Context, hostId uint32) (Credentials, error)
}

type Credentials struct {
	ClientUniqueId    string
	ClientCertificate []byte
	ClientPrivateKey  []byte
	ServerCertificate []byte
}

// PeerStore persists enough of a peer's identity to survive a gateway
// restart (session recovery), e.g. the Discord-style external
// identity fields carried on RoomParticipant. Persistence mechanics
// and schema are a Non-goal; this is a narrow save/load contract.
type PeerStore interface {
	Save(ctx context.Context, snapshot []byte) error
	Load(ctx context.Context) ([]byte, error)
}

// Authenticator validates whatever credential a browser presents when
// opening the gateway WebSocket, before Init/JoinRoom is processed.
// Auth mechanics (cookies, OAuth, sessions) are a Non-goal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (AuthenticatedUser, error)
}

type AuthenticatedUser struct {
	ExternalUserId string
	DisplayName    string
	AvatarURL      string
}

// StreamingClient stands in for the Moonlight client library itself
// (wire protocol, pairing, video/audio decode -- all Non-goals). The
// streamer core drives it through this surface only.
type StreamingClient interface {
	// Start begins the upstream session against the resolved host/app
	// and pairing credentials, and must not block past session setup;
	// ongoing video/audio/stats delivery happens via Events.
	Start(ctx context.Context, host HostAddress, creds Credentials, appId uint32) error

	// Stop tears the upstream session down. May block; callers run it
	// through common.RunBlocking rather than call it from an event
	// loop goroutine directly.
	Stop()

	// SendInput forwards one already-permission-checked input packet
	// upstream (keyboard/mouse/gamepad/touch).
	SendInput(pkt protocol.InboundPacket) error

	// Events returns the channel of video/audio/stats/rumble events;
	// the streamer core ranges over it on a goroutine of its own.
	Events() <-chan StreamingEvent
}

// StreamingEvent is one upstream-originated event the streamer core
// must fan out to peer transports.
type StreamingEvent struct {
	VideoUnit *protocol.VideoDecodeUnit
	AudioData []byte
	Stats     *protocol.StatsHostProcessingLatency
	// Rtt is an estimated round-trip-time sample the client produces on
	// its own schedule; the core passes each one straight through to
	// every peer transport rather than accumulating it.
	Rtt    *protocol.StatsRtt
	Rumble *protocol.ControllerRumble
	Ended  bool
	Err    error
}
