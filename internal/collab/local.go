package collab

import (
	"context"
	"fmt"

	"github.com/nestriproj/moonlight-gateway/internal/protocol"
)

// StaticHostResolver resolves every hostId against one fixed table,
// for local development and tests where there's no real host
// inventory service to query.
type StaticHostResolver map[uint32]HostAddress

func (r StaticHostResolver) ResolveHost(ctx context.Context, hostId uint32) (HostAddress, error) {
	host, ok := r[hostId]
	if !ok {
		return HostAddress{}, fmt.Errorf("no host registered for id %d", hostId)
	}
	return host, nil
}

// StaticAppResolver resolves every appId against one fixed table.
type StaticAppResolver map[uint32]AppInfo

func (r StaticAppResolver) ResolveApp(ctx context.Context, appId uint32) (AppInfo, error) {
	app, ok := r[appId]
	if !ok {
		return AppInfo{}, fmt.Errorf("no app registered for id %d", appId)
	}
	return app, nil
}

// StaticPairingCredentials hands out the same credential set to every
// host, useful when a single pre-paired dev host is all that's needed.
type StaticPairingCredentials Credentials

func (c StaticPairingCredentials) CredentialsFor(ctx context.Context, hostId uint32) (Credentials, error) {
	return Credentials(c), nil
}

// AnonymousAuthenticator accepts every token and returns no identity,
// for deployments that don't gate the gateway behind its own auth
// layer (e.g. a reverse proxy already did that).
type AnonymousAuthenticator struct{}

func (AnonymousAuthenticator) Authenticate(ctx context.Context, token string) (AuthenticatedUser, error) {
	return AuthenticatedUser{}, nil
}

// NullStreamingClient is a StreamingClient that never produces media:
// Start succeeds immediately and Events stays open but silent until
// Stop closes it. The actual Moonlight wire protocol is a Non-goal;
// this lets the streamer core's state machine and transports be
// exercised end to end without it.
type NullStreamingClient struct {
	events chan StreamingEvent
}

func NewNullStreamingClient() *NullStreamingClient {
	return &NullStreamingClient{events: make(chan StreamingEvent)}
}

func (c *NullStreamingClient) Start(ctx context.Context, host HostAddress, creds Credentials, appId uint32) error {
	return nil
}

func (c *NullStreamingClient) Stop() {
	close(c.events)
}

func (c *NullStreamingClient) SendInput(pkt protocol.InboundPacket) error {
	return nil
}

func (c *NullStreamingClient) Events() <-chan StreamingEvent {
	return c.events
}
