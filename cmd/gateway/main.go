// Command gateway is the process browsers connect to: it accepts one
// WebSocket per peer, spawns a streamer child per room, and bridges
// IPC traffic between them (spec §4.6).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nestriproj/moonlight-gateway/internal/collab"
	"github.com/nestriproj/moonlight-gateway/internal/common"
	"github.com/nestriproj/moonlight-gateway/internal/gateway"
	"github.com/nestriproj/moonlight-gateway/internal/protocol"
	"github.com/nestriproj/moonlight-gateway/internal/roomset"
)

func main() {
	mainCtx, mainStopper := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer mainStopper()

	common.InitFlags()
	common.GetFlags().DebugLog()
	common.InitLogger(os.Stdout, "gateway", common.GetFlags().Verbose)
	common.InitMetricsServer()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("gateway: fatal panic", "recover", r)
		}
	}()

	flags := common.GetFlags()
	peerStore := gateway.NewFilePeerStore(filepath.Join(flags.PersistDir, "peerstore.json"))

	srv := gateway.NewServer(
		roomset.NewManager(),
		collab.StaticHostResolver{1: {Address: "127.0.0.1", HTTPPort: 47989}},
		collab.StaticAppResolver{1: {Name: "Desktop"}},
		collab.StaticPairingCredentials{},
	)
	srv.Auth = collab.AnonymousAuthenticator{}
	srv.StreamerPath = streamerBinaryPath()
	srv.LogLevel = levelName(flags.Verbose)
	srv.IceServers = []protocol.RtcIceServer{{Urls: []string{"stun:stun.l.google.com:19302"}}}

	if snapshot, err := peerStore.Load(mainCtx); err != nil {
		slog.Warn("gateway: failed to load peer store", "err", err)
	} else if snapshot != nil {
		slog.Info("gateway: loaded peer store snapshot", "bytes", len(snapshot))
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", srv)

	httpSrv := &http.Server{Addr: fmt.Sprintf(":%d", flags.EndpointPort), Handler: mux}
	go func() {
		slog.Info("gateway: listening", "port", flags.EndpointPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("gateway: http server exited", "err", err)
			mainStopper()
		}
	}()

	<-mainCtx.Done()
	slog.Info("gateway: shutting down gracefully by signal")
	_ = httpSrv.Shutdown(context.Background())
}

func levelName(verbose bool) string {
	if verbose {
		return "debug"
	}
	return "info"
}

// streamerBinaryPath resolves the streamer binary relative to the
// gateway's own executable, matching how the two are deployed
// side-by-side in a single image.
func streamerBinaryPath() string {
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "streamer")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return "./streamer"
}
