// Command streamer is the per-room child process spawned by the
// gateway: it owns exactly one upstream streaming session and speaks
// newline-JSON IPC with its parent over stdin/stdout (spec §4.5).
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nestriproj/moonlight-gateway/internal/collab"
	"github.com/nestriproj/moonlight-gateway/internal/common"
	"github.com/nestriproj/moonlight-gateway/internal/ipc"
	"github.com/nestriproj/moonlight-gateway/internal/protocol"
	"github.com/nestriproj/moonlight-gateway/internal/streamer"
	"github.com/nestriproj/moonlight-gateway/internal/transport"
)

func main() {
	mainCtx, mainStopper := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer mainStopper()

	common.InitFlags()
	common.InitLogger(os.Stderr, "streamer", common.GetFlags().Verbose)

	if err := transport.InitWebRTCAPI(); err != nil {
		slog.Error("streamer: failed to initialise webrtc api", "err", err)
		os.Exit(1)
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("streamer: fatal panic", "recover", r)
			os.Exit(1)
		}
	}()

	send := ipc.NewSender[protocol.StreamerIpcMessage](os.Stdout, "streamer")
	recv := ipc.NewReceiver[protocol.ServerIpcMessage](os.Stdin, "streamer")

	deps := streamer.Deps{
		NewClient: func() collab.StreamingClient { return collab.NewNullStreamingClient() },
	}
	core := streamer.NewCore(deps, send, recv)

	go core.Run(mainCtx)
	core.Wait()
	slog.Info("streamer: exited")
}
