// Package gateway implements the server-side process: WebSocket
// accept, room resolution, per-room streamer child supervision, and
// the bidirectional bridge between a peer's WebSocket and its room's
// streamer (spec §4.6).
package gateway

import (
	"fmt"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/nestriproj/moonlight-gateway/internal/ipc"
	"github.com/nestriproj/moonlight-gateway/internal/protocol"
)

// Child supervises one streamer process: its stdio pipes feed the IPC
// sender/receiver pair, and Close guarantees the process is killed
// exactly once regardless of how many callers invoke it (spec §3 "the
// server guarantees the child is killed on room destruction").
type Child struct {
	cmd    *exec.Cmd
	Send   *ipc.Sender[protocol.ServerIpcMessage]
	Recv   *ipc.Receiver[protocol.StreamerIpcMessage]

	mu     sync.Mutex
	closed bool
}

// StartChild launches path as a streamer child, wiring its stdin/stdout
// to newline-JSON IPC and its stderr into the structured log under tag.
func StartChild(path string, args []string, tag string) (*Child, error) {
	cmd := exec.Command(path, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open child stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open child stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open child stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start streamer child: %w", err)
	}

	go ipc.LineForwarder(stderr, tag)

	return &Child{
		cmd:  cmd,
		Send: ipc.NewSender[protocol.ServerIpcMessage](stdin, tag),
		Recv: ipc.NewReceiver[protocol.StreamerIpcMessage](stdout, tag),
	}, nil
}

// Close sends a graceful Stop over IPC, then unconditionally kills the
// process; idempotent so every room-teardown path can call it safely.
func (c *Child) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.Send.Send(protocol.NewStopMessage())
	c.Send.Close()

	if c.cmd.Process == nil {
		return nil
	}
	if err := c.cmd.Process.Kill(); err != nil {
		slog.Debug("gateway: failed to kill streamer child (may have already exited)", "err", err)
	}
	return c.cmd.Wait()
}
