package common

import (
	"flag"
	"fmt"
	"log/slog"
	"sync"
)

// Flags holds process-wide configuration for either the gateway or the
// streamer binary. Per-room settings (host address, pairing material,
// queue sizes) travel over IPC in the Init message instead; these flags
// only cover what a single process needs before any room exists.
type Flags struct {
	EndpointPort   int
	Metrics        bool
	MetricsPort    int
	PersistDir     string
	UDPMuxPort     int
	NAT11IP        string
	WebRTCUDPStart int
	WebRTCUDPEnd   int
	Verbose        bool
}

var (
	globalFlags     *Flags
	globalFlagsOnce sync.Once
)

// InitFlags parses the process command line once. Subsequent calls are
// no-ops; GetFlags returns the same *Flags thereafter.
func InitFlags() {
	globalFlagsOnce.Do(func() {
		f := &Flags{}
		flag.IntVar(&f.EndpointPort, "port", 8088, "port the process listens on")
		flag.BoolVar(&f.Metrics, "metrics", false, "enable the prometheus metrics endpoint")
		flag.IntVar(&f.MetricsPort, "metrics-port", 9090, "port for the prometheus metrics endpoint")
		flag.StringVar(&f.PersistDir, "persist-dir", "./data", "directory for session snapshots")
		flag.IntVar(&f.UDPMuxPort, "webrtc-udp-mux-port", 0, "shared UDP port for WebRTC (0 disables the mux)")
		flag.StringVar(&f.NAT11IP, "nat-1to1-ip", "", "public IP to advertise for NAT 1:1 WebRTC candidates")
		flag.IntVar(&f.WebRTCUDPStart, "webrtc-udp-start", 0, "start of the ephemeral WebRTC UDP port range")
		flag.IntVar(&f.WebRTCUDPEnd, "webrtc-udp-end", 0, "end of the ephemeral WebRTC UDP port range")
		flag.BoolVar(&f.Verbose, "verbose", false, "enable debug-level logging")
		flag.Parse()
		globalFlags = f
	})
}

// GetFlags returns the process-wide flags. InitFlags must have been
// called first; callers that forget to call it get the zero-value
// defaults rather than a panic, matching the teacher's permissive style.
func GetFlags() *Flags {
	if globalFlags == nil {
		return &Flags{}
	}
	return globalFlags
}

// DebugLog logs every resolved flag value at startup.
func (f *Flags) DebugLog() {
	slog.Info("flags",
		"port", f.EndpointPort,
		"metrics", f.Metrics,
		"metrics_port", f.MetricsPort,
		"persist_dir", f.PersistDir,
		"webrtc_udp_mux_port", f.UDPMuxPort,
		"nat_1to1_ip", f.NAT11IP,
		"webrtc_udp_start", f.WebRTCUDPStart,
		"webrtc_udp_end", f.WebRTCUDPEnd,
		"verbose", f.Verbose,
	)
}

func (f *Flags) String() string {
	return fmt.Sprintf("%+v", *f)
}
