package transport

import (
	"log/slog"

	"github.com/pion/webrtc/v4"
)

// iceHelper holds webrtc.ICECandidateInit(s) until the remote
// description is set on the given PeerConnection. Held candidates are
// flushed once negotiation completes so none are lost to a race
// between signaling and ICE gathering.
type iceHelper struct {
	candidates []webrtc.ICECandidateInit
	pc         *webrtc.PeerConnection
}

func newICEHelper(pc *webrtc.PeerConnection) *iceHelper {
	return &iceHelper{
		pc:         pc,
		candidates: make([]webrtc.ICECandidateInit, 0),
	}
}

func (h *iceHelper) addCandidate(c webrtc.ICECandidateInit) {
	if h.pc == nil {
		return
	}
	if h.pc.RemoteDescription() != nil {
		if err := h.pc.AddICECandidate(c); err != nil {
			slog.Error("failed to add ICE candidate", "err", err)
		}
		h.flushHeldCandidates()
		return
	}
	h.candidates = append(h.candidates, c)
}

func (h *iceHelper) flushHeldCandidates() {
	if h.pc == nil || len(h.candidates) == 0 {
		return
	}
	for _, held := range h.candidates {
		if err := h.pc.AddICECandidate(held); err != nil {
			slog.Error("failed to add held ICE candidate", "err", err)
		}
	}
	h.candidates = make([]webrtc.ICECandidateInit, 0)
}
