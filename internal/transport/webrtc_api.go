package transport

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/libp2p/go-reuseport"
	"github.com/pion/ice/v4"
	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/nack"
	"github.com/pion/webrtc/v4"

	"github.com/nestriproj/moonlight-gateway/internal/common"
)

var globalWebRTCAPI *webrtc.API
var globalWebRTCConfig = webrtc.Configuration{
	ICETransportPolicy: webrtc.ICETransportPolicyAll,
	BundlePolicy:       webrtc.BundlePolicyBalanced,
	SDPSemantics:       webrtc.SDPSemanticsUnifiedPlan,
}

// RegisterExtensions wires the RTP header extensions the video path
// depends on for one-way latency measurement and congestion feedback.
func RegisterExtensions(m *webrtc.MediaEngine) error {
	for _, extension := range []struct {
		uri    string
		typ    webrtc.RTPCodecType
	}{
		{sdpExtAbsSendTime, webrtc.RTPCodecTypeVideo},
		{sdpExtAbsSendTime, webrtc.RTPCodecTypeAudio},
		{sdpExtTransportWideCC, webrtc.RTPCodecTypeVideo},
		{sdpExtTransportWideCC, webrtc.RTPCodecTypeAudio},
	} {
		if err := m.RegisterHeaderExtension(webrtc.RTPHeaderExtensionCapability{URI: extension.uri}, extension.typ); err != nil {
			return fmt.Errorf("failed to register extension %s: %w", extension.uri, err)
		}
	}
	return nil
}

const (
	sdpExtAbsSendTime     = "http://www.webrtc.org/experiments/rtp-hdrext/abs-send-time"
	sdpExtTransportWideCC = "http://www.ietf.org/id/draft-holmer-rmcat-transport-wide-cc-extensions-01"
)

// InitWebRTCAPI builds the process-wide webrtc.API: codecs, header
// extensions, NACK generation/response, and the UDP transport settings
// taken from flags (NAT 1:1 IP, UDP mux port, ephemeral port range).
func InitWebRTCAPI() error {
	var err error
	flags := common.GetFlags()

	mediaEngine := &webrtc.MediaEngine{}

	if err = RegisterExtensions(mediaEngine); err != nil {
		return fmt.Errorf("failed to register extensions: %w", err)
	}

	for _, codec := range []webrtc.RTPCodecParameters{
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2, SDPFmtpLine: "minptime=10;useinbandfec=1"},
			PayloadType:        111,
		},
	} {
		if err = mediaEngine.RegisterCodec(codec, webrtc.RTPCodecTypeAudio); err != nil {
			return err
		}
	}

	videoRTCPFeedback := []webrtc.RTCPFeedback{{Type: "nack"}, {Type: "nack", Parameter: "pli"}}
	for _, codec := range []webrtc.RTPCodecParameters{
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType: webrtc.MimeTypeH264, ClockRate: 90000,
				SDPFmtpLine:  "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42001f",
				RTCPFeedback: videoRTCPFeedback,
			},
			PayloadType: 102,
		},
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType: webrtc.MimeTypeH264, ClockRate: 90000,
				SDPFmtpLine:  "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=4d001f",
				RTCPFeedback: videoRTCPFeedback,
			},
			PayloadType: 127,
		},
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:     webrtc.MimeTypeH265,
				ClockRate:    90000,
				RTCPFeedback: videoRTCPFeedback,
			},
			PayloadType: 116,
		},
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeAV1, ClockRate: 90000, RTCPFeedback: videoRTCPFeedback},
			PayloadType:        45,
		},
	} {
		if err = mediaEngine.RegisterCodec(codec, webrtc.RTPCodecTypeVideo); err != nil {
			return err
		}
	}

	interceptorRegistry := &interceptor.Registry{}

	nackGenFactory, err := nack.NewGeneratorInterceptor()
	if err != nil {
		return err
	}
	interceptorRegistry.Add(nackGenFactory)
	nackRespFactory, err := nack.NewResponderInterceptor()
	if err != nil {
		return err
	}
	interceptorRegistry.Add(nackRespFactory)

	if err = webrtc.ConfigureRTCPReports(interceptorRegistry); err != nil {
		return err
	}

	settingEngine := webrtc.SettingEngine{}
	settingEngine.EnableSCTPZeroChecksum(true)

	if nat11IP := flags.NAT11IP; len(nat11IP) > 0 {
		settingEngine.SetNAT1To1IPs([]string{nat11IP}, webrtc.ICECandidateTypeHost)
		slog.Info("using NAT 1:1 IP for WebRTC", "nat11_ip", nat11IP)
	}

	if muxPort := flags.UDPMuxPort; muxPort > 0 {
		pktListener, err := reuseport.ListenPacket("udp", ":"+strconv.Itoa(muxPort))
		if err != nil {
			return fmt.Errorf("failed to create WebRTC muxed UDP listener: %w", err)
		}

		mux := ice.NewMultiUDPMuxDefault(ice.NewUDPMuxDefault(ice.UDPMuxParams{UDPConn: pktListener}))
		slog.Info("using UDP mux for WebRTC", "port", muxPort)
		settingEngine.SetICEUDPMux(mux)
	}

	if flags.WebRTCUDPStart > 0 && flags.WebRTCUDPEnd > 0 && flags.WebRTCUDPStart < flags.WebRTCUDPEnd {
		if err = settingEngine.SetEphemeralUDPPortRange(uint16(flags.WebRTCUDPStart), uint16(flags.WebRTCUDPEnd)); err != nil {
			return err
		}
		slog.Info("using WebRTC UDP port range", "start", flags.WebRTCUDPStart, "end", flags.WebRTCUDPEnd)
	}

	settingEngine.SetIncludeLoopbackCandidate(true)

	globalWebRTCAPI = webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine), webrtc.WithSettingEngine(settingEngine), webrtc.WithInterceptorRegistry(interceptorRegistry))
	return nil
}

// CreatePeerConnection builds a new connection against the process-wide
// API and wires onClose to fire exactly once, when the connection
// transitions to failed/disconnected/closed.
func CreatePeerConnection(onClose func()) (*webrtc.PeerConnection, error) {
	pc, err := globalWebRTCAPI.NewPeerConnection(globalWebRTCConfig)
	if err != nil {
		return nil, err
	}

	var closeOnce sync.Once
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if state == webrtc.PeerConnectionStateFailed ||
			state == webrtc.PeerConnectionStateDisconnected ||
			state == webrtc.PeerConnectionStateClosed {
			if err := pc.Close(); err != nil {
				slog.Error("failed to close peer connection", "err", err)
			}
			closeOnce.Do(onClose)
		}
	})

	return pc, nil
}
