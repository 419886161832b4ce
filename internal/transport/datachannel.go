package transport

import (
	"github.com/pion/webrtc/v4"

	"github.com/nestriproj/moonlight-gateway/internal/protocol"
)

// OnBinaryCallback handles one raw binary frame arriving on a channel.
type OnBinaryCallback func(data []byte)

// namedDataChannel wraps a *webrtc.DataChannel with the single binary
// callback the spec's fixed channel-id map needs -- one dedicated
// channel per packet class rather than a multiplexed payload-type
// dispatch, since §6.4 already assigns each class its own id.
type namedDataChannel struct {
	*webrtc.DataChannel
	id       protocol.ChannelID
	onBinary OnBinaryCallback
}

func newNamedDataChannel(dc *webrtc.DataChannel, id protocol.ChannelID, onBinary OnBinaryCallback) *namedDataChannel {
	ndc := &namedDataChannel{DataChannel: dc, id: id, onBinary: onBinary}

	ndc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if msg.IsString {
			return
		}
		if ndc.onBinary != nil {
			ndc.onBinary(msg.Data)
		}
	})

	return ndc
}

func (ndc *namedDataChannel) sendBinary(data []byte) error {
	return ndc.Send(data)
}
