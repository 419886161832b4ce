package streamer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nestriproj/moonlight-gateway/internal/protocol"
)

func TestMinMaxAvg(t *testing.T) {
	min, max, avg := minMaxAvg([]float64{3, 1, 5})
	assert.Equal(t, 1.0, min)
	assert.Equal(t, 5.0, max)
	assert.InDelta(t, 3.0, avg, 0.0001)
}

func TestStatsAccumulatorFlushPopulatesBothSampleSets(t *testing.T) {
	var got protocol.StatsVideo
	acc := newStatsAccumulator(func(v protocol.StatsVideo) { got = v })

	acc.RecordHostLatency(10)
	acc.RecordHostLatency(20)
	acc.RecordProcessingTime(1)
	acc.RecordProcessingTime(3)

	acc.flush()

	require.NotNil(t, got.HostProcessingLatency)
	assert.Equal(t, 10.0, got.HostProcessingLatency.MinMs)
	assert.Equal(t, 20.0, got.HostProcessingLatency.MaxMs)
	assert.Equal(t, 15.0, got.HostProcessingLatency.AvgMs)
	assert.Equal(t, 1.0, got.MinStreamerProcessingTimeMs)
	assert.Equal(t, 3.0, got.MaxStreamerProcessingTimeMs)
	assert.Equal(t, 2.0, got.AvgStreamerProcessingTimeMs)
}

func TestStatsAccumulatorFlushSkipsEmptyWindow(t *testing.T) {
	called := false
	acc := newStatsAccumulator(func(v protocol.StatsVideo) { called = true })
	acc.flush()
	assert.False(t, called, "flush with no samples in either window must not invoke onFlush")
}

func TestStatsAccumulatorFlushWithOnlyProcessingSamples(t *testing.T) {
	var got protocol.StatsVideo
	acc := newStatsAccumulator(func(v protocol.StatsVideo) { got = v })

	acc.RecordProcessingTime(5)
	acc.flush()

	assert.Nil(t, got.HostProcessingLatency, "no host samples this window means no host summary")
	assert.Equal(t, 5.0, got.AvgStreamerProcessingTimeMs)
}
