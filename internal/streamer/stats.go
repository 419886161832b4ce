package streamer

import (
	"sync"
	"time"

	"github.com/nestriproj/moonlight-gateway/internal/protocol"
)

// statsAccumulator buffers host-processing-latency and streamer-side
// frame-fanout-time samples and flushes a min/max/avg summary of each
// once a second directly to every connected peer transport (spec §4.5
// "Stats"; supplemented from the original's equivalent stats tick,
// SPEC_FULL.md §10).
type statsAccumulator struct {
	onFlush func(protocol.StatsVideo)

	mu                sync.Mutex
	hostSamples       []float64
	processingSamples []float64

	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func newStatsAccumulator(onFlush func(protocol.StatsVideo)) *statsAccumulator {
	return &statsAccumulator{onFlush: onFlush, done: make(chan struct{})}
}

func (s *statsAccumulator) Start() {
	s.ticker = time.NewTicker(time.Second)
	go s.run()
}

func (s *statsAccumulator) run() {
	for {
		select {
		case <-s.ticker.C:
			s.flush()
		case <-s.done:
			return
		}
	}
}

func (s *statsAccumulator) Stop() {
	s.once.Do(func() {
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.done)
	})
}

// RecordHostLatency stashes one host-reported processing-latency
// sample in milliseconds.
func (s *statsAccumulator) RecordHostLatency(latencyMs float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hostSamples = append(s.hostSamples, latencyMs)
}

// RecordProcessingTime stashes one streamer-side frame-fanout-time
// sample in milliseconds -- how long this process itself took to hand
// one video unit to every connected peer transport.
func (s *statsAccumulator) RecordProcessingTime(ms float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processingSamples = append(s.processingSamples, ms)
}

func minMaxAvg(samples []float64) (min, max, avg float64) {
	min, max, sum := samples[0], samples[0], 0.0
	for _, v := range samples {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	return min, max, sum / float64(len(samples))
}

func (s *statsAccumulator) flush() {
	s.mu.Lock()
	hostSamples := s.hostSamples
	processingSamples := s.processingSamples
	s.hostSamples = nil
	s.processingSamples = nil
	s.mu.Unlock()

	if len(hostSamples) == 0 && len(processingSamples) == 0 {
		return
	}
	if s.onFlush == nil {
		return
	}

	var video protocol.StatsVideo
	if len(hostSamples) > 0 {
		min, max, avg := minMaxAvg(hostSamples)
		video.HostProcessingLatency = &protocol.StatsHostProcessingLatency{MinMs: min, MaxMs: max, AvgMs: avg}
	}
	if len(processingSamples) > 0 {
		min, max, avg := minMaxAvg(processingSamples)
		video.MinStreamerProcessingTimeMs = min
		video.MaxStreamerProcessingTimeMs = max
		video.AvgStreamerProcessingTimeMs = avg
	}

	s.onFlush(video)
}

// recordHostStats feeds the latest host-reported latency sample into
// the rolling accumulator for this second's window.
func (c *Core) recordHostStats(stats protocol.StatsHostProcessingLatency) {
	c.mu.Lock()
	acc := c.stats
	c.mu.Unlock()
	if acc == nil {
		return
	}
	acc.RecordHostLatency(stats.AvgMs)
}

// recordStreamerProcessingTime feeds one frame's fanout duration into
// the rolling accumulator for this second's window.
func (c *Core) recordStreamerProcessingTime(ms float64) {
	c.mu.Lock()
	acc := c.stats
	c.mu.Unlock()
	if acc == nil {
		return
	}
	acc.RecordProcessingTime(ms)
}

// broadcastVideoStats fans one second's latency summary out to every
// connected peer transport.
func (c *Core) broadcastVideoStats(stats protocol.StatsVideo) {
	pkt := protocol.OutboundPacket{Stats: &protocol.StreamerStatsUpdate{Video: &stats}}
	for _, tr := range c.snapshotTransports() {
		_ = tr.Send(pkt)
	}
}

// broadcastRtt passes one RTT sample from the streaming client straight
// through to every connected peer transport, unaccumulated (spec §4.5
// "Stats"; matches the original's per-sample RTT push).
func (c *Core) broadcastRtt(rtt protocol.StatsRtt) {
	pkt := protocol.OutboundPacket{Stats: &protocol.StreamerStatsUpdate{Rtt: &rtt}}
	for _, tr := range c.snapshotTransports() {
		_ = tr.Send(pkt)
	}
}
