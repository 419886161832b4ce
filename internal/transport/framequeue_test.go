package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameQueuePushWithinCapacityNeverDrops(t *testing.T) {
	q := newFrameQueue[int](2)
	assert.False(t, q.push(1))
	assert.False(t, q.push(2))
}

func TestFrameQueuePushOverflowDropsOldest(t *testing.T) {
	q := newFrameQueue[int](2)
	require.False(t, q.push(1))
	require.False(t, q.push(2))
	assert.True(t, q.push(3), "pushing past capacity must report a drop")

	var got []int
	done := make(chan struct{})
	go func() {
		q.drain(func(v int) { got = append(got, v) })
		close(done)
	}()
	q.close()
	<-done

	assert.Equal(t, []int{2, 3}, got, "oldest queued item (1) must be the one dropped")
}

func TestFrameQueueDefaultCapacityForZeroOrNegative(t *testing.T) {
	q := newFrameQueue[int](0)
	for i := 0; i < defaultQueueSize; i++ {
		assert.False(t, q.push(i))
	}
	assert.True(t, q.push(defaultQueueSize), "zero capacity must fall back to defaultQueueSize, not be unbounded")
}

func TestFrameQueuePushAfterCloseReportsDropped(t *testing.T) {
	q := newFrameQueue[int](2)
	q.close()
	assert.True(t, q.push(1), "pushing to a closed queue must report a drop rather than panic")
}

func TestFrameQueueDrainRunsSinkForEveryItemUntilClosed(t *testing.T) {
	q := newFrameQueue[int](4)
	q.push(1)
	q.push(2)

	var got []int
	done := make(chan struct{})
	go func() {
		q.drain(func(v int) { got = append(got, v) })
		close(done)
	}()

	q.close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("drain did not exit after close")
	}
	assert.Equal(t, []int{1, 2}, got)
}
