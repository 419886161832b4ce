package ipc

import (
	"bytes"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testMessage struct {
	Value int `json:"value"`
}

// syncBuffer guards a bytes.Buffer so the sender's background writer
// goroutine and the test's polling reads never race.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) newlineCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Count(b.buf.Bytes(), []byte("\n"))
}

func TestSenderWritesOneJSONObjectPerLine(t *testing.T) {
	buf := &syncBuffer{}

	s := NewSender[testMessage](buf, "test")
	s.Send(testMessage{Value: 1})
	s.Send(testMessage{Value: 2})
	s.Close()

	require.Eventually(t, func() bool { return buf.newlineCount() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "{\"value\":1}\n{\"value\":2}\n", buf.String())
}

func TestSenderLatchesDeadOnWriteError(t *testing.T) {
	s := NewSender[testMessage](failingWriter{}, "test")
	s.Send(testMessage{Value: 1})

	require.Eventually(t, func() bool { return s.dead.Load() }, time.Second, 5*time.Millisecond)

	// Further sends are silent no-ops once dead, never blocking the caller.
	done := make(chan struct{})
	go func() {
		s.Send(testMessage{Value: 2})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send should not block once the sender has latched dead")
	}
}

func TestReceiverSkipsMalformedLinesButKeepsReading(t *testing.T) {
	r := NewReceiver[testMessage](bytes.NewBufferString("not json\n{\"value\":7}\n"), "test")

	msg, ok := r.Recv()
	require.True(t, ok)
	assert.Equal(t, 7, msg.Value)
}

func TestReceiverReturnsFalseForeverAfterEOF(t *testing.T) {
	r := NewReceiver[testMessage](bytes.NewBufferString("{\"value\":1}\n"), "test")

	_, ok := r.Recv()
	require.True(t, ok)

	_, ok = r.Recv()
	assert.False(t, ok)

	_, ok = r.Recv()
	assert.False(t, ok, "a receiver that has hit EOF must stay closed")
}

func TestReceiverSkipsBlankLines(t *testing.T) {
	r := NewReceiver[testMessage](bytes.NewBufferString("\n\n{\"value\":3}\n"), "test")

	msg, ok := r.Recv()
	require.True(t, ok)
	assert.Equal(t, 3, msg.Value)
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, io.ErrClosedPipe
}
