package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSocketTransportLifecycle(t *testing.T) {
	wst := NewWebSocketTransport("127.0.0.1:0")

	assert.NoError(t, wst.Send(map[string]any{"bin": 1}), "send with no clients drops quietly")

	require.NoError(t, wst.Close())
	assert.NoError(t, wst.Close(), "repeated Close is a no-op")

	// After Close the broadcast goroutine is gone; sends must keep dropping
	// without blocking, even past the queue capacity.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 300; i++ {
			assert.NoError(t, wst.Send(i))
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Send blocked after Close")
	}
}

func TestLoggingTransportSendAndClose(t *testing.T) {
	lt := NewLoggingTransport()
	assert.NoError(t, lt.Send([]float64{0.5}))
	assert.NoError(t, lt.Close())
}
