package ws

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeConn struct {
	frames   []interface{}
	writeErr error
	closed   bool
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	c.frames = append(c.frames, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestHub_PushReachesAllUserConnections(t *testing.T) {
	hub := NewHub(zap.NewNop())

	first := &fakeConn{}
	second := &fakeConn{}
	other := &fakeConn{}

	hub.Register("user-1", first)
	hub.Register("user-1", second)
	hub.Register("user-2", other)

	delivered := hub.Push("user-1", Frame{Type: FrameOrderUpdate})

	assert.Equal(t, 2, delivered)
	assert.Len(t, first.frames, 1)
	assert.Len(t, second.frames, 1)
	assert.Empty(t, other.frames)
}

func TestHub_PushSkipsFailedWrites(t *testing.T) {
	hub := NewHub(zap.NewNop())

	broken := &fakeConn{writeErr: errors.New("write: broken pipe")}
	healthy := &fakeConn{}

	hub.Register("user-1", broken)
	hub.Register("user-1", healthy)

	delivered := hub.Push("user-1", Frame{Type: FrameNotification})

	assert.Equal(t, 1, delivered)
	assert.Len(t, healthy.frames, 1)
}

func TestHub_PushUnknownUser(t *testing.T) {
	hub := NewHub(zap.NewNop())

	assert.Equal(t, 0, hub.Push("nobody", Frame{Type: FrameNotification}))
}

func TestHub_UnregisterPrunesEmptyUserSets(t *testing.T) {
	hub := NewHub(zap.NewNop())

	conn := hub.Register("user-1", &fakeConn{})

	stats := hub.Stats()
	assert.Equal(t, 1, stats.Users)
	assert.Equal(t, 1, stats.Connections)

	hub.Unregister(conn)

	stats = hub.Stats()
	assert.Equal(t, 0, stats.Users)
	assert.Equal(t, 0, stats.Connections)

	// Unregistering twice is a no-op.
	hub.Unregister(conn)
	assert.Equal(t, 0, hub.Stats().Connections)
}

// blockingConn stalls its first write until release is closed, so tests can
// hold the connection busy from one goroutine while another tries to write.
type blockingConn struct {
	entered chan struct{}
	release chan struct{}
	frames  []interface{}
}

func (c *blockingConn) WriteJSON(v interface{}) error {
	select {
	case c.entered <- struct{}{}:
	default:
	}
	<-c.release
	c.frames = append(c.frames, v)
	return nil
}

func (c *blockingConn) Close() error { return nil }

func TestHub_PushWaitsForInFlightClientWrite(t *testing.T) {
	hub := NewHub(zap.NewNop())

	fake := &blockingConn{entered: make(chan struct{}, 1), release: make(chan struct{})}
	conn := hub.Register("user-1", fake)

	go func() {
		_ = conn.WriteJSON(Frame{Type: FramePong})
	}()
	<-fake.entered

	pushed := make(chan int)
	go func() {
		pushed <- hub.Push("user-1", Frame{Type: FrameOrderUpdate})
	}()

	select {
	case <-pushed:
		t.Fatal("push wrote while the client goroutine held the connection")
	case <-time.After(50 * time.Millisecond):
	}

	close(fake.release)
	assert.Equal(t, 1, <-pushed)
	assert.Len(t, fake.frames, 2)
}

func TestHub_ConcurrentPushAndClientWrites(t *testing.T) {
	hub := NewHub(zap.NewNop())

	fake := &fakeConn{}
	conn := hub.Register("user-1", fake)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			hub.Push("user-1", Frame{Type: FrameOrderUpdate})
		}()
		go func() {
			defer wg.Done()
			_ = conn.WriteJSON(Frame{Type: FramePong})
		}()
	}
	wg.Wait()

	assert.Len(t, fake.frames, 50)
}

func TestHub_CloseClosesEverything(t *testing.T) {
	hub := NewHub(zap.NewNop())

	first := &fakeConn{}
	second := &fakeConn{}
	hub.Register("user-1", first)
	hub.Register("user-2", second)

	hub.Close()

	assert.True(t, first.closed)
	assert.True(t, second.closed)
	assert.Equal(t, 0, hub.Stats().Connections)
}
