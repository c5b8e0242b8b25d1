package net

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu      sync.Mutex
	written [][]byte
	reads   chan []byte
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{reads: make(chan []byte, 8)}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	data, ok := <-c.reads
	if !ok {
		return 0, nil, errors.New("closed")
	}
	return 1, data, nil
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9999}
}

func (c *fakeConn) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.written))
	for i, w := range c.written {
		out[i] = string(w)
	}
	return out
}

func TestBroadcastSkipsSenderAndOtherRooms(t *testing.T) {
	h := NewHub()
	a, b, other := newFakeConn(), newFakeConn(), newFakeConn()
	pa := h.Join(a, "opening")
	h.Join(b, "opening")
	h.Join(other, "but1")
	require.Equal(t, 2, h.Count("opening"))

	assert.Equal(t, 1, h.Broadcast("opening", []byte("hello"), pa))

	assert.Eventually(t, func() bool {
		return len(b.messages()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"hello"}, b.messages())
	assert.Empty(t, a.messages())
	assert.Empty(t, other.messages())
}

func TestServeHandlesMessagesAndRemovesOnClose(t *testing.T) {
	h := NewHub()
	c := newFakeConn()
	p := h.Join(c, "end")

	var got []string
	done := make(chan struct{})
	go func() {
		h.Serve(p, func(_ *Peer, data []byte) { got = append(got, string(data)) })
		close(done)
	}()

	c.reads <- []byte("down")
	c.reads <- []byte("up")
	close(c.reads)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return")
	}
	assert.Equal(t, []string{"down", "up"}, got)
	assert.Zero(t, h.Count("end"))
	assert.False(t, p.Send([]byte("late")))
}

func TestCloseRoomDropsOnlyThatRoom(t *testing.T) {
	h := NewHub()
	a, b, other := newFakeConn(), newFakeConn(), newFakeConn()
	pa := h.Join(a, "but2")
	h.Join(b, "but2")
	h.Join(other, "end")

	assert.Equal(t, 2, h.CloseRoom("but2"))
	assert.Zero(t, h.Count("but2"))
	assert.Equal(t, 1, h.Count("end"))
	assert.False(t, pa.Send([]byte("late")))

	a.mu.Lock()
	assert.True(t, a.closed)
	a.mu.Unlock()
	other.mu.Lock()
	assert.False(t, other.closed)
	other.mu.Unlock()

	assert.Zero(t, h.CloseRoom("but2"))
}
