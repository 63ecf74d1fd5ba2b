package hub

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MahiaRaniNatarajan/smartlearn/internal/config"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/domain"
)

func newAuthedClient(t *testing.T, id string, userID int64) *Client {
	t.Helper()
	c := NewClient(id, nil, config.WebSocketConfig{SendBuffer: 4})
	require.NoError(t, c.Session.Authenticate(domain.Identity{UserID: userID, Username: id}))
	return c
}

func TestHub_RegisterAndLookup(t *testing.T) {
	req := require.New(t)
	h := NewHub()

	c := newAuthedClient(t, "c1", 1)
	req.Nil(h.Register(1, c))

	got, ok := h.Lookup(1)
	req.True(ok)
	req.Same(c, got)

	_, ok = h.Lookup(2)
	req.False(ok)
	req.Equal(1, h.Count())
}

func TestHub_RegisterSupersedes(t *testing.T) {
	req := require.New(t)
	h := NewHub()

	// Given a user connected twice
	first := newAuthedClient(t, "c1", 1)
	second := newAuthedClient(t, "c2", 1)
	req.Nil(h.Register(1, first))

	// When the second handshake completes
	prev := h.Register(1, second)

	// Then the newer connection wins and the older is left open
	req.Same(first, prev)
	got, _ := h.Lookup(1)
	req.Same(second, got)
	req.True(first.IsOpen())
	req.Equal(1, h.Count())
}

func TestHub_UnregisterGuarded(t *testing.T) {
	req := require.New(t)
	h := NewHub()

	first := newAuthedClient(t, "c1", 1)
	second := newAuthedClient(t, "c2", 1)
	h.Register(1, first)
	h.Register(1, second)

	// When the superseded connection closes
	req.False(h.Unregister(first))

	// Then the newer mapping survives
	got, ok := h.Lookup(1)
	req.True(ok)
	req.Same(second, got)

	req.True(h.Unregister(second))
	_, ok = h.Lookup(1)
	req.False(ok)
	req.False(h.Unregister(second))
}

func TestHub_UnregisterUnauthenticated(t *testing.T) {
	req := require.New(t)
	h := NewHub()

	c := NewClient("anon", nil, config.WebSocketConfig{})
	req.False(h.Unregister(c))
	req.Equal(0, h.Count())
}

func TestHub_ConcurrentAccess(t *testing.T) {
	req := require.New(t)
	h := NewHub()

	var wg sync.WaitGroup
	for i := int64(1); i <= 50; i++ {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			c := newAuthedClient(t, "c", uid)
			h.Register(uid, c)
			h.Lookup(uid)
			h.Unregister(c)
		}(i)
	}
	wg.Wait()

	req.Equal(0, h.Count())
}

func TestClient_Enqueue(t *testing.T) {
	req := require.New(t)

	c := NewClient("c1", nil, config.WebSocketConfig{SendBuffer: 2})
	req.NoError(c.Enqueue([]byte("a")))
	req.NoError(c.Enqueue([]byte("b")))
	req.ErrorIs(c.Enqueue([]byte("c")), ErrSendBufferFull)

	req.Equal("a", string(<-c.Send))

	c.Close()
	c.Close()
	req.False(c.IsOpen())
	req.ErrorIs(c.Enqueue([]byte("d")), ErrClientClosed)
	req.Equal(domain.StateClosed, c.Session.State())
}

func TestIdentityLocks(t *testing.T) {
	req := require.New(t)
	locks := NewIdentityLocks()

	// Given user 1's lock is held
	unlock := locks.Lock(1)

	// Then another user's lock is free
	other := locks.Lock(2)
	other()

	// And a second holder for user 1 waits
	acquired := make(chan struct{})
	go func() {
		u := locks.Lock(1)
		close(acquired)
		u()
	}()
	select {
	case <-acquired:
		req.FailNow("lock for user 1 was handed out twice")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	<-acquired

	// Released entries are dropped
	req.Eventually(func() bool { return locks.size() == 0 }, time.Second, 5*time.Millisecond)
}
