package delivery

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MahiaRaniNatarajan/smartlearn/internal/config"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/domain"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/hub"
)

func ptr(v int64) *int64 { return &v }

func connect(t *testing.T, h *hub.Hub, userID int64, buffer int) *hub.Client {
	t.Helper()
	c := hub.NewClient("client", nil, config.WebSocketConfig{SendBuffer: buffer})
	require.NoError(t, c.Session.Authenticate(domain.Identity{UserID: userID}))
	h.Register(userID, c)
	return c
}

func TestFanout_DeliverToTeam(t *testing.T) {
	req := require.New(t)
	h := hub.NewHub()

	// Given three connected members
	clients := []*hub.Client{connect(t, h, 1, 4), connect(t, h, 2, 4), connect(t, h, 3, 4)}
	msg := &domain.Message{ID: 9, SenderID: 1, SenderName: "alice", TeamID: ptr(7), Content: "hi", CreatedAt: time.Now()}

	// When the message is fanned out
	report := NewFanout(h).Deliver(context.Background(), msg, []int64{1, 2, 3})

	// Then every member receives the same frame once
	req.Equal(Report{Delivered: 3}, report)
	for _, c := range clients {
		req.Len(c.Send, 1)
		var out domain.ChatMessageOut
		req.NoError(json.Unmarshal(<-c.Send, &out))
		req.Equal(domain.MsgTypeChat, out.Type)
		req.Equal(int64(9), out.ID)
		req.Equal("alice", out.SenderName)
		req.Equal(int64(7), *out.TeamID)
	}
}

func TestFanout_OfflineAndFailedRecipients(t *testing.T) {
	req := require.New(t)
	h := hub.NewHub()

	// Given one healthy client, one with a full queue and one closed
	healthy := connect(t, h, 1, 4)
	full := connect(t, h, 2, 1)
	req.NoError(full.Enqueue([]byte("pending")))
	closed := connect(t, h, 3, 4)
	closed.Close()

	msg := &domain.Message{ID: 1, SenderID: 1, ReceiverID: ptr(4), Content: "x"}

	// When delivering to them plus an offline user
	report := NewFanout(h).Deliver(context.Background(), msg, []int64{2, 3, 4, 1})

	// Then failures are isolated per recipient
	req.Equal(Report{Delivered: 1, Offline: 1, Failed: 2}, report)
	req.Len(healthy.Send, 1)
	req.Len(full.Send, 1)
}

func TestFanout_NoRecipients(t *testing.T) {
	req := require.New(t)

	report := NewFanout(hub.NewHub()).Deliver(context.Background(), &domain.Message{ID: 1, TeamID: ptr(1)}, nil)
	req.Equal(Report{}, report)
}
