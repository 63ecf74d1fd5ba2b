package service

import (
	"context"
	"errors"

	"github.com/MahiaRaniNatarajan/smartlearn/internal/domain"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/hub"
)

var (
	ErrHandshakeFailed     = errors.New("handshake failed")
	ErrNotAuthenticated    = errors.New("connection is not authenticated")
	ErrInvalidHistoryQuery = errors.New("exactly one of teamId or receiverId is required")
	ErrNotTeamMember       = errors.New("user is not a member of the team")
)

type ChatService interface {
	HandleAuth(ctx context.Context, client *hub.Client, token string) error
	HandleChat(ctx context.Context, client *hub.Client, frame *domain.ChatFrame) error
	HandleDisconnect(ctx context.Context, client *hub.Client) error
	History(ctx context.Context, requester domain.Identity, query HistoryQuery) (*HistoryPage, error)
	Presence(ctx context.Context, userID int64) (*PresenceStatus, error)
	ConnectionCount() int
	Start(ctx context.Context) error
	Stop() error
}

// HistoryQuery selects one conversation of the requester. Exactly one of
// TeamID and ReceiverID is set.
type HistoryQuery struct {
	TeamID     *int64
	ReceiverID *int64
	After      int64
	Limit      int
}

type HistoryPage struct {
	Messages   []*domain.ChatMessageOut `json:"messages"`
	NextCursor int64                    `json:"next_cursor"`
	HasMore    bool                     `json:"has_more"`
}

type PresenceStatus struct {
	UserID  int64  `json:"user_id"`
	Online  bool   `json:"online"`
	Local   bool   `json:"local"`
	Address string `json:"address,omitempty"`
}
