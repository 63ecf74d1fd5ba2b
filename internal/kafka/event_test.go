package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MahiaRaniNatarajan/smartlearn/internal/domain"
)

func ptr(v int64) *int64 { return &v }

func TestConversationKey(t *testing.T) {
	req := require.New(t)

	req.Equal("team:7", ConversationKey(&domain.Message{SenderID: 1, TeamID: ptr(7)}))
	req.Equal("direct:1:2", ConversationKey(&domain.Message{SenderID: 1, ReceiverID: ptr(2)}))
	req.Equal("direct:1:2", ConversationKey(&domain.Message{SenderID: 2, ReceiverID: ptr(1)}))
}

func TestNewMessageEvent(t *testing.T) {
	req := require.New(t)

	created := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	evt := NewMessageEvent(&domain.Message{
		ID:         5,
		SenderID:   1,
		SenderName: "alice",
		TeamID:     ptr(7),
		Content:    "hello",
		Attachment: &domain.Attachment{URL: "/files/a", Name: "a.png"},
		CreatedAt:  created,
	})

	data, err := json.Marshal(evt)
	req.NoError(err)
	req.JSONEq(`{
		"message_id": 5,
		"sender_id": 1,
		"sender_name": "alice",
		"team_id": 7,
		"content": "hello",
		"file_url": "/files/a",
		"file_name": "a.png",
		"created_at": "2024-05-01T08:30:00Z"
	}`, string(data))
}
