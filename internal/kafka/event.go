package kafka

import (
	"fmt"
	"time"

	"github.com/MahiaRaniNatarajan/smartlearn/internal/domain"
)

// MessageEvent is the record value published for each committed message.
type MessageEvent struct {
	MessageID  int64     `json:"message_id"`
	SenderID   int64     `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	TeamID     *int64    `json:"team_id,omitempty"`
	ReceiverID *int64    `json:"receiver_id,omitempty"`
	Content    string    `json:"content"`
	FileURL    string    `json:"file_url,omitempty"`
	FileName   string    `json:"file_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewMessageEvent(msg *domain.Message) *MessageEvent {
	evt := &MessageEvent{
		MessageID:  msg.ID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		TeamID:     msg.TeamID,
		ReceiverID: msg.ReceiverID,
		Content:    msg.Content,
		CreatedAt:  msg.CreatedAt.UTC(),
	}
	if msg.Attachment != nil {
		evt.FileURL = msg.Attachment.URL
		evt.FileName = msg.Attachment.Name
	}
	return evt
}

// ConversationKey keys records so every message of one conversation lands
// on the same partition. Direct keys do not depend on who sent the message.
func ConversationKey(msg *domain.Message) string {
	if msg.TeamID != nil {
		return fmt.Sprintf("team:%d", *msg.TeamID)
	}
	a, b := msg.SenderID, *msg.ReceiverID
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("direct:%d:%d", a, b)
}
