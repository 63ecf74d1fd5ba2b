package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedFrame is returned for any payload that is not a known frame.
var ErrMalformedFrame = errors.New("malformed frame")

// WebSocket message types from client.
const (
	MsgTypeAuth = "auth"
	MsgTypeChat = "chat"
	MsgTypePing = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeAuthResult = "auth_result"
	MsgTypeError      = "error"
	MsgTypePong       = "pong"
)

// Error codes
const (
	ErrCodePersistenceFailed = "PERSISTENCE_FAILED"
)

// Frame is one of the client frame variants: *AuthFrame, *ChatFrame, *PingFrame.
type Frame interface {
	FrameType() string
}

// baseFrame reads only the discriminator.
type baseFrame struct {
	Type string `json:"type"`
}

// Client -> Server frames

type AuthFrame struct {
	Token string `json:"token"`
}

func (*AuthFrame) FrameType() string { return MsgTypeAuth }

type ChatFrame struct {
	Content    string `json:"content"`
	TeamID     *int64 `json:"teamId,omitempty"`
	ReceiverID *int64 `json:"receiverId,omitempty"`
	FileURL    string `json:"fileUrl,omitempty"`
	FileName   string `json:"fileName,omitempty"`
}

func (*ChatFrame) FrameType() string { return MsgTypeChat }

type PingFrame struct{}

func (*PingFrame) FrameType() string { return MsgTypePing }

// ParseFrame decodes a raw text frame into one of the known variants.
// Anything else, including wrongly typed fields, is ErrMalformedFrame.
func ParseFrame(data []byte) (Frame, error) {
	var base baseFrame
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch base.Type {
	case MsgTypeAuth:
		var f AuthFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: auth: %v", ErrMalformedFrame, err)
		}
		if f.Token == "" {
			return nil, fmt.Errorf("%w: auth: missing token", ErrMalformedFrame)
		}
		return &f, nil

	case MsgTypeChat:
		var f ChatFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: chat: %v", ErrMalformedFrame, err)
		}
		return &f, nil

	case MsgTypePing:
		return &PingFrame{}, nil

	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)

	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedFrame, base.Type)
	}
}

// Server -> Client frames

type ChatMessageOut struct {
	Type       string    `json:"type"`
	ID         int64     `json:"id"`
	SenderID   int64     `json:"senderId"`
	SenderName string    `json:"senderName"`
	TeamID     *int64    `json:"teamId,omitempty"`
	ReceiverID *int64    `json:"receiverId,omitempty"`
	Content    string    `json:"content"`
	FileURL    string    `json:"fileUrl,omitempty"`
	FileName   string    `json:"fileName,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type AuthResultMessage struct {
	Type     string `json:"type"`
	Success  bool   `json:"success"`
	UserID   int64  `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`
	Message  string `json:"message,omitempty"`
}

type PongMessage struct {
	Type string `json:"type"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}
