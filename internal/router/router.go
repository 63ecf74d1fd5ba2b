package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MahiaRaniNatarajan/smartlearn/internal/domain"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/repository"
	"github.com/MahiaRaniNatarajan/smartlearn/pkg/log"
)

var (
	ErrAddressingViolation  = errors.New("exactly one of teamId or receiverId is required")
	ErrEmptyContent         = errors.New("message content is empty")
	ErrContentTooLong       = errors.New("message content is too long")
	ErrIncompleteAttachment = errors.New("fileUrl and fileName must be given together")
)

// Config holds the routing policy.
type Config struct {
	// EchoToSender keeps the sender in the recipient set of its own messages.
	EchoToSender     bool
	MaxContentLength int
}

// Router validates chat frames and computes recipient sets.
type Router struct {
	members repository.MembershipLookup
	config  Config
}

func New(members repository.MembershipLookup, cfg Config) *Router {
	return &Router{members: members, config: cfg}
}

// Validate turns a chat frame from sender into a candidate message.
func (r *Router) Validate(sender domain.Identity, frame *domain.ChatFrame) (*domain.Candidate, error) {
	if (frame.TeamID == nil) == (frame.ReceiverID == nil) {
		return nil, ErrAddressingViolation
	}
	if strings.TrimSpace(frame.Content) == "" {
		return nil, ErrEmptyContent
	}
	if r.config.MaxContentLength > 0 && utf8.RuneCountInString(frame.Content) > r.config.MaxContentLength {
		return nil, fmt.Errorf("%w: limit is %d characters", ErrContentTooLong, r.config.MaxContentLength)
	}
	if (frame.FileURL == "") != (frame.FileName == "") {
		return nil, ErrIncompleteAttachment
	}

	c := &domain.Candidate{
		SenderID:   sender.UserID,
		SenderName: sender.Username,
		TeamID:     frame.TeamID,
		ReceiverID: frame.ReceiverID,
		Content:    frame.Content,
	}
	if frame.FileURL != "" {
		c.Attachment = &domain.Attachment{URL: frame.FileURL, Name: frame.FileName}
	}
	return c, nil
}

// Recipients returns the users a committed message is delivered to. Team
// messages go to the current members; direct messages go to both parties.
func (r *Router) Recipients(ctx context.Context, msg *domain.Message) ([]int64, error) {
	var recipients []int64

	if msg.IsTeam() {
		members, err := r.members.MembersOf(ctx, *msg.TeamID)
		if err != nil {
			return nil, fmt.Errorf("load members of team %d: %w", *msg.TeamID, err)
		}
		recipients = members
	} else {
		recipients = []int64{msg.SenderID}
		if *msg.ReceiverID != msg.SenderID {
			recipients = append(recipients, *msg.ReceiverID)
		}
	}

	if !r.config.EchoToSender {
		recipients = without(recipients, msg.SenderID)
	}

	l := log.Ctx(ctx)
	l.Debug().
		Int64(log.FieldMessageID, msg.ID).
		Int(log.FieldRecipients, len(recipients)).
		Msg("recipients resolved")

	return recipients, nil
}

func without(ids []int64, drop int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
