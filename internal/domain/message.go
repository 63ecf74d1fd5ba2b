package domain

import "time"

// Identity is the user principal bound to a connection after the handshake.
type Identity struct {
	UserID   int64
	Username string
}

// Attachment references a file uploaded through the attachments endpoint.
type Attachment struct {
	URL  string
	Name string
}

// Candidate is a validated chat message that has not been committed yet.
// Exactly one of TeamID and ReceiverID is set.
type Candidate struct {
	SenderID   int64
	SenderName string
	TeamID     *int64
	ReceiverID *int64
	Content    string
	Attachment *Attachment
}

// IsTeam reports whether the candidate is addressed to a team.
func (c *Candidate) IsTeam() bool {
	return c.TeamID != nil
}

// Message is a committed chat message. ID and CreatedAt are assigned by the
// store at commit time; the record is immutable afterwards.
type Message struct {
	ID         int64
	SenderID   int64
	SenderName string
	TeamID     *int64
	ReceiverID *int64
	Content    string
	Attachment *Attachment
	CreatedAt  time.Time
}

// IsTeam reports whether the message is addressed to a team.
func (m *Message) IsTeam() bool {
	return m.TeamID != nil
}

// ToOut converts the message into its delivery frame.
func (m *Message) ToOut() *ChatMessageOut {
	out := &ChatMessageOut{
		Type:       MsgTypeChat,
		ID:         m.ID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		TeamID:     m.TeamID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt.UTC(),
	}
	if m.Attachment != nil {
		out.FileURL = m.Attachment.URL
		out.FileName = m.Attachment.Name
	}
	return out
}
