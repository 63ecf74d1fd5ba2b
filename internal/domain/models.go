package domain

import "time"

// MessageModel is the persisted row of a committed chat message.
type MessageModel struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID   int64     `gorm:"not null;index:idx_messages_direct,priority:1" json:"sender_id"`
	ReceiverID *int64    `gorm:"index:idx_messages_direct,priority:2" json:"receiver_id"`
	TeamID     *int64    `gorm:"index:idx_messages_team" json:"team_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	FileURL    *string   `gorm:"column:file_url" json:"file_url"`
	FileName   *string   `gorm:"column:file_name" json:"file_name"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
}

func (MessageModel) TableName() string {
	return "messages"
}

// ToMessage converts the row into a domain message. senderName comes from
// the users table and is not stored on the row.
func (m *MessageModel) ToMessage(senderName string) *Message {
	msg := &Message{
		ID:         m.ID,
		SenderID:   m.SenderID,
		SenderName: senderName,
		TeamID:     m.TeamID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt,
	}
	if m.FileURL != nil && m.FileName != nil {
		msg.Attachment = &Attachment{URL: *m.FileURL, Name: *m.FileName}
	}
	return msg
}

// UserModel is the subset of the platform's users table this service reads.
type UserModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Username  string    `gorm:"uniqueIndex;not null"`
	Email     string    `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time
}

func (UserModel) TableName() string {
	return "users"
}

// TeamMemberModel links a user to a team.
type TeamMemberModel struct {
	TeamID   int64     `gorm:"primaryKey;autoIncrement:false"`
	UserID   int64     `gorm:"primaryKey;autoIncrement:false;index"`
	Role     string    `gorm:"default:member"`
	JoinedAt time.Time `gorm:"autoCreateTime"`
}

func (TeamMemberModel) TableName() string {
	return "team_members"
}
