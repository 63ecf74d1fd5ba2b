package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/MahiaRaniNatarajan/smartlearn/internal/domain"
	"github.com/MahiaRaniNatarajan/smartlearn/pkg/log"
)

// GormMessageRepository implements MessageStore using GORM.
type GormMessageRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormMessageRepository creates a new GORM-based message repository.
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db, now: time.Now}
}

// messageRow is a messages row joined with the sender's username.
type messageRow struct {
	domain.MessageModel
	SenderName string
}

// Commit inserts the candidate and returns the stored message.
func (r *GormMessageRepository) Commit(ctx context.Context, c *domain.Candidate) (*domain.Message, error) {
	l := log.Ctx(ctx)

	if (c.TeamID == nil) == (c.ReceiverID == nil) {
		return nil, ErrInvalidAddressing
	}

	model := &domain.MessageModel{
		SenderID:   c.SenderID,
		TeamID:     c.TeamID,
		ReceiverID: c.ReceiverID,
		Content:    c.Content,
		CreatedAt:  r.now().UTC(),
	}
	if c.Attachment != nil {
		model.FileURL = &c.Attachment.URL
		model.FileName = &c.Attachment.Name
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		l.Error().Err(err).Int64(log.FieldUserID, c.SenderID).Msg("failed to insert message")
		return nil, err
	}

	l.Debug().Int64(log.FieldMessageID, model.ID).Msg("message committed to db")
	return model.ToMessage(r.senderName(ctx, c)), nil
}

// senderName reads the sender's current username, the same source history
// joins on. The candidate's name is kept when the lookup finds nothing.
func (r *GormMessageRepository) senderName(ctx context.Context, c *domain.Candidate) string {
	var names []string
	err := r.db.WithContext(ctx).
		Model(&domain.UserModel{}).
		Where("id = ?", c.SenderID).
		Limit(1).
		Pluck("username", &names).Error
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Int64(log.FieldUserID, c.SenderID).Msg("failed to load sender name")
		return c.SenderName
	}
	if len(names) == 0 || names[0] == "" {
		return c.SenderName
	}
	return names[0]
}

// TeamHistory returns team messages with id > afterID, ascending by id.
func (r *GormMessageRepository) TeamHistory(ctx context.Context, teamID, afterID int64, limit int) ([]*domain.Message, error) {
	l := log.Ctx(ctx)

	var rows []messageRow
	err := r.historyQuery(ctx, afterID, limit).
		Where("messages.team_id = ?", teamID).
		Scan(&rows).Error
	if err != nil {
		l.Error().Err(err).Int64(log.FieldTeamID, teamID).Msg("failed to load team history")
		return nil, err
	}
	return toMessages(rows), nil
}

// DirectHistory returns messages exchanged between userA and userB in either
// direction with id > afterID, ascending by id.
func (r *GormMessageRepository) DirectHistory(ctx context.Context, userA, userB, afterID int64, limit int) ([]*domain.Message, error) {
	l := log.Ctx(ctx)

	var rows []messageRow
	err := r.historyQuery(ctx, afterID, limit).
		Where("messages.team_id IS NULL").
		Where("(messages.sender_id = ? AND messages.receiver_id = ?) OR (messages.sender_id = ? AND messages.receiver_id = ?)",
			userA, userB, userB, userA).
		Scan(&rows).Error
	if err != nil {
		l.Error().Err(err).Int64(log.FieldUserID, userA).Int64(log.FieldReceiverID, userB).Msg("failed to load direct history")
		return nil, err
	}
	return toMessages(rows), nil
}

func (r *GormMessageRepository) historyQuery(ctx context.Context, afterID int64, limit int) *gorm.DB {
	q := r.db.WithContext(ctx).
		Model(&domain.MessageModel{}).
		Select("messages.*, COALESCE(users.username, '') AS sender_name").
		Joins("LEFT JOIN users ON users.id = messages.sender_id").
		Order("messages.id ASC")
	if afterID > 0 {
		q = q.Where("messages.id > ?", afterID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}

func toMessages(rows []messageRow) []*domain.Message {
	messages := make([]*domain.Message, 0, len(rows))
	for i := range rows {
		messages = append(messages, rows[i].ToMessage(rows[i].SenderName))
	}
	return messages
}
