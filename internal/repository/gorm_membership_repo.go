package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/MahiaRaniNatarajan/smartlearn/internal/domain"
	"github.com/MahiaRaniNatarajan/smartlearn/pkg/log"
)

// GormMembershipRepository implements MembershipLookup using GORM.
type GormMembershipRepository struct {
	db *gorm.DB
}

func NewGormMembershipRepository(db *gorm.DB) *GormMembershipRepository {
	return &GormMembershipRepository{db: db}
}

// MembersOf returns the user ids of every member of teamID.
func (r *GormMembershipRepository) MembersOf(ctx context.Context, teamID int64) ([]int64, error) {
	l := log.Ctx(ctx)

	var userIDs []int64
	err := r.db.WithContext(ctx).
		Model(&domain.TeamMemberModel{}).
		Where("team_id = ?", teamID).
		Order("user_id ASC").
		Pluck("user_id", &userIDs).Error
	if err != nil {
		l.Error().Err(err).Int64(log.FieldTeamID, teamID).Msg("failed to load team members")
		return nil, err
	}
	return userIDs, nil
}

func (r *GormMembershipRepository) IsMember(ctx context.Context, teamID, userID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.TeamMemberModel{}).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
