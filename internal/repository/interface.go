//go:generate go run go.uber.org/mock/mockgen -source=interface.go -destination=../mocks/mock_repository.go -package=mocks
package repository

import (
	"context"
	"errors"

	"github.com/MahiaRaniNatarajan/smartlearn/internal/domain"
)

var (
	ErrInvalidAddressing = errors.New("message must target exactly one of team or receiver")
)

// MessageStore persists chat messages. Commit assigns the id and creation
// time; ids increase strictly in commit order.
type MessageStore interface {
	Commit(ctx context.Context, c *domain.Candidate) (*domain.Message, error)
	TeamHistory(ctx context.Context, teamID, afterID int64, limit int) ([]*domain.Message, error)
	DirectHistory(ctx context.Context, userA, userB, afterID int64, limit int) ([]*domain.Message, error)
}

// MembershipLookup answers team membership questions.
type MembershipLookup interface {
	MembersOf(ctx context.Context, teamID int64) ([]int64, error)
	IsMember(ctx context.Context, teamID, userID int64) (bool, error)
}
