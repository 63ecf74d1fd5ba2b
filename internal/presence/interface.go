//go:generate go run go.uber.org/mock/mockgen -source=interface.go -destination=../mocks/mock_presence.go -package=mocks
package presence

import (
	"context"
	"errors"
)

var ErrNotOnline = errors.New("user is not online")

// Directory records which instance currently holds each user's connection.
type Directory interface {
	MarkOnline(ctx context.Context, userID int64) error
	MarkOffline(ctx context.Context, userID int64) error
	// Lookup returns the advertise address of the instance holding userID,
	// or ErrNotOnline.
	Lookup(ctx context.Context, userID int64) (string, error)
	StartHeartbeat(ctx context.Context) error
	StopHeartbeat()
	Close() error
}
