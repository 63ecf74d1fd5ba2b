//go:generate go run go.uber.org/mock/mockgen -source=interface.go -destination=../mocks/mock_auth.go -package=mocks
package auth

import (
	"context"

	"github.com/MahiaRaniNatarajan/smartlearn/internal/domain"
)

// Verifier turns a bearer token into the identity it was issued for.
type Verifier interface {
	Verify(ctx context.Context, token string) (domain.Identity, error)
}
