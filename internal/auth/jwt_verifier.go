package auth

import (
	"context"

	"github.com/MahiaRaniNatarajan/smartlearn/internal/domain"
	"github.com/MahiaRaniNatarajan/smartlearn/pkg/middleware"
)

// JWTVerifier verifies tokens signed with the platform's shared secret.
type JWTVerifier struct {
	validator middleware.TokenValidator
}

func NewJWTVerifier(validator middleware.TokenValidator) *JWTVerifier {
	return &JWTVerifier{validator: validator}
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (domain.Identity, error) {
	claims, err := v.validator.ValidateToken(token)
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{UserID: claims.UserID, Username: claims.Username}, nil
}
