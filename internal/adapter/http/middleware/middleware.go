package middleware

import (
	"context"

	"github.com/Temutjin2k/driver-match-system/internal/service/auth"
	"github.com/Temutjin2k/driver-match-system/pkg/logger"
)

type (
	TokenValidator interface {
		Validate(ctx context.Context, token string) (*auth.Claims, error)
	}

	Middleware struct {
		tokens TokenValidator
		log    logger.Logger
	}
)

func NewMiddleware(tokens TokenValidator, log logger.Logger) *Middleware {
	return &Middleware{
		tokens: tokens,
		log:    log,
	}
}
