package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Temutjin2k/driver-match-system/internal/domain/types"
	wrap "github.com/Temutjin2k/driver-match-system/pkg/logger/wrapper"
	"github.com/Temutjin2k/driver-match-system/pkg/uuid"
)

// Claims identifies an authenticated driver.
type Claims struct {
	DriverID uuid.UUID
	TokenID  uuid.UUID
	Role     string
}

const RoleDriver = "driver"

// TokenService issues and validates the bearer tokens drivers use on the
// response endpoint and the websocket channel.
type TokenService struct {
	secret string
	ttl    time.Duration
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: secret, ttl: ttl}
}

// IssueDriverToken creates a signed token for one driver.
func (s *TokenService) IssueDriverToken(ctx context.Context, driverID uuid.UUID) (string, time.Time, error) {
	ctx = wrap.WithAction(ctx, "issue_driver_token")

	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"jti":       uuid.New().String(),
		"driver_id": driverID.String(),
		"role":      RoleDriver,
		"iat":       issuedAt.Unix(),
		"exp":       expiresAt.Unix(),
	})

	signed, err := token.SignedString([]byte(s.secret))
	if err != nil {
		return "", time.Time{}, wrap.Error(ctx, fmt.Errorf("could not sign token: %w", err))
	}
	return signed, expiresAt, nil
}

// Validate parses a bearer token and returns the driver claims.
func (s *TokenService) Validate(ctx context.Context, token string) (*Claims, error) {
	ctx = wrap.WithAction(ctx, "validate_token")

	parsedToken, err := jwt.ParseWithClaims(token, jwt.MapClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, types.ErrInvalidToken
		}
		return []byte(s.secret), nil
	})
	if err != nil || !parsedToken.Valid {
		return nil, wrap.Error(ctx, types.ErrInvalidToken)
	}

	mc, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return nil, wrap.Error(ctx, types.ErrInvalidToken)
	}

	role, _ := mc["role"].(string)
	if role != RoleDriver {
		return nil, wrap.Error(ctx, types.ErrInvalidToken)
	}

	driverIDStr, _ := mc["driver_id"].(string)
	driverID, err := uuid.Parse(driverIDStr)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("invalid 'driver_id' in token claims"))
	}

	tokenIDStr, _ := mc["jti"].(string)
	tokenID, err := uuid.Parse(tokenIDStr)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("invalid 'jti' in token claims"))
	}

	expFloat, ok := mc["exp"].(float64)
	if !ok {
		return nil, wrap.Error(ctx, fmt.Errorf("invalid or missing 'exp' in token claims"))
	}
	if time.Now().UTC().After(time.Unix(int64(expFloat), 0)) {
		return nil, wrap.Error(ctx, types.ErrInvalidToken)
	}

	return &Claims{
		DriverID: driverID,
		TokenID:  tokenID,
		Role:     role,
	}, nil
}
