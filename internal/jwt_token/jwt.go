package jwttoken

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "edureg/pkg/domain"
	dErrors "edureg/pkg/domain-errors"
	"edureg/pkg/platform/middleware/requesttime"
)

// CallerTokenClaims represents the JWT claims carried by a caller token.
// The subject is the caller identity the registry acts on.
type CallerTokenClaims struct {
	Env string `json:"env,omitempty"`
	jwt.RegisteredClaims
}

// JWTService handles caller token creation and validation
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	tokenTTL   time.Duration
	env        string
}

func NewJWTService(signingKey string, issuer string, audience string, tokenTTL time.Duration) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		tokenTTL:   tokenTTL,
	}
}

// SetEnv annotates issued tokens with an environment string (e.g., "local").
func (s *JWTService) SetEnv(env string) {
	s.env = env
}

// GenerateCallerToken signs an HS256 token whose subject is the given identity.
// Issued-at and expiry are taken from the request time in ctx.
func (s *JWTService) GenerateCallerToken(ctx context.Context, identity id.Identity) (string, error) {
	return s.GenerateCallerTokenWithTTL(ctx, identity, s.tokenTTL)
}

// GenerateCallerTokenWithTTL is GenerateCallerToken with an explicit lifetime.
func (s *JWTService) GenerateCallerTokenWithTTL(ctx context.Context, identity id.Identity, ttl time.Duration) (string, error) {
	if identity.IsNil() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identity cannot be empty")
	}
	if ttl <= 0 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "token ttl must be positive")
	}

	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	now := requesttime.Now(ctx)

	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, CallerTokenClaims{
		Env: s.env,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        hex.EncodeToString(b),
		},
	})

	signedToken, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	return signedToken, nil
}

// ValidateToken verifies signature, algorithm, expiry, issuer and audience.
func (s *JWTService) ValidateToken(tokenString string) (*CallerTokenClaims, error) {
	if tokenString == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "empty token")
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &CallerTokenClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token expired")
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid token issuer")
		case errors.Is(err, jwt.ErrTokenInvalidAudience):
			return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid token audience")
		}
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid token")
	}

	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid token")
	}

	claims, ok := parsed.Claims.(*CallerTokenClaims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid token claims")
	}
	if claims.Subject == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "token has no subject")
	}

	return claims, nil
}
