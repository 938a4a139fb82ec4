package service

import (
	"errors"
	"fmt"

	"wallet-ledger/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTTokenService implements ports.TokenService for HS256 tokens issued by the
// identity service. It only validates; issuance lives with the issuer.
type JWTTokenService struct {
	secret []byte
	issuer string
	parser *jwt.Parser
}

// NewJWTTokenService creates a new JWT token validator.
func NewJWTTokenService(secret string, issuer string) *JWTTokenService {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &JWTTokenService{
		secret: []byte(secret),
		issuer: issuer,
		parser: jwt.NewParser(opts...),
	}
}

// Validate parses and validates a JWT token, returning the acting user.
func (s *JWTTokenService) Validate(tokenString string) (*ports.TokenClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := s.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	if claims.Subject == "" {
		return nil, errors.New("missing subject claim")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID in token: %w", err)
	}

	return &ports.TokenClaims{UserID: userID}, nil
}
