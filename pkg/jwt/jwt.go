package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the "typ" claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrWrongTokenType = errors.New("wrong token type")
)

// Subject is the identity a token is issued for.
type Subject struct {
	UserID   int64
	Username string
	IsAdmin  bool
}

// Claims identify the user by username in "sub" and by id in "uid".
type Claims struct {
	UserID  int64  `json:"uid"`
	IsAdmin bool   `json:"is_admin"`
	Type    string `json:"typ"`
	jwtlib.RegisteredClaims
}

func (c *Claims) Username() string {
	return c.Subject
}

// Token is a signed token and its expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Issue signs a token of type typ for subject, valid for expiration.
func Issue(subject Subject, typ string, expiration time.Duration, secret string) (*Token, error) {
	now := time.Now()
	expiresAt := now.Add(expiration)

	claims := Claims{
		UserID:  subject.UserID,
		IsAdmin: subject.IsAdmin,
		Type:    typ,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   subject.Username,
			ID:        uuid.NewString(),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			IssuedAt:  jwtlib.NewNumericDate(now),
			NotBefore: jwtlib.NewNumericDate(now),
		},
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &Token{Value: signed, ExpiresAt: expiresAt}, nil
}

func GenerateToken(subject Subject, expiration time.Duration, secret string) (string, error) {
	token, err := Issue(subject, TypeAccess, expiration, secret)
	if err != nil {
		return "", err
	}
	return token.Value, nil
}

func GenerateRefreshToken(subject Subject, expiration time.Duration, secret string) (string, error) {
	token, err := Issue(subject, TypeRefresh, expiration, secret)
	if err != nil {
		return "", err
	}
	return token.Value, nil
}

// ValidateToken verifies the signature and time claims of tokenString.
func ValidateToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwtlib.ParseWithClaims(tokenString, claims, func(t *jwtlib.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateTokenType is ValidateToken that also requires the "typ" claim.
func ValidateTokenType(tokenString, secret, typ string) (*Claims, error) {
	claims, err := ValidateToken(tokenString, secret)
	if err != nil {
		return nil, err
	}
	if claims.Type != typ {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
