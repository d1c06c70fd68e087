// Package jwtutil issues and checks the HS256 tokens that carry a signed-in
// user, both in the session cookie and in API bearer headers.
package jwtutil

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrNotConfigured is returned when no signing key is set
var ErrNotConfigured = errors.New("jwt signing key not configured")

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SigningKey      string
	ExpirationHours int
	// Issuer is written into new tokens and, when set, required on parsed ones
	Issuer string
}

// UserClaims identifies the signed-in user
type UserClaims struct {
	Email  string `json:"email"`
	UserID uint   `json:"user_id"`
	jwt.RegisteredClaims
}

// JWTUtil signs and verifies user tokens
type JWTUtil struct {
	config *JWTConfig
	now    func() time.Time
}

// NewJWTUtil creates a JWTUtil for config
func NewJWTUtil(config *JWTConfig) *JWTUtil {
	return &JWTUtil{config: config, now: time.Now}
}

// TTL is how long issued tokens stay valid
func (j *JWTUtil) TTL() time.Duration {
	return time.Duration(j.config.ExpirationHours) * time.Hour
}

func (j *JWTUtil) key() ([]byte, error) {
	if j.config == nil || j.config.SigningKey == "" {
		return nil, ErrNotConfigured
	}
	return []byte(j.config.SigningKey), nil
}

// GenerateToken signs a token for the user. Every token gets a fresh id.
func (j *JWTUtil) GenerateToken(email string, userID uint) (string, error) {
	key, err := j.key()
	if err != nil {
		return "", err
	}

	issued := j.now()
	claims := &UserClaims{
		Email:  email,
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    j.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(j.TTL())),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// ValidateToken verifies signature, expiry and issuer and returns the claims
func (j *JWTUtil) ValidateToken(tokenString string) (*UserClaims, error) {
	key, err := j.key()
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
		jwt.WithExpirationRequired(),
	}
	if j.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.config.Issuer))
	}

	claims := &UserClaims{}
	_, err = jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}
