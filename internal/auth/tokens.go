package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"chatboard/internal/chat"
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

// TokenPair is what register, login and refresh hand back to the client.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Claims carries the user id and whether the token is an access or a
// refresh token.
type Claims struct {
	UserID string `json:"userId"`
	Kind   string `json:"kind"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access and refresh tokens.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	clock         chat.Clock
}

func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, clock chat.Clock) (*TokenIssuer, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("token secrets are required")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		clock:         clock,
	}, nil
}

// Issue creates a fresh access/refresh pair for userID.
func (i *TokenIssuer) Issue(userID string) (*TokenPair, error) {
	access, err := i.sign(userID, kindAccess, i.accessTTL, i.accessSecret)
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}
	refresh, err := i.sign(userID, kindRefresh, i.refreshTTL, i.refreshSecret)
	if err != nil {
		return nil, fmt.Errorf("signing refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccess returns the user id of a valid access token.
func (i *TokenIssuer) VerifyAccess(token string) (string, error) {
	return i.verify(token, kindAccess, i.accessSecret)
}

// VerifyRefresh returns the user id of a valid refresh token.
func (i *TokenIssuer) VerifyRefresh(token string) (string, error) {
	return i.verify(token, kindRefresh, i.refreshSecret)
}

func (i *TokenIssuer) sign(userID, kind string, ttl time.Duration, secret []byte) (string, error) {
	now := i.clock.Now()
	claims := Claims{
		UserID: userID,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (i *TokenIssuer) verify(token, kind string, secret []byte) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: missing token", chat.ErrUnauthorized)
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", chat.ErrUnauthorized, err)
	}
	if claims.Kind != kind || claims.UserID == "" {
		return "", fmt.Errorf("%w: not an %s token", chat.ErrUnauthorized, kind)
	}
	return claims.UserID, nil
}
