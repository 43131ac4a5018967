package hub

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

const credentialKeyInfo = "hchat hub read credential v1"

// DeriveSecretKey expands an operator-supplied secret into the key read
// credentials are signed with, bound to subscribeKey so two hubs sharing a
// secret do not accept each other's credentials.
func DeriveSecretKey(secret, subscribeKey string) ([]byte, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), []byte(subscribeKey), []byte(credentialKeyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Claims are carried by a read credential.
type Claims struct {
	Channels     []string `json:"channels"`
	SubscribeKey string   `json:"sub_key"`
	jwt.RegisteredClaims
}

// GrantReadCredential implements protocol.AccessGranter. The credential is
// an HS256 JWT signed with the hub's secret key.
func (h *Hub) GrantReadCredential(ctx context.Context, channels []string, ttlMinutes int) (string, error) {
	if len(channels) == 0 {
		return "", errors.New("no channels to grant")
	}
	if ttlMinutes < 1 {
		return "", fmt.Errorf("invalid ttl %d", ttlMinutes)
	}

	now := h.clock.Now()
	claims := &Claims{
		Channels:     slices.Clone(channels),
		SubscribeKey: h.subscribeKey,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttlMinutes) * time.Minute)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
}

// Authorize validates credential and checks that it covers every one of
// channels.
func (h *Hub) Authorize(credential string, channels []string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(h.clock.Now),
		jwt.WithExpirationRequired(),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(credential, &claims, func(*jwt.Token) (any, error) {
		return h.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if claims.SubscribeKey != h.subscribeKey {
		return nil, ErrSubscribeKeyMismatch
	}
	for _, ch := range channels {
		if !slices.Contains(claims.Channels, ch) {
			return nil, fmt.Errorf("%w: %q", ErrChannelNotGranted, ch)
		}
	}
	return &claims, nil
}
