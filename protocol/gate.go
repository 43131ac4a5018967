package protocol

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/benbjohnson/clock"
	"github.com/magland/hchat/crypto"
)

// Action names the two handshakes.
type Action string

const (
	ActionPublish   Action = "publish"
	ActionSubscribe Action = "subscribe"
)

// Gate runs the publish and subscribe handshakes. It keeps no per-token
// state: everything it needs to judge a redemption travels inside the sealed
// token. A Gate is safe for concurrent use.
type Gate struct {
	config          *Config
	systemKey       crypto.PrivateKey
	systemPublicKey crypto.PublicKey

	distributor Distributor
	granter     AccessGranter
	guard       RedemptionGuard

	clock clock.Clock
	log   *slog.Logger
}

// GateOption configures optional collaborators of a Gate.
type GateOption func(*Gate)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c clock.Clock) GateOption {
	return func(g *Gate) { g.clock = c }
}

// WithLogger sets the logger rejections and substrate failures go to.
func WithLogger(log *slog.Logger) GateOption {
	return func(g *Gate) { g.log = log }
}

// WithRedemptionGuard makes every token redeemable at most once.
func WithRedemptionGuard(guard RedemptionGuard) GateOption {
	return func(g *Gate) { g.guard = guard }
}

// NewGate creates a Gate that seals tokens and attests messages with
// systemKey. The config is validated and must not be modified afterwards.
func NewGate(config *Config, systemKey crypto.PrivateKey, distributor Distributor, granter AccessGranter, opts ...GateOption) (*Gate, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if distributor == nil || granter == nil {
		return nil, errors.New("distributor and access granter are required")
	}
	publicKey, err := systemKey.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("system key: %w", err)
	}

	g := &Gate{
		config:          config,
		systemKey:       systemKey,
		systemPublicKey: publicKey,
		distributor:     distributor,
		granter:         granter,
		clock:           clock.New(),
		log:             slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Config returns the policy the gate issues tokens with.
func (g *Gate) Config() *Config {
	return g.config
}

// SystemPublicKey returns the key that verifies seals and attestations.
func (g *Gate) SystemPublicKey() crypto.PublicKey {
	return g.systemPublicKey
}

// redeemOnce claims the sealed token with the redemption guard, if any. The
// key covers the action and the token bytes, so a second proof-of-work
// solution for the same token is refused too.
//
// The claim is taken before the distributor or granter runs and is not
// released when they fail: a token whose delivery hit a substrate error is
// spent, and the client starts a new handshake.
func (g *Gate) redeemOnce(ctx context.Context, action Action, token string) error {
	if g.guard == nil {
		return nil
	}
	sum := sha256.Sum256([]byte(string(action) + "\x00" + token))
	// |Δ| is bounded on both sides of issuance.
	ttl := 2 * g.config.MaxTokenAge
	if err := g.guard.Claim(ctx, hex.EncodeToString(sum[:]), ttl); err != nil {
		if errors.Is(err, ErrAlreadyRedeemed) {
			return err
		}
		return substrateError("claim redemption", err)
	}
	return nil
}

// reject logs a rejection and passes it through.
func (g *Gate) reject(action Action, step string, err error) error {
	if errors.Is(err, ErrSubstrate) {
		g.log.Warn("substrate call failed", "action", action, "step", step, "err", err)
	} else {
		g.log.Debug("request rejected", "action", action, "step", step, "reason", ReasonOf(err), "err", err)
	}
	return err
}
