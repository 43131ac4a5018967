package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/magland/hchat/crypto"
	"github.com/magland/hchat/protocol"
)

// Epoch is the instant every mock clock from NewMockClock starts at.
var Epoch = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

// TestSubscribeKey is the subscribe key in configs from NewTestConfig.
const TestSubscribeKey = "sub-c-test"

// KeyPair is a generated identity.
type KeyPair struct {
	Public  crypto.PublicKey
	Private crypto.PrivateKey
}

var (
	keysMu sync.Mutex
	keys   = map[string]KeyPair{}
)

// RSAKeys returns an RSA key pair for name, generated once per test binary.
// Tests asking for the same name share the pair.
func RSAKeys(t testing.TB, name string) KeyPair {
	t.Helper()
	keysMu.Lock()
	defer keysMu.Unlock()
	if kp, ok := keys[name]; ok {
		return kp
	}
	pub, priv, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair %q: %v", name, err)
	}
	kp := KeyPair{Public: pub, Private: priv}
	keys[name] = kp
	return kp
}

// NewMockClock returns a mock clock set to Epoch.
func NewMockClock() *clock.Mock {
	c := clock.NewMock()
	c.Set(Epoch)
	return c
}

// ConfigOption customizes a test config.
type ConfigOption func(*protocol.Config)

// WithDifficulty sets the proof-of-work difficulty of both actions.
func WithDifficulty(d int) ConfigOption {
	return func(c *protocol.Config) {
		c.Publish.Difficulty = d
		c.Subscribe.Difficulty = d
	}
}

// WithDelay sets the redemption delay of both actions.
func WithDelay(d time.Duration) ConfigOption {
	return func(c *protocol.Config) {
		c.Publish.Delay = d
		c.Subscribe.Delay = d
	}
}

// NewTestConfig returns the default policy with a subscribe key and a low
// difficulty so handshakes are cheap to solve.
func NewTestConfig(opts ...ConfigOption) *protocol.Config {
	c := protocol.DefaultConfig()
	c.SubscribeKey = TestSubscribeKey
	c.Publish.Difficulty = 8
	c.Subscribe.Difficulty = 8
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Solve finds a proof-of-work response for token at difficulty.
func Solve(t testing.TB, token string, difficulty int) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	response, err := crypto.SolveProofOfWork(ctx, token, difficulty)
	if err != nil {
		t.Fatalf("solve proof of work: %v", err)
	}
	return response
}

// SignMessage signs messageJSON with the sender key and returns the
// base64 signature.
func SignMessage(t testing.TB, sender KeyPair, messageJSON string) string {
	t.Helper()
	sig, err := crypto.Sign(sender.Private, []byte(messageJSON))
	if err != nil {
		t.Fatalf("sign message: %v", err)
	}
	return sig.String()
}
