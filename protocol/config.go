package protocol

import (
	"errors"
	"fmt"
	"time"

	"github.com/magland/hchat/crypto"
)

// Policy is the cost a client pays before one kind of token is honored.
type Policy struct {
	// Difficulty is the number of leading zero bits the proof-of-work
	// digest must have.
	Difficulty int `json:"difficulty"`

	// Delay is the minimum time between issuance and redemption.
	Delay time.Duration `json:"delay,string"`
}

// Config provides the process-wide policy of the gateway. It is loaded once
// at startup and passed to NewGate; tokens carry the policy that was in
// effect when they were issued.
type Config struct {
	// Publish is the policy for initiate-publish/publish.
	Publish Policy `json:"publish"`

	// Subscribe is the policy for initiate-subscribe/subscribe.
	Subscribe Policy `json:"subscribe"`

	// MaxTokenAge caps the time between issuance and redemption.
	MaxTokenAge time.Duration `json:"max_token_age,string"`

	// MaxMessageSize is the largest messageSize a publish token may declare.
	MaxMessageSize int `json:"max_message_size"`

	// MaxChannels is the largest number of channels in one subscription.
	MaxChannels int `json:"max_channels"`

	// CredentialTTLMinutes is the lifetime of granted read credentials.
	CredentialTTLMinutes int `json:"credential_ttl_minutes"`

	// SubscribeKey identifies the distribution substrate to subscribers.
	// It is returned with every granted read credential.
	SubscribeKey string `json:"subscribe_key"`
}

// DefaultConfig returns the policy the public deployment runs with.
func DefaultConfig() *Config {
	return &Config{
		Publish:              Policy{Difficulty: 13, Delay: 500 * time.Millisecond},
		Subscribe:            Policy{Difficulty: 13, Delay: 500 * time.Millisecond},
		MaxTokenAge:          60 * time.Second,
		MaxMessageSize:       20000,
		MaxChannels:          10,
		CredentialTTLMinutes: 60,
	}
}

// Validate checks the configuration for values the protocol cannot honor.
func (c *Config) Validate() error {
	var errs []error
	for name, p := range map[string]Policy{"publish": c.Publish, "subscribe": c.Subscribe} {
		if p.Difficulty < 0 || p.Difficulty > crypto.DigestBits {
			errs = append(errs, fmt.Errorf("%s difficulty %d outside [0, %d]", name, p.Difficulty, crypto.DigestBits))
		}
		if p.Delay < 0 {
			errs = append(errs, fmt.Errorf("%s delay must not be negative", name))
		}
		if p.Delay > c.MaxTokenAge {
			errs = append(errs, fmt.Errorf("%s delay %s exceeds max token age %s", name, p.Delay, c.MaxTokenAge))
		}
	}
	if c.MaxTokenAge <= 0 {
		errs = append(errs, errors.New("max token age must be positive"))
	}
	if c.MaxMessageSize < 1 {
		errs = append(errs, errors.New("max message size must be at least 1"))
	}
	if c.MaxChannels < 1 {
		errs = append(errs, errors.New("max channels must be at least 1"))
	}
	if c.CredentialTTLMinutes < 1 {
		errs = append(errs, errors.New("credential ttl must be at least one minute"))
	}
	if c.SubscribeKey == "" {
		errs = append(errs, errors.New("subscribe key is required"))
	}
	return errors.Join(errs...)
}
