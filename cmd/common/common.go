// Package common provides shared utilities for the hchat commands.
//
// It holds the gateway's file and environment configuration, key loading,
// logger construction and redemption guard selection, so cmd/gateway and
// cmd/hchat read keys and settings the same way.
package common

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/magland/hchat/crypto"
)

// ParseKey accepts a key either as the bare base64 body used on the wire or
// as a full PEM block, and returns the bare body.
func ParseKey(s string) string {
	var body []string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "-----") {
			continue
		}
		body = append(body, line)
	}
	return strings.Join(body, "")
}

// LoadSystemKeys parses the gateway's private key and derives its public
// key. A configured public key must match the derived one.
func LoadSystemKeys(keys KeysConfig) (crypto.PrivateKey, crypto.PublicKey, error) {
	if keys.SystemPrivateKey == "" {
		return nil, nil, fmt.Errorf("system private key is required")
	}
	sk, err := crypto.NewPrivateKeyFromString(ParseKey(keys.SystemPrivateKey))
	if err != nil {
		return nil, nil, fmt.Errorf("system private key: %w", err)
	}
	pk, err := sk.PublicKey()
	if err != nil {
		return nil, nil, err
	}

	if keys.SystemPublicKey != "" {
		configured, err := crypto.NewPublicKeyFromString(ParseKey(keys.SystemPublicKey))
		if err != nil {
			return nil, nil, fmt.Errorf("system public key: %w", err)
		}
		if !configured.Equal(pk) {
			return nil, nil, fmt.Errorf("system public key does not match the private key")
		}
	}
	return sk, pk, nil
}

// LoadOrGenerateSigningKey reads a private key from path, or generates an
// RSA key and writes it there when the file does not exist.
func LoadOrGenerateSigningKey(path string) (crypto.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return crypto.NewPrivateKeyFromString(ParseKey(string(data)))
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	_, sk, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(sk.String()+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("writing key: %w", err)
	}
	return sk, nil
}

// NewLogger builds the process logger. Format is "text" or "json".
func NewLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch format {
	case "", "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
