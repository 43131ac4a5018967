// Command hchat publishes to and subscribes from an hchat gateway.
//
//	hchat keygen --out=id.key
//	hchat publish --url=http://localhost:8080 --key=id.key --channel=room1 '{"text":"hello"}'
//	hchat subscribe --url=http://localhost:8080 room1 room2
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/magland/hchat/cmd/common"
	"github.com/magland/hchat/crypto"
	"github.com/magland/hchat/services"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "hchat",
	Short:         "Publish and subscribe through an hchat gateway",
	SilenceUsage:  true,
	SilenceErrors: true,
}

type rootFlags struct {
	url       string
	keyPath   string
	systemKey string
	timeout   time.Duration
	verbose   bool
}

var rootArgs rootFlags

func init() {
	rootCmd.PersistentFlags().StringVar(&rootArgs.url, "url", "http://localhost:8080", "Gateway base URL")
	rootCmd.PersistentFlags().StringVar(&rootArgs.keyPath, "key", "hchat.key", "Private key file, created if missing")
	rootCmd.PersistentFlags().StringVar(&rootArgs.systemKey, "system-key", "", "Expected gateway public key for verifying messages")
	rootCmd.PersistentFlags().DurationVar(&rootArgs.timeout, "timeout", time.Minute, "Handshake timeout")
	rootCmd.PersistentFlags().BoolVarP(&rootArgs.verbose, "verbose", "v", false, "Log handshake details")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newClient loads the identity key and builds a gateway client.
func newClient() (*services.Client, error) {
	key, err := common.LoadOrGenerateSigningKey(rootArgs.keyPath)
	if err != nil {
		return nil, fmt.Errorf("loading key: %w", err)
	}

	level := slog.LevelWarn
	if rootArgs.verbose {
		level = slog.LevelDebug
	}
	opts := []services.ClientOption{
		services.WithClientLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))),
	}
	if rootArgs.systemKey != "" {
		pk, err := crypto.NewPublicKeyFromString(common.ParseKey(rootArgs.systemKey))
		if err != nil {
			return nil, fmt.Errorf("system key: %w", err)
		}
		opts = append(opts, services.WithTrustedSystemKey(pk))
	}
	return services.NewClient(rootArgs.url, key, opts...)
}
