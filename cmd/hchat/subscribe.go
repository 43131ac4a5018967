package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var subscribeCmd = &cobra.Command{
	Use:   "subscribe <channel>...",
	Short: "Subscribe to channels and print verified messages",
	Args:  cobra.MinimumNArgs(1),
	RunE:  subscribeCmdRun,
}

type subscribeFlags struct {
	credentialOnly bool
	showUnverified bool
}

var subscribeArgs subscribeFlags

func init() {
	subscribeCmd.Flags().BoolVar(&subscribeArgs.credentialOnly, "credential-only", false,
		"Print the read credential and exit instead of streaming")
	subscribeCmd.Flags().BoolVar(&subscribeArgs.showUnverified, "show-unverified", false,
		"Print messages that fail verification, marked as such")
	rootCmd.AddCommand(subscribeCmd)
}

type printedMessage struct {
	Channel   string          `json:"channel"`
	Sender    string          `json:"sender"`
	Timestamp time.Time       `json:"timestamp"`
	Message   json.RawMessage `json:"message"`
	Verified  bool            `json:"verified"`
}

func subscribeCmdRun(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	handshakeCtx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	grant, err := client.Subscribe(handshakeCtx, args)
	cancel()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if subscribeArgs.credentialOnly {
		return json.NewEncoder(out).Encode(grant)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events, err := client.Stream(ctx, grant, args)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "subscribed to %v\n", args)

	enc := json.NewEncoder(out)
	for ev := range events {
		if ev.Message == nil {
			continue
		}
		_, verr := client.VerifyMessage(ev.Channel, ev.Message)
		if verr != nil && !subscribeArgs.showUnverified {
			fmt.Fprintf(cmd.ErrOrStderr(), "dropped message on %s: %v\n", ev.Channel, verr)
			continue
		}
		raw := json.RawMessage(ev.Message.MessageJSON)
		if !json.Valid(raw) {
			raw, _ = json.Marshal(ev.Message.MessageJSON)
		}
		if err := enc.Encode(printedMessage{
			Channel:   ev.Channel,
			Sender:    ev.Message.SenderPublicKey,
			Timestamp: time.UnixMilli(ev.Message.Timestamp).UTC(),
			Message:   raw,
			Verified:  verr == nil,
		}); err != nil {
			return err
		}
	}
	if ctx.Err() == nil {
		return fmt.Errorf("stream closed by gateway")
	}
	return nil
}
