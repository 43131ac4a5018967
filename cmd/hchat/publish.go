package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var publishCmd = &cobra.Command{
	Use:   "publish [message-json]",
	Short: "Publish a JSON message to a channel",
	Long: `Publish signs the message, solves the gateway's challenge and redeems
the publish token. The message is read from stdin when no argument is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: publishCmdRun,
}

type publishFlags struct {
	channel string
	text    bool
}

var publishArgs publishFlags

func init() {
	publishCmd.Flags().StringVarP(&publishArgs.channel, "channel", "c", "", "Channel to publish to")
	publishCmd.Flags().BoolVar(&publishArgs.text, "text", false, "Treat the message as plain text and send it as a JSON string")
	publishCmd.MarkFlagRequired("channel")
	rootCmd.AddCommand(publishCmd)
}

func publishCmdRun(cmd *cobra.Command, args []string) error {
	var message string
	if len(args) == 1 {
		message = args[0]
	} else {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return err
		}
		message = strings.TrimSpace(string(data))
	}

	if publishArgs.text {
		data, err := json.Marshal(message)
		if err != nil {
			return err
		}
		message = string(data)
	} else if !json.Valid([]byte(message)) {
		return errors.New("message is not valid JSON, use --text to send plain text")
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()
	if err := client.PublishJSON(ctx, publishArgs.channel, message); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "published to %s\n", publishArgs.channel)
	return nil
}
