package main

import (
	"fmt"
	"os"

	"github.com/magland/hchat/crypto"
	"github.com/spf13/cobra"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a key pair and print the public key",
	Args:  cobra.NoArgs,
	RunE:  keygenCmdRun,
}

type keygenFlags struct {
	out     string
	ed25519 bool
	force   bool
}

var keygenArgs keygenFlags

func init() {
	keygenCmd.Flags().StringVar(&keygenArgs.out, "out", "", "Write the private key to this file instead of stdout")
	keygenCmd.Flags().BoolVar(&keygenArgs.ed25519, "ed25519", false, "Generate an Ed25519 key instead of RSA")
	keygenCmd.Flags().BoolVar(&keygenArgs.force, "force", false, "Overwrite an existing key file")
	rootCmd.AddCommand(keygenCmd)
}

func keygenCmdRun(cmd *cobra.Command, args []string) error {
	generate := crypto.GenerateKeyPair
	if keygenArgs.ed25519 {
		generate = crypto.GenerateEd25519KeyPair
	}
	pub, priv, err := generate()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if keygenArgs.out == "" {
		fmt.Fprintln(out, "private:", priv.String())
		fmt.Fprintln(out, "public:", pub.String())
		return nil
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if keygenArgs.force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(keygenArgs.out, flags, 0o600)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(f, priv.String()); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintln(out, pub.String())
	return nil
}
