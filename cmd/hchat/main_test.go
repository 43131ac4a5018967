package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/magland/hchat/cmd/common"
	"github.com/magland/hchat/crypto"
	"github.com/stretchr/testify/require"
)

func executeCommand(args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestKeygen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id.key")
	out, err := executeCommand("keygen", "--out", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	sk, err := crypto.NewPrivateKeyFromString(common.ParseKey(string(data)))
	require.NoError(t, err)
	pk, err := sk.PublicKey()
	require.NoError(t, err)
	require.Equal(t, pk.String(), strings.TrimSpace(out))

	_, err = executeCommand("keygen", "--out", path)
	require.Error(t, err)
}

func TestPublishRejectsInvalidJSON(t *testing.T) {
	_, err := executeCommand("publish", "--channel", "room1", "not json")
	require.ErrorContains(t, err, "not valid JSON")
}
