package protocol

import (
	"sync"
	"testing"

	"github.com/magland/hchat/crypto"
	"github.com/stretchr/testify/require"
)

var (
	sealKeyOnce sync.Once
	sealKey     crypto.PrivateKey
)

func testSealKey(t *testing.T) crypto.PrivateKey {
	t.Helper()
	sealKeyOnce.Do(func() {
		var err error
		_, sealKey, err = crypto.GenerateKeyPair()
		require.NoError(t, err)
	})
	return sealKey
}

func TestEncodePublishTokenFieldOrder(t *testing.T) {
	encoded, err := EncodePublishToken(&PublishToken{
		Timestamp:        1700000000000,
		Difficulty:       13,
		Delay:            500,
		SenderPublicKey:  "PK",
		Channel:          "room1",
		MessageSize:      5,
		MessageSignature: "SIG",
	})
	require.NoError(t, err)
	require.Equal(t,
		`{"timestamp":1700000000000,"difficulty":13,"delay":500,"senderPublicKey":"PK","channel":"room1","messageSize":5,"messageSignature":"SIG"}`,
		encoded)

	decoded, err := DecodePublishToken(encoded)
	require.NoError(t, err)
	again, err := EncodePublishToken(decoded)
	require.NoError(t, err)
	require.Equal(t, encoded, again)
}

func TestEncodeSubscribeTokenFieldOrder(t *testing.T) {
	encoded, err := EncodeSubscribeToken(&SubscribeToken{
		Timestamp:  1700000000000,
		Difficulty: 13,
		Delay:      500,
		Channels:   []string{"a", "b"},
	})
	require.NoError(t, err)
	require.Equal(t, `{"timestamp":1700000000000,"difficulty":13,"delay":500,"channels":["a","b"]}`, encoded)

	empty, err := EncodeSubscribeToken(&SubscribeToken{})
	require.NoError(t, err)
	require.Equal(t, `{"timestamp":0,"difficulty":0,"delay":0,"channels":[]}`, empty)
}

func TestDecodePublishTokenRejectsBadShapes(t *testing.T) {
	cases := map[string]string{
		"not json":       `timestamp=1`,
		"array":          `[1,2,3]`,
		"null":           `null`,
		"missing field":  `{"timestamp":1,"difficulty":13,"delay":500,"senderPublicKey":"PK","channel":"c","messageSize":5}`,
		"extra field":    `{"timestamp":1,"difficulty":13,"delay":500,"senderPublicKey":"PK","channel":"c","messageSize":5,"messageSignature":"S","x":1}`,
		"null field":     `{"timestamp":1,"difficulty":13,"delay":500,"senderPublicKey":null,"channel":"c","messageSize":5,"messageSignature":"S"}`,
		"string number":  `{"timestamp":"1","difficulty":13,"delay":500,"senderPublicKey":"PK","channel":"c","messageSize":5,"messageSignature":"S"}`,
		"fraction":       `{"timestamp":1,"difficulty":13.5,"delay":500,"senderPublicKey":"PK","channel":"c","messageSize":5,"messageSignature":"S"}`,
		"number string":  `{"timestamp":1,"difficulty":13,"delay":500,"senderPublicKey":7,"channel":"c","messageSize":5,"messageSignature":"S"}`,
		"trailing data":  `{"timestamp":1,"difficulty":13,"delay":500,"senderPublicKey":"PK","channel":"c","messageSize":5,"messageSignature":"S"} {}`,
		"subscribe form": `{"timestamp":1,"difficulty":13,"delay":500,"channels":["a"]}`,
	}
	for name, encoded := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodePublishToken(encoded)
			require.ErrorIs(t, err, ErrMalformedToken)
			require.Equal(t, ReasonMalformedToken, ReasonOf(err))
		})
	}
}

func TestDecodeSubscribeTokenRejectsBadShapes(t *testing.T) {
	cases := map[string]string{
		"channels not array": `{"timestamp":1,"difficulty":13,"delay":500,"channels":"a"}`,
		"channel not string": `{"timestamp":1,"difficulty":13,"delay":500,"channels":["a",2]}`,
		"null channel":       `{"timestamp":1,"difficulty":13,"delay":500,"channels":["a",null]}`,
		"null channels":      `{"timestamp":1,"difficulty":13,"delay":500,"channels":null}`,
		"missing delay":      `{"timestamp":1,"difficulty":13,"channels":["a"]}`,
		"publish form":       `{"timestamp":1,"difficulty":13,"delay":500,"senderPublicKey":"PK","channel":"c","messageSize":5,"messageSignature":"S"}`,
	}
	for name, encoded := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeSubscribeToken(encoded)
			require.ErrorIs(t, err, ErrMalformedToken)
		})
	}

	token, err := DecodeSubscribeToken(`{"timestamp":1,"difficulty":13,"delay":500,"channels":["a","b"]}`)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, token.Channels)
}

func TestSeal(t *testing.T) {
	key := testSealKey(t)
	encoded := `{"timestamp":1,"difficulty":13,"delay":500,"channels":["a"]}`

	seal, err := Seal(key, encoded)
	require.NoError(t, err)
	require.True(t, IsSealValid(key, encoded, seal))

	again, err := Seal(key, encoded)
	require.NoError(t, err)
	require.Equal(t, seal, again)

	// Semantically equal but differently spelled JSON is a different token.
	require.False(t, IsSealValid(key, `{"timestamp":1, "difficulty":13,"delay":500,"channels":["a"]}`, seal))
	require.False(t, IsSealValid(key, encoded, ""))
	require.False(t, IsSealValid(key, encoded, "not base64!"))

	_, otherKey, err := crypto.GenerateEd25519KeyPair()
	require.NoError(t, err)
	require.False(t, IsSealValid(otherKey, encoded, seal))
	require.False(t, IsSealValid(crypto.PrivateKey("garbage"), encoded, seal))
}
