package protocol

import (
	"crypto/subtle"
	"encoding/json"

	"github.com/magland/hchat/crypto"
)

// PublishToken is the policy a publisher agreed to at issuance. Field order
// is fixed; the encoded JSON string is what gets sealed.
type PublishToken struct {
	Timestamp        int64  `json:"timestamp"`
	Difficulty       int    `json:"difficulty"`
	Delay            int64  `json:"delay"`
	SenderPublicKey  string `json:"senderPublicKey"`
	Channel          string `json:"channel"`
	MessageSize      int    `json:"messageSize"`
	MessageSignature string `json:"messageSignature"`
}

var publishTokenFields = []string{
	"timestamp", "difficulty", "delay", "senderPublicKey", "channel", "messageSize", "messageSignature",
}

// SubscribeToken is the policy a subscriber agreed to at issuance.
type SubscribeToken struct {
	Timestamp  int64    `json:"timestamp"`
	Difficulty int      `json:"difficulty"`
	Delay      int64    `json:"delay"`
	Channels   []string `json:"channels"`
}

var subscribeTokenFields = []string{"timestamp", "difficulty", "delay", "channels"}

// EncodePublishToken returns the canonical encoding of t.
func EncodePublishToken(t *PublishToken) (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// EncodeSubscribeToken returns the canonical encoding of t. A nil channel
// list encodes as an empty array so the result always decodes.
func EncodeSubscribeToken(t *SubscribeToken) (string, error) {
	tok := *t
	if tok.Channels == nil {
		tok.Channels = []string{}
	}
	data, err := json.Marshal(&tok)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodePublishToken checks that encoded has the shape of a PublishToken and
// decodes it. Business constraints are not checked here.
func DecodePublishToken(encoded string) (*PublishToken, error) {
	var t PublishToken
	if err := decodeStrict([]byte(encoded), &t, publishTokenFields...); err != nil {
		return nil, rejectf(ErrMalformedToken, "publish token: %v", err)
	}
	return &t, nil
}

// DecodeSubscribeToken checks that encoded has the shape of a SubscribeToken
// and decodes it.
func DecodeSubscribeToken(encoded string) (*SubscribeToken, error) {
	var t SubscribeToken
	if err := decodeStrict([]byte(encoded), &t, subscribeTokenFields...); err != nil {
		return nil, rejectf(ErrMalformedToken, "subscribe token: %v", err)
	}
	return &t, nil
}

// Seal signs the encoded token with the server key and returns the base64
// signature.
func Seal(serverKey crypto.PrivateKey, encoded string) (string, error) {
	sig, err := crypto.Sign(serverKey, []byte(encoded))
	if err != nil {
		return "", err
	}
	return sig.String(), nil
}

// IsSealValid recomputes the seal over encoded and compares it with
// signature in constant time. Nothing about issued tokens is stored.
func IsSealValid(serverKey crypto.PrivateKey, encoded, signature string) bool {
	expected, err := Seal(serverKey, encoded)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
