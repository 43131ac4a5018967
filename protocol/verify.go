package protocol

import (
	"errors"

	"github.com/magland/hchat/crypto"
)

var (
	ErrUntrustedSystemKey     = errors.New("message attested by an untrusted system key")
	ErrInvalidSystemSignature = errors.New("invalid system signature")
	ErrPayloadMismatch        = errors.New("system payload does not bind the message")
)

// VerifyMessage checks a message delivered on channel the way a subscriber
// should before trusting it: the sender signed MessageJSON, the gateway signed
// the payload, and the payload names this channel, sender, signature and
// timestamp. When trusted is non-nil the attesting key must equal it.
func VerifyMessage(msg *PubsubMessage, channel string, trusted crypto.PublicKey) (*SystemSignaturePayload, error) {
	if msg.Type != TypeMessage {
		return nil, ErrInvalidRequestShape
	}

	if trusted != nil {
		pk, err := crypto.NewPublicKeyFromString(msg.SystemPublicKey)
		if err != nil || !pk.Equal(trusted) {
			return nil, ErrUntrustedSystemKey
		}
	}

	if !crypto.VerifyEncoded(msg.SenderPublicKey, []byte(msg.MessageJSON), msg.MessageSignature) {
		return nil, ErrInvalidMessageSignature
	}
	if !crypto.VerifyEncoded(msg.SystemPublicKey, []byte(msg.SystemSignaturePayload), msg.SystemSignature) {
		return nil, ErrInvalidSystemSignature
	}

	payload, err := UnmarshalMessage[SystemSignaturePayload]([]byte(msg.SystemSignaturePayload))
	if err != nil {
		return nil, ErrPayloadMismatch
	}
	if payload.Channel != channel ||
		payload.SenderPublicKey != msg.SenderPublicKey ||
		payload.MessageSignature != msg.MessageSignature ||
		payload.Timestamp != msg.Timestamp {
		return nil, ErrPayloadMismatch
	}
	return payload, nil
}
