package protocol

import (
	"context"

	"github.com/magland/hchat/crypto"
)

// InitiatePublish issues a sealed publish token for the described message.
// The message signature is recorded as given and only checked at Publish.
func (g *Gate) InitiatePublish(ctx context.Context, req *InitiatePublishRequest) (*InitiatePublishResponse, error) {
	if !ValidChannel(req.Channel) {
		return nil, g.reject(ActionPublish, "initiate", rejectf(ErrInvalidChannel, "channel %q", req.Channel))
	}
	if req.MessageSize < 1 || req.MessageSize > g.config.MaxMessageSize {
		return nil, g.reject(ActionPublish, "initiate",
			rejectf(ErrInvalidMessageSize, "%d outside [1, %d]", req.MessageSize, g.config.MaxMessageSize))
	}

	policy := g.config.Publish
	token, err := EncodePublishToken(&PublishToken{
		Timestamp:        g.clock.Now().UnixMilli(),
		Difficulty:       policy.Difficulty,
		Delay:            policy.Delay.Milliseconds(),
		SenderPublicKey:  req.SenderPublicKey,
		Channel:          req.Channel,
		MessageSize:      req.MessageSize,
		MessageSignature: req.MessageSignature,
	})
	if err != nil {
		return nil, err
	}
	seal, err := Seal(g.systemKey, token)
	if err != nil {
		return nil, err
	}

	return &InitiatePublishResponse{
		Type:           TypeInitiatePublishResponse,
		PublishToken:   token,
		TokenSignature: seal,
	}, nil
}

// Publish redeems a publish token. The distributor is called only when every
// check has passed; any earlier failure has no side effects.
func (g *Gate) Publish(ctx context.Context, req *PublishRequest) (*PublishResponse, error) {
	if !IsSealValid(g.systemKey, req.PublishToken, req.TokenSignature) {
		return nil, g.reject(ActionPublish, "seal", ErrTokenSealMismatch)
	}
	token, err := DecodePublishToken(req.PublishToken)
	if err != nil {
		return nil, g.reject(ActionPublish, "decode", err)
	}

	now := g.clock.Now()
	if err := checkTiming(now, token.Timestamp, token.Delay, g.config.MaxTokenAge); err != nil {
		return nil, g.reject(ActionPublish, "timing", err)
	}
	if n := MessageLength(req.MessageJSON); n != token.MessageSize {
		return nil, g.reject(ActionPublish, "size",
			rejectf(ErrMessageSizeMismatch, "message has length %d, token declares %d", n, token.MessageSize))
	}
	if !crypto.VerifyEncoded(token.SenderPublicKey, []byte(req.MessageJSON), token.MessageSignature) {
		return nil, g.reject(ActionPublish, "signature", ErrInvalidMessageSignature)
	}
	if !crypto.CheckProofOfWork(req.PublishToken, req.ChallengeResponse, token.Difficulty) {
		return nil, g.reject(ActionPublish, "pow", ErrInvalidProofOfWork)
	}
	if err := g.redeemOnce(ctx, ActionPublish, req.PublishToken); err != nil {
		return nil, g.reject(ActionPublish, "redeem", err)
	}

	msg, err := g.attest(token, req.MessageJSON, now.UnixMilli())
	if err != nil {
		return nil, err
	}
	if err := g.distributor.Publish(ctx, token.Channel, msg); err != nil {
		return nil, g.reject(ActionPublish, "distribute", substrateError("publish", err))
	}

	g.log.Debug("message published", "channel", token.Channel, "size", token.MessageSize)
	return &PublishResponse{Type: TypePublishResponse, Success: true}, nil
}

// attest builds the delivered message with the gate's signature over the
// binding of channel, sender, time and message signature.
func (g *Gate) attest(token *PublishToken, messageJSON string, timestamp int64) (*PubsubMessage, error) {
	payload, err := SerializeMessage(&SystemSignaturePayload{
		Channel:          token.Channel,
		SenderPublicKey:  token.SenderPublicKey,
		Timestamp:        timestamp,
		MessageSignature: token.MessageSignature,
	})
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(g.systemKey, payload)
	if err != nil {
		return nil, err
	}

	return &PubsubMessage{
		Type:                   TypeMessage,
		SenderPublicKey:        token.SenderPublicKey,
		Timestamp:              timestamp,
		MessageJSON:            messageJSON,
		MessageSignature:       token.MessageSignature,
		SystemSignaturePayload: string(payload),
		SystemSignature:        sig.String(),
		SystemPublicKey:        g.systemPublicKey.String(),
	}, nil
}
