package protocol

import (
	"context"
	"slices"

	"github.com/magland/hchat/crypto"
)

// InitiateSubscribe issues a sealed subscribe token for the ordered channel
// list.
func (g *Gate) InitiateSubscribe(ctx context.Context, req *InitiateSubscribeRequest) (*InitiateSubscribeResponse, error) {
	if err := validateChannels(req.Channels, g.config.MaxChannels); err != nil {
		return nil, g.reject(ActionSubscribe, "initiate", err)
	}

	policy := g.config.Subscribe
	token, err := EncodeSubscribeToken(&SubscribeToken{
		Timestamp:  g.clock.Now().UnixMilli(),
		Difficulty: policy.Difficulty,
		Delay:      policy.Delay.Milliseconds(),
		Channels:   slices.Clone(req.Channels),
	})
	if err != nil {
		return nil, err
	}
	seal, err := Seal(g.systemKey, token)
	if err != nil {
		return nil, err
	}

	return &InitiateSubscribeResponse{
		Type:           TypeInitiateSubscribeResponse,
		SubscribeToken: token,
		TokenSignature: seal,
	}, nil
}

// Subscribe redeems a subscribe token for a read credential scoped to
// exactly the token's channels.
func (g *Gate) Subscribe(ctx context.Context, req *SubscribeRequest) (*SubscribeResponse, error) {
	if !IsSealValid(g.systemKey, req.SubscribeToken, req.TokenSignature) {
		return nil, g.reject(ActionSubscribe, "seal", ErrTokenSealMismatch)
	}
	token, err := DecodeSubscribeToken(req.SubscribeToken)
	if err != nil {
		return nil, g.reject(ActionSubscribe, "decode", err)
	}
	if err := checkTiming(g.clock.Now(), token.Timestamp, token.Delay, g.config.MaxTokenAge); err != nil {
		return nil, g.reject(ActionSubscribe, "timing", err)
	}
	if !channelsEqual(req.Channels, token.Channels) {
		return nil, g.reject(ActionSubscribe, "scope", ErrChannelScopeMismatch)
	}
	if !crypto.CheckProofOfWork(req.SubscribeToken, req.ChallengeResponse, token.Difficulty) {
		return nil, g.reject(ActionSubscribe, "pow", ErrInvalidProofOfWork)
	}
	if err := g.redeemOnce(ctx, ActionSubscribe, req.SubscribeToken); err != nil {
		return nil, g.reject(ActionSubscribe, "redeem", err)
	}

	credential, err := g.granter.GrantReadCredential(ctx, token.Channels, g.config.CredentialTTLMinutes)
	if err != nil {
		return nil, g.reject(ActionSubscribe, "grant", substrateError("grant read credential", err))
	}

	return &SubscribeResponse{
		Type:               TypeSubscribeResponse,
		PubnubSubscribeKey: g.config.SubscribeKey,
		PubnubToken:        credential,
	}, nil
}
