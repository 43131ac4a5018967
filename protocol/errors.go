package protocol

import (
	"errors"
	"fmt"
)

// ReasonCode classifies why a request was rejected.
type ReasonCode string

const (
	ReasonInvalidRequestShape     ReasonCode = "InvalidRequestShape"
	ReasonInvalidChannel          ReasonCode = "InvalidChannel"
	ReasonTooManyChannels         ReasonCode = "TooManyChannels"
	ReasonInvalidMessageSize      ReasonCode = "InvalidMessageSize"
	ReasonTokenSealMismatch       ReasonCode = "TokenSealMismatch"
	ReasonMalformedToken          ReasonCode = "MalformedToken"
	ReasonTokenTooSoon            ReasonCode = "TokenTooSoon"
	ReasonTokenExpired            ReasonCode = "TokenExpired"
	ReasonMessageSizeMismatch     ReasonCode = "MessageSizeMismatch"
	ReasonInvalidMessageSignature ReasonCode = "InvalidMessageSignature"
	ReasonChannelScopeMismatch    ReasonCode = "ChannelScopeMismatch"
	ReasonInvalidProofOfWork      ReasonCode = "InvalidProofOfWork"
	ReasonAlreadyRedeemed         ReasonCode = "AlreadyRedeemed"
	ReasonSubstrateError          ReasonCode = "SubstrateError"
)

// RejectionError is a request failure with a reason code. Every error the
// Gate returns wraps exactly one of the sentinels below.
type RejectionError struct {
	Reason  ReasonCode
	Message string
}

func (e *RejectionError) Error() string {
	return e.Message
}

// Errors returned by Gate operations and the token codec.
var (
	ErrInvalidRequestShape     = &RejectionError{ReasonInvalidRequestShape, "Invalid request"}
	ErrInvalidChannel          = &RejectionError{ReasonInvalidChannel, "invalid channel"}
	ErrTooManyChannels         = &RejectionError{ReasonTooManyChannels, "too many channels"}
	ErrInvalidMessageSize      = &RejectionError{ReasonInvalidMessageSize, "invalid message size"}
	ErrTokenSealMismatch       = &RejectionError{ReasonTokenSealMismatch, "invalid token signature"}
	ErrMalformedToken          = &RejectionError{ReasonMalformedToken, "invalid token"}
	ErrTokenTooSoon            = &RejectionError{ReasonTokenTooSoon, "too soon to redeem token"}
	ErrTokenExpired            = &RejectionError{ReasonTokenExpired, "invalid timestamp for token"}
	ErrMessageSizeMismatch     = &RejectionError{ReasonMessageSizeMismatch, "invalid message size"}
	ErrInvalidMessageSignature = &RejectionError{ReasonInvalidMessageSignature, "invalid message signature"}
	ErrChannelScopeMismatch    = &RejectionError{ReasonChannelScopeMismatch, "channels do not match subscribe token"}
	ErrInvalidProofOfWork      = &RejectionError{ReasonInvalidProofOfWork, "invalid challenge response"}
	ErrAlreadyRedeemed         = &RejectionError{ReasonAlreadyRedeemed, "token already redeemed"}
	ErrSubstrate               = &RejectionError{ReasonSubstrateError, "substrate call failed"}
)

// ReasonOf returns the reason code carried by err, or an empty code when err
// is not a rejection.
func ReasonOf(err error) ReasonCode {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return ""
}

// rejectf wraps a sentinel with request-specific detail.
func rejectf(sentinel *RejectionError, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// substrateError wraps a collaborator failure. The cause is kept in the
// chain for logging but the rejection is what callers match on.
func substrateError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSubstrate, op, err)
}
