package protocol

import (
	"context"
	"time"
)

// Distributor delivers published messages to subscribers of a channel. It
// is called only after every publish check has passed.
type Distributor interface {
	// Publish accepts msg for delivery on channel. A nil error means the
	// message was accepted, not that anyone received it.
	Publish(ctx context.Context, channel string, msg *PubsubMessage) error
}

// AccessGranter issues read credentials for the distribution substrate.
type AccessGranter interface {
	// GrantReadCredential returns a credential that authorizes reads on
	// exactly channels for ttlMinutes.
	GrantReadCredential(ctx context.Context, channels []string, ttlMinutes int) (string, error)
}

// RedemptionGuard enforces at-most-once redemption of sealed tokens.
type RedemptionGuard interface {
	// Claim records key for ttl. It returns ErrAlreadyRedeemed when key is
	// already recorded and has not expired.
	Claim(ctx context.Context, key string, ttl time.Duration) error
}
