// Package protocol implements the token-gated challenge protocol that guards
// a shared publish/subscribe channel.
//
// # Handshakes
//
// Every privileged action takes two requests. The first one, an initiation,
// returns a token describing the policy the client must satisfy together
// with the gateway's seal (its signature over the exact token string). The
// second one, a redemption, returns the token and seal alongside a
// proof-of-work solution and, for publishing, the message itself.
//
//  1. InitiatePublish validates the channel name and the declared message
//     size and issues a PublishToken binding the sender key, channel, size
//     and the sender's signature over the message.
//
//  2. Publish recomputes the seal, decodes the token, enforces the timing
//     window, checks the message against the declared size and signature,
//     checks the proof of work, and only then attests the message and hands
//     it to the Distributor.
//
//  3. InitiateSubscribe validates the ordered channel list and issues a
//     SubscribeToken.
//
//  4. Subscribe performs the same seal, decode and timing checks, requires
//     the same channel list in the same order, checks the proof of work, and
//     asks the AccessGranter for a read credential scoped to those channels.
//
// # Statelessness
//
// The Gate stores nothing between the two phases: the sealed token carries
// the issuance time and the policy in force. Without a RedemptionGuard a
// captured redemption can be replayed until the token expires. With one,
// each sealed token is honored at most once.
//
// # Errors
//
// Every rejection wraps exactly one sentinel *RejectionError whose Reason
// identifies the failed check. ReasonOf extracts it for callers that map
// rejections to transport status codes.
package protocol
