// Package crypto provides the cryptographic primitives of the hchat gateway.
//
// This package implements:
//
//   - Identity keys exchanged as base64 DER bodies of PEM blocks (PKIX public
//     keys, PKCS#8 private keys), the encoding browser clients produce
//   - Deterministic signatures: RSASSA-PKCS1-v1_5 with SHA-256 for RSA keys,
//     pure Ed25519 for Ed25519 keys
//   - The proof-of-work cost function used to gate token redemption
//
// # Signatures
//
// Verification never fails loudly. A malformed key, a malformed signature
// and a wrong signature all report false, so request handlers can treat any
// negative result as a plain rejection.
//
// Determinism matters to callers: the gateway checks its own token seals by
// signing again and comparing, instead of keeping a record of what it issued.
//
// # Proof of work
//
// A solution to a challenge is a string R such that the binary expansion of
// SHA-1(token‖R) starts with difficulty zero bits. The expansion is always
// padded to DigestBits characters; interpreting the digest as a number
// would silently drop the leading zero bits that the check is about.
//
// Verification costs one hash. Finding a solution takes about 2^difficulty
// attempts, and because the token carries the server's issuance timestamp
// no solution can be precomputed before the token exists.
package crypto
