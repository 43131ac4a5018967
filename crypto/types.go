package crypto

import (
	stdcrypto "crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
)

// DefaultRSABits is the modulus size used by GenerateKeyPair.
const DefaultRSABits = 2048

var (
	ErrInvalidPublicKey  = errors.New("invalid public key")
	ErrInvalidPrivateKey = errors.New("invalid private key")
	ErrUnsupportedKey    = errors.New("unsupported key type")
)

// PublicKey holds DER-encoded (PKIX) public key material.
// On the wire a public key is the base64 body of a PEM "PUBLIC KEY" block,
// without the armor lines.
type PublicKey []byte

// NewPublicKeyFromString parses the wire representation of a public key and
// checks that it holds a supported key.
func NewPublicKeyFromString(data string) (PublicKey, error) {
	der, err := unwrapPEM("PUBLIC KEY", data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
	}
	pk := PublicKey(der)
	if _, err := pk.parse(); err != nil {
		return nil, err
	}
	return pk, nil
}

// Bytes returns the DER encoding of the key.
func (pk PublicKey) Bytes() []byte {
	return pk
}

// Equal compares two public keys for equality.
func (pk PublicKey) Equal(other PublicKey) bool {
	return subtle.ConstantTimeCompare(pk, other) == 1
}

// String returns the wire (base64) representation of the key.
func (pk PublicKey) String() string {
	return base64.StdEncoding.EncodeToString(pk)
}

func (pk PublicKey) parse() (stdcrypto.PublicKey, error) {
	key, err := x509.ParsePKIXPublicKey(pk)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
	}
	switch key.(type) {
	case *rsa.PublicKey, ed25519.PublicKey:
		return key, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
	}
}

// PrivateKey holds DER-encoded (PKCS#8) private key material.
// Private keys should only ever be loaded from process configuration.
type PrivateKey []byte

// NewPrivateKeyFromString parses the base64 body of a PEM "PRIVATE KEY" block.
func NewPrivateKeyFromString(data string) (PrivateKey, error) {
	der, err := unwrapPEM("PRIVATE KEY", data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPrivateKey, err)
	}
	sk := PrivateKey(der)
	if _, err := sk.parse(); err != nil {
		return nil, err
	}
	return sk, nil
}

// Bytes returns the DER encoding of the key.
// This method should be used carefully as it exposes sensitive key material.
func (sk PrivateKey) Bytes() []byte {
	return sk
}

// String returns the wire (base64) representation of the key.
func (sk PrivateKey) String() string {
	return base64.StdEncoding.EncodeToString(sk)
}

// PublicKey derives the public key corresponding to this private key.
func (sk PrivateKey) PublicKey() (PublicKey, error) {
	signer, err := sk.parse()
	if err != nil {
		return nil, err
	}
	der, err := x509.MarshalPKIXPublicKey(signer.Public())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPrivateKey, err)
	}
	return PublicKey(der), nil
}

func (sk PrivateKey) parse() (stdcrypto.Signer, error) {
	key, err := x509.ParsePKCS8PrivateKey(sk)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPrivateKey, err)
	}
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return k, nil
	case ed25519.PrivateKey:
		return k, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
	}
}

// GenerateKeyPair generates a new RSA key pair of DefaultRSABits.
func GenerateKeyPair() (PublicKey, PrivateKey, error) {
	return GenerateRSAKeyPair(DefaultRSABits)
}

// GenerateRSAKeyPair generates a new RSA key pair with the given modulus size.
func GenerateRSAKeyPair(bits int) (PublicKey, PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, nil, err
	}
	return marshalKeyPair(key, &key.PublicKey)
}

// GenerateEd25519KeyPair generates a new Ed25519 key pair.
func GenerateEd25519KeyPair() (PublicKey, PrivateKey, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return marshalKeyPair(private, public)
}

func marshalKeyPair(private any, public any) (PublicKey, PrivateKey, error) {
	skDER, err := x509.MarshalPKCS8PrivateKey(private)
	if err != nil {
		return nil, nil, err
	}
	pkDER, err := x509.MarshalPKIXPublicKey(public)
	if err != nil {
		return nil, nil, err
	}
	return PublicKey(pkDER), PrivateKey(skDER), nil
}

// Signature represents a digital signature produced with a private key.
// On the wire signatures are standard base64.
type Signature []byte

// NewSignature creates a Signature from a byte slice.
// This function makes a copy of the input data to ensure immutability.
func NewSignature(data []byte) Signature {
	sig := make([]byte, len(data))
	copy(sig, data)
	return Signature(sig)
}

// NewSignatureFromString decodes a base64 signature.
func NewSignatureFromString(data string) (Signature, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}
	return Signature(raw), nil
}

// Bytes returns the signature as a byte slice.
func (s Signature) Bytes() []byte {
	return []byte(s)
}

// String returns the base64 representation of the signature.
func (s Signature) String() string {
	return base64.StdEncoding.EncodeToString(s)
}

// Verify checks if this signature is valid for the given data and public key.
// RSA keys are checked with RSASSA-PKCS1-v1_5 over SHA-256, Ed25519 keys with
// pure Ed25519. Malformed keys or signatures verify as false.
func (s Signature) Verify(publicKey PublicKey, data []byte) bool {
	key, err := publicKey.parse()
	if err != nil {
		return false
	}
	switch k := key.(type) {
	case *rsa.PublicKey:
		digest := sha256.Sum256(data)
		return rsa.VerifyPKCS1v15(k, stdcrypto.SHA256, digest[:], s) == nil
	case ed25519.PublicKey:
		return len(s) == ed25519.SignatureSize && ed25519.Verify(k, data, s)
	}
	return false
}

// Sign signs data with the given private key. Both supported schemes are
// deterministic: signing the same data twice yields the same signature.
func Sign(privateKey PrivateKey, data []byte) (Signature, error) {
	signer, err := privateKey.parse()
	if err != nil {
		return nil, err
	}
	switch k := signer.(type) {
	case *rsa.PrivateKey:
		digest := sha256.Sum256(data)
		sig, err := rsa.SignPKCS1v15(nil, k, stdcrypto.SHA256, digest[:])
		if err != nil {
			return nil, err
		}
		return Signature(sig), nil
	case ed25519.PrivateKey:
		return Signature(ed25519.Sign(k, data)), nil
	}
	return nil, ErrUnsupportedKey
}

// VerifyEncoded verifies a signature where key and signature are given in
// their wire encodings. Any decoding failure reports false.
func VerifyEncoded(publicKey string, message []byte, signature string) bool {
	pk, err := NewPublicKeyFromString(publicKey)
	if err != nil {
		return false
	}
	sig, err := NewSignatureFromString(signature)
	if err != nil {
		return false
	}
	return sig.Verify(pk, message)
}

// unwrapPEM wraps a bare base64 body into a PEM envelope and decodes it, the
// same way browser and node clients exchange keys.
func unwrapPEM(blockType, body string) ([]byte, error) {
	armored := fmt.Sprintf("-----BEGIN %s-----\n%s\n-----END %s-----\n", blockType, body, blockType)
	block, _ := pem.Decode([]byte(armored))
	if block == nil || block.Type != blockType {
		return nil, errors.New("malformed key encoding")
	}
	return block.Bytes, nil
}
