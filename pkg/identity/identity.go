// Package identity implements the ledger's content-addressed digests and
// key-based identifiers: a DigestIdentifier hashes a canonical (borsh)
// encoding of a value with blake3 and renders as a self-describing base
// string; a KeyIdentifier wraps a public key plus a derivator tag and
// renders the same way. Ed25519 (stdlib crypto/ed25519) is this module's
// only signing algorithm.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"
	"github.com/near/borsh-go"
	"lukechampine.com/blake3"
)

// blake3Code is the multicodec identifier for blake3, used to tag a
// DigestIdentifier's rendered multihash so a reader can recover which hash
// function produced it.
const blake3Code = 0x1e

// DerivatorEd25519 tags a KeyIdentifier/KeyPair as holding an Ed25519 key.
// It is the only derivator this module implements; spec.md's data model
// names no other curve, so no other tag is registered.
const DerivatorEd25519 byte = 0x01

const digestSize = 32

// Digest is a content hash: blake3-256 of a value's canonical borsh
// encoding. The zero value is the documented default digest (all-zero),
// used as the previous_hash of a subject's first event.
type Digest struct {
	// Raw is exported so Digest can itself appear, unmodified, as a field
	// of any struct hashed via FromSerializable (borsh only encodes
	// exported fields).
	Raw [digestSize]byte
}

// FromSerializable hashes the borsh encoding of v.
func FromSerializable(v interface{}) (Digest, error) {
	enc, err := borsh.Serialize(v)
	if err != nil {
		return Digest{}, fmt.Errorf("identity: borsh encode: %w", err)
	}
	sum := blake3.Sum256(enc)
	return Digest{Raw: sum}, nil
}

// Bytes returns the raw 32-byte digest.
func (d Digest) Bytes() []byte {
	out := make([]byte, digestSize)
	copy(out, d.Raw[:])
	return out
}

// IsZero reports whether d is the default (all-zero) digest.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// String renders d as a self-describing multibase(multihash(blake3, raw))
// string.
func (d Digest) String() string {
	mh, err := multihash.Encode(d.Raw[:], blake3Code)
	if err != nil {
		// Encode only fails on a malformed code/digest pairing, which
		// cannot happen for a fixed 32-byte digest and a registered code.
		panic(fmt.Sprintf("identity: encode digest multihash: %v", err))
	}
	s, err := multibase.Encode(multibase.Base58BTC, mh)
	if err != nil {
		panic(fmt.Sprintf("identity: encode digest multibase: %v", err))
	}
	return s
}

// DigestFromString parses a string produced by Digest.String.
func DigestFromString(s string) (Digest, error) {
	_, data, err := multibase.Decode(s)
	if err != nil {
		return Digest{}, fmt.Errorf("identity: decode digest multibase: %w", err)
	}
	decoded, err := multihash.Decode(data)
	if err != nil {
		return Digest{}, fmt.Errorf("identity: decode digest multihash: %w", err)
	}
	if decoded.Code != blake3Code {
		return Digest{}, fmt.Errorf("identity: digest uses unsupported hash code %d", decoded.Code)
	}
	if len(decoded.Digest) != digestSize {
		return Digest{}, fmt.Errorf("identity: digest has wrong length %d", len(decoded.Digest))
	}
	var d Digest
	copy(d.Raw[:], decoded.Digest)
	return d, nil
}

// KeyIdentifier is a self-describing public key reference: a derivator tag
// plus the raw key bytes.
type KeyIdentifier struct {
	Tag   byte
	Bytes []byte
}

// NewKeyIdentifier wraps a raw public key with its derivator tag.
func NewKeyIdentifier(tag byte, raw []byte) KeyIdentifier {
	return KeyIdentifier{Tag: tag, Bytes: append([]byte(nil), raw...)}
}

// String renders the identifier as a self-describing multibase string:
// the derivator tag byte followed by the raw key bytes.
func (k KeyIdentifier) String() string {
	payload := make([]byte, 1+len(k.Bytes))
	payload[0] = k.Tag
	copy(payload[1:], k.Bytes)
	s, err := multibase.Encode(multibase.Base58BTC, payload)
	if err != nil {
		panic(fmt.Sprintf("identity: encode key identifier: %v", err))
	}
	return s
}

// KeyIdentifierFromString parses a string produced by KeyIdentifier.String.
func KeyIdentifierFromString(s string) (KeyIdentifier, error) {
	_, payload, err := multibase.Decode(s)
	if err != nil {
		return KeyIdentifier{}, fmt.Errorf("identity: decode key identifier: %w", err)
	}
	if len(payload) < 1 {
		return KeyIdentifier{}, fmt.Errorf("identity: key identifier payload too short")
	}
	return KeyIdentifier{Tag: payload[0], Bytes: append([]byte(nil), payload[1:]...)}, nil
}

// Verify checks sig over msg against k. Only Ed25519 (DerivatorEd25519) is
// supported; any other tag is rejected.
func (k KeyIdentifier) Verify(msg, sig []byte) error {
	if k.Tag != DerivatorEd25519 {
		return fmt.Errorf("identity: unsupported derivator tag %d", k.Tag)
	}
	if len(k.Bytes) != ed25519.PublicKeySize {
		return fmt.Errorf("identity: malformed ed25519 public key")
	}
	if !ed25519.Verify(ed25519.PublicKey(k.Bytes), msg, sig) {
		return ErrSignatureInvalid
	}
	return nil
}

// KeyPair is an Ed25519 signing identity. Private is exported (rather than
// the usual unexported-field convention) because a Subject's owning
// KeyPair is persisted through pkg/partstore's CBOR codec across process
// restarts: an unexported field would silently vanish on every round-trip.
type KeyPair struct {
	Tag     byte
	Public  []byte
	Private ed25519.PrivateKey
}

// NewEd25519 generates a fresh Ed25519 key pair.
func NewEd25519() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: generate ed25519 key: %w", err)
	}
	return &KeyPair{Tag: DerivatorEd25519, Public: pub, Private: priv}, nil
}

// Sign signs msg with the key pair's private key.
func (kp *KeyPair) Sign(msg []byte) []byte {
	return ed25519.Sign(kp.Private, msg)
}

// Identifier returns the KeyIdentifier for this key pair's public key.
func (kp *KeyPair) Identifier() KeyIdentifier {
	return NewKeyIdentifier(kp.Tag, kp.Public)
}
