package identity

import "fmt"

// Signature is a single signer's attestation over a content digest, as
// carried by an EventRequest's signature set or an event's approval/
// validation signature aggregate.
type Signature struct {
	Signer      KeyIdentifier
	ContentHash Digest
	Timestamp   int64
	Value       []byte
}

// SignatureKey is the identity a Signature aggregate is keyed/deduplicated
// by: the union semantics of pkg/ledgerstore.SetSignatures treat two
// signatures as the same set member when signer, content, and timestamp
// all match, mirroring the original's HashSet<Signature> whose identity is
// derived from every field.
type SignatureKey struct {
	Signer      string
	ContentHash string
	Timestamp   int64
}

// Key returns the SignatureKey identifying sig within an aggregate.
func (sig Signature) Key() SignatureKey {
	return SignatureKey{
		Signer:      sig.Signer.String(),
		ContentHash: sig.ContentHash.String(),
		Timestamp:   sig.Timestamp,
	}
}

// Sign produces a Signature over contentHash by kp, stamped with
// timestamp (unix seconds; callers pass it in rather than this package
// reading the clock, so results stay deterministic in tests).
func Sign(kp *KeyPair, contentHash Digest, timestamp int64) Signature {
	msg := contentHash.Bytes()
	return Signature{
		Signer:      kp.Identifier(),
		ContentHash: contentHash,
		Timestamp:   timestamp,
		Value:       kp.Sign(msg),
	}
}

// Verify checks that sig was produced by its claimed signer over its
// claimed content hash.
func (sig Signature) Verify() error {
	if err := sig.Signer.Verify(sig.ContentHash.Bytes(), sig.Value); err != nil {
		return fmt.Errorf("identity: verify signature from %s: %w", sig.Signer.String(), err)
	}
	return nil
}
