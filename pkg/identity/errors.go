package identity

import "errors"

// ErrSignatureInvalid is returned by KeyIdentifier.Verify and
// Signature.Verify when the signature does not match the signer and
// content.
var ErrSignatureInvalid = errors.New("identity: signature invalid")
