package eventsourcing

import (
	"encoding/json"
	"fmt"

	"github.com/JavierDuqueMelguizo/taple-core/pkg/governance"
	"github.com/JavierDuqueMelguizo/taple-core/pkg/identity"
)

// CheckSignatures verifies an EventRequest's leader signature and every
// approval in its set:
//  1. recompute h = Digest((req.Request, req.Timestamp));
//  2. h must equal req.Signature.ContentHash;
//  3. req.Signature must verify against h under req.Signature.Signer;
//  4. for each approval a: a.EventRequestHash must equal h, and a's
//     signature must verify against Digest((a.EventRequestHash,
//     a.ApprovalType, a.ExpectedSn)) under a.Signer.
func CheckSignatures(req EventRequest) error {
	h, err := req.Hash()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEventRequestHashingError, err)
	}
	if h != req.Signature.ContentHash {
		return ErrEventRequestHashingConflict
	}
	if err := req.Signature.Verify(); err != nil {
		return fmt.Errorf("%w: %v", ErrRequestSignatureInvalid, err)
	}
	for _, a := range req.Approvals {
		if a.EventRequestHash != h {
			return ErrEventRequestHashingConflict
		}
		ah, err := identity.FromSerializable(approvalHashed{
			EventRequestHash: a.EventRequestHash,
			ApprovalType:     a.ApprovalType,
			ExpectedSn:       a.ExpectedSn,
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrEventRequestHashingError, err)
		}
		if err := a.Signer.Verify(ah.Bytes(), a.Signature); err != nil {
			return fmt.Errorf("%w: %v", ErrRequestSignatureInvalid, err)
		}
	}
	return nil
}

// CheckAgainstSchema validates req's payload against schema, applying a
// JSON Patch to subject's current properties first when the payload is
// PayloadJSONPatch.
func CheckAgainstSchema(req EventRequest, schema *governance.Schema, subject *Subject) error {
	switch req.Request.Payload.Kind {
	case PayloadJSON:
		var v interface{}
		if err := json.Unmarshal([]byte(req.Request.Payload.Body), &v); err != nil {
			return fmt.Errorf("%w: %v", ErrParsingJSONString, err)
		}
		if !schema.Validate(v) {
			return ErrSchemaValidationFailed
		}
		return nil
	case PayloadJSONPatch:
		if subject == nil || subject.SubjectData == nil {
			return ErrInvalidUseOfJSONPatch
		}
		patched, err := governance.ApplyPatch([]byte(subject.SubjectData.Properties), []byte(req.Request.Payload.Body))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrApplyingPatch, err)
		}
		var v interface{}
		if err := json.Unmarshal(patched, &v); err != nil {
			return fmt.Errorf("%w: %v", ErrParsingJSONString, err)
		}
		if !schema.Validate(v) {
			return ErrSchemaValidationFailed
		}
		return nil
	default:
		return fmt.Errorf("eventsourcing: unknown payload kind %d", req.Request.Payload.Kind)
	}
}
