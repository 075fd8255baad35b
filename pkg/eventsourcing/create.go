package eventsourcing

import (
	"encoding/json"
	"fmt"

	"github.com/JavierDuqueMelguizo/taple-core/pkg/governance"
	"github.com/JavierDuqueMelguizo/taple-core/pkg/identity"
)

// subjectIDSeed is the payload subject_id is hashed from: the requesting
// event's content hash plus the freshly generated owning key, so a
// subject's identity is bound to both its creator's request and its own
// key material.
type subjectIDSeed struct {
	RequestHash identity.Digest
	OwnerPublic []byte
}

// CreateSubjectFromRequest validates req (which must be a Create request)
// against schema, generates a fresh owning keypair for the new subject, and
// builds the genesis Subject and its signed, sn-0 Event.
//
// schema is the raw JSON Schema document (e.g. governance.GovernanceSchema()
// or a per-subject schema looked up by req.Request.SchemaID) that the
// initial payload must validate against.
func CreateSubjectFromRequest(req EventRequest, governanceVersion uint64, schema interface{}, approved bool) (*Subject, *Event, error) {
	if req.Request.Kind != RequestCreate {
		return nil, nil, ErrNotCreateEvent
	}
	if req.Request.Payload.Kind != PayloadJSON {
		return nil, nil, ErrInvalidUseOfJSONPatch
	}

	compiled, err := governance.Compile(schema)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSchemaDoesNotCompile, err)
	}
	var props interface{}
	if err := json.Unmarshal([]byte(req.Request.Payload.Body), &props); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrParsingJSONString, err)
	}
	if !compiled.Validate(props) {
		return nil, nil, ErrSchemaValidationFailed
	}

	mc, err := identity.NewEd25519()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSubjectSignatureFailed, err)
	}
	subjectID, err := identity.FromSerializable(subjectIDSeed{
		RequestHash: req.Signature.ContentHash,
		OwnerPublic: mc.Public,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSubjectSignatureFailed, err)
	}
	owner := mc.Identifier()

	subjectData := &SubjectData{
		SubjectID:         subjectID,
		Owner:             owner,
		GovernanceID:      req.Request.GovernanceID,
		GovernanceVersion: governanceVersion,
		SchemaID:          req.Request.SchemaID,
		Namespace:         req.Request.Namespace,
		Sn:                0,
		Properties:        req.Request.Payload.Body,
	}
	stateHash, err := identity.FromSerializable(subjectData)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSubjectSignatureFailed, err)
	}

	ec := EventContent{
		SubjectID:    subjectID,
		EventRequest: req,
		Sn:           0,
		PreviousHash: identity.Digest{},
		StateHash:    stateHash,
		Metadata: EventMetadata{
			Namespace:         req.Request.Namespace,
			GovernanceID:      req.Request.GovernanceID,
			GovernanceVersion: governanceVersion,
			SchemaID:          req.Request.SchemaID,
			Owner:             owner,
		},
		Approved: approved,
	}
	contentHash, err := identity.FromSerializable(ec)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSubjectSignatureFailed, err)
	}
	sig := identity.Sign(mc, contentHash, req.Timestamp)

	subject := &Subject{
		Keys:        mc,
		SubjectData: subjectData,
		LedgerState: LedgerState{},
	}
	event := &Event{EventContent: ec, Signature: sig}
	return subject, event, nil
}
