package eventsourcing

import (
	"encoding/json"
	"fmt"

	"github.com/JavierDuqueMelguizo/taple-core/pkg/governance"
	"github.com/JavierDuqueMelguizo/taple-core/pkg/identity"
)

// applyPayload computes the properties document that results from applying
// req's payload to current (current may be empty for a not-yet-existing
// subject, which only PayloadJSON can legally start from).
func applyPayload(payload RequestPayload, current string) (string, error) {
	switch payload.Kind {
	case PayloadJSON:
		return payload.Body, nil
	case PayloadJSONPatch:
		if current == "" {
			return "", ErrInvalidUseOfJSONPatch
		}
		patched, err := governance.ApplyPatch([]byte(current), []byte(payload.Body))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrApplyingPatch, err)
		}
		return string(patched), nil
	default:
		return "", fmt.Errorf("eventsourcing: unknown payload kind %d", payload.Kind)
	}
}

func validateJSON(doc string, schema interface{}) error {
	compiled, err := governance.Compile(schema)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaDoesNotCompile, err)
	}
	var v interface{}
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		return fmt.Errorf("%w: %v", ErrParsingJSONString, err)
	}
	if !compiled.Validate(v) {
		return ErrSchemaValidationFailed
	}
	return nil
}

// GetEventFromStateRequest validates req (which must be a State request
// targeting a subject this node owns) against schema, speculatively applies
// its payload to compute the resulting state hash, and returns the owner-
// signed Event chaining onto prevHash at subject.SubjectData.Sn+1.
//
// It does not mutate subject; the caller applies the returned event via
// Subject.Apply once it has been persisted.
func GetEventFromStateRequest(req EventRequest, subject *Subject, prevHash identity.Digest, governanceVersion uint64, schema interface{}, approved bool) (*Event, error) {
	if req.Request.Kind != RequestState {
		return nil, ErrNotStateEvent
	}
	if subject == nil || subject.Keys == nil || subject.SubjectData == nil {
		return nil, ErrNotOwnerOfSubject
	}

	newProps, err := applyPayload(req.Request.Payload, subject.SubjectData.Properties)
	if err != nil {
		return nil, err
	}
	if err := validateJSON(newProps, schema); err != nil {
		return nil, err
	}

	sn := subject.SubjectData.Sn + 1
	candidate := *subject.SubjectData
	candidate.Sn = sn
	candidate.Properties = newProps
	candidate.GovernanceVersion = governanceVersion
	stateHash, err := identity.FromSerializable(candidate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubjectSignatureFailed, err)
	}

	ec := EventContent{
		SubjectID:    subject.SubjectData.SubjectID,
		EventRequest: req,
		Sn:           sn,
		PreviousHash: prevHash,
		StateHash:    stateHash,
		Metadata: EventMetadata{
			Namespace:         subject.SubjectData.Namespace,
			GovernanceID:      subject.SubjectData.GovernanceID,
			GovernanceVersion: governanceVersion,
			SchemaID:          subject.SubjectData.SchemaID,
			Owner:             subject.SubjectData.Owner,
		},
		Approved: approved,
	}
	contentHash, err := identity.FromSerializable(ec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubjectSignatureFailed, err)
	}
	sig := identity.Sign(subject.Keys, contentHash, req.Timestamp)
	return &Event{EventContent: ec, Signature: sig}, nil
}

// Apply mutates the subject to reflect a consolidated event's payload:
// replacing properties (PayloadJSON) or patching them (PayloadJSONPatch),
// validating the resulting document against schema, and bumping
// SubjectData.Sn. It is the caller's responsibility to have already
// persisted ec's Event before calling Apply.
func (s *Subject) Apply(ec EventContent, schema interface{}) error {
	if s.SubjectData == nil {
		return ErrSubjectNotFound
	}
	newProps, err := applyPayload(ec.EventRequest.Request.Payload, s.SubjectData.Properties)
	if err != nil {
		return err
	}
	if err := validateJSON(newProps, schema); err != nil {
		return err
	}
	s.SubjectData.Properties = newProps
	s.SubjectData.Sn = ec.Sn
	s.SubjectData.GovernanceVersion = ec.Metadata.GovernanceVersion
	return nil
}
