package eventsourcing

import "errors"

// Engine errors (spec.md §7's SubjectError variants), all recoverable by
// the caller.
var (
	ErrSchemaDoesNotCompile  = errors.New("eventsourcing: schema does not compile")
	ErrParsingJSONString     = errors.New("eventsourcing: could not parse json string")
	ErrSchemaValidationFailed = errors.New("eventsourcing: state fails schema validation")
	ErrInvalidUseOfJSONPatch = errors.New("eventsourcing: json patch used without existing subject state")
	ErrApplyingPatch         = errors.New("eventsourcing: could not apply json patch")
	ErrSubjectSignatureFailed = errors.New("eventsourcing: could not compute subject signature")
	ErrNotCreateEvent        = errors.New("eventsourcing: request is not a create request")
	ErrNotStateEvent         = errors.New("eventsourcing: request is not a state request")
	ErrNotOwnerOfSubject     = errors.New("eventsourcing: this node does not own the subject")
	ErrSubjectNotFound       = errors.New("eventsourcing: subject not found")
	ErrDeleteSignaturesFailed = errors.New("eventsourcing: could not delete signature aggregate")
)

// Crypto errors (spec.md §7's CryptoErrorEvent variants).
var (
	ErrEventRequestHashingError    = errors.New("eventsourcing: could not hash event request")
	ErrEventRequestHashingConflict = errors.New("eventsourcing: event request content hash mismatch")
	ErrRequestSignatureInvalid     = errors.New("eventsourcing: request signature invalid")
)
