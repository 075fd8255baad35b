// Package eventsourcing implements request validation and the subject/event
// state machine: turning a signed EventRequest into a new Subject (for a
// Create request) or a chained Event (for a State request), and applying a
// consolidated event back onto its subject's projected state.
package eventsourcing

import (
	"encoding/json"

	"github.com/JavierDuqueMelguizo/taple-core/pkg/identity"
)

// ApprovalType is the verdict carried by an ApprovalResponse.
type ApprovalType int

const (
	Accept ApprovalType = iota
	Reject
)

// ApprovalResponse is one approver's signed verdict on a pending
// EventRequest. Identity within an approval set is by Signer only — a
// signer may have at most one live approval per request.
type ApprovalResponse struct {
	Signer          identity.KeyIdentifier
	EventRequestHash identity.Digest
	ApprovalType    ApprovalType
	ExpectedSn      uint64
	Signature       []byte
}

// approvalHashed is the payload an ApprovalResponse's Signature is computed over.
type approvalHashed struct {
	EventRequestHash identity.Digest
	ApprovalType     ApprovalType
	ExpectedSn       uint64
}

// RequestPayloadKind tags which variant a RequestPayload holds.
type RequestPayloadKind int

const (
	PayloadJSON RequestPayloadKind = iota
	PayloadJSONPatch
)

// RequestPayload is the body of a request: either a full JSON document
// replacing subject state, or a JSON Patch (RFC 6902) document describing
// edits to it.
type RequestPayload struct {
	Kind RequestPayloadKind
	Body string
}

// EventRequestKind tags which variant an EventRequestType holds.
type EventRequestKind int

const (
	RequestCreate EventRequestKind = iota
	RequestState
)

// EventRequestType is the tagged union of the two request shapes a client
// can submit: Create (bring a new subject into existence) or State (advance
// an existing subject by one event).
type EventRequestType struct {
	Kind EventRequestKind

	// Create fields.
	GovernanceID string
	SchemaID     string
	Namespace    string

	// State fields.
	SubjectID identity.Digest

	// Shared.
	Payload RequestPayload
}

// requestHashed is the payload an EventRequest's Signature is computed over:
// (request, timestamp), mirroring the original's tuple hash.
type requestHashed struct {
	Request   EventRequestType
	Timestamp int64
}

// EventRequest is a client-submitted change proposal: a request body, a
// leader signature over it, and the approval set collected so far.
//
// Invariant: Signature.ContentHash == Digest.FromSerializable((Request,
// Timestamp)); every approval's EventRequestHash equals that same hash.
type EventRequest struct {
	Request   EventRequestType
	Timestamp int64
	Signature identity.Signature

	// Approvals holds at most one ApprovalResponse per Signer. Stored as a
	// slice (not a map) so it round-trips through borsh's canonical
	// encoding for content hashing; AddApproval enforces the one-per-signer
	// identity on insert.
	Approvals []ApprovalResponse
}

// Hash returns the content hash this request's Signature and every
// Approval's EventRequestHash must equal.
func (r EventRequest) Hash() (identity.Digest, error) {
	return identity.FromSerializable(requestHashed{Request: r.Request, Timestamp: r.Timestamp})
}

// AddApproval inserts a, replacing any existing approval from the same
// signer (identity by Signer only, per spec.md §3's ApprovalResponse
// invariant).
func (r *EventRequest) AddApproval(a ApprovalResponse) {
	for i, existing := range r.Approvals {
		if existing.Signer.String() == a.Signer.String() {
			r.Approvals[i] = a
			return
		}
	}
	r.Approvals = append(r.Approvals, a)
}

// RequestData is a denormalized view of a pending request, for listing and
// inspection without re-deriving the request hash. Carried over from the
// original's event_request.rs; dropped by the distilled spec but reinstated
// here since GetAllRequests-style callers want it.
type RequestData struct {
	Request   EventRequestType
	RequestID string
	Timestamp int64
	SubjectID *string
	Sn        *uint64
}

// ToRequestData derives a RequestData view of req. sn is the subject's
// current sn at the time of the call (nil if the subject doesn't exist yet,
// i.e. req is a Create request).
func ToRequestData(req EventRequest, sn *uint64) (RequestData, error) {
	h, err := req.Hash()
	if err != nil {
		return RequestData{}, err
	}
	rd := RequestData{
		Request:   req.Request,
		RequestID: h.String(),
		Timestamp: req.Timestamp,
		Sn:        sn,
	}
	if req.Request.Kind == RequestState {
		sid := req.Request.SubjectID.String()
		rd.SubjectID = &sid
	}
	return rd, nil
}

// EventMetadata is the governance context an event was produced under.
type EventMetadata struct {
	Namespace         string
	GovernanceID      string
	GovernanceVersion uint64
	SchemaID          string
	Owner             identity.KeyIdentifier
}

// EventContent is the unsigned body of an Event: the chain position (Sn,
// PreviousHash), the resulting state hash, and the governance metadata the
// event was produced under.
type EventContent struct {
	SubjectID    identity.Digest
	EventRequest EventRequest
	Sn           uint64
	PreviousHash identity.Digest
	StateHash    identity.Digest
	Metadata     EventMetadata
	Approved     bool
}

// Event is a signed, chained EventContent. Signature.ContentHash must equal
// Digest.FromSerializable(EventContent), and Signature.Signer must equal the
// owning subject's owner public key.
type Event struct {
	EventContent EventContent
	Signature    identity.Signature
}

// DefaultEvent returns the placeholder event used in tests: empty content
// with default hashes, at Sn 1. Its Sn is 1 (not 0): the original stores it
// under "1" in its fixtures, distinct from a subject's true genesis event at
// Sn 0, so a zero value cannot stand in for it. Nothing returns it
// implicitly: GetEvent on an empty slot returns nil.
func DefaultEvent() Event {
	return Event{
		EventContent: EventContent{
			Sn:           1,
			PreviousHash: identity.Digest{},
			StateHash:    identity.Digest{},
		},
	}
}

// LedgerState is the per-subject head-tracking record: the highest
// consolidated sn, the sn currently being negotiated (if any), and whether
// this node is actively collecting signatures for the next sn.
type LedgerState struct {
	HeadSn          uint64
	HeadCandidateSn uint64
	NegociatingNext bool
}

// BeginNegotiation flips NegociatingNext, marking that this node is
// collecting signatures for the next sn. It is a one-line flag flip, not a
// distinct state-machine transition — mirrors the original's
// set_negociating_true.
func (ls *LedgerState) BeginNegotiation() {
	ls.NegociatingNext = true
}

// SubjectData is a subject's projected application state.
type SubjectData struct {
	SubjectID         identity.Digest
	Owner             identity.KeyIdentifier
	GovernanceID      string
	GovernanceVersion uint64
	SchemaID          string
	Namespace         string
	Sn                uint64
	Properties        string // JSON document
}

// Subject is an append-only event stream's current projection: its owning
// keypair (present only if this node owns the subject), its projected data
// (present once a Create event has been applied), and its ledger state.
type Subject struct {
	Keys        *identity.KeyPair
	SubjectData *SubjectData
	LedgerState LedgerState
}

// properties unmarshals SubjectData.Properties into a generic JSON value,
// for schema validation and JSON Patch application.
func (sd *SubjectData) properties() (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(sd.Properties), &v); err != nil {
		return nil, err
	}
	return v, nil
}
