package ledger_test

import (
	"testing"

	"github.com/cometbft/cometbft/libs/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JavierDuqueMelguizo/taple-core/pkg/backend/cometbftdb"
	"github.com/JavierDuqueMelguizo/taple-core/pkg/eventsourcing"
	"github.com/JavierDuqueMelguizo/taple-core/pkg/identity"
	"github.com/JavierDuqueMelguizo/taple-core/pkg/ledger"
	"github.com/JavierDuqueMelguizo/taple-core/pkg/ledgerstore"
)

var testSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"value"},
	"properties": map[string]interface{}{
		"value": map[string]interface{}{"type": "integer"},
	},
}

func newFacade(t *testing.T) *ledger.Facade {
	t.Helper()
	b := cometbftdb.OpenMemory()
	t.Cleanup(func() { _ = b.Close() })
	store, err := ledgerstore.New(b, log.NewNopLogger())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return ledger.New(store, log.NewNopLogger(), prometheus.NewRegistry())
}

func signedCreateRequest(t *testing.T, body string, timestamp int64) eventsourcing.EventRequest {
	t.Helper()
	leader, err := identity.NewEd25519()
	if err != nil {
		t.Fatalf("generate leader key: %v", err)
	}
	reqType := eventsourcing.EventRequestType{
		Kind:         eventsourcing.RequestCreate,
		GovernanceID: "governance-0",
		SchemaID:     "test-schema",
		Namespace:    "ns",
		Payload:      eventsourcing.RequestPayload{Kind: eventsourcing.PayloadJSON, Body: body},
	}
	req := eventsourcing.EventRequest{Request: reqType, Timestamp: timestamp}
	h, err := req.Hash()
	if err != nil {
		t.Fatalf("hash request: %v", err)
	}
	req.Signature = identity.Sign(leader, h, timestamp)
	return req
}

func TestSubmitCreateRequestPersistsSubjectAndEvent(t *testing.T) {
	f := newFacade(t)
	req := signedCreateRequest(t, `{"value":1}`, 100)

	subject, event, err := f.SubmitCreateRequest(req, 0, testSchema, true)
	if err != nil {
		t.Fatalf("submit create request: %v", err)
	}

	sid := subject.SubjectData.SubjectID
	gotSubject, err := f.GetSubject(sid)
	if err != nil {
		t.Fatalf("get subject: %v", err)
	}
	if gotSubject == nil {
		t.Fatalf("expected subject to be persisted")
	}
	gotEvent, err := f.GetEvent(sid, 0)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if gotEvent == nil || gotEvent.EventContent.Sn != event.EventContent.Sn {
		t.Fatalf("expected genesis event to be persisted")
	}
}

func TestSubmitCreateRequestRejectsBadSignature(t *testing.T) {
	f := newFacade(t)
	req := signedCreateRequest(t, `{"value":1}`, 100)
	req.Signature.Value[0] ^= 0xFF

	if _, _, err := f.SubmitCreateRequest(req, 0, testSchema, true); err == nil {
		t.Fatalf("expected tampered signature to be rejected")
	}
}

func TestSubmitStateRequestChainsOntoExistingSubject(t *testing.T) {
	f := newFacade(t)
	createReq := signedCreateRequest(t, `{"value":1}`, 100)
	subject, genesis, err := f.SubmitCreateRequest(createReq, 0, testSchema, true)
	if err != nil {
		t.Fatalf("submit create request: %v", err)
	}

	stateReqType := eventsourcing.EventRequestType{
		Kind:      eventsourcing.RequestState,
		SubjectID: subject.SubjectData.SubjectID,
		Payload:   eventsourcing.RequestPayload{Kind: eventsourcing.PayloadJSON, Body: `{"value":2}`},
	}
	stateReq := eventsourcing.EventRequest{Request: stateReqType, Timestamp: 101}
	h, err := stateReq.Hash()
	if err != nil {
		t.Fatalf("hash state request: %v", err)
	}
	stateReq.Signature = identity.Sign(subject.Keys, h, 101)

	prevHash, err := identity.FromSerializable(genesis.EventContent)
	if err != nil {
		t.Fatalf("hash genesis content: %v", err)
	}

	event, err := f.SubmitStateRequest(stateReq, prevHash, 0, testSchema, true)
	if err != nil {
		t.Fatalf("submit state request: %v", err)
	}
	if event.EventContent.Sn != 1 {
		t.Fatalf("expected chained event sn 1, got %d", event.EventContent.Sn)
	}

	if err := f.ApplyEventSourcing(event.EventContent, testSchema); err != nil {
		t.Fatalf("apply event sourcing: %v", err)
	}
	got, err := f.GetSubject(subject.SubjectData.SubjectID)
	if err != nil {
		t.Fatalf("get subject: %v", err)
	}
	if got.SubjectData.Sn != 1 {
		t.Fatalf("expected subject sn 1 after consolidation, got %d", got.SubjectData.Sn)
	}
}

func TestSubmitStateRequestRejectsUnknownSubject(t *testing.T) {
	f := newFacade(t)
	ghost, _ := identity.FromSerializable("ghost-subject")
	reqType := eventsourcing.EventRequestType{
		Kind:      eventsourcing.RequestState,
		SubjectID: ghost,
		Payload:   eventsourcing.RequestPayload{Kind: eventsourcing.PayloadJSON, Body: `{"value":2}`},
	}
	leader, err := identity.NewEd25519()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	req := eventsourcing.EventRequest{Request: reqType, Timestamp: 100}
	h, err := req.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	req.Signature = identity.Sign(leader, h, 100)

	if _, err := f.SubmitStateRequest(req, identity.Digest{}, 0, testSchema, true); err != eventsourcing.ErrSubjectNotFound {
		t.Fatalf("expected ErrSubjectNotFound, got %v", err)
	}
}
