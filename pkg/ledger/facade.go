// Package ledger is the public facade over pkg/ledgerstore and
// pkg/eventsourcing: the set of synchronous operations spec.md §4.G and §6
// expose to external collaborators (networking/RPC transport, the
// consensus/voting protocol that produces approvals), plus the two
// request-lifecycle conveniences spec.md §2's control-flow paragraph
// implies.
package ledger

import (
	"fmt"

	"github.com/cometbft/cometbft/libs/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JavierDuqueMelguizo/taple-core/pkg/eventsourcing"
	"github.com/JavierDuqueMelguizo/taple-core/pkg/identity"
	"github.com/JavierDuqueMelguizo/taple-core/pkg/ledgerstore"
)

// Facade is the ledger's single entry point for external collaborators. All
// operations are synchronous and may block on the backend; read failures
// other than not-found and write failures are fatal (spec.md §7), handled
// inside *ledgerstore.Store.
type Facade struct {
	store   *ledgerstore.Store
	logger  log.Logger
	metrics *metrics
}

type metrics struct {
	requestsSubmitted *prometheus.CounterVec
	eventsApplied     prometheus.Counter
	requestsRejected  *prometheus.CounterVec
}

// New builds a Facade over store. reg may be nil, in which case metrics are
// created but never registered (useful in tests that don't care about
// scraping).
func New(store *ledgerstore.Store, logger log.Logger, reg prometheus.Registerer) *Facade {
	m := &metrics{
		requestsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_requests_submitted_total",
			Help: "Number of EventRequests accepted by SubmitCreateRequest/SubmitStateRequest, by request kind.",
		}, []string{"kind"}),
		eventsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_events_applied_total",
			Help: "Number of events consolidated via ApplyEventSourcing.",
		}),
		requestsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_requests_rejected_total",
			Help: "Number of EventRequests rejected during signature or schema validation, by reason.",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.requestsSubmitted, m.eventsApplied, m.requestsRejected)
	}
	return &Facade{store: store, logger: logger, metrics: m}
}

func (f *Facade) GetControllerID() (string, bool, error) { return f.store.GetControllerID() }
func (f *Facade) SetControllerID(id string) error         { return f.store.SetControllerID(id) }

func (f *Facade) GetEvent(sid identity.Digest, sn uint64) (*eventsourcing.Event, error) {
	return f.store.GetEvent(sid, sn)
}

func (f *Facade) GetEventsByRange(sid identity.Digest, from *string, quantity int) ([]eventsourcing.Event, error) {
	return f.store.GetEventsByRange(sid, from, quantity)
}

func (f *Facade) SetEvent(sid identity.Digest, ev *eventsourcing.Event) error {
	return f.store.SetEvent(sid, ev)
}

func (f *Facade) GetSignatures(sid identity.Digest, sn uint64) (map[identity.SignatureKey]identity.Signature, bool, error) {
	return f.store.GetSignatures(sid, sn)
}

func (f *Facade) SetSignatures(sid identity.Digest, sn uint64, sigs map[identity.SignatureKey]identity.Signature) error {
	return f.store.SetSignatures(sid, sn, sigs)
}

func (f *Facade) GetSubject(sid identity.Digest) (*eventsourcing.Subject, error) {
	return f.store.GetSubject(sid)
}

func (f *Facade) SetSubject(sid identity.Digest, sub *eventsourcing.Subject) error {
	return f.store.SetSubject(sid, sub)
}

func (f *Facade) ApplyEventSourcing(ec eventsourcing.EventContent, schema interface{}) error {
	if err := f.store.ApplyEventSourcing(ec, schema); err != nil {
		return err
	}
	f.metrics.eventsApplied.Inc()
	return nil
}

func (f *Facade) GetAllHeads() (map[identity.Digest]eventsourcing.LedgerState, error) {
	return f.store.GetAllHeads()
}

func (f *Facade) SetNegociatingTrue(sid identity.Digest) error {
	return f.store.SetNegociatingTrue(sid)
}

func (f *Facade) GetAllSubjects() ([]eventsourcing.Subject, error) { return f.store.GetAllSubjects() }
func (f *Facade) GetAllRequests() ([]eventsourcing.EventRequest, error) {
	return f.store.GetAllRequests()
}

func (f *Facade) GetRequest(sid, rid identity.Digest) (*eventsourcing.EventRequest, error) {
	return f.store.GetRequest(sid, rid)
}

func (f *Facade) SetRequest(sid identity.Digest, req *eventsourcing.EventRequest) error {
	return f.store.SetRequest(sid, req)
}

func (f *Facade) DelRequest(sid, rid identity.Digest) (*eventsourcing.EventRequest, error) {
	return f.store.DelRequest(sid, rid)
}

// SubmitCreateRequest runs the control flow spec.md §2 describes for a
// Create request: check_signatures, check_against_schema, construct the
// genesis subject and event, then persist both.
func (f *Facade) SubmitCreateRequest(req eventsourcing.EventRequest, governanceVersion uint64, schema interface{}, approved bool) (*eventsourcing.Subject, *eventsourcing.Event, error) {
	if err := eventsourcing.CheckSignatures(req); err != nil {
		f.metrics.requestsRejected.WithLabelValues("signature").Inc()
		return nil, nil, err
	}
	subject, event, err := eventsourcing.CreateSubjectFromRequest(req, governanceVersion, schema, approved)
	if err != nil {
		f.metrics.requestsRejected.WithLabelValues("schema").Inc()
		return nil, nil, err
	}
	sid := subject.SubjectData.SubjectID
	if err := f.store.SetSubject(sid, subject); err != nil {
		return nil, nil, err
	}
	if err := f.store.SetEvent(sid, event); err != nil {
		return nil, nil, err
	}
	f.metrics.requestsSubmitted.WithLabelValues("create").Inc()
	f.logger.Info("subject created", "subject_id", sid.String())
	return subject, event, nil
}

// SubmitStateRequest runs the control flow spec.md §2 describes for a State
// request: check_signatures, check_against_schema against the subject's
// current state, chain the next event off prevHash, then persist the event
// (the caller consolidates it later via ApplyEventSourcing once quorum is
// reached — spec.md's single-event-slot state machine, §4.F).
func (f *Facade) SubmitStateRequest(req eventsourcing.EventRequest, prevHash identity.Digest, governanceVersion uint64, schema interface{}, approved bool) (*eventsourcing.Event, error) {
	if err := eventsourcing.CheckSignatures(req); err != nil {
		f.metrics.requestsRejected.WithLabelValues("signature").Inc()
		return nil, err
	}
	sid := req.Request.SubjectID
	subject, err := f.store.GetSubject(sid)
	if err != nil {
		return nil, err
	}
	if subject == nil {
		f.metrics.requestsRejected.WithLabelValues("subject_not_found").Inc()
		return nil, eventsourcing.ErrSubjectNotFound
	}
	// GetEventFromStateRequest applies the payload speculatively and
	// validates the result against schema itself (spec.md §4.F); a
	// separate check_against_schema pre-check would just redo that work.
	event, err := eventsourcing.GetEventFromStateRequest(req, subject, prevHash, governanceVersion, schema, approved)
	if err != nil {
		f.metrics.requestsRejected.WithLabelValues("schema").Inc()
		return nil, err
	}
	if err := f.store.SetEvent(sid, event); err != nil {
		return nil, err
	}
	f.metrics.requestsSubmitted.WithLabelValues("state").Inc()
	f.logger.Info("state event chained", "subject_id", sid.String(), "sn", fmt.Sprintf("%d", event.EventContent.Sn))
	return event, nil
}
