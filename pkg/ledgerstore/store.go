// Package ledgerstore is the typed repository layer over pkg/partstore: five
// collections (subjects, events, requests, per-event signature aggregates,
// controller identity) addressed the way spec.md §4.C lays them out, with
// "entry not found maps to a recoverable nil/false, anything else is fatal"
// read-path semantics.
package ledgerstore

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/cometbft/cometbft/libs/log"

	"github.com/JavierDuqueMelguizo/taple-core/pkg/backend"
	"github.com/JavierDuqueMelguizo/taple-core/pkg/eventsourcing"
	"github.com/JavierDuqueMelguizo/taple-core/pkg/identity"
	"github.com/JavierDuqueMelguizo/taple-core/pkg/partstore"
)

// Store is the typed repository over a single backend.Backend, exposing
// spec.md §4.C's five partitions as Go methods instead of raw key paths.
type Store struct {
	subjects     *partstore.Store[eventsourcing.Subject]
	events       *partstore.Store[eventsourcing.Event]
	signatures   *partstore.Store[[]identity.Signature]
	requests     *partstore.Store[eventsourcing.EventRequest]
	controllerID *partstore.Store[string]

	logger log.Logger
	fatal  func(format string, args ...interface{})
}

// New builds a Store over b, rooting its five partitions at the top-level
// names spec.md §6 lists ("subject", "event", "signature", "request",
// "controller-id").
func New(b backend.Backend, logger log.Logger) (*Store, error) {
	subjects, err := partstore.New[eventsourcing.Subject](b, "subject")
	if err != nil {
		return nil, err
	}
	events, err := partstore.New[eventsourcing.Event](b, "event")
	if err != nil {
		return nil, err
	}
	signatures, err := partstore.New[[]identity.Signature](b, "signature")
	if err != nil {
		return nil, err
	}
	requests, err := partstore.New[eventsourcing.EventRequest](b, "request")
	if err != nil {
		return nil, err
	}
	controllerID, err := partstore.New[string](b, "controller-id")
	if err != nil {
		return nil, err
	}

	s := &Store{
		subjects:     subjects,
		events:       events,
		signatures:   signatures,
		requests:     requests,
		controllerID: controllerID,
		logger:       logger,
	}
	s.fatal = s.defaultFatal
	return s, nil
}

func (s *Store) defaultFatal(format string, args ...interface{}) {
	s.logger.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}

// GetSubject returns the subject stored at id, or nil if absent. Any
// backend error other than not-found is fatal.
func (s *Store) GetSubject(id identity.Digest) (*eventsourcing.Subject, error) {
	v, err := s.subjects.Get(id.String())
	if err != nil {
		if err == partstore.ErrEntryNotFound {
			return nil, nil
		}
		s.fatal("ledgerstore: get subject %s: %v", id.String(), err)
		return nil, err
	}
	return &v, nil
}

// SetSubject overwrites the subject stored at id.
func (s *Store) SetSubject(id identity.Digest, sub *eventsourcing.Subject) error {
	if err := s.subjects.Put(id.String(), *sub); err != nil {
		s.fatal("ledgerstore: set subject %s: %v", id.String(), err)
		return err
	}
	return nil
}

func (s *Store) eventsOf(sid identity.Digest) (*partstore.Store[eventsourcing.Event], error) {
	return s.events.Partition(sid.String())
}

// GetEvent returns the event stored at (sid, sn), or nil if absent.
func (s *Store) GetEvent(sid identity.Digest, sn uint64) (*eventsourcing.Event, error) {
	p, err := s.eventsOf(sid)
	if err != nil {
		return nil, err
	}
	v, err := p.Get(strconv.FormatUint(sn, 10))
	if err != nil {
		if err == partstore.ErrEntryNotFound {
			return nil, nil
		}
		s.fatal("ledgerstore: get event sid=%s sn=%d: %v", sid.String(), sn, err)
		return nil, err
	}
	return &v, nil
}

// SetEvent overwrites the event stored at (sid, ev.EventContent.Sn).
func (s *Store) SetEvent(sid identity.Digest, ev *eventsourcing.Event) error {
	p, err := s.eventsOf(sid)
	if err != nil {
		return err
	}
	key := strconv.FormatUint(ev.EventContent.Sn, 10)
	if err := p.Put(key, *ev); err != nil {
		s.fatal("ledgerstore: set event sid=%s sn=%d: %v", sid.String(), ev.EventContent.Sn, err)
		return err
	}
	return nil
}

// GetEventsByRange returns events in iteration order, normalized per
// spec.md §4.B: from nil anchors at the beginning for a non-negative
// quantity, or at the end for a negative one; from non-nil anchors at that
// sn's decimal key regardless of sign.
func (s *Store) GetEventsByRange(sid identity.Digest, from *string, quantity int) ([]eventsourcing.Event, error) {
	p, err := s.eventsOf(sid)
	if err != nil {
		return nil, err
	}
	var cursor partstore.RangeCursor
	switch {
	case from != nil:
		cursor = partstore.AtKey(*from)
	case quantity < 0:
		cursor = partstore.AtEnding()
	default:
		cursor = partstore.AtBeginning()
	}
	entries, err := p.GetRange(cursor, quantity)
	if err != nil {
		s.fatal("ledgerstore: get events by range sid=%s: %v", sid.String(), err)
		return nil, err
	}
	out := make([]eventsourcing.Event, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return out, nil
}

func (s *Store) signaturesOf(sid identity.Digest) (*partstore.Store[[]identity.Signature], error) {
	return s.signatures.Partition(sid.String())
}

// GetSignatures returns the signature aggregate at (sid, sn) as a map keyed
// by identity.SignatureKey (signer, content hash, timestamp), and whether
// an aggregate exists at all.
func (s *Store) GetSignatures(sid identity.Digest, sn uint64) (map[identity.SignatureKey]identity.Signature, bool, error) {
	p, err := s.signaturesOf(sid)
	if err != nil {
		return nil, false, err
	}
	list, err := p.Get(strconv.FormatUint(sn, 10))
	if err != nil {
		if err == partstore.ErrEntryNotFound {
			return nil, false, nil
		}
		s.fatal("ledgerstore: get signatures sid=%s sn=%d: %v", sid.String(), sn, err)
		return nil, false, err
	}
	out := make(map[identity.SignatureKey]identity.Signature, len(list))
	for _, sig := range list {
		out[sig.Key()] = sig
	}
	return out, true, nil
}

// SetSignatures unions sigs into the existing aggregate at (sid, sn) and
// overwrites it. Identity within the aggregate is by full content (signer,
// content hash, timestamp), mirroring the original's HashSet<Signature>.
func (s *Store) SetSignatures(sid identity.Digest, sn uint64, sigs map[identity.SignatureKey]identity.Signature) error {
	p, err := s.signaturesOf(sid)
	if err != nil {
		return err
	}
	key := strconv.FormatUint(sn, 10)
	merged := map[identity.SignatureKey]identity.Signature{}
	existing, err := p.Get(key)
	if err != nil && err != partstore.ErrEntryNotFound {
		s.fatal("ledgerstore: set signatures sid=%s sn=%d: %v", sid.String(), sn, err)
		return err
	}
	for _, sig := range existing {
		merged[sig.Key()] = sig
	}
	for k, sig := range sigs {
		merged[k] = sig
	}
	out := make([]identity.Signature, 0, len(merged))
	for _, sig := range merged {
		out = append(out, sig)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key().ContentHash+out[i].Key().Signer < out[j].Key().ContentHash+out[j].Key().Signer
	})
	if err := p.Put(key, out); err != nil {
		s.fatal("ledgerstore: set signatures sid=%s sn=%d: %v", sid.String(), sn, err)
		return err
	}
	return nil
}

func (s *Store) requestsOf(sid identity.Digest) (*partstore.Store[eventsourcing.EventRequest], error) {
	return s.requests.Partition(sid.String())
}

// GetRequest returns the request stored at (sid, rid), or nil if absent.
func (s *Store) GetRequest(sid, rid identity.Digest) (*eventsourcing.EventRequest, error) {
	p, err := s.requestsOf(sid)
	if err != nil {
		return nil, err
	}
	v, err := p.Get(rid.String())
	if err != nil {
		if err == partstore.ErrEntryNotFound {
			return nil, nil
		}
		s.fatal("ledgerstore: get request sid=%s rid=%s: %v", sid.String(), rid.String(), err)
		return nil, err
	}
	return &v, nil
}

// SetRequest stores req under its own content hash, keyed by sid.
func (s *Store) SetRequest(sid identity.Digest, req *eventsourcing.EventRequest) error {
	rid, err := req.Hash()
	if err != nil {
		return err
	}
	p, err := s.requestsOf(sid)
	if err != nil {
		return err
	}
	if err := p.Put(rid.String(), *req); err != nil {
		s.fatal("ledgerstore: set request sid=%s rid=%s: %v", sid.String(), rid.String(), err)
		return err
	}
	return nil
}

// DelRequest removes the request at (sid, rid), returning it if it was
// present.
func (s *Store) DelRequest(sid, rid identity.Digest) (*eventsourcing.EventRequest, error) {
	p, err := s.requestsOf(sid)
	if err != nil {
		return nil, err
	}
	v, existed, err := p.Del(rid.String())
	if err != nil {
		s.fatal("ledgerstore: del request sid=%s rid=%s: %v", sid.String(), rid.String(), err)
		return nil, err
	}
	if !existed {
		return nil, nil
	}
	return &v, nil
}

// GetControllerID returns this node's persisted controller id.
func (s *Store) GetControllerID() (string, bool, error) {
	v, err := s.controllerID.Get("")
	if err != nil {
		if err == partstore.ErrEntryNotFound {
			return "", false, nil
		}
		s.fatal("ledgerstore: get controller id: %v", err)
		return "", false, err
	}
	return v, true, nil
}

// SetControllerID overwrites this node's controller id.
func (s *Store) SetControllerID(id string) error {
	if err := s.controllerID.Put("", id); err != nil {
		s.fatal("ledgerstore: set controller id: %v", err)
		return err
	}
	return nil
}

// GetAllHeads returns every subject's ledger state, keyed by subject id.
func (s *Store) GetAllHeads() (map[identity.Digest]eventsourcing.LedgerState, error) {
	entries, err := s.subjects.GetAll()
	if err != nil {
		s.fatal("ledgerstore: get all heads: %v", err)
		return nil, err
	}
	out := make(map[identity.Digest]eventsourcing.LedgerState, len(entries))
	for _, e := range entries {
		id, err := identity.DigestFromString(e.Key)
		if err != nil {
			s.fatal("ledgerstore: corrupt subject id key %q: %v", e.Key, err)
			return nil, err
		}
		out[id] = e.Value.LedgerState
	}
	return out, nil
}

// GetAllSubjects returns every stored subject.
func (s *Store) GetAllSubjects() ([]eventsourcing.Subject, error) {
	entries, err := s.subjects.GetAll()
	if err != nil {
		s.fatal("ledgerstore: get all subjects: %v", err)
		return nil, err
	}
	out := make([]eventsourcing.Subject, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return out, nil
}

// GetAllRequests returns every pending request across every subject.
func (s *Store) GetAllRequests() ([]eventsourcing.EventRequest, error) {
	entries, err := s.requests.GetAll()
	if err != nil {
		s.fatal("ledgerstore: get all requests: %v", err)
		return nil, err
	}
	out := make([]eventsourcing.EventRequest, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return out, nil
}

// ApplyEventSourcing loads ec.SubjectID's subject (eventsourcing.ErrSubjectNotFound
// if absent), applies ec to it via Subject.Apply, persists the mutated
// subject, and deletes the signature aggregate at ec.Sn-1 — treating
// "already absent" as success, matching spec.md §4.C's GC contract. schema
// is the JSON Schema ec's payload was already validated against when the
// event was constructed (see pkg/ledger.Facade), threaded through here so
// Subject.Apply can re-derive the post-state without a second lookup.
func (s *Store) ApplyEventSourcing(ec eventsourcing.EventContent, schema interface{}) error {
	subj, err := s.GetSubject(ec.SubjectID)
	if err != nil {
		return err
	}
	if subj == nil {
		return eventsourcing.ErrSubjectNotFound
	}
	if err := subj.Apply(ec, schema); err != nil {
		return err
	}
	if err := s.SetSubject(ec.SubjectID, subj); err != nil {
		return err
	}
	if ec.Sn == 0 {
		return nil
	}
	p, err := s.signaturesOf(ec.SubjectID)
	if err != nil {
		return err
	}
	if _, _, err := p.Del(strconv.FormatUint(ec.Sn-1, 10)); err != nil {
		s.fatal("ledgerstore: gc signature aggregate sid=%s sn=%d: %v", ec.SubjectID.String(), ec.Sn-1, err)
		return err
	}
	return nil
}

// SetNegociatingTrue flips the NegociatingNext flag on the subject at sid,
// returning eventsourcing.ErrSubjectNotFound if it does not exist.
func (s *Store) SetNegociatingTrue(sid identity.Digest) error {
	subj, err := s.GetSubject(sid)
	if err != nil {
		return err
	}
	if subj == nil {
		return eventsourcing.ErrSubjectNotFound
	}
	subj.LedgerState.BeginNegotiation()
	return s.SetSubject(sid, subj)
}

// ReconcileSignatureAggregates sweeps every subject's signature partition on
// startup, deleting any aggregate at sn <= the subject's consolidated sn.
// spec.md §5/§9 calls this out: ApplyEventSourcing's subject-write and
// aggregate-delete are not atomic, so a crash between them can leave a
// stale, GC-eligible aggregate behind. This makes that cleanup explicit
// rather than leaving it to accumulate as observable garbage forever.
func ReconcileSignatureAggregates(s *Store) error {
	subjects, err := s.GetAllSubjects()
	if err != nil {
		return err
	}
	for _, subj := range subjects {
		if subj.SubjectData == nil {
			continue
		}
		sid := subj.SubjectData.SubjectID
		p, err := s.signaturesOf(sid)
		if err != nil {
			return err
		}
		entries, err := p.GetAll()
		if err != nil {
			s.fatal("ledgerstore: reconcile signatures sid=%s: %v", sid.String(), err)
			return err
		}
		for _, e := range entries {
			sn, err := strconv.ParseUint(e.Key, 10, 64)
			if err != nil {
				continue
			}
			if sn > subj.SubjectData.Sn {
				continue
			}
			if _, _, err := p.Del(e.Key); err != nil {
				s.fatal("ledgerstore: reconcile delete sid=%s sn=%d: %v", sid.String(), sn, err)
				return err
			}
		}
	}
	return nil
}
