// Command ledgerd is the demo collaborator that wires the backend, the
// partitioned store, the event-sourcing engine, and the ledger facade
// together (components A through G) and drives one create request and one
// state request through them end to end. It does not serve any network
// protocol: networking/RPC transport and the consensus/voting protocol that
// produces approvals are out of scope, left to whatever collaborator embeds
// pkg/ledger.
package main

import (
	"flag"
	"fmt"
	"os"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JavierDuqueMelguizo/taple-core/pkg/backend/cometbftdb"
	"github.com/JavierDuqueMelguizo/taple-core/pkg/config"
	"github.com/JavierDuqueMelguizo/taple-core/pkg/eventsourcing"
	"github.com/JavierDuqueMelguizo/taple-core/pkg/identity"
	"github.com/JavierDuqueMelguizo/taple-core/pkg/ledger"
	"github.com/JavierDuqueMelguizo/taple-core/pkg/ledgerstore"
)

var demoSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"value"},
	"properties": map[string]interface{}{
		"value": map[string]interface{}{"type": "integer"},
	},
}

func main() {
	configPath := flag.String("config", "", "path to ledgerd YAML config (optional)")
	flag.Parse()

	runID := uuid.New().String()
	logger := buildLogger().With("run_id", runID)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Error("failed to load config", "err", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("ledgerd exited with error", "err", err)
		os.Exit(1)
	}
}

func buildLogger() cmtlog.Logger {
	return cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout))
}

func run(cfg *config.LedgerConfig, logger cmtlog.Logger) error {
	backend, err := cometbftdb.OpenGoLevelDB(cfg.Storage.Name, cfg.Storage.Dir)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	defer backend.Close()

	store, err := ledgerstore.New(backend, logger)
	if err != nil {
		return fmt.Errorf("open ledger store: %w", err)
	}
	if err := ledgerstore.ReconcileSignatureAggregates(store); err != nil {
		return fmt.Errorf("reconcile signature aggregates: %w", err)
	}

	var reg prometheus.Registerer
	if cfg.Metrics.Enabled {
		reg = prometheus.DefaultRegisterer
	}
	facade := ledger.New(store, logger, reg)

	logger.Info("ledgerd starting", "environment", cfg.Environment, "storage_dir", cfg.Storage.Dir)

	leader, err := identity.NewEd25519()
	if err != nil {
		return fmt.Errorf("generate demo leader key: %w", err)
	}

	createReq, err := buildCreateRequest(leader, cfg)
	if err != nil {
		return fmt.Errorf("build create request: %w", err)
	}

	subject, genesis, err := facade.SubmitCreateRequest(createReq, cfg.Genesis.GovernanceVersion, demoSchema, true)
	if err != nil {
		return fmt.Errorf("submit create request: %w", err)
	}
	sid := subject.SubjectData.SubjectID
	logger.Info("subject created", "subject_id", sid.String(), "owner", subject.SubjectData.Owner.String())

	prevHash, err := identity.FromSerializable(genesis.EventContent)
	if err != nil {
		return fmt.Errorf("hash genesis event content: %w", err)
	}

	stateReq, err := buildStateRequest(subject, sid)
	if err != nil {
		return fmt.Errorf("build state request: %w", err)
	}

	event, err := facade.SubmitStateRequest(stateReq, prevHash, cfg.Genesis.GovernanceVersion, demoSchema, true)
	if err != nil {
		return fmt.Errorf("submit state request: %w", err)
	}
	logger.Info("state event chained", "subject_id", sid.String(), "sn", event.EventContent.Sn)

	if err := facade.ApplyEventSourcing(event.EventContent, demoSchema); err != nil {
		return fmt.Errorf("apply event sourcing: %w", err)
	}

	consolidated, err := facade.GetSubject(sid)
	if err != nil {
		return fmt.Errorf("get consolidated subject: %w", err)
	}
	logger.Info("subject consolidated", "subject_id", sid.String(), "sn", consolidated.SubjectData.Sn,
		"properties", consolidated.SubjectData.Properties)

	return nil
}

func buildCreateRequest(leader *identity.KeyPair, cfg *config.LedgerConfig) (eventsourcing.EventRequest, error) {
	reqType := eventsourcing.EventRequestType{
		Kind:         eventsourcing.RequestCreate,
		GovernanceID: cfg.Genesis.GovernanceID,
		SchemaID:     cfg.Genesis.SchemaID,
		Namespace:    cfg.Genesis.Namespace,
		Payload:      eventsourcing.RequestPayload{Kind: eventsourcing.PayloadJSON, Body: `{"value":1}`},
	}
	req := eventsourcing.EventRequest{Request: reqType, Timestamp: 1}
	h, err := req.Hash()
	if err != nil {
		return req, err
	}
	req.Signature = identity.Sign(leader, h, req.Timestamp)
	return req, nil
}

func buildStateRequest(subject *eventsourcing.Subject, sid identity.Digest) (eventsourcing.EventRequest, error) {
	reqType := eventsourcing.EventRequestType{
		Kind:      eventsourcing.RequestState,
		SubjectID: sid,
		Payload:   eventsourcing.RequestPayload{Kind: eventsourcing.PayloadJSON, Body: `{"value":2}`},
	}
	req := eventsourcing.EventRequest{Request: reqType, Timestamp: 2}
	h, err := req.Hash()
	if err != nil {
		return req, err
	}
	req.Signature = identity.Sign(subject.Keys, h, req.Timestamp)
	return req, nil
}
