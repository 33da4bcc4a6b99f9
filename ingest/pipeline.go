package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lippelima5/repolead-sub000/core"
	"github.com/lippelima5/repolead-sub000/identity"
	"github.com/lippelima5/repolead-sub000/normalize"
	"github.com/lippelima5/repolead-sub000/webhooks"
)

// Resolver turns a normalized intake into a canonical lead.
type Resolver interface {
	Resolve(ctx context.Context, in identity.Input) (core.Resolution, error)
}

// Dispatcher fans a resolved domain event out to delivery rows.
type Dispatcher interface {
	Dispatch(ctx context.Context, in webhooks.DispatchInput) ([]core.Delivery, error)
}

// Result is the outcome of one intake request. Duplicate submissions carry
// the previously recorded ingestion and no resolution.
type Result struct {
	Ingestion  core.Ingestion
	Resolution core.Resolution
	Deliveries []core.Delivery
	Duplicate  bool
}

type task struct {
	ingestion core.Ingestion
	request   core.IngestRequest
}

// Pipeline runs the intake flow: record the ingestion, normalize the
// payload, resolve identities, fan out webhook deliveries. Processing runs
// either inline (Process) or on a bounded worker pool fed through Submit;
// completion is observable through the ingestion status.
type Pipeline struct {
	Ingestions core.IngestionStore
	Resolver   Resolver
	Dispatcher Dispatcher
	Ledger     core.IdempotencyLedger
	Config     core.IngestConfig
	Observer   core.Observer

	Now   func() time.Time
	NewID func() string

	startOnce sync.Once
	queue     chan task
	workers   sync.WaitGroup
}

func NewPipeline(cfg core.Config, stores core.StoreProvider) *Pipeline {
	pipeline := &Pipeline{
		Config: cfg.Ingest,
		Ledger: core.NewMemoryIdempotencyLedger(cfg.Ingest.IdempotencyTTL),
		Now: func() time.Time {
			return time.Now().UTC()
		},
		NewID: uuid.NewString,
	}
	if stores != nil {
		pipeline.Ingestions = stores.IngestionStore()
		pipeline.Resolver = identity.NewResolver(stores)
		pipeline.Dispatcher = webhooks.NewDispatcher(stores)
	}
	return pipeline
}

// Process runs the whole flow inline and returns once the ingestion reached
// a terminal status.
func (p *Pipeline) Process(ctx context.Context, request core.IngestRequest) (Result, error) {
	if err := p.ready(); err != nil {
		return Result{}, err
	}
	if err := validateRequest(request); err != nil {
		return Result{}, err
	}
	startedAt := p.now()

	if duplicate, found, err := p.shortCircuitDuplicate(ctx, request); err != nil {
		return Result{}, err
	} else if found {
		p.Observer.Observe(ctx, startedAt, "ingest.process", nil, map[string]any{
			"workspace_id": request.WorkspaceID,
			"source_id":    request.SourceID,
			"ingestion_id": duplicate.Ingestion.ID,
			"duplicate":    true,
		})
		return duplicate, nil
	}

	ingestion, err := p.recordIngestion(ctx, request)
	if err != nil {
		return Result{}, err
	}

	result, err := p.processRecorded(ctx, ingestion, request)
	p.Observer.Observe(ctx, startedAt, "ingest.process", err, map[string]any{
		"workspace_id": request.WorkspaceID,
		"source_id":    request.SourceID,
		"ingestion_id": ingestion.ID,
		"outcome":      string(result.Resolution.Outcome),
	})
	return result, err
}

// Submit records the ingestion and hands processing to the worker pool. The
// returned ingestion is in pending status; callers watch the status field
// for completion. Submit fails when the queue is saturated rather than
// blocking the caller.
func (p *Pipeline) Submit(ctx context.Context, request core.IngestRequest) (core.Ingestion, error) {
	if err := p.ready(); err != nil {
		return core.Ingestion{}, err
	}
	if err := validateRequest(request); err != nil {
		return core.Ingestion{}, err
	}

	if duplicate, found, err := p.shortCircuitDuplicate(ctx, request); err != nil {
		return core.Ingestion{}, err
	} else if found {
		return duplicate.Ingestion, nil
	}

	ingestion, err := p.recordIngestion(ctx, request)
	if err != nil {
		return core.Ingestion{}, err
	}

	p.ensureStarted()
	select {
	case p.queue <- task{ingestion: ingestion, request: request}:
		return ingestion, nil
	default:
		if err := p.Ingestions.UpdateStatus(ctx, ingestion.ID, core.IngestionStatusFailed); err != nil {
			return core.Ingestion{}, fmt.Errorf("ingest: queue saturated and status update failed: %w", err)
		}
		return core.Ingestion{}, fmt.Errorf("ingest: queue is full")
	}
}

// Close drains the queue and waits for in-flight work to finish.
func (p *Pipeline) Close() {
	if p == nil {
		return
	}
	p.startOnce.Do(func() {})
	if p.queue != nil {
		close(p.queue)
		p.workers.Wait()
	}
}

func (p *Pipeline) ensureStarted() {
	p.startOnce.Do(func() {
		workerCount := p.Config.Workers
		if workerCount <= 0 {
			workerCount = 4
		}
		queueSize := p.Config.QueueSize
		if queueSize <= 0 {
			queueSize = 256
		}
		p.queue = make(chan task, queueSize)
		for i := 0; i < workerCount; i++ {
			p.workers.Add(1)
			go p.worker()
		}
	})
}

func (p *Pipeline) worker() {
	defer p.workers.Done()
	for queued := range p.queue {
		ctx := context.Background()
		startedAt := p.now()
		result, err := p.processRecorded(ctx, queued.ingestion, queued.request)
		p.Observer.Observe(ctx, startedAt, "ingest.process", err, map[string]any{
			"workspace_id": queued.request.WorkspaceID,
			"source_id":    queued.request.SourceID,
			"ingestion_id": queued.ingestion.ID,
			"outcome":      string(result.Resolution.Outcome),
		})
	}
}

// shortCircuitDuplicate suppresses retransmissions carrying the same
// idempotency key within one (workspace, source) pair. The process-local
// ledger covers the hot retry window; the ingestion store remains the
// durable record across restarts.
func (p *Pipeline) shortCircuitDuplicate(ctx context.Context, request core.IngestRequest) (Result, bool, error) {
	key := strings.TrimSpace(request.IdempotencyKey)
	if key == "" {
		return Result{}, false, nil
	}

	existing, found, err := p.Ingestions.FindByIdempotencyKey(ctx, request.WorkspaceID, request.SourceID, key)
	if err != nil {
		return Result{}, false, err
	}
	if found {
		return Result{Ingestion: existing, Duplicate: true}, true, nil
	}

	if p.Ledger != nil {
		claimed, err := p.Ledger.Claim(ctx, core.IdempotencyClaimKey(request.WorkspaceID, request.SourceID, key), p.Config.IdempotencyTTL)
		if err != nil {
			return Result{}, false, err
		}
		if !claimed {
			existing, found, err = p.Ingestions.FindByIdempotencyKey(ctx, request.WorkspaceID, request.SourceID, key)
			if err != nil {
				return Result{}, false, err
			}
			if found {
				return Result{Ingestion: existing, Duplicate: true}, true, nil
			}
			return Result{}, false, fmt.Errorf("ingest: idempotency key %q is already being processed", key)
		}
	}
	return Result{}, false, nil
}

func (p *Pipeline) recordIngestion(ctx context.Context, request core.IngestRequest) (core.Ingestion, error) {
	now := p.now()
	ingestionID := strings.TrimSpace(request.IngestionID)
	if ingestionID == "" {
		ingestionID = p.newID()
	}
	return p.Ingestions.Create(ctx, core.Ingestion{
		ID:             ingestionID,
		WorkspaceID:    request.WorkspaceID,
		SourceID:       request.SourceID,
		Payload:        request.Payload,
		IdempotencyKey: strings.TrimSpace(request.IdempotencyKey),
		Size:           payloadSize(request.Payload),
		Status:         core.IngestionStatusPending,
		ReceivedAt:     now,
		UpdatedAt:      now,
	})
}

func (p *Pipeline) processRecorded(ctx context.Context, ingestion core.Ingestion, request core.IngestRequest) (Result, error) {
	extraction := normalize.Extract(request.Payload, normalize.Config{
		MaxTags:        p.Config.MaxTags,
		MinPhoneDigits: p.Config.MinPhoneDigits,
	})

	resolution, err := p.Resolver.Resolve(ctx, identity.Input{
		WorkspaceID: request.WorkspaceID,
		SourceID:    request.SourceID,
		IngestionID: ingestion.ID,
		Identities:  extraction.Identities,
		Name:        extraction.Name,
		Email:       extraction.Email,
		Phone:       extraction.Phone,
		Tags:        extraction.Tags,
	})
	if err != nil {
		return Result{Ingestion: ingestion}, err
	}
	result := Result{Ingestion: ingestion, Resolution: resolution}

	eventType := resolution.EventTypeFor()
	if eventType == "" {
		return result, nil
	}
	deliveries, err := p.Dispatcher.Dispatch(ctx, webhooks.DispatchInput{
		WorkspaceID: request.WorkspaceID,
		LeadID:      resolution.Lead.ID,
		IngestionID: ingestion.ID,
		EventType:   eventType,
	})
	if err != nil {
		return result, err
	}
	result.Deliveries = deliveries
	return result, nil
}

func (p *Pipeline) ready() error {
	if p == nil || p.Ingestions == nil || p.Resolver == nil || p.Dispatcher == nil {
		return fmt.Errorf("ingest: pipeline is not configured")
	}
	return nil
}

func (p *Pipeline) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Pipeline) newID() string {
	if p != nil && p.NewID != nil {
		return p.NewID()
	}
	return uuid.NewString()
}

func validateRequest(request core.IngestRequest) error {
	if strings.TrimSpace(request.WorkspaceID) == "" {
		return fmt.Errorf("ingest: workspace id is required")
	}
	if strings.TrimSpace(request.SourceID) == "" {
		return fmt.Errorf("ingest: source id is required")
	}
	if request.Payload == nil {
		return fmt.Errorf("ingest: payload is required")
	}
	return nil
}

func payloadSize(payload map[string]any) int {
	if len(payload) == 0 {
		return 0
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return 0
	}
	return len(encoded)
}
