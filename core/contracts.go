package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// IngestRequest is what the (out-of-scope) gateway hands the core: an
// already-authorized workspace/source pair, the parsed payload and an
// optional idempotency key.
type IngestRequest struct {
	WorkspaceID    string
	SourceID       string
	IngestionID    string
	Payload        map[string]any
	IdempotencyKey string
}

type ResolveOutcome string

const (
	ResolveOutcomeLeadCreated   ResolveOutcome = "lead_created"
	ResolveOutcomeLeadUpdated   ResolveOutcome = "lead_updated"
	ResolveOutcomeNeedsIdentity ResolveOutcome = "needs_identity"
	ResolveOutcomeFailed        ResolveOutcome = "failed"
)

// Resolution is the merge engine's result for one ingestion.
type Resolution struct {
	Lead          Lead
	Outcome       ResolveOutcome
	MergedLeadIDs []string
}

// EventTypeFor maps a resolution outcome to the domain event type handed to
// the fan-out dispatcher. Outcomes that produce no domain event return "".
func (r Resolution) EventTypeFor() string {
	switch r.Outcome {
	case ResolveOutcomeLeadCreated:
		return EventTypeLeadCreated
	case ResolveOutcomeLeadUpdated:
		return EventTypeLeadUpdated
	default:
		return ""
	}
}

type DeliveryResult struct {
	DeliveryID string
	Success    bool
	Error      string
}

type ProcessStats struct {
	Processed int
	Results   []DeliveryResult
}

// DeliveryFilter narrows delivery listings and bulk replays.
type DeliveryFilter struct {
	WorkspaceID   string
	DestinationID string
	LeadID        string
	EventType     string
	Status        DeliveryStatus
}

type IngestionStore interface {
	Create(ctx context.Context, ingestion Ingestion) (Ingestion, error)
	Get(ctx context.Context, id string) (Ingestion, error)
	// FindByIdempotencyKey reports a prior ingestion for the same
	// (workspace, source, key), if any.
	FindByIdempotencyKey(ctx context.Context, workspaceID string, sourceID string, key string) (Ingestion, bool, error)
	UpdateStatus(ctx context.Context, id string, status IngestionStatus) error
}

type LeadStore interface {
	Create(ctx context.Context, lead Lead) (Lead, error)
	Get(ctx context.Context, id string) (Lead, error)
	GetMany(ctx context.Context, ids []string) ([]Lead, error)
	Update(ctx context.Context, lead Lead) (Lead, error)
	Delete(ctx context.Context, id string) error
}

type IdentityStore interface {
	// InsertOrGet atomically claims (workspace, type, normalized_value) for
	// the identity's lead. When another lead already owns the tuple the
	// existing row is returned with claimed=false; a uniqueness violation is
	// never surfaced as an error.
	InsertOrGet(ctx context.Context, identity LeadIdentity) (LeadIdentity, bool, error)
	Lookup(ctx context.Context, workspaceID string, identityType IdentityType, normalizedValue string) (LeadIdentity, bool, error)
	ListByLead(ctx context.Context, leadID string) ([]LeadIdentity, error)
	Update(ctx context.Context, identity LeadIdentity) (LeadIdentity, error)
	// Repoint moves every identity owned by fromLeadID to toLeadID. Rows
	// that would collide with an identity the target already owns are
	// deleted instead of failing the merge.
	Repoint(ctx context.Context, workspaceID string, fromLeadID string, toLeadID string) (moved int, dropped int, err error)
}

type LeadEventStore interface {
	Append(ctx context.Context, event LeadEvent) (LeadEvent, error)
	ListByLead(ctx context.Context, leadID string, limit int) ([]LeadEvent, error)
	RepointLead(ctx context.Context, fromLeadID string, toLeadID string) (int, error)
}

type DestinationStore interface {
	Get(ctx context.Context, id string) (Destination, error)
	ListEnabled(ctx context.Context, workspaceID string) ([]Destination, error)
}

type DeliveryStore interface {
	Create(ctx context.Context, delivery Delivery) (Delivery, error)
	Get(ctx context.Context, id string) (Delivery, error)
	Update(ctx context.Context, delivery Delivery) (Delivery, error)
	List(ctx context.Context, filter DeliveryFilter, limit int) ([]Delivery, error)
	RepointLead(ctx context.Context, fromLeadID string, toLeadID string) (int, error)
	// ClaimDue atomically flips up to limit due pending/failed deliveries to
	// processing and returns them, ordered by (next_attempt_at, created_at).
	// Two concurrent schedulers never claim the same delivery.
	ClaimDue(ctx context.Context, limit int, now time.Time) ([]Delivery, error)
	AppendAttempt(ctx context.Context, attempt DeliveryAttempt) (DeliveryAttempt, error)
	ListAttempts(ctx context.Context, deliveryID string) ([]DeliveryAttempt, error)
	// Replay resets one delivery to pending, dead_letter included. It
	// reports false when the delivery does not exist.
	Replay(ctx context.Context, id string, now time.Time) (bool, error)
	ReplayBulk(ctx context.Context, filter DeliveryFilter, limit int, now time.Time) (int, error)
}

// Transactor runs fn inside one storage transaction so merges are atomic:
// partial merges must never be observable.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// NopTransactor satisfies Transactor without transactional guarantees, for
// in-memory stores in tests.
type NopTransactor struct{}

func (NopTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// IdempotencyLedger suppresses duplicate processing of a retried intake
// request before the merge engine is invoked.
type IdempotencyLedger interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type StoreProvider interface {
	IngestionStore() IngestionStore
	LeadStore() LeadStore
	IdentityStore() IdentityStore
	LeadEventStore() LeadEventStore
	DestinationStore() DestinationStore
	DeliveryStore() DeliveryStore
	Transactor() Transactor
}

var _ Transactor = NopTransactor{}
