package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidIdentityType              = errors.New("core: invalid identity type")
	ErrInvalidIngestionStatusTransition = errors.New("core: invalid ingestion status transition")
	ErrInvalidDeliveryStatusTransition  = errors.New("core: invalid delivery status transition")
	ErrLeadNotFound                     = errors.New("core: lead not found")
	ErrIngestionNotFound                = errors.New("core: ingestion not found")
	ErrDeliveryNotFound                 = errors.New("core: delivery not found")
	ErrDestinationNotFound              = errors.New("core: destination not found")
	ErrNoTargetLead                     = errors.New("core: no target lead could be established")
)

type IdentityType string

const (
	IdentityTypeEmail    IdentityType = "email"
	IdentityTypePhone    IdentityType = "phone"
	IdentityTypeExternal IdentityType = "external"
)

func (t IdentityType) Validate() error {
	switch t {
	case IdentityTypeEmail, IdentityTypePhone, IdentityTypeExternal:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidIdentityType, string(t))
	}
}

type IngestionStatus string

const (
	IngestionStatusPending       IngestionStatus = "pending"
	IngestionStatusProcessed     IngestionStatus = "processed"
	IngestionStatusNeedsIdentity IngestionStatus = "needs_identity"
	IngestionStatusFailed        IngestionStatus = "failed"
)

type Ingestion struct {
	ID             string
	WorkspaceID    string
	SourceID       string
	Payload        map[string]any
	IdempotencyKey string
	Size           int
	Status         IngestionStatus
	ReceivedAt     time.Time
	UpdatedAt      time.Time
}

func (i *Ingestion) TransitionTo(status IngestionStatus, now time.Time) error {
	if i == nil {
		return nil
	}
	if i.Status == status {
		i.UpdatedAt = now
		return nil
	}
	if !ingestionTransitionAllowed(i.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidIngestionStatusTransition, i.Status, status)
	}
	i.Status = status
	i.UpdatedAt = now
	return nil
}

func ingestionTransitionAllowed(current, next IngestionStatus) bool {
	allowed := map[IngestionStatus]map[IngestionStatus]struct{}{
		IngestionStatusPending: {
			IngestionStatusProcessed:     {},
			IngestionStatusNeedsIdentity: {},
			IngestionStatusFailed:        {},
		},
		IngestionStatusNeedsIdentity: {},
		IngestionStatusProcessed:     {},
		IngestionStatusFailed:        {},
	}
	_, ok := allowed[current][next]
	return ok
}

type LeadStatus string

const (
	LeadStatusNew           LeadStatus = "new"
	LeadStatusNeedsIdentity LeadStatus = "needs_identity"
	LeadStatusContacted     LeadStatus = "contacted"
	LeadStatusQualified     LeadStatus = "qualified"
	LeadStatusArchived      LeadStatus = "archived"
)

type Lead struct {
	ID          string
	WorkspaceID string
	Name        string
	Email       string
	Phone       string
	Status      LeadStatus
	Tags        []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LeadIdentity is a claim that a normalized value of one type belongs to a
// lead. The (workspace, type, normalized_value) tuple is unique: at most one
// lead owns a given identity at any time.
type LeadIdentity struct {
	ID              string
	WorkspaceID     string
	LeadID          string
	Type            IdentityType
	NormalizedValue string
	RawValue        string
	SourceID        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type LeadEventType string

const (
	LeadEventIngested       LeadEventType = "ingested"
	LeadEventNormalized     LeadEventType = "normalized"
	LeadEventMerged         LeadEventType = "merged"
	LeadEventDelivered      LeadEventType = "delivered"
	LeadEventDeliveryFailed LeadEventType = "delivery_failed"
	LeadEventReplayed       LeadEventType = "replayed"
)

// LeadEvent is an append-only timeline entry. It is never mutated or
// deleted; merge history is only recoverable from here.
type LeadEvent struct {
	ID          string
	WorkspaceID string
	LeadID      string
	IngestionID string
	DeliveryID  string
	Type        LeadEventType
	Data        map[string]any
	CreatedAt   time.Time
}

const (
	EventTypeLeadCreated = "lead_created"
	EventTypeLeadUpdated = "lead_updated"
)

// Destination is an externally configured delivery target. The core treats
// it as read-only configuration.
type Destination struct {
	ID               string
	WorkspaceID      string
	Name             string
	URL              string
	Method           string
	Enabled          bool
	SubscribedEvents []string
	Secret           string
	Headers          map[string]string
	// MaxAttempts overrides the configured retry ceiling when > 0.
	MaxAttempts int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Subscribed reports whether the destination wants the given event type.
// An empty subscription set subscribes to every event type.
func (d Destination) Subscribed(eventType string) bool {
	if len(d.SubscribedEvents) == 0 {
		return true
	}
	eventType = strings.TrimSpace(eventType)
	for _, subscribed := range d.SubscribedEvents {
		if strings.TrimSpace(subscribed) == eventType {
			return true
		}
	}
	return false
}

type DeliveryStatus string

const (
	DeliveryStatusPending    DeliveryStatus = "pending"
	DeliveryStatusProcessing DeliveryStatus = "processing"
	DeliveryStatusSuccess    DeliveryStatus = "success"
	DeliveryStatusFailed     DeliveryStatus = "failed"
	DeliveryStatusDeadLetter DeliveryStatus = "dead_letter"
)

// Delivery is one obligation to deliver one event to one destination.
type Delivery struct {
	ID            string
	WorkspaceID   string
	DestinationID string
	LeadID        string
	IngestionID   string
	EventType     string
	Status        DeliveryStatus
	AttemptCount  int
	LastAttemptAt *time.Time
	NextAttemptAt *time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (d *Delivery) TransitionTo(status DeliveryStatus, now time.Time) error {
	if d == nil {
		return nil
	}
	if d.Status == status {
		d.UpdatedAt = now
		return nil
	}
	if !deliveryTransitionAllowed(d.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidDeliveryStatusTransition, d.Status, status)
	}
	d.Status = status
	d.UpdatedAt = now
	return nil
}

// Replay resets a delivery to pending regardless of its prior state. It is
// the only way out of dead_letter.
func (d *Delivery) Replay(now time.Time) {
	if d == nil {
		return
	}
	d.Status = DeliveryStatusPending
	next := now
	d.NextAttemptAt = &next
	d.LastError = ""
	d.UpdatedAt = now
}

func deliveryTransitionAllowed(current, next DeliveryStatus) bool {
	allowed := map[DeliveryStatus]map[DeliveryStatus]struct{}{
		DeliveryStatusPending: {
			DeliveryStatusProcessing: {},
		},
		DeliveryStatusProcessing: {
			DeliveryStatusSuccess:    {},
			DeliveryStatusFailed:     {},
			DeliveryStatusDeadLetter: {},
		},
		DeliveryStatusFailed: {
			DeliveryStatusProcessing: {},
			DeliveryStatusPending:    {},
		},
		DeliveryStatusDeadLetter: {
			DeliveryStatusPending: {},
		},
		DeliveryStatusSuccess: {},
	}
	_, ok := allowed[current][next]
	return ok
}

// DeliveryAttempt is the append-only record of one HTTP call. It is
// persisted before the delivery row is mutated, so the attempt log stays
// authoritative under crash.
type DeliveryAttempt struct {
	ID             string
	DeliveryID     string
	AttemptNumber  int
	RequestPayload []byte
	ResponseStatus int
	ResponseBody   string
	Error          string
	StartedAt      time.Time
	FinishedAt     time.Time
}
