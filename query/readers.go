package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/lippelima5/repolead-sub000/core"
)

// StoreReaders satisfies the read contracts directly from the store layer.
type StoreReaders struct {
	Leads      core.LeadStore
	Identities core.IdentityStore
	Events     core.LeadEventStore
	Ingestions core.IngestionStore
	Deliveries core.DeliveryStore
}

func NewStoreReaders(stores core.StoreProvider) *StoreReaders {
	readers := &StoreReaders{}
	if stores != nil {
		readers.Leads = stores.LeadStore()
		readers.Identities = stores.IdentityStore()
		readers.Events = stores.LeadEventStore()
		readers.Ingestions = stores.IngestionStore()
		readers.Deliveries = stores.DeliveryStore()
	}
	return readers
}

func (r *StoreReaders) GetLeadTimeline(ctx context.Context, leadID string, eventLimit int) (LeadTimeline, error) {
	if r == nil || r.Leads == nil || r.Identities == nil || r.Events == nil {
		return LeadTimeline{}, fmt.Errorf("query: store readers are not configured")
	}
	leadID = strings.TrimSpace(leadID)

	lead, err := r.Leads.Get(ctx, leadID)
	if err != nil {
		return LeadTimeline{}, err
	}
	identities, err := r.Identities.ListByLead(ctx, leadID)
	if err != nil {
		return LeadTimeline{}, err
	}
	events, err := r.Events.ListByLead(ctx, leadID, eventLimit)
	if err != nil {
		return LeadTimeline{}, err
	}
	return LeadTimeline{Lead: lead, Identities: identities, Events: events}, nil
}

func (r *StoreReaders) GetIngestion(ctx context.Context, id string) (core.Ingestion, error) {
	if r == nil || r.Ingestions == nil {
		return core.Ingestion{}, fmt.Errorf("query: store readers are not configured")
	}
	return r.Ingestions.Get(ctx, strings.TrimSpace(id))
}

func (r *StoreReaders) GetDeliveryLog(ctx context.Context, deliveryID string) (DeliveryLog, error) {
	if r == nil || r.Deliveries == nil {
		return DeliveryLog{}, fmt.Errorf("query: store readers are not configured")
	}
	deliveryID = strings.TrimSpace(deliveryID)

	delivery, err := r.Deliveries.Get(ctx, deliveryID)
	if err != nil {
		return DeliveryLog{}, err
	}
	attempts, err := r.Deliveries.ListAttempts(ctx, deliveryID)
	if err != nil {
		return DeliveryLog{}, err
	}
	return DeliveryLog{Delivery: delivery, Attempts: attempts}, nil
}

func (r *StoreReaders) ListDeliveries(ctx context.Context, filter core.DeliveryFilter, limit int) ([]core.Delivery, error) {
	if r == nil || r.Deliveries == nil {
		return nil, fmt.Errorf("query: store readers are not configured")
	}
	return r.Deliveries.List(ctx, filter, limit)
}

var (
	_ LeadTimelineReader = (*StoreReaders)(nil)
	_ IngestionReader    = (*StoreReaders)(nil)
	_ DeliveryReader     = (*StoreReaders)(nil)
)
