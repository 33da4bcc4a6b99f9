package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lippelima5/repolead-sub000/core"
)

type memLeadStore struct {
	leads map[string]core.Lead
}

func (s *memLeadStore) Create(_ context.Context, lead core.Lead) (core.Lead, error) {
	s.leads[lead.ID] = lead
	return lead, nil
}

func (s *memLeadStore) Get(_ context.Context, id string) (core.Lead, error) {
	lead, ok := s.leads[id]
	if !ok {
		return core.Lead{}, core.ErrLeadNotFound
	}
	return lead, nil
}

func (s *memLeadStore) GetMany(_ context.Context, ids []string) ([]core.Lead, error) {
	var leads []core.Lead
	for _, id := range ids {
		if lead, ok := s.leads[id]; ok {
			leads = append(leads, lead)
		}
	}
	return leads, nil
}

func (s *memLeadStore) Update(_ context.Context, lead core.Lead) (core.Lead, error) {
	s.leads[lead.ID] = lead
	return lead, nil
}

func (s *memLeadStore) Delete(_ context.Context, id string) error {
	delete(s.leads, id)
	return nil
}

type memIdentityStore struct {
	identities []core.LeadIdentity
}

func (s *memIdentityStore) InsertOrGet(_ context.Context, identity core.LeadIdentity) (core.LeadIdentity, bool, error) {
	s.identities = append(s.identities, identity)
	return identity, true, nil
}

func (s *memIdentityStore) Lookup(context.Context, string, core.IdentityType, string) (core.LeadIdentity, bool, error) {
	return core.LeadIdentity{}, false, nil
}

func (s *memIdentityStore) ListByLead(_ context.Context, leadID string) ([]core.LeadIdentity, error) {
	var claims []core.LeadIdentity
	for _, identity := range s.identities {
		if identity.LeadID == leadID {
			claims = append(claims, identity)
		}
	}
	return claims, nil
}

func (s *memIdentityStore) Update(_ context.Context, identity core.LeadIdentity) (core.LeadIdentity, error) {
	return identity, nil
}

func (s *memIdentityStore) Repoint(context.Context, string, string, string) (int, int, error) {
	return 0, 0, nil
}

type memEventStore struct {
	events []core.LeadEvent
}

func (s *memEventStore) Append(_ context.Context, event core.LeadEvent) (core.LeadEvent, error) {
	s.events = append(s.events, event)
	return event, nil
}

func (s *memEventStore) ListByLead(_ context.Context, leadID string, limit int) ([]core.LeadEvent, error) {
	var events []core.LeadEvent
	for _, event := range s.events {
		if event.LeadID == leadID {
			events = append(events, event)
		}
	}
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (s *memEventStore) RepointLead(context.Context, string, string) (int, error) {
	return 0, nil
}

type memDeliveryReadStore struct {
	core.DeliveryStore

	deliveries map[string]core.Delivery
	attempts   map[string][]core.DeliveryAttempt
}

func (s *memDeliveryReadStore) Get(_ context.Context, id string) (core.Delivery, error) {
	delivery, ok := s.deliveries[id]
	if !ok {
		return core.Delivery{}, core.ErrDeliveryNotFound
	}
	return delivery, nil
}

func (s *memDeliveryReadStore) ListAttempts(_ context.Context, deliveryID string) ([]core.DeliveryAttempt, error) {
	return append([]core.DeliveryAttempt(nil), s.attempts[deliveryID]...), nil
}

func (s *memDeliveryReadStore) List(_ context.Context, filter core.DeliveryFilter, limit int) ([]core.Delivery, error) {
	var matches []core.Delivery
	for _, delivery := range s.deliveries {
		if filter.WorkspaceID != "" && delivery.WorkspaceID != filter.WorkspaceID {
			continue
		}
		if filter.Status != "" && delivery.Status != filter.Status {
			continue
		}
		matches = append(matches, delivery)
	}
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func newTimelineReaders() (*StoreReaders, *memLeadStore, *memIdentityStore, *memEventStore) {
	leads := &memLeadStore{leads: map[string]core.Lead{}}
	identities := &memIdentityStore{}
	events := &memEventStore{}
	readers := &StoreReaders{
		Leads:      leads,
		Identities: identities,
		Events:     events,
	}
	return readers, leads, identities, events
}

func TestGetLeadTimelineQuery_AssemblesView(t *testing.T) {
	ctx := context.Background()
	readers, leads, identities, events := newTimelineReaders()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	if _, err := leads.Create(ctx, core.Lead{ID: "lead_1", WorkspaceID: "ws_1", Name: "Ada", Status: core.LeadStatusNew}); err != nil {
		t.Fatalf("seed lead: %v", err)
	}
	if _, _, err := identities.InsertOrGet(ctx, core.LeadIdentity{
		ID: "idn_1", WorkspaceID: "ws_1", LeadID: "lead_1",
		Type: core.IdentityTypeEmail, NormalizedValue: "ada@example.com",
	}); err != nil {
		t.Fatalf("seed identity: %v", err)
	}
	for i, eventType := range []core.LeadEventType{core.LeadEventIngested, core.LeadEventNormalized, core.LeadEventDelivered} {
		if _, err := events.Append(ctx, core.LeadEvent{
			ID: "evt_" + string(eventType), WorkspaceID: "ws_1", LeadID: "lead_1",
			Type: eventType, CreatedAt: now.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("seed event: %v", err)
		}
	}

	q := NewGetLeadTimelineQuery(readers)
	timeline, err := q.Query(ctx, GetLeadTimelineMessage{LeadID: "lead_1", EventLimit: 2})
	if err != nil {
		t.Fatalf("query timeline: %v", err)
	}
	if timeline.Lead.Name != "Ada" {
		t.Fatalf("unexpected lead in timeline: %+v", timeline.Lead)
	}
	if len(timeline.Identities) != 1 || timeline.Identities[0].NormalizedValue != "ada@example.com" {
		t.Fatalf("unexpected identities: %+v", timeline.Identities)
	}
	if len(timeline.Events) != 2 {
		t.Fatalf("expected event limit applied, got %d events", len(timeline.Events))
	}
}

func TestGetLeadTimelineQuery_MissingLead(t *testing.T) {
	readers, _, _, _ := newTimelineReaders()
	q := NewGetLeadTimelineQuery(readers)
	if _, err := q.Query(context.Background(), GetLeadTimelineMessage{LeadID: "lead_missing"}); !errors.Is(err, core.ErrLeadNotFound) {
		t.Fatalf("expected lead not found, got %v", err)
	}
}

func TestGetDeliveryLogQuery_IncludesAttemptHistory(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &memDeliveryReadStore{
		deliveries: map[string]core.Delivery{
			"dlv_1": {
				ID: "dlv_1", WorkspaceID: "ws_1", Status: core.DeliveryStatusDeadLetter,
				AttemptCount: 2, LastError: "webhooks: destination responded 500",
			},
		},
		attempts: map[string][]core.DeliveryAttempt{
			"dlv_1": {
				{ID: "att_1", DeliveryID: "dlv_1", AttemptNumber: 1, ResponseStatus: 500, StartedAt: now},
				{ID: "att_2", DeliveryID: "dlv_1", AttemptNumber: 2, ResponseStatus: 500, StartedAt: now.Add(2 * time.Second)},
			},
		},
	}
	readers := &StoreReaders{Deliveries: store}

	q := NewGetDeliveryLogQuery(readers)
	log, err := q.Query(context.Background(), GetDeliveryLogMessage{DeliveryID: "dlv_1"})
	if err != nil {
		t.Fatalf("query delivery log: %v", err)
	}
	if log.Delivery.Status != core.DeliveryStatusDeadLetter {
		t.Fatalf("unexpected delivery state: %+v", log.Delivery)
	}
	if len(log.Attempts) != 2 || log.Attempts[1].AttemptNumber != 2 {
		t.Fatalf("unexpected attempt history: %+v", log.Attempts)
	}
}

func TestListDeliveriesQuery_AppliesFilter(t *testing.T) {
	store := &memDeliveryReadStore{
		deliveries: map[string]core.Delivery{
			"dlv_1": {ID: "dlv_1", WorkspaceID: "ws_1", Status: core.DeliveryStatusDeadLetter},
			"dlv_2": {ID: "dlv_2", WorkspaceID: "ws_1", Status: core.DeliveryStatusSuccess},
			"dlv_3": {ID: "dlv_3", WorkspaceID: "ws_2", Status: core.DeliveryStatusDeadLetter},
		},
	}
	readers := &StoreReaders{Deliveries: store}

	q := NewListDeliveriesQuery(readers)
	deliveries, err := q.Query(context.Background(), ListDeliveriesMessage{
		Filter: core.DeliveryFilter{WorkspaceID: "ws_1", Status: core.DeliveryStatusDeadLetter},
		Limit:  10,
	})
	if err != nil {
		t.Fatalf("list deliveries: %v", err)
	}
	if len(deliveries) != 1 || deliveries[0].ID != "dlv_1" {
		t.Fatalf("expected filtered listing, got %+v", deliveries)
	}
}

func TestQueries_RequireReader(t *testing.T) {
	if _, err := (&GetLeadTimelineQuery{}).Query(context.Background(), GetLeadTimelineMessage{LeadID: "lead_1"}); err == nil {
		t.Fatalf("expected dependency error for timeline query")
	}
	if _, err := (&ListDeliveriesQuery{}).Query(context.Background(), ListDeliveriesMessage{}); err == nil {
		t.Fatalf("expected dependency error for list query")
	}
}

func TestMessages_Validate(t *testing.T) {
	if err := (GetLeadTimelineMessage{}).Validate(); err == nil {
		t.Fatalf("expected lead id validation error")
	}
	if err := (GetLeadTimelineMessage{LeadID: "lead_1", EventLimit: -1}).Validate(); err == nil {
		t.Fatalf("expected event limit validation error")
	}
	if err := (GetDeliveryLogMessage{DeliveryID: "dlv_1"}).Validate(); err != nil {
		t.Fatalf("expected valid delivery log message, got %v", err)
	}
	if err := (ListDeliveriesMessage{}).Validate(); err == nil {
		t.Fatalf("expected workspace validation error")
	}
}
