package identity

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lippelima5/repolead-sub000/core"
	"github.com/lippelima5/repolead-sub000/normalize"
)

type memLeadStore struct {
	leads map[string]core.Lead
}

func newMemLeadStore() *memLeadStore {
	return &memLeadStore{leads: map[string]core.Lead{}}
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
	var out []core.Lead
	for _, id := range ids {
		if lead, ok := s.leads[id]; ok {
			out = append(out, lead)
		}
	}
	return out, nil
}

func (s *memLeadStore) Update(_ context.Context, lead core.Lead) (core.Lead, error) {
	if _, ok := s.leads[lead.ID]; !ok {
		return core.Lead{}, core.ErrLeadNotFound
	}
	s.leads[lead.ID] = lead
	return lead, nil
}

func (s *memLeadStore) Delete(_ context.Context, id string) error {
	delete(s.leads, id)
	return nil
}

type memIdentityStore struct {
	rows           map[string]core.LeadIdentity
	hideFromLookup map[string]bool
}

func newMemIdentityStore() *memIdentityStore {
	return &memIdentityStore{
		rows:           map[string]core.LeadIdentity{},
		hideFromLookup: map[string]bool{},
	}
}

func identityKey(workspaceID string, identityType core.IdentityType, normalized string) string {
	return fmt.Sprintf("%s|%s|%s", workspaceID, identityType, normalized)
}

func (s *memIdentityStore) InsertOrGet(_ context.Context, identity core.LeadIdentity) (core.LeadIdentity, bool, error) {
	key := identityKey(identity.WorkspaceID, identity.Type, identity.NormalizedValue)
	if existing, ok := s.rows[key]; ok {
		return existing, false, nil
	}
	s.rows[key] = identity
	return identity, true, nil
}

func (s *memIdentityStore) Lookup(_ context.Context, workspaceID string, identityType core.IdentityType, normalized string) (core.LeadIdentity, bool, error) {
	key := identityKey(workspaceID, identityType, normalized)
	if s.hideFromLookup[key] {
		return core.LeadIdentity{}, false, nil
	}
	row, ok := s.rows[key]
	return row, ok, nil
}

func (s *memIdentityStore) ListByLead(_ context.Context, leadID string) ([]core.LeadIdentity, error) {
	var out []core.LeadIdentity
	for _, row := range s.rows {
		if row.LeadID == leadID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *memIdentityStore) Update(_ context.Context, identity core.LeadIdentity) (core.LeadIdentity, error) {
	key := identityKey(identity.WorkspaceID, identity.Type, identity.NormalizedValue)
	s.rows[key] = identity
	return identity, nil
}

func (s *memIdentityStore) Repoint(_ context.Context, workspaceID string, fromLeadID string, toLeadID string) (int, int, error) {
	moved := 0
	for key, row := range s.rows {
		if row.WorkspaceID == workspaceID && row.LeadID == fromLeadID {
			row.LeadID = toLeadID
			s.rows[key] = row
			moved++
		}
	}
	return moved, 0, nil
}

type memEventStore struct {
	events    []core.LeadEvent
	appendErr error
}

func (s *memEventStore) Append(_ context.Context, event core.LeadEvent) (core.LeadEvent, error) {
	if s.appendErr != nil {
		return core.LeadEvent{}, s.appendErr
	}
	s.events = append(s.events, event)
	return event, nil
}

func (s *memEventStore) ListByLead(_ context.Context, leadID string, limit int) ([]core.LeadEvent, error) {
	var out []core.LeadEvent
	for _, event := range s.events {
		if event.LeadID == leadID {
			out = append(out, event)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *memEventStore) RepointLead(_ context.Context, fromLeadID string, toLeadID string) (int, error) {
	moved := 0
	for i := range s.events {
		if s.events[i].LeadID == fromLeadID {
			s.events[i].LeadID = toLeadID
			moved++
		}
	}
	return moved, nil
}

func (s *memEventStore) byType(eventType core.LeadEventType) []core.LeadEvent {
	var out []core.LeadEvent
	for _, event := range s.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

type memIngestionStore struct {
	statuses map[string]core.IngestionStatus
}

func newMemIngestionStore() *memIngestionStore {
	return &memIngestionStore{statuses: map[string]core.IngestionStatus{}}
}

func (s *memIngestionStore) Create(_ context.Context, ingestion core.Ingestion) (core.Ingestion, error) {
	s.statuses[ingestion.ID] = ingestion.Status
	return ingestion, nil
}

func (s *memIngestionStore) Get(_ context.Context, id string) (core.Ingestion, error) {
	status, ok := s.statuses[id]
	if !ok {
		return core.Ingestion{}, core.ErrIngestionNotFound
	}
	return core.Ingestion{ID: id, Status: status}, nil
}

func (s *memIngestionStore) FindByIdempotencyKey(_ context.Context, _, _, _ string) (core.Ingestion, bool, error) {
	return core.Ingestion{}, false, nil
}

func (s *memIngestionStore) UpdateStatus(_ context.Context, id string, status core.IngestionStatus) error {
	s.statuses[id] = status
	return nil
}

type repointOnlyDeliveryStore struct {
	core.DeliveryStore

	repointed map[string]string
}

func (s *repointOnlyDeliveryStore) RepointLead(_ context.Context, fromLeadID string, toLeadID string) (int, error) {
	if s.repointed == nil {
		s.repointed = map[string]string{}
	}
	s.repointed[fromLeadID] = toLeadID
	return 1, nil
}

type resolverFixture struct {
	resolver   *Resolver
	leads      *memLeadStore
	identities *memIdentityStore
	events     *memEventStore
	ingestions *memIngestionStore
	deliveries *repointOnlyDeliveryStore
}

func newResolverFixture() *resolverFixture {
	fixture := &resolverFixture{
		leads:      newMemLeadStore(),
		identities: newMemIdentityStore(),
		events:     &memEventStore{},
		ingestions: newMemIngestionStore(),
		deliveries: &repointOnlyDeliveryStore{},
	}
	idSeq := 0
	fixture.resolver = &Resolver{
		Leads:      fixture.leads,
		Identities: fixture.identities,
		Events:     fixture.events,
		Deliveries: fixture.deliveries,
		Ingestions: fixture.ingestions,
		Tx:         core.NopTransactor{},
		Now: func() time.Time {
			return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		},
		NewID: func() string {
			idSeq++
			return fmt.Sprintf("id-%d", idSeq)
		},
	}
	return fixture
}

func emailIdentity(value string) normalize.Identity {
	return normalize.Identity{Type: core.IdentityTypeEmail, Normalized: value, Raw: value}
}

func TestResolveRejectsInvalidInput(t *testing.T) {
	fixture := newResolverFixture()

	if _, err := fixture.resolver.Resolve(context.Background(), Input{}); err == nil {
		t.Fatal("expected validation error for missing workspace id")
	}

	_, err := fixture.resolver.Resolve(context.Background(), Input{
		WorkspaceID: "ws-1",
		IngestionID: "ing-1",
		Identities:  []normalize.Identity{{Type: "fax", Normalized: "x"}},
	})
	if !errors.Is(err, core.ErrInvalidIdentityType) {
		t.Fatalf("expected invalid identity type error, got %v", err)
	}
}

func TestResolveWithoutIdentityCreatesNeedsIdentityLead(t *testing.T) {
	fixture := newResolverFixture()

	resolution, err := fixture.resolver.Resolve(context.Background(), Input{
		WorkspaceID: "ws-1",
		SourceID:    "src-1",
		IngestionID: "ing-1",
		Name:        "Ada Lovelace",
		Tags:        []string{"vip"},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolution.Outcome != core.ResolveOutcomeNeedsIdentity {
		t.Fatalf("expected needs_identity outcome, got %s", resolution.Outcome)
	}
	if resolution.Lead.Status != core.LeadStatusNeedsIdentity {
		t.Fatalf("expected needs_identity lead status, got %s", resolution.Lead.Status)
	}
	if resolution.Lead.Name != "Ada Lovelace" {
		t.Fatalf("unexpected lead name %q", resolution.Lead.Name)
	}
	if resolution.EventTypeFor() != "" {
		t.Fatalf("needs_identity must not emit a domain event, got %q", resolution.EventTypeFor())
	}
	if got := fixture.ingestions.statuses["ing-1"]; got != core.IngestionStatusNeedsIdentity {
		t.Fatalf("expected ingestion needs_identity, got %s", got)
	}
	if len(fixture.events.byType(core.LeadEventIngested)) != 1 {
		t.Fatal("expected one ingested event")
	}
	if len(fixture.events.byType(core.LeadEventNormalized)) != 1 {
		t.Fatal("expected one normalized event")
	}
}

func TestResolveCreatesLeadOnZeroMatches(t *testing.T) {
	fixture := newResolverFixture()

	resolution, err := fixture.resolver.Resolve(context.Background(), Input{
		WorkspaceID: "ws-1",
		SourceID:    "src-1",
		IngestionID: "ing-1",
		Email:       "ada@example.com",
		Identities:  []normalize.Identity{emailIdentity("ada@example.com")},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolution.Outcome != core.ResolveOutcomeLeadCreated {
		t.Fatalf("expected lead_created, got %s", resolution.Outcome)
	}
	if resolution.EventTypeFor() != core.EventTypeLeadCreated {
		t.Fatalf("unexpected domain event type %q", resolution.EventTypeFor())
	}
	if resolution.Lead.Status != core.LeadStatusNew {
		t.Fatalf("expected new lead status, got %s", resolution.Lead.Status)
	}
	if resolution.Lead.Email != "ada@example.com" {
		t.Fatalf("unexpected lead email %q", resolution.Lead.Email)
	}

	row, found, err := fixture.identities.Lookup(context.Background(), "ws-1", core.IdentityTypeEmail, "ada@example.com")
	if err != nil || !found {
		t.Fatalf("expected claimed identity, found=%v err=%v", found, err)
	}
	if row.LeadID != resolution.Lead.ID {
		t.Fatalf("identity points at %s, want %s", row.LeadID, resolution.Lead.ID)
	}
	if got := fixture.ingestions.statuses["ing-1"]; got != core.IngestionStatusProcessed {
		t.Fatalf("expected processed ingestion, got %s", got)
	}
}

func TestResolveUpdatesExistingLead(t *testing.T) {
	fixture := newResolverFixture()
	ctx := context.Background()

	existing, _ := fixture.leads.Create(ctx, core.Lead{
		ID:          "lead-existing",
		WorkspaceID: "ws-1",
		Name:        "Old Name",
		Phone:       "+15550001111",
		Status:      core.LeadStatusNeedsIdentity,
		Tags:        []string{"old"},
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	fixture.identities.InsertOrGet(ctx, core.LeadIdentity{
		ID:              "idn-1",
		WorkspaceID:     "ws-1",
		LeadID:          existing.ID,
		Type:            core.IdentityTypeEmail,
		NormalizedValue: "ada@example.com",
	})

	resolution, err := fixture.resolver.Resolve(ctx, Input{
		WorkspaceID: "ws-1",
		SourceID:    "src-2",
		IngestionID: "ing-2",
		Name:        "Ada Lovelace",
		Email:       "ada@example.com",
		Identities:  []normalize.Identity{emailIdentity("ada@example.com")},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolution.Outcome != core.ResolveOutcomeLeadUpdated {
		t.Fatalf("expected lead_updated, got %s", resolution.Outcome)
	}
	if resolution.Lead.ID != existing.ID {
		t.Fatalf("resolved lead %s, want %s", resolution.Lead.ID, existing.ID)
	}
	if resolution.Lead.Name != "Ada Lovelace" {
		t.Fatalf("name not overwritten, got %q", resolution.Lead.Name)
	}
	if resolution.Lead.Phone != "+15550001111" {
		t.Fatalf("empty intake phone must not clear stored phone, got %q", resolution.Lead.Phone)
	}
	if len(resolution.Lead.Tags) != 1 || resolution.Lead.Tags[0] != "old" {
		t.Fatalf("empty intake tags must not replace stored tags, got %v", resolution.Lead.Tags)
	}
	if resolution.Lead.Status != core.LeadStatusNew {
		t.Fatalf("needs_identity not cleared, got %s", resolution.Lead.Status)
	}

	row, _, _ := fixture.identities.Lookup(ctx, "ws-1", core.IdentityTypeEmail, "ada@example.com")
	if row.SourceID != "src-2" {
		t.Fatalf("identity claim not refreshed, source=%q", row.SourceID)
	}
}

func TestResolveMergesOldestWins(t *testing.T) {
	fixture := newResolverFixture()
	ctx := context.Background()

	older, _ := fixture.leads.Create(ctx, core.Lead{
		ID:          "lead-older",
		WorkspaceID: "ws-1",
		Status:      core.LeadStatusNew,
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	younger, _ := fixture.leads.Create(ctx, core.Lead{
		ID:          "lead-younger",
		WorkspaceID: "ws-1",
		Status:      core.LeadStatusNew,
		CreatedAt:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	fixture.identities.InsertOrGet(ctx, core.LeadIdentity{
		ID: "idn-email", WorkspaceID: "ws-1", LeadID: older.ID,
		Type: core.IdentityTypeEmail, NormalizedValue: "ada@example.com",
	})
	fixture.identities.InsertOrGet(ctx, core.LeadIdentity{
		ID: "idn-phone", WorkspaceID: "ws-1", LeadID: younger.ID,
		Type: core.IdentityTypePhone, NormalizedValue: "+15550001111",
	})
	fixture.events.Append(ctx, core.LeadEvent{ID: "evt-younger", LeadID: younger.ID, Type: core.LeadEventIngested})

	resolution, err := fixture.resolver.Resolve(ctx, Input{
		WorkspaceID: "ws-1",
		SourceID:    "src-3",
		IngestionID: "ing-3",
		Identities: []normalize.Identity{
			emailIdentity("ada@example.com"),
			{Type: core.IdentityTypePhone, Normalized: "+15550001111", Raw: "555-000-1111"},
		},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolution.Lead.ID != older.ID {
		t.Fatalf("merge target %s, want oldest %s", resolution.Lead.ID, older.ID)
	}
	if len(resolution.MergedLeadIDs) != 1 || resolution.MergedLeadIDs[0] != younger.ID {
		t.Fatalf("unexpected merged lead ids %v", resolution.MergedLeadIDs)
	}
	if resolution.Outcome != core.ResolveOutcomeLeadUpdated {
		t.Fatalf("merge must classify as lead_updated, got %s", resolution.Outcome)
	}

	if _, err := fixture.leads.Get(ctx, younger.ID); !errors.Is(err, core.ErrLeadNotFound) {
		t.Fatal("merged source lead must be deleted")
	}
	row, _, _ := fixture.identities.Lookup(ctx, "ws-1", core.IdentityTypePhone, "+15550001111")
	if row.LeadID != older.ID {
		t.Fatalf("phone identity not re-pointed, owner %s", row.LeadID)
	}
	if got := fixture.deliveries.repointed[younger.ID]; got != older.ID {
		t.Fatalf("deliveries not re-pointed, got %q", got)
	}
	for _, event := range fixture.events.events {
		if event.ID == "evt-younger" && event.LeadID != older.ID {
			t.Fatalf("timeline not re-pointed, event on %s", event.LeadID)
		}
	}

	merged := fixture.events.byType(core.LeadEventMerged)
	if len(merged) != 1 {
		t.Fatalf("expected one merged event, got %d", len(merged))
	}
	ids, _ := merged[0].Data["merged_lead_ids"].([]string)
	if len(ids) != 1 || ids[0] != younger.ID {
		t.Fatalf("merged event ids %v", merged[0].Data["merged_lead_ids"])
	}
}

func TestResolveAdoptsWinnerOnLostClaim(t *testing.T) {
	fixture := newResolverFixture()
	ctx := context.Background()

	winner, _ := fixture.leads.Create(ctx, core.Lead{
		ID:          "lead-winner",
		WorkspaceID: "ws-1",
		Status:      core.LeadStatusNew,
		CreatedAt:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	fixture.identities.InsertOrGet(ctx, core.LeadIdentity{
		ID: "idn-winner", WorkspaceID: "ws-1", LeadID: winner.ID,
		Type: core.IdentityTypeEmail, NormalizedValue: "ada@example.com",
	})
	// Simulate the race: the lookup misses but the insert collides with a
	// concurrently committed claim.
	fixture.identities.hideFromLookup[identityKey("ws-1", core.IdentityTypeEmail, "ada@example.com")] = true

	resolution, err := fixture.resolver.Resolve(ctx, Input{
		WorkspaceID: "ws-1",
		SourceID:    "src-4",
		IngestionID: "ing-4",
		Identities:  []normalize.Identity{emailIdentity("ada@example.com")},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolution.Lead.ID != winner.ID {
		t.Fatalf("expected to adopt %s, got %s", winner.ID, resolution.Lead.ID)
	}
	if resolution.Outcome != core.ResolveOutcomeLeadUpdated {
		t.Fatalf("adopted race must classify as lead_updated, got %s", resolution.Outcome)
	}
	if len(fixture.leads.leads) != 1 {
		t.Fatalf("speculative lead must be deleted, %d leads remain", len(fixture.leads.leads))
	}
}

func TestResolveFailureMarksIngestionFailed(t *testing.T) {
	fixture := newResolverFixture()
	fixture.events.appendErr = errors.New("timeline unavailable")

	_, err := fixture.resolver.Resolve(context.Background(), Input{
		WorkspaceID: "ws-1",
		SourceID:    "src-5",
		IngestionID: "ing-5",
		Identities:  []normalize.Identity{emailIdentity("ada@example.com")},
	})
	if err == nil {
		t.Fatal("expected resolve error")
	}
	if got := fixture.ingestions.statuses["ing-5"]; got != core.IngestionStatusFailed {
		t.Fatalf("expected failed ingestion, got %s", got)
	}
}
