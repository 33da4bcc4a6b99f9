package core

import (
	"errors"
	"testing"
	"time"
)

func TestIdentityTypeValidate(t *testing.T) {
	for _, valid := range []IdentityType{IdentityTypeEmail, IdentityTypePhone, IdentityTypeExternal} {
		if err := valid.Validate(); err != nil {
			t.Fatalf("expected %q to validate, got %v", valid, err)
		}
	}
	if err := IdentityType("fax").Validate(); !errors.Is(err, ErrInvalidIdentityType) {
		t.Fatalf("expected invalid identity type error, got %v", err)
	}
}

func TestIngestionTransitions(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ingestion := &Ingestion{Status: IngestionStatusPending}

	if err := ingestion.TransitionTo(IngestionStatusProcessed, now); err != nil {
		t.Fatalf("pending -> processed: %v", err)
	}
	if ingestion.UpdatedAt != now {
		t.Fatalf("expected updated_at to move")
	}

	err := ingestion.TransitionTo(IngestionStatusPending, now)
	if !errors.Is(err, ErrInvalidIngestionStatusTransition) {
		t.Fatalf("expected processed -> pending to be rejected, got %v", err)
	}
}

func TestDeliveryTransitions(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		from DeliveryStatus
		to   DeliveryStatus
		ok   bool
	}{
		{DeliveryStatusPending, DeliveryStatusProcessing, true},
		{DeliveryStatusProcessing, DeliveryStatusSuccess, true},
		{DeliveryStatusProcessing, DeliveryStatusFailed, true},
		{DeliveryStatusProcessing, DeliveryStatusDeadLetter, true},
		{DeliveryStatusFailed, DeliveryStatusProcessing, true},
		{DeliveryStatusDeadLetter, DeliveryStatusPending, true},
		{DeliveryStatusPending, DeliveryStatusSuccess, false},
		{DeliveryStatusSuccess, DeliveryStatusPending, false},
		{DeliveryStatusDeadLetter, DeliveryStatusProcessing, false},
	}
	for _, tc := range cases {
		delivery := &Delivery{Status: tc.from}
		err := delivery.TransitionTo(tc.to, now)
		if tc.ok && err != nil {
			t.Fatalf("%s -> %s: unexpected error %v", tc.from, tc.to, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidDeliveryStatusTransition) {
			t.Fatalf("%s -> %s: expected transition error, got %v", tc.from, tc.to, err)
		}
	}
}

func TestDeliveryReplayResetsState(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	delivery := &Delivery{
		Status:        DeliveryStatusDeadLetter,
		AttemptCount:  50,
		LastError:     "destination returned 503",
		NextAttemptAt: nil,
	}

	delivery.Replay(later)
	if delivery.Status != DeliveryStatusPending {
		t.Fatalf("expected pending after replay, got %s", delivery.Status)
	}
	if delivery.NextAttemptAt == nil || !delivery.NextAttemptAt.Equal(later) {
		t.Fatalf("expected next attempt to be due immediately")
	}
	if delivery.LastError != "" {
		t.Fatalf("expected last error to be cleared")
	}
	if delivery.AttemptCount != 50 {
		t.Fatalf("expected attempt history to be preserved, got %d", delivery.AttemptCount)
	}
}

func TestDestinationSubscribed(t *testing.T) {
	all := Destination{}
	if !all.Subscribed(EventTypeLeadCreated) {
		t.Fatalf("expected empty subscription set to match every event")
	}

	scoped := Destination{SubscribedEvents: []string{EventTypeLeadUpdated}}
	if scoped.Subscribed(EventTypeLeadCreated) {
		t.Fatalf("expected lead_created to be filtered out")
	}
	if !scoped.Subscribed(EventTypeLeadUpdated) {
		t.Fatalf("expected lead_updated to match")
	}
}
