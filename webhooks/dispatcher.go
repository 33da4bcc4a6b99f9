package webhooks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lippelima5/repolead-sub000/core"
)

// Dispatcher fans one settled domain event out to every enabled destination
// subscribed to it, creating one pending delivery per destination. Dispatch
// itself performs no HTTP work.
type Dispatcher struct {
	Destinations core.DestinationStore
	Deliveries   core.DeliveryStore
	Observer     core.Observer
	Now          func() time.Time
	NewID        func() string
}

func NewDispatcher(stores core.StoreProvider) *Dispatcher {
	dispatcher := &Dispatcher{
		Now: func() time.Time {
			return time.Now().UTC()
		},
		NewID: uuid.NewString,
	}
	if stores != nil {
		dispatcher.Destinations = stores.DestinationStore()
		dispatcher.Deliveries = stores.DeliveryStore()
	}
	return dispatcher
}

type DispatchInput struct {
	WorkspaceID string
	LeadID      string
	IngestionID string
	EventType   string
}

func (in DispatchInput) Validate() error {
	if strings.TrimSpace(in.WorkspaceID) == "" {
		return fmt.Errorf("webhooks: workspace id is required")
	}
	if strings.TrimSpace(in.EventType) == "" {
		return fmt.Errorf("webhooks: event type is required")
	}
	return nil
}

// Dispatch creates the pending deliveries for one event. Zero matching
// destinations is a no-op, not an error.
func (d *Dispatcher) Dispatch(ctx context.Context, in DispatchInput) ([]core.Delivery, error) {
	if d == nil || d.Destinations == nil || d.Deliveries == nil {
		return nil, fmt.Errorf("webhooks: dispatcher is not configured")
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	startedAt := d.now()

	destinations, err := d.Destinations.ListEnabled(ctx, in.WorkspaceID)
	if err != nil {
		return nil, err
	}

	var created []core.Delivery
	for _, destination := range destinations {
		if !destination.Subscribed(in.EventType) {
			continue
		}
		now := d.now()
		next := now
		delivery, err := d.Deliveries.Create(ctx, core.Delivery{
			ID:            d.newID(),
			WorkspaceID:   in.WorkspaceID,
			DestinationID: destination.ID,
			LeadID:        in.LeadID,
			IngestionID:   in.IngestionID,
			EventType:     in.EventType,
			Status:        core.DeliveryStatusPending,
			NextAttemptAt: &next,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		if err != nil {
			return created, err
		}
		created = append(created, delivery)
	}

	d.Observer.Observe(ctx, startedAt, "webhooks.dispatch", nil, map[string]any{
		"workspace_id": in.WorkspaceID,
		"lead_id":      in.LeadID,
		"event_type":   in.EventType,
		"deliveries":   len(created),
	})
	return created, nil
}

func (d *Dispatcher) now() time.Time {
	if d != nil && d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d *Dispatcher) newID() string {
	if d != nil && d.NewID != nil {
		return d.NewID()
	}
	return uuid.NewString()
}
