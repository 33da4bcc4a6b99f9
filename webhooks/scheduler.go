package webhooks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lippelima5/repolead-sub000/core"
)

// Scheduler drives due deliveries through the executor. Claiming flips rows
// to processing atomically, so overlapping scheduler runs never execute the
// same delivery twice.
type Scheduler struct {
	Deliveries core.DeliveryStore
	Events     core.LeadEventStore
	Executor   *Executor
	Config     core.DeliveryConfig
	Observer   core.Observer
	Now        func() time.Time
	NewID      func() string
}

func NewScheduler(stores core.StoreProvider, executor *Executor, cfg core.DeliveryConfig) *Scheduler {
	scheduler := &Scheduler{
		Executor: executor,
		Config:   cfg,
		Now: func() time.Time {
			return time.Now().UTC()
		},
		NewID: uuid.NewString,
	}
	if stores != nil {
		scheduler.Deliveries = stores.DeliveryStore()
		scheduler.Events = stores.LeadEventStore()
	}
	return scheduler
}

// ProcessDue claims one batch of due deliveries and executes them with
// bounded parallelism. A limit <= 0 falls back to the configured batch
// size. Per-delivery failures are reported in the stats, not as an error;
// the returned error covers claim failures only.
func (s *Scheduler) ProcessDue(ctx context.Context, limit int) (core.ProcessStats, error) {
	if s == nil || s.Deliveries == nil || s.Executor == nil {
		return core.ProcessStats{}, fmt.Errorf("webhooks: scheduler is not configured")
	}
	startedAt := s.now()

	batchSize := limit
	if batchSize <= 0 {
		batchSize = s.Config.BatchSize
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	claimed, err := s.Deliveries.ClaimDue(ctx, batchSize, s.now())
	if err != nil {
		return core.ProcessStats{}, err
	}
	if len(claimed) == 0 {
		return core.ProcessStats{}, nil
	}

	parallelism := s.Config.Parallelism
	if parallelism <= 0 {
		parallelism = 8
	}

	var mu sync.Mutex
	stats := core.ProcessStats{Processed: len(claimed)}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(parallelism)
	for _, delivery := range claimed {
		delivery := delivery
		group.Go(func() error {
			result, execErr := s.Executor.Execute(groupCtx, delivery)
			if execErr != nil {
				result = core.DeliveryResult{DeliveryID: delivery.ID, Error: execErr.Error()}
				s.release(ctx, delivery, execErr)
			}
			mu.Lock()
			stats.Results = append(stats.Results, result)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return stats, err
	}

	succeeded := 0
	for _, result := range stats.Results {
		if result.Success {
			succeeded++
		}
	}
	s.Observer.Observe(ctx, startedAt, "webhooks.process_due", nil, map[string]any{
		"claimed":   len(claimed),
		"succeeded": succeeded,
	})
	return stats, nil
}

// release puts an executor-failed claim back into the retryable pool. A row
// stuck in processing would never match the due selector again.
func (s *Scheduler) release(ctx context.Context, delivery core.Delivery, execErr error) {
	now := s.now()
	if err := delivery.TransitionTo(core.DeliveryStatusFailed, now); err != nil {
		return
	}
	delivery.LastError = execErr.Error()
	next := now.Add(time.Minute)
	delivery.NextAttemptAt = &next
	if _, err := s.Deliveries.Update(ctx, delivery); err != nil && s.Observer.Logger != nil {
		s.Observer.Logger.Warn("webhooks: release claimed delivery failed", "delivery_id", delivery.ID, "error", err)
	}
}

// Replay resets one delivery to pending and records it on the lead timeline.
// It works from any state and is the only way out of dead_letter.
func (s *Scheduler) Replay(ctx context.Context, deliveryID string) (core.Delivery, error) {
	if s == nil || s.Deliveries == nil {
		return core.Delivery{}, fmt.Errorf("webhooks: scheduler is not configured")
	}
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return core.Delivery{}, fmt.Errorf("webhooks: delivery id is required")
	}
	startedAt := s.now()

	replayed, err := s.Deliveries.Replay(ctx, deliveryID, s.now())
	if err != nil {
		return core.Delivery{}, err
	}
	if !replayed {
		return core.Delivery{}, core.ErrDeliveryNotFound
	}

	delivery, err := s.Deliveries.Get(ctx, deliveryID)
	if err != nil {
		return core.Delivery{}, err
	}
	if s.Events != nil {
		_, _ = s.Events.Append(ctx, core.LeadEvent{
			ID:          s.newID(),
			WorkspaceID: delivery.WorkspaceID,
			LeadID:      delivery.LeadID,
			DeliveryID:  delivery.ID,
			Type:        core.LeadEventReplayed,
			Data:        map[string]any{"destination_id": delivery.DestinationID},
			CreatedAt:   s.now(),
		})
	}
	s.Observer.Observe(ctx, startedAt, "webhooks.replay", nil, map[string]any{
		"workspace_id": delivery.WorkspaceID,
		"delivery_id":  delivery.ID,
	})
	return delivery, nil
}

// ReplayBulk resets every delivery matching the filter, dead-lettered rows
// included, up to limit. It returns the number of deliveries reset.
func (s *Scheduler) ReplayBulk(ctx context.Context, filter core.DeliveryFilter, limit int) (int, error) {
	if s == nil || s.Deliveries == nil {
		return 0, fmt.Errorf("webhooks: scheduler is not configured")
	}
	if strings.TrimSpace(filter.WorkspaceID) == "" {
		return 0, fmt.Errorf("webhooks: workspace id is required for bulk replay")
	}
	if limit <= 0 {
		limit = 100
	}
	startedAt := s.now()

	count, err := s.Deliveries.ReplayBulk(ctx, filter, limit, s.now())
	if err != nil {
		return 0, err
	}
	s.Observer.Observe(ctx, startedAt, "webhooks.replay_bulk", nil, map[string]any{
		"workspace_id": filter.WorkspaceID,
		"replayed":     count,
	})
	return count, nil
}

func (s *Scheduler) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Scheduler) newID() string {
	if s != nil && s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}
