package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lippelima5/repolead-sub000/core"
)

// Executor performs one HTTP attempt for a claimed delivery and settles its
// outcome: success, retry with backoff, or dead-letter once the attempt
// budget is spent. The attempt row is persisted before the delivery row is
// touched, so a crash loses at most one retry, never the attempt history.
type Executor struct {
	Deliveries   core.DeliveryStore
	Destinations core.DestinationStore
	Leads        core.LeadStore
	Events       core.LeadEventStore
	HTTPClient   *http.Client
	Config       core.DeliveryConfig
	Backoff      BackoffPolicy
	Observer     core.Observer
	Now          func() time.Time
	NewID        func() string
}

func NewExecutor(stores core.StoreProvider, cfg core.DeliveryConfig) *Executor {
	executor := &Executor{
		Config:  cfg,
		Backoff: NewBackoffPolicy(cfg.Retry),
		Now: func() time.Time {
			return time.Now().UTC()
		},
		NewID: uuid.NewString,
	}
	if stores != nil {
		executor.Deliveries = stores.DeliveryStore()
		executor.Destinations = stores.DestinationStore()
		executor.Leads = stores.LeadStore()
		executor.Events = stores.LeadEventStore()
	}
	return executor
}

type webhookPayload struct {
	Event      string        `json:"event"`
	DeliveryID string        `json:"delivery_id"`
	Timestamp  int64         `json:"timestamp"`
	Lead       *leadSnapshot `json:"lead,omitempty"`
}

type leadSnapshot struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Name        string    `json:"name,omitempty"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Status      string    `json:"status"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Execute runs one attempt for a delivery already claimed into processing.
func (e *Executor) Execute(ctx context.Context, delivery core.Delivery) (core.DeliveryResult, error) {
	if e == nil || e.Deliveries == nil || e.Destinations == nil || e.Leads == nil {
		return core.DeliveryResult{}, fmt.Errorf("webhooks: executor is not configured")
	}
	startedAt := e.now()

	destination, lead, setupErr := e.loadTarget(ctx, delivery)

	var attempt core.DeliveryAttempt
	if setupErr != nil {
		attempt = core.DeliveryAttempt{
			DeliveryID:    delivery.ID,
			AttemptNumber: delivery.AttemptCount + 1,
			Error:         setupErr.Error(),
			StartedAt:     startedAt,
			FinishedAt:    e.now(),
		}
	} else {
		attempt = e.perform(ctx, delivery, destination, lead)
	}
	attempt.ID = e.newID()

	if _, err := e.Deliveries.AppendAttempt(ctx, attempt); err != nil {
		return core.DeliveryResult{}, err
	}

	delivery, err := e.settle(ctx, delivery, destination, attempt)
	if err != nil {
		return core.DeliveryResult{}, err
	}

	result := core.DeliveryResult{
		DeliveryID: delivery.ID,
		Success:    delivery.Status == core.DeliveryStatusSuccess,
		Error:      attempt.Error,
	}
	e.Observer.Observe(ctx, startedAt, "webhooks.attempt", nil, map[string]any{
		"workspace_id":   delivery.WorkspaceID,
		"delivery_id":    delivery.ID,
		"destination_id": delivery.DestinationID,
		"event_type":     delivery.EventType,
		"attempt":        attempt.AttemptNumber,
		"status":         string(delivery.Status),
	})
	return result, nil
}

func (e *Executor) loadTarget(ctx context.Context, delivery core.Delivery) (core.Destination, core.Lead, error) {
	destination, err := e.Destinations.Get(ctx, delivery.DestinationID)
	if err != nil {
		return core.Destination{}, core.Lead{}, fmt.Errorf("webhooks: destination %s: %w", delivery.DestinationID, err)
	}
	if !destination.Enabled {
		return destination, core.Lead{}, fmt.Errorf("webhooks: destination %s is disabled", destination.ID)
	}
	// deliveries without a lead reference carry no snapshot
	if delivery.LeadID == "" {
		return destination, core.Lead{}, nil
	}
	lead, err := e.Leads.Get(ctx, delivery.LeadID)
	if err != nil {
		return destination, core.Lead{}, fmt.Errorf("webhooks: lead %s: %w", delivery.LeadID, err)
	}
	return destination, lead, nil
}

// perform issues the HTTP call and returns the attempt record. A non-2xx
// status and a transport error are both recorded the same way; the caller
// decides the retry consequence.
func (e *Executor) perform(
	ctx context.Context,
	delivery core.Delivery,
	destination core.Destination,
	lead core.Lead,
) core.DeliveryAttempt {
	startedAt := e.now()
	attempt := core.DeliveryAttempt{
		DeliveryID:    delivery.ID,
		AttemptNumber: delivery.AttemptCount + 1,
		StartedAt:     startedAt,
	}

	timestamp := startedAt.Unix()
	payload := webhookPayload{
		Event:      delivery.EventType,
		DeliveryID: delivery.ID,
		Timestamp:  timestamp,
	}
	if lead.ID != "" {
		payload.Lead = &leadSnapshot{
			ID:          lead.ID,
			WorkspaceID: lead.WorkspaceID,
			Name:        lead.Name,
			Email:       lead.Email,
			Phone:       lead.Phone,
			Status:      string(lead.Status),
			Tags:        lead.Tags,
			CreatedAt:   lead.CreatedAt,
			UpdatedAt:   lead.UpdatedAt,
		}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		attempt.Error = err.Error()
		attempt.FinishedAt = e.now()
		return attempt
	}
	attempt.RequestPayload = body

	timeout := e.Config.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := strings.ToUpper(strings.TrimSpace(destination.Method))
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(reqCtx, method, destination.URL, bytes.NewReader(body))
	if err != nil {
		attempt.Error = err.Error()
		attempt.FinishedAt = e.now()
		return attempt
	}

	req.Header.Set("Content-Type", "application/json")
	for name, value := range destination.Headers {
		req.Header.Set(name, value)
	}
	req.Header.Set(e.headerName(e.Config.TimestampHeader, "X-RepoLead-Timestamp"), strconv.FormatInt(timestamp, 10))
	req.Header.Set(e.headerName(e.Config.EventHeader, "X-RepoLead-Event"), delivery.EventType)
	req.Header.Set(e.headerName(e.Config.DeliveryIDHeader, "X-RepoLead-Delivery-Id"), delivery.ID)
	if destination.Secret != "" {
		req.Header.Set(e.headerName(e.Config.SignatureHeader, "X-RepoLead-Signature"), Sign(destination.Secret, timestamp, body))
	}

	resp, err := e.httpClient().Do(req)
	if err != nil {
		attempt.Error = err.Error()
		attempt.FinishedAt = e.now()
		return attempt
	}
	defer resp.Body.Close()

	attempt.ResponseStatus = resp.StatusCode
	attempt.ResponseBody = e.readResponseBody(resp.Body)
	attempt.FinishedAt = e.now()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		attempt.Error = fmt.Sprintf("webhooks: destination responded %d", resp.StatusCode)
	}
	return attempt
}

// settle applies the attempt outcome to the delivery row and appends the
// matching timeline event when the delivery references a lead.
func (e *Executor) settle(
	ctx context.Context,
	delivery core.Delivery,
	destination core.Destination,
	attempt core.DeliveryAttempt,
) (core.Delivery, error) {
	now := e.now()
	delivery.AttemptCount = attempt.AttemptNumber
	lastAttempt := attempt.StartedAt
	delivery.LastAttemptAt = &lastAttempt

	if attempt.Error == "" {
		if err := delivery.TransitionTo(core.DeliveryStatusSuccess, now); err != nil {
			return core.Delivery{}, err
		}
		delivery.NextAttemptAt = nil
		delivery.LastError = ""
		updated, err := e.Deliveries.Update(ctx, delivery)
		if err != nil {
			return core.Delivery{}, err
		}
		e.appendTimeline(ctx, updated, core.LeadEventDelivered, map[string]any{
			"destination_id": updated.DestinationID,
			"attempt":        attempt.AttemptNumber,
		})
		return updated, nil
	}

	delivery.LastError = attempt.Error
	if attempt.AttemptNumber >= e.maxAttempts(destination) {
		if err := delivery.TransitionTo(core.DeliveryStatusDeadLetter, now); err != nil {
			return core.Delivery{}, err
		}
		delivery.NextAttemptAt = nil
		updated, err := e.Deliveries.Update(ctx, delivery)
		if err != nil {
			return core.Delivery{}, err
		}
		e.appendTimeline(ctx, updated, core.LeadEventDeliveryFailed, map[string]any{
			"destination_id": updated.DestinationID,
			"attempts":       attempt.AttemptNumber,
			"error":          attempt.Error,
		})
		return updated, nil
	}

	if err := delivery.TransitionTo(core.DeliveryStatusFailed, now); err != nil {
		return core.Delivery{}, err
	}
	next := now.Add(e.Backoff.Next(attempt.AttemptNumber))
	delivery.NextAttemptAt = &next
	updated, err := e.Deliveries.Update(ctx, delivery)
	if err != nil {
		return core.Delivery{}, err
	}
	e.appendTimeline(ctx, updated, core.LeadEventDeliveryFailed, map[string]any{
		"destination_id": updated.DestinationID,
		"attempt":        attempt.AttemptNumber,
		"error":          attempt.Error,
		"will_retry":     true,
	})
	return updated, nil
}

func (e *Executor) appendTimeline(ctx context.Context, delivery core.Delivery, eventType core.LeadEventType, data map[string]any) {
	if e.Events == nil || delivery.LeadID == "" {
		return
	}
	// A failed timeline write must not undo a settled delivery outcome.
	_, err := e.Events.Append(ctx, core.LeadEvent{
		ID:          e.newID(),
		WorkspaceID: delivery.WorkspaceID,
		LeadID:      delivery.LeadID,
		IngestionID: delivery.IngestionID,
		DeliveryID:  delivery.ID,
		Type:        eventType,
		Data:        data,
		CreatedAt:   e.now(),
	})
	if err != nil && e.Observer.Logger != nil {
		e.Observer.Logger.Warn("webhooks: timeline append failed", "delivery_id", delivery.ID, "error", err)
	}
}

func (e *Executor) maxAttempts(destination core.Destination) int {
	if destination.MaxAttempts > 0 {
		return destination.MaxAttempts
	}
	if e.Config.Retry.MaxAttempts > 0 {
		return e.Config.Retry.MaxAttempts
	}
	return 50
}

func (e *Executor) readResponseBody(body io.Reader) string {
	limit := e.Config.ResponseBodyCap
	if limit <= 0 {
		limit = 4096
	}
	data, err := io.ReadAll(io.LimitReader(body, int64(limit)))
	if err != nil {
		return ""
	}
	return string(data)
}

func (e *Executor) headerName(configured, fallback string) string {
	if name := strings.TrimSpace(configured); name != "" {
		return name
	}
	return fallback
}

func (e *Executor) httpClient() *http.Client {
	if e != nil && e.HTTPClient != nil {
		return e.HTTPClient
	}
	return http.DefaultClient
}

func (e *Executor) now() time.Time {
	if e != nil && e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e *Executor) newID() string {
	if e != nil && e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}
