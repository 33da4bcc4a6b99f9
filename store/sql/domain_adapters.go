package sqlstore

import (
	"time"

	"github.com/lippelima5/repolead-sub000/core"
)

func newIngestionRecord(ingestion core.Ingestion) *ingestionRecord {
	return &ingestionRecord{
		ID:             ingestion.ID,
		WorkspaceID:    ingestion.WorkspaceID,
		SourceID:       ingestion.SourceID,
		Payload:        copyAnyMap(ingestion.Payload),
		IdempotencyKey: ingestion.IdempotencyKey,
		Size:           ingestion.Size,
		Status:         string(ingestion.Status),
		ReceivedAt:     ingestion.ReceivedAt.UTC(),
		UpdatedAt:      ingestion.UpdatedAt.UTC(),
	}
}

func (r *ingestionRecord) toDomain() core.Ingestion {
	if r == nil {
		return core.Ingestion{}
	}
	return core.Ingestion{
		ID:             r.ID,
		WorkspaceID:    r.WorkspaceID,
		SourceID:       r.SourceID,
		Payload:        copyAnyMap(r.Payload),
		IdempotencyKey: r.IdempotencyKey,
		Size:           r.Size,
		Status:         core.IngestionStatus(r.Status),
		ReceivedAt:     r.ReceivedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func newLeadRecord(lead core.Lead) *leadRecord {
	return &leadRecord{
		ID:          lead.ID,
		WorkspaceID: lead.WorkspaceID,
		Name:        lead.Name,
		Email:       lead.Email,
		Phone:       lead.Phone,
		Status:      string(lead.Status),
		Tags:        copyStrings(lead.Tags),
		CreatedAt:   lead.CreatedAt.UTC(),
		UpdatedAt:   lead.UpdatedAt.UTC(),
	}
}

func (r *leadRecord) toDomain() core.Lead {
	if r == nil {
		return core.Lead{}
	}
	return core.Lead{
		ID:          r.ID,
		WorkspaceID: r.WorkspaceID,
		Name:        r.Name,
		Email:       r.Email,
		Phone:       r.Phone,
		Status:      core.LeadStatus(r.Status),
		Tags:        copyStrings(r.Tags),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func newLeadIdentityRecord(identity core.LeadIdentity) *leadIdentityRecord {
	return &leadIdentityRecord{
		ID:              identity.ID,
		WorkspaceID:     identity.WorkspaceID,
		LeadID:          identity.LeadID,
		IdentityType:    string(identity.Type),
		NormalizedValue: identity.NormalizedValue,
		RawValue:        identity.RawValue,
		SourceID:        identity.SourceID,
		CreatedAt:       identity.CreatedAt.UTC(),
		UpdatedAt:       identity.UpdatedAt.UTC(),
	}
}

func (r *leadIdentityRecord) toDomain() core.LeadIdentity {
	if r == nil {
		return core.LeadIdentity{}
	}
	return core.LeadIdentity{
		ID:              r.ID,
		WorkspaceID:     r.WorkspaceID,
		LeadID:          r.LeadID,
		Type:            core.IdentityType(r.IdentityType),
		NormalizedValue: r.NormalizedValue,
		RawValue:        r.RawValue,
		SourceID:        r.SourceID,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func newLeadEventRecord(event core.LeadEvent) *leadEventRecord {
	return &leadEventRecord{
		ID:          event.ID,
		WorkspaceID: event.WorkspaceID,
		LeadID:      event.LeadID,
		IngestionID: event.IngestionID,
		DeliveryID:  event.DeliveryID,
		EventType:   string(event.Type),
		Data:        copyAnyMap(event.Data),
		CreatedAt:   event.CreatedAt.UTC(),
	}
}

func (r *leadEventRecord) toDomain() core.LeadEvent {
	if r == nil {
		return core.LeadEvent{}
	}
	return core.LeadEvent{
		ID:          r.ID,
		WorkspaceID: r.WorkspaceID,
		LeadID:      r.LeadID,
		IngestionID: r.IngestionID,
		DeliveryID:  r.DeliveryID,
		Type:        core.LeadEventType(r.EventType),
		Data:        copyAnyMap(r.Data),
		CreatedAt:   r.CreatedAt,
	}
}

func (r *destinationRecord) toDomain() core.Destination {
	if r == nil {
		return core.Destination{}
	}
	return core.Destination{
		ID:               r.ID,
		WorkspaceID:      r.WorkspaceID,
		Name:             r.Name,
		URL:              r.URL,
		Method:           r.Method,
		Enabled:          r.Enabled,
		SubscribedEvents: copyStrings(r.SubscribedEvents),
		Secret:           r.Secret,
		Headers:          copyStringMap(r.Headers),
		MaxAttempts:      r.MaxAttempts,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func newDeliveryRecord(delivery core.Delivery) *deliveryRecord {
	return &deliveryRecord{
		ID:            delivery.ID,
		WorkspaceID:   delivery.WorkspaceID,
		DestinationID: delivery.DestinationID,
		LeadID:        delivery.LeadID,
		IngestionID:   delivery.IngestionID,
		EventType:     delivery.EventType,
		Status:        string(delivery.Status),
		AttemptCount:  delivery.AttemptCount,
		LastAttemptAt: cloneTimePointer(delivery.LastAttemptAt),
		NextAttemptAt: cloneTimePointer(delivery.NextAttemptAt),
		LastError:     delivery.LastError,
		CreatedAt:     delivery.CreatedAt.UTC(),
		UpdatedAt:     delivery.UpdatedAt.UTC(),
	}
}

func (r *deliveryRecord) toDomain() core.Delivery {
	if r == nil {
		return core.Delivery{}
	}
	return core.Delivery{
		ID:            r.ID,
		WorkspaceID:   r.WorkspaceID,
		DestinationID: r.DestinationID,
		LeadID:        r.LeadID,
		IngestionID:   r.IngestionID,
		EventType:     r.EventType,
		Status:        core.DeliveryStatus(r.Status),
		AttemptCount:  r.AttemptCount,
		LastAttemptAt: cloneTimePointer(r.LastAttemptAt),
		NextAttemptAt: cloneTimePointer(r.NextAttemptAt),
		LastError:     r.LastError,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func newDeliveryAttemptRecord(attempt core.DeliveryAttempt) *deliveryAttemptRecord {
	return &deliveryAttemptRecord{
		ID:             attempt.ID,
		DeliveryID:     attempt.DeliveryID,
		AttemptNumber:  attempt.AttemptNumber,
		RequestPayload: append([]byte(nil), attempt.RequestPayload...),
		ResponseStatus: attempt.ResponseStatus,
		ResponseBody:   attempt.ResponseBody,
		Error:          attempt.Error,
		StartedAt:      attempt.StartedAt.UTC(),
		FinishedAt:     attempt.FinishedAt.UTC(),
	}
}

func (r *deliveryAttemptRecord) toDomain() core.DeliveryAttempt {
	if r == nil {
		return core.DeliveryAttempt{}
	}
	return core.DeliveryAttempt{
		ID:             r.ID,
		DeliveryID:     r.DeliveryID,
		AttemptNumber:  r.AttemptNumber,
		RequestPayload: append([]byte(nil), r.RequestPayload...),
		ResponseStatus: r.ResponseStatus,
		ResponseBody:   r.ResponseBody,
		Error:          r.Error,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
	}
}

func copyAnyMap(input map[string]any) map[string]any {
	if input == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}

func copyStringMap(input map[string]string) map[string]string {
	if len(input) == 0 {
		return nil
	}
	out := make(map[string]string, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}

func copyStrings(input []string) []string {
	if len(input) == 0 {
		return nil
	}
	return append([]string(nil), input...)
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
