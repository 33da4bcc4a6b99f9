package query

import (
	"context"

	"github.com/lippelima5/repolead-sub000/core"
)

// LeadTimeline is the operator view of one lead: the canonical record, its
// identity claims and the append-only event history.
type LeadTimeline struct {
	Lead       core.Lead
	Identities []core.LeadIdentity
	Events     []core.LeadEvent
}

// DeliveryLog is the operator view of one delivery: current state plus the
// full attempt history.
type DeliveryLog struct {
	Delivery core.Delivery
	Attempts []core.DeliveryAttempt
}

type LeadTimelineReader interface {
	GetLeadTimeline(ctx context.Context, leadID string, eventLimit int) (LeadTimeline, error)
}

type IngestionReader interface {
	GetIngestion(ctx context.Context, id string) (core.Ingestion, error)
}

type DeliveryReader interface {
	GetDeliveryLog(ctx context.Context, deliveryID string) (DeliveryLog, error)
	ListDeliveries(ctx context.Context, filter core.DeliveryFilter, limit int) ([]core.Delivery, error)
}

type GetLeadTimelineQuery struct {
	reader LeadTimelineReader
}

func NewGetLeadTimelineQuery(reader LeadTimelineReader) *GetLeadTimelineQuery {
	return &GetLeadTimelineQuery{reader: reader}
}

func (q *GetLeadTimelineQuery) Query(ctx context.Context, msg GetLeadTimelineMessage) (LeadTimeline, error) {
	if q == nil || q.reader == nil {
		return LeadTimeline{}, queryDependencyError("query: lead timeline reader is required")
	}
	out, err := q.reader.GetLeadTimeline(ctx, msg.LeadID, msg.EventLimit)
	if err != nil {
		return LeadTimeline{}, core.ServiceErrorMapper(err)
	}
	return out, nil
}

type GetIngestionQuery struct {
	reader IngestionReader
}

func NewGetIngestionQuery(reader IngestionReader) *GetIngestionQuery {
	return &GetIngestionQuery{reader: reader}
}

func (q *GetIngestionQuery) Query(ctx context.Context, msg GetIngestionMessage) (core.Ingestion, error) {
	if q == nil || q.reader == nil {
		return core.Ingestion{}, queryDependencyError("query: ingestion reader is required")
	}
	out, err := q.reader.GetIngestion(ctx, msg.IngestionID)
	if err != nil {
		return core.Ingestion{}, core.ServiceErrorMapper(err)
	}
	return out, nil
}

type GetDeliveryLogQuery struct {
	reader DeliveryReader
}

func NewGetDeliveryLogQuery(reader DeliveryReader) *GetDeliveryLogQuery {
	return &GetDeliveryLogQuery{reader: reader}
}

func (q *GetDeliveryLogQuery) Query(ctx context.Context, msg GetDeliveryLogMessage) (DeliveryLog, error) {
	if q == nil || q.reader == nil {
		return DeliveryLog{}, queryDependencyError("query: delivery reader is required")
	}
	out, err := q.reader.GetDeliveryLog(ctx, msg.DeliveryID)
	if err != nil {
		return DeliveryLog{}, core.ServiceErrorMapper(err)
	}
	return out, nil
}

type ListDeliveriesQuery struct {
	reader DeliveryReader
}

func NewListDeliveriesQuery(reader DeliveryReader) *ListDeliveriesQuery {
	return &ListDeliveriesQuery{reader: reader}
}

func (q *ListDeliveriesQuery) Query(ctx context.Context, msg ListDeliveriesMessage) ([]core.Delivery, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: delivery reader is required")
	}
	out, err := q.reader.ListDeliveries(ctx, msg.Filter, msg.Limit)
	if err != nil {
		return nil, core.ServiceErrorMapper(err)
	}
	return out, nil
}
