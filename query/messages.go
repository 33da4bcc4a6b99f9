package query

import (
	"fmt"
	"strings"

	"github.com/lippelima5/repolead-sub000/core"
)

const (
	TypeGetLeadTimeline = "repolead.query.lead.timeline"
	TypeGetIngestion    = "repolead.query.ingestion.get"
	TypeGetDeliveryLog  = "repolead.query.delivery.log"
	TypeListDeliveries  = "repolead.query.deliveries.list"
)

type GetLeadTimelineMessage struct {
	LeadID     string
	EventLimit int
}

func (GetLeadTimelineMessage) Type() string { return TypeGetLeadTimeline }

func (m GetLeadTimelineMessage) Validate() error {
	if strings.TrimSpace(m.LeadID) == "" {
		return fmt.Errorf("query: lead id is required")
	}
	if m.EventLimit < 0 {
		return fmt.Errorf("query: event limit must not be negative")
	}
	return nil
}

type GetIngestionMessage struct {
	IngestionID string
}

func (GetIngestionMessage) Type() string { return TypeGetIngestion }

func (m GetIngestionMessage) Validate() error {
	if strings.TrimSpace(m.IngestionID) == "" {
		return fmt.Errorf("query: ingestion id is required")
	}
	return nil
}

type GetDeliveryLogMessage struct {
	DeliveryID string
}

func (GetDeliveryLogMessage) Type() string { return TypeGetDeliveryLog }

func (m GetDeliveryLogMessage) Validate() error {
	if strings.TrimSpace(m.DeliveryID) == "" {
		return fmt.Errorf("query: delivery id is required")
	}
	return nil
}

type ListDeliveriesMessage struct {
	Filter core.DeliveryFilter
	Limit  int
}

func (ListDeliveriesMessage) Type() string { return TypeListDeliveries }

func (m ListDeliveriesMessage) Validate() error {
	if strings.TrimSpace(m.Filter.WorkspaceID) == "" {
		return fmt.Errorf("query: workspace id is required")
	}
	if m.Limit < 0 {
		return fmt.Errorf("query: limit must not be negative")
	}
	return nil
}
