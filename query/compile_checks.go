package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/lippelima5/repolead-sub000/core"
)

var (
	_ gocmd.Querier[GetLeadTimelineMessage, LeadTimeline]   = (*GetLeadTimelineQuery)(nil)
	_ gocmd.Querier[GetIngestionMessage, core.Ingestion]    = (*GetIngestionQuery)(nil)
	_ gocmd.Querier[GetDeliveryLogMessage, DeliveryLog]     = (*GetDeliveryLogQuery)(nil)
	_ gocmd.Querier[ListDeliveriesMessage, []core.Delivery] = (*ListDeliveriesQuery)(nil)
)
