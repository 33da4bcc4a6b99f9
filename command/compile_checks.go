package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[IngestMessage]               = (*IngestCommand)(nil)
	_ gocmd.Commander[SubmitIngestionMessage]      = (*SubmitIngestionCommand)(nil)
	_ gocmd.Commander[ProcessDueDeliveriesMessage] = (*ProcessDueDeliveriesCommand)(nil)
	_ gocmd.Commander[ReplayDeliveryMessage]       = (*ReplayDeliveryCommand)(nil)
	_ gocmd.Commander[ReplayDeliveriesMessage]     = (*ReplayDeliveriesCommand)(nil)
)
