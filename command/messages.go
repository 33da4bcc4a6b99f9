package command

import (
	"fmt"
	"strings"

	"github.com/lippelima5/repolead-sub000/core"
)

const (
	TypeIngest               = "repolead.command.ingest"
	TypeSubmitIngestion      = "repolead.command.ingest.submit"
	TypeProcessDueDeliveries = "repolead.command.deliveries.process_due"
	TypeReplayDelivery       = "repolead.command.deliveries.replay"
	TypeReplayDeliveries     = "repolead.command.deliveries.replay_bulk"
)

type IngestMessage struct {
	Request core.IngestRequest
}

func (IngestMessage) Type() string { return TypeIngest }

func (m IngestMessage) Validate() error {
	return validateIngestRequest(m.Request)
}

type SubmitIngestionMessage struct {
	Request core.IngestRequest
}

func (SubmitIngestionMessage) Type() string { return TypeSubmitIngestion }

func (m SubmitIngestionMessage) Validate() error {
	return validateIngestRequest(m.Request)
}

type ProcessDueDeliveriesMessage struct {
	// Limit caps the claimed batch for this invocation; <= 0 uses the
	// configured batch size.
	Limit int
}

func (ProcessDueDeliveriesMessage) Type() string { return TypeProcessDueDeliveries }

func (m ProcessDueDeliveriesMessage) Validate() error {
	if m.Limit < 0 {
		return fmt.Errorf("command: limit must not be negative")
	}
	return nil
}

type ReplayDeliveryMessage struct {
	DeliveryID string
}

func (ReplayDeliveryMessage) Type() string { return TypeReplayDelivery }

func (m ReplayDeliveryMessage) Validate() error {
	if strings.TrimSpace(m.DeliveryID) == "" {
		return fmt.Errorf("command: delivery id is required")
	}
	return nil
}

type ReplayDeliveriesMessage struct {
	Filter core.DeliveryFilter
	Limit  int
}

func (ReplayDeliveriesMessage) Type() string { return TypeReplayDeliveries }

func (m ReplayDeliveriesMessage) Validate() error {
	if strings.TrimSpace(m.Filter.WorkspaceID) == "" {
		return fmt.Errorf("command: workspace id is required")
	}
	if m.Limit < 0 {
		return fmt.Errorf("command: limit must not be negative")
	}
	return nil
}

func validateIngestRequest(request core.IngestRequest) error {
	if strings.TrimSpace(request.WorkspaceID) == "" {
		return fmt.Errorf("command: workspace id is required")
	}
	if strings.TrimSpace(request.SourceID) == "" {
		return fmt.Errorf("command: source id is required")
	}
	if request.Payload == nil {
		return fmt.Errorf("command: payload is required")
	}
	return nil
}
