package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/lippelima5/repolead-sub000/core"
	"github.com/lippelima5/repolead-sub000/ingest"
)

type IngestService interface {
	Process(ctx context.Context, request core.IngestRequest) (ingest.Result, error)
	Submit(ctx context.Context, request core.IngestRequest) (core.Ingestion, error)
}

type DeliveryService interface {
	ProcessDue(ctx context.Context, limit int) (core.ProcessStats, error)
	Replay(ctx context.Context, deliveryID string) (core.Delivery, error)
	ReplayBulk(ctx context.Context, filter core.DeliveryFilter, limit int) (int, error)
}

type IngestCommand struct {
	service IngestService
}

func NewIngestCommand(service IngestService) *IngestCommand {
	return &IngestCommand{service: service}
}

func (c *IngestCommand) Execute(ctx context.Context, msg IngestMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: ingest service is required")
	}
	out, err := c.service.Process(ctx, msg.Request)
	if err != nil {
		return core.ServiceErrorMapper(err)
	}
	storeResult(ctx, out)
	return nil
}

type SubmitIngestionCommand struct {
	service IngestService
}

func NewSubmitIngestionCommand(service IngestService) *SubmitIngestionCommand {
	return &SubmitIngestionCommand{service: service}
}

func (c *SubmitIngestionCommand) Execute(ctx context.Context, msg SubmitIngestionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: ingest service is required")
	}
	out, err := c.service.Submit(ctx, msg.Request)
	if err != nil {
		return core.ServiceErrorMapper(err)
	}
	storeResult(ctx, out)
	return nil
}

type ProcessDueDeliveriesCommand struct {
	service DeliveryService
}

func NewProcessDueDeliveriesCommand(service DeliveryService) *ProcessDueDeliveriesCommand {
	return &ProcessDueDeliveriesCommand{service: service}
}

func (c *ProcessDueDeliveriesCommand) Execute(ctx context.Context, msg ProcessDueDeliveriesMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: delivery service is required")
	}
	out, err := c.service.ProcessDue(ctx, msg.Limit)
	if err != nil {
		return core.ServiceErrorMapper(err)
	}
	storeResult(ctx, out)
	return nil
}

type ReplayDeliveryCommand struct {
	service DeliveryService
}

func NewReplayDeliveryCommand(service DeliveryService) *ReplayDeliveryCommand {
	return &ReplayDeliveryCommand{service: service}
}

func (c *ReplayDeliveryCommand) Execute(ctx context.Context, msg ReplayDeliveryMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: delivery service is required")
	}
	out, err := c.service.Replay(ctx, msg.DeliveryID)
	if err != nil {
		return core.ServiceErrorMapper(err)
	}
	storeResult(ctx, out)
	return nil
}

type ReplayDeliveriesCommand struct {
	service DeliveryService
}

func NewReplayDeliveriesCommand(service DeliveryService) *ReplayDeliveriesCommand {
	return &ReplayDeliveriesCommand{service: service}
}

func (c *ReplayDeliveriesCommand) Execute(ctx context.Context, msg ReplayDeliveriesMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: delivery service is required")
	}
	out, err := c.service.ReplayBulk(ctx, msg.Filter, msg.Limit)
	if err != nil {
		return core.ServiceErrorMapper(err)
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
