package repolead

import "github.com/lippelima5/repolead-sub000/core"

type Config = core.Config

type IngestRequest = core.IngestRequest

type Lead = core.Lead
type LeadIdentity = core.LeadIdentity
type LeadEvent = core.LeadEvent
type Ingestion = core.Ingestion

type Destination = core.Destination
type Delivery = core.Delivery
type DeliveryAttempt = core.DeliveryAttempt
type DeliveryFilter = core.DeliveryFilter
type ProcessStats = core.ProcessStats

type Resolution = core.Resolution

type StoreProvider = core.StoreProvider
type Logger = core.Logger
type MetricsRecorder = core.MetricsRecorder

func DefaultConfig() Config {
	return core.DefaultConfig()
}
