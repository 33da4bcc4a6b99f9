package repolead

import (
	"context"
	"fmt"
	"net/http"

	repoleadcommand "github.com/lippelima5/repolead-sub000/command"
	"github.com/lippelima5/repolead-sub000/core"
	"github.com/lippelima5/repolead-sub000/identity"
	"github.com/lippelima5/repolead-sub000/ingest"
	repoleadquery "github.com/lippelima5/repolead-sub000/query"
	"github.com/lippelima5/repolead-sub000/webhooks"
)

// Commands is the typed mutation surface.
type Commands struct {
	Ingest               *repoleadcommand.IngestCommand
	SubmitIngestion      *repoleadcommand.SubmitIngestionCommand
	ProcessDueDeliveries *repoleadcommand.ProcessDueDeliveriesCommand
	ReplayDelivery       *repoleadcommand.ReplayDeliveryCommand
	ReplayDeliveries     *repoleadcommand.ReplayDeliveriesCommand
}

// Queries is the typed read surface.
type Queries struct {
	GetLeadTimeline *repoleadquery.GetLeadTimelineQuery
	GetIngestion    *repoleadquery.GetIngestionQuery
	GetDeliveryLog  *repoleadquery.GetDeliveryLogQuery
	ListDeliveries  *repoleadquery.ListDeliveriesQuery
}

// Facade wires the ingestion pipeline, the delivery scheduler and the read
// surface on top of one store provider.
type Facade struct {
	config    core.Config
	stores    core.StoreProvider
	pipeline  *ingest.Pipeline
	scheduler *webhooks.Scheduler
	readers   *repoleadquery.StoreReaders
	commands  Commands
	queries   Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	logger         core.Logger
	metrics        core.MetricsRecorder
	httpClient     *http.Client
	configProvider core.ConfigProvider
}

func WithLogger(logger core.Logger) FacadeOption {
	return func(options *facadeOptions) {
		options.logger = logger
	}
}

func WithMetricsRecorder(metrics core.MetricsRecorder) FacadeOption {
	return func(options *facadeOptions) {
		options.metrics = metrics
	}
}

func WithHTTPClient(client *http.Client) FacadeOption {
	return func(options *facadeOptions) {
		options.httpClient = client
	}
}

// WithConfigProvider layers externally loaded configuration under the config
// passed to New. Runtime values still win.
func WithConfigProvider(provider core.ConfigProvider) FacadeOption {
	return func(options *facadeOptions) {
		options.configProvider = provider
	}
}

func New(cfg core.Config, stores core.StoreProvider, opts ...FacadeOption) (*Facade, error) {
	if stores == nil {
		return nil, fmt.Errorf("repolead: store provider is required")
	}

	options := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&options)
	}

	if options.configProvider != nil {
		resolved, err := core.ResolveConfig(context.Background(), options.configProvider, nil, cfg)
		if err != nil {
			return nil, err
		}
		cfg = resolved
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	observer := core.Observer{Logger: options.logger, Metrics: options.metrics}

	pipeline := ingest.NewPipeline(cfg, stores)
	pipeline.Observer = observer
	if resolver, ok := pipeline.Resolver.(*identity.Resolver); ok {
		resolver.Observer = observer
	}
	if dispatcher, ok := pipeline.Dispatcher.(*webhooks.Dispatcher); ok {
		dispatcher.Observer = observer
	}

	executor := webhooks.NewExecutor(stores, cfg.Delivery)
	executor.Observer = observer
	if options.httpClient != nil {
		executor.HTTPClient = options.httpClient
	}

	scheduler := webhooks.NewScheduler(stores, executor, cfg.Delivery)
	scheduler.Observer = observer

	readers := repoleadquery.NewStoreReaders(stores)

	facade := &Facade{
		config:    cfg,
		stores:    stores,
		pipeline:  pipeline,
		scheduler: scheduler,
		readers:   readers,
	}
	facade.commands = Commands{
		Ingest:               repoleadcommand.NewIngestCommand(pipeline),
		SubmitIngestion:      repoleadcommand.NewSubmitIngestionCommand(pipeline),
		ProcessDueDeliveries: repoleadcommand.NewProcessDueDeliveriesCommand(scheduler),
		ReplayDelivery:       repoleadcommand.NewReplayDeliveryCommand(scheduler),
		ReplayDeliveries:     repoleadcommand.NewReplayDeliveriesCommand(scheduler),
	}
	facade.queries = Queries{
		GetLeadTimeline: repoleadquery.NewGetLeadTimelineQuery(readers),
		GetIngestion:    repoleadquery.NewGetIngestionQuery(readers),
		GetDeliveryLog:  repoleadquery.NewGetDeliveryLogQuery(readers),
		ListDeliveries:  repoleadquery.NewListDeliveriesQuery(readers),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Pipeline() *ingest.Pipeline {
	if f == nil {
		return nil
	}
	return f.pipeline
}

func (f *Facade) Scheduler() *webhooks.Scheduler {
	if f == nil {
		return nil
	}
	return f.scheduler
}

func (f *Facade) Stores() core.StoreProvider {
	if f == nil {
		return nil
	}
	return f.stores
}

func (f *Facade) Config() core.Config {
	if f == nil {
		return core.Config{}
	}
	return f.config
}

// Close drains the async ingestion queue.
func (f *Facade) Close() {
	if f == nil || f.pipeline == nil {
		return
	}
	f.pipeline.Close()
}
