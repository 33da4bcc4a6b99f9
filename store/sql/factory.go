package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"

	"github.com/lippelima5/repolead-sub000/core"
)

type RepositoryFactory struct {
	db *bun.DB

	ingestionStore   *IngestionStore
	leadStore        *LeadStore
	identityStore    *IdentityStore
	leadEventStore   *LeadEventStore
	destinationStore core.DestinationStore
	deliveryStore    *DeliveryStore
	transactor       *BunTransactor

	destinationCache repositorycache.CacheService
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// WithDestinationCache fronts destination reads with a cache service. Call
// before BuildStores.
func (f *RepositoryFactory) WithDestinationCache(cacheService repositorycache.CacheService) *RepositoryFactory {
	if f == nil {
		return nil
	}
	f.destinationCache = cacheService
	return f
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.leadStore != nil && f.deliveryStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) IngestionStore() core.IngestionStore {
	if f == nil {
		return nil
	}
	return f.ingestionStore
}

func (f *RepositoryFactory) LeadStore() core.LeadStore {
	if f == nil {
		return nil
	}
	return f.leadStore
}

func (f *RepositoryFactory) IdentityStore() core.IdentityStore {
	if f == nil {
		return nil
	}
	return f.identityStore
}

func (f *RepositoryFactory) LeadEventStore() core.LeadEventStore {
	if f == nil {
		return nil
	}
	return f.leadEventStore
}

func (f *RepositoryFactory) DestinationStore() core.DestinationStore {
	if f == nil {
		return nil
	}
	return f.destinationStore
}

func (f *RepositoryFactory) DeliveryStore() core.DeliveryStore {
	if f == nil {
		return nil
	}
	return f.deliveryStore
}

func (f *RepositoryFactory) Transactor() core.Transactor {
	if f == nil {
		return nil
	}
	return f.transactor
}

func (f *RepositoryFactory) initStores() error {
	ingestionStore, err := NewIngestionStore(f.db)
	if err != nil {
		return err
	}
	f.ingestionStore = ingestionStore

	leadStore, err := NewLeadStore(f.db)
	if err != nil {
		return err
	}
	f.leadStore = leadStore

	identityStore, err := NewIdentityStore(f.db)
	if err != nil {
		return err
	}
	f.identityStore = identityStore

	leadEventStore, err := NewLeadEventStore(f.db)
	if err != nil {
		return err
	}
	f.leadEventStore = leadEventStore

	destinationStore, err := NewDestinationStore(f.db)
	if err != nil {
		return err
	}
	f.destinationStore = destinationStore
	if f.destinationCache != nil {
		cached, cacheErr := NewCachedDestinationStore(destinationStore, f.destinationCache)
		if cacheErr != nil {
			return cacheErr
		}
		f.destinationStore = cached
	}

	deliveryStore, err := NewDeliveryStore(f.db)
	if err != nil {
		return err
	}
	f.deliveryStore = deliveryStore

	transactor, err := NewBunTransactor(f.db)
	if err != nil {
		return err
	}
	f.transactor = transactor

	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}

var _ core.StoreProvider = (*RepositoryFactory)(nil)
