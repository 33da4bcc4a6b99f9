package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/lippelima5/repolead-sub000/core"
)

// DestinationStore reads webhook destination configuration. Destinations are
// managed out of band; the engine only consumes them.
type DestinationStore struct {
	db   *bun.DB
	repo repository.Repository[*destinationRecord]
}

func NewDestinationStore(db *bun.DB) (*DestinationStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*destinationRecord](db, destinationHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid destination repository wiring: %w", err)
		}
	}
	return &DestinationStore{db: db, repo: repo}, nil
}

func (s *DestinationStore) Get(ctx context.Context, id string) (core.Destination, error) {
	if s == nil || s.db == nil {
		return core.Destination{}, fmt.Errorf("sqlstore: destination store is not configured")
	}
	record := &destinationRecord{}
	err := conn(ctx, s.db).NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Destination{}, core.ErrDestinationNotFound
		}
		return core.Destination{}, err
	}
	return record.toDomain(), nil
}

func (s *DestinationStore) ListEnabled(ctx context.Context, workspaceID string) ([]core.Destination, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: destination store is not configured")
	}
	var records []destinationRecord
	err := conn(ctx, s.db).NewSelect().
		Model(&records).
		Where("?TableAlias.workspace_id = ?", strings.TrimSpace(workspaceID)).
		Where("?TableAlias.enabled = ?", true).
		OrderExpr("?TableAlias.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	destinations := make([]core.Destination, 0, len(records))
	for i := range records {
		destinations = append(destinations, records[i].toDomain())
	}
	return destinations, nil
}

var _ core.DestinationStore = (*DestinationStore)(nil)
