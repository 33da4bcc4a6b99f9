// Package sqlstore persists the lead, identity, timeline and delivery state
// on bun, for both postgres and sqlite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/lippelima5/repolead-sub000/core"
)

type IngestionStore struct {
	db   *bun.DB
	repo repository.Repository[*ingestionRecord]
}

func NewIngestionStore(db *bun.DB) (*IngestionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*ingestionRecord](db, ingestionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid ingestion repository wiring: %w", err)
		}
	}
	return &IngestionStore{db: db, repo: repo}, nil
}

func (s *IngestionStore) Create(ctx context.Context, ingestion core.Ingestion) (core.Ingestion, error) {
	if s == nil || s.db == nil {
		return core.Ingestion{}, fmt.Errorf("sqlstore: ingestion store is not configured")
	}
	if strings.TrimSpace(ingestion.ID) == "" {
		return core.Ingestion{}, fmt.Errorf("sqlstore: ingestion id is required")
	}
	if strings.TrimSpace(ingestion.WorkspaceID) == "" {
		return core.Ingestion{}, fmt.Errorf("sqlstore: ingestion workspace id is required")
	}

	record := newIngestionRecord(ingestion)
	if _, err := conn(ctx, s.db).NewInsert().Model(record).Exec(ctx); err != nil {
		return core.Ingestion{}, err
	}
	return record.toDomain(), nil
}

func (s *IngestionStore) Get(ctx context.Context, id string) (core.Ingestion, error) {
	if s == nil || s.db == nil {
		return core.Ingestion{}, fmt.Errorf("sqlstore: ingestion store is not configured")
	}
	record := &ingestionRecord{}
	err := conn(ctx, s.db).NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Ingestion{}, core.ErrIngestionNotFound
		}
		return core.Ingestion{}, err
	}
	return record.toDomain(), nil
}

func (s *IngestionStore) FindByIdempotencyKey(
	ctx context.Context,
	workspaceID string,
	sourceID string,
	key string,
) (core.Ingestion, bool, error) {
	if s == nil || s.db == nil {
		return core.Ingestion{}, false, fmt.Errorf("sqlstore: ingestion store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return core.Ingestion{}, false, nil
	}

	record := &ingestionRecord{}
	err := conn(ctx, s.db).NewSelect().
		Model(record).
		Where("?TableAlias.workspace_id = ?", strings.TrimSpace(workspaceID)).
		Where("?TableAlias.source_id = ?", strings.TrimSpace(sourceID)).
		Where("?TableAlias.idempotency_key = ?", key).
		OrderExpr("?TableAlias.received_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Ingestion{}, false, nil
		}
		return core.Ingestion{}, false, err
	}
	return record.toDomain(), true, nil
}

func (s *IngestionStore) UpdateStatus(ctx context.Context, id string, status core.IngestionStatus) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: ingestion store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: ingestion id is required")
	}
	result, err := conn(ctx, s.db).NewUpdate().
		Model((*ingestionRecord)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, rowsErr := result.RowsAffected(); rowsErr == nil && affected == 0 {
		return core.ErrIngestionNotFound
	}
	return nil
}

var _ core.IngestionStore = (*IngestionStore)(nil)
