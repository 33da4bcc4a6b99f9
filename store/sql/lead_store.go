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

type LeadStore struct {
	db   *bun.DB
	repo repository.Repository[*leadRecord]
}

func NewLeadStore(db *bun.DB) (*LeadStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*leadRecord](db, leadHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid lead repository wiring: %w", err)
		}
	}
	return &LeadStore{db: db, repo: repo}, nil
}

func (s *LeadStore) Create(ctx context.Context, lead core.Lead) (core.Lead, error) {
	if s == nil || s.db == nil {
		return core.Lead{}, fmt.Errorf("sqlstore: lead store is not configured")
	}
	if strings.TrimSpace(lead.ID) == "" {
		return core.Lead{}, fmt.Errorf("sqlstore: lead id is required")
	}
	if strings.TrimSpace(lead.WorkspaceID) == "" {
		return core.Lead{}, fmt.Errorf("sqlstore: lead workspace id is required")
	}

	record := newLeadRecord(lead)
	if _, err := conn(ctx, s.db).NewInsert().Model(record).Exec(ctx); err != nil {
		return core.Lead{}, err
	}
	return record.toDomain(), nil
}

func (s *LeadStore) Get(ctx context.Context, id string) (core.Lead, error) {
	if s == nil || s.db == nil {
		return core.Lead{}, fmt.Errorf("sqlstore: lead store is not configured")
	}
	record := &leadRecord{}
	err := conn(ctx, s.db).NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Lead{}, core.ErrLeadNotFound
		}
		return core.Lead{}, err
	}
	return record.toDomain(), nil
}

func (s *LeadStore) GetMany(ctx context.Context, ids []string) ([]core.Lead, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: lead store is not configured")
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var records []leadRecord
	err := conn(ctx, s.db).NewSelect().
		Model(&records).
		Where("?TableAlias.id IN (?)", bun.In(ids)).
		OrderExpr("?TableAlias.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	leads := make([]core.Lead, 0, len(records))
	for i := range records {
		leads = append(leads, records[i].toDomain())
	}
	return leads, nil
}

func (s *LeadStore) Update(ctx context.Context, lead core.Lead) (core.Lead, error) {
	if s == nil || s.db == nil {
		return core.Lead{}, fmt.Errorf("sqlstore: lead store is not configured")
	}
	if strings.TrimSpace(lead.ID) == "" {
		return core.Lead{}, fmt.Errorf("sqlstore: lead id is required")
	}

	record := newLeadRecord(lead)
	result, err := conn(ctx, s.db).NewUpdate().
		Model(record).
		WherePK().
		Exec(ctx)
	if err != nil {
		return core.Lead{}, err
	}
	if affected, rowsErr := result.RowsAffected(); rowsErr == nil && affected == 0 {
		return core.Lead{}, core.ErrLeadNotFound
	}
	return record.toDomain(), nil
}

func (s *LeadStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: lead store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: lead id is required")
	}
	_, err := conn(ctx, s.db).NewDelete().
		Model((*leadRecord)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

var _ core.LeadStore = (*LeadStore)(nil)
