package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/lippelima5/repolead-sub000/core"
)

// LeadEventStore is append-only: events are never updated or deleted, only
// re-pointed when their lead is merged away.
type LeadEventStore struct {
	db   *bun.DB
	repo repository.Repository[*leadEventRecord]
}

func NewLeadEventStore(db *bun.DB) (*LeadEventStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*leadEventRecord](db, leadEventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid lead event repository wiring: %w", err)
		}
	}
	return &LeadEventStore{db: db, repo: repo}, nil
}

func (s *LeadEventStore) Append(ctx context.Context, event core.LeadEvent) (core.LeadEvent, error) {
	if s == nil || s.db == nil {
		return core.LeadEvent{}, fmt.Errorf("sqlstore: lead event store is not configured")
	}
	if strings.TrimSpace(event.ID) == "" {
		return core.LeadEvent{}, fmt.Errorf("sqlstore: event id is required")
	}
	if strings.TrimSpace(event.LeadID) == "" {
		return core.LeadEvent{}, fmt.Errorf("sqlstore: event lead id is required")
	}

	record := newLeadEventRecord(event)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if _, err := conn(ctx, s.db).NewInsert().Model(record).Exec(ctx); err != nil {
		return core.LeadEvent{}, err
	}
	return record.toDomain(), nil
}

func (s *LeadEventStore) ListByLead(ctx context.Context, leadID string, limit int) ([]core.LeadEvent, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: lead event store is not configured")
	}
	var records []leadEventRecord
	query := conn(ctx, s.db).NewSelect().
		Model(&records).
		Where("?TableAlias.lead_id = ?", strings.TrimSpace(leadID)).
		OrderExpr("?TableAlias.created_at ASC, ?TableAlias.id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}

	events := make([]core.LeadEvent, 0, len(records))
	for i := range records {
		events = append(events, records[i].toDomain())
	}
	return events, nil
}

func (s *LeadEventStore) RepointLead(ctx context.Context, fromLeadID string, toLeadID string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: lead event store is not configured")
	}
	fromLeadID = strings.TrimSpace(fromLeadID)
	toLeadID = strings.TrimSpace(toLeadID)
	if fromLeadID == "" || toLeadID == "" {
		return 0, fmt.Errorf("sqlstore: both lead ids are required")
	}
	result, err := conn(ctx, s.db).NewUpdate().
		Model((*leadEventRecord)(nil)).
		Set("lead_id = ?", toLeadID).
		Where("lead_id = ?", fromLeadID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	moved, _ := result.RowsAffected()
	return int(moved), nil
}

var _ core.LeadEventStore = (*LeadEventStore)(nil)
