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

type DeliveryStore struct {
	db          *bun.DB
	repo        repository.Repository[*deliveryRecord]
	attemptRepo repository.Repository[*deliveryAttemptRecord]
}

func NewDeliveryStore(db *bun.DB) (*DeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*deliveryRecord](db, deliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid delivery repository wiring: %w", err)
		}
	}
	attemptRepo := repository.NewRepository[*deliveryAttemptRecord](db, deliveryAttemptHandlers())
	if validator, ok := attemptRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid delivery attempt repository wiring: %w", err)
		}
	}
	return &DeliveryStore{db: db, repo: repo, attemptRepo: attemptRepo}, nil
}

func (s *DeliveryStore) Create(ctx context.Context, delivery core.Delivery) (core.Delivery, error) {
	if s == nil || s.db == nil {
		return core.Delivery{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	if strings.TrimSpace(delivery.ID) == "" {
		return core.Delivery{}, fmt.Errorf("sqlstore: delivery id is required")
	}
	if strings.TrimSpace(delivery.DestinationID) == "" {
		return core.Delivery{}, fmt.Errorf("sqlstore: delivery destination id is required")
	}

	record := newDeliveryRecord(delivery)
	if _, err := conn(ctx, s.db).NewInsert().Model(record).Exec(ctx); err != nil {
		return core.Delivery{}, err
	}
	return record.toDomain(), nil
}

func (s *DeliveryStore) Get(ctx context.Context, id string) (core.Delivery, error) {
	if s == nil || s.db == nil {
		return core.Delivery{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	record := &deliveryRecord{}
	err := conn(ctx, s.db).NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Delivery{}, core.ErrDeliveryNotFound
		}
		return core.Delivery{}, err
	}
	return record.toDomain(), nil
}

func (s *DeliveryStore) Update(ctx context.Context, delivery core.Delivery) (core.Delivery, error) {
	if s == nil || s.db == nil {
		return core.Delivery{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	if strings.TrimSpace(delivery.ID) == "" {
		return core.Delivery{}, fmt.Errorf("sqlstore: delivery id is required")
	}

	record := newDeliveryRecord(delivery)
	result, err := conn(ctx, s.db).NewUpdate().
		Model(record).
		WherePK().
		Exec(ctx)
	if err != nil {
		return core.Delivery{}, err
	}
	if affected, rowsErr := result.RowsAffected(); rowsErr == nil && affected == 0 {
		return core.Delivery{}, core.ErrDeliveryNotFound
	}
	return record.toDomain(), nil
}

func (s *DeliveryStore) List(ctx context.Context, filter core.DeliveryFilter, limit int) ([]core.Delivery, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	var records []deliveryRecord
	query := conn(ctx, s.db).NewSelect().
		Model(&records).
		OrderExpr("?TableAlias.created_at DESC")
	query = applyDeliveryFilter(query, filter)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}

	deliveries := make([]core.Delivery, 0, len(records))
	for i := range records {
		deliveries = append(deliveries, records[i].toDomain())
	}
	return deliveries, nil
}

func (s *DeliveryStore) RepointLead(ctx context.Context, fromLeadID string, toLeadID string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	fromLeadID = strings.TrimSpace(fromLeadID)
	toLeadID = strings.TrimSpace(toLeadID)
	if fromLeadID == "" || toLeadID == "" {
		return 0, fmt.Errorf("sqlstore: both lead ids are required")
	}
	result, err := conn(ctx, s.db).NewUpdate().
		Model((*deliveryRecord)(nil)).
		Set("lead_id = ?", toLeadID).
		Set("updated_at = ?", time.Now().UTC()).
		Where("lead_id = ?", fromLeadID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	moved, _ := result.RowsAffected()
	return int(moved), nil
}

// ClaimDue flips up to limit due deliveries to processing and returns them.
// The guarded UPDATE re-checks the status inside the claim, so overlapping
// scheduler runs never claim the same row.
func (s *DeliveryStore) ClaimDue(ctx context.Context, limit int, now time.Time) ([]core.Delivery, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	if limit <= 0 {
		limit = 1
	}
	now = now.UTC()

	var records []deliveryRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		query := `
WITH claimed AS (
	SELECT id
	FROM webhook_deliveries
	WHERE status IN (?, ?)
	  AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
	ORDER BY next_attempt_at ASC, created_at ASC
	LIMIT ?
)
UPDATE webhook_deliveries
SET status = ?, updated_at = ?
WHERE id IN (SELECT id FROM claimed)
  AND status IN (?, ?)
RETURNING
	id,
	workspace_id,
	destination_id,
	lead_id,
	ingestion_id,
	event_type,
	status,
	attempt_count,
	last_attempt_at,
	next_attempt_at,
	last_error,
	created_at,
	updated_at
`
		return tx.NewRaw(
			query,
			string(core.DeliveryStatusPending),
			string(core.DeliveryStatusFailed),
			now,
			limit,
			string(core.DeliveryStatusProcessing),
			now,
			string(core.DeliveryStatusPending),
			string(core.DeliveryStatusFailed),
		).Scan(ctx, &records)
	})
	if err != nil {
		return nil, err
	}

	deliveries := make([]core.Delivery, 0, len(records))
	for i := range records {
		deliveries = append(deliveries, records[i].toDomain())
	}
	return deliveries, nil
}

func (s *DeliveryStore) AppendAttempt(ctx context.Context, attempt core.DeliveryAttempt) (core.DeliveryAttempt, error) {
	if s == nil || s.db == nil {
		return core.DeliveryAttempt{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	if strings.TrimSpace(attempt.DeliveryID) == "" {
		return core.DeliveryAttempt{}, fmt.Errorf("sqlstore: attempt delivery id is required")
	}

	record := newDeliveryAttemptRecord(attempt)
	if _, err := conn(ctx, s.db).NewInsert().Model(record).Exec(ctx); err != nil {
		return core.DeliveryAttempt{}, err
	}
	return record.toDomain(), nil
}

func (s *DeliveryStore) ListAttempts(ctx context.Context, deliveryID string) ([]core.DeliveryAttempt, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	var records []deliveryAttemptRecord
	err := conn(ctx, s.db).NewSelect().
		Model(&records).
		Where("?TableAlias.delivery_id = ?", strings.TrimSpace(deliveryID)).
		OrderExpr("?TableAlias.attempt_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	attempts := make([]core.DeliveryAttempt, 0, len(records))
	for i := range records {
		attempts = append(attempts, records[i].toDomain())
	}
	return attempts, nil
}

func (s *DeliveryStore) Replay(ctx context.Context, id string, now time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return false, fmt.Errorf("sqlstore: delivery id is required")
	}
	result, err := replayUpdate(conn(ctx, s.db), now).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

func (s *DeliveryStore) ReplayBulk(ctx context.Context, filter core.DeliveryFilter, limit int, now time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	if limit <= 0 {
		limit = 1
	}

	matching, err := s.List(ctx, filter, limit)
	if err != nil {
		return 0, err
	}
	if len(matching) == 0 {
		return 0, nil
	}
	ids := make([]string, 0, len(matching))
	for _, delivery := range matching {
		ids = append(ids, delivery.ID)
	}

	result, err := replayUpdate(conn(ctx, s.db), now).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, _ := result.RowsAffected()
	return int(affected), nil
}

func replayUpdate(database bun.IDB, now time.Time) *bun.UpdateQuery {
	now = now.UTC()
	return database.NewUpdate().
		Model((*deliveryRecord)(nil)).
		Set("status = ?", string(core.DeliveryStatusPending)).
		Set("next_attempt_at = ?", now).
		Set("last_error = ?", "").
		Set("updated_at = ?", now)
}

func applyDeliveryFilter(query *bun.SelectQuery, filter core.DeliveryFilter) *bun.SelectQuery {
	if workspaceID := strings.TrimSpace(filter.WorkspaceID); workspaceID != "" {
		query = query.Where("?TableAlias.workspace_id = ?", workspaceID)
	}
	if destinationID := strings.TrimSpace(filter.DestinationID); destinationID != "" {
		query = query.Where("?TableAlias.destination_id = ?", destinationID)
	}
	if leadID := strings.TrimSpace(filter.LeadID); leadID != "" {
		query = query.Where("?TableAlias.lead_id = ?", leadID)
	}
	if eventType := strings.TrimSpace(filter.EventType); eventType != "" {
		query = query.Where("?TableAlias.event_type = ?", eventType)
	}
	if status := strings.TrimSpace(string(filter.Status)); status != "" {
		query = query.Where("?TableAlias.status = ?", status)
	}
	return query
}

var _ core.DeliveryStore = (*DeliveryStore)(nil)
