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

// IdentityStore owns the (workspace, type, normalized_value) uniqueness
// invariant. Claims go through the unique index rather than a lookup, so two
// racing ingestions settle on one owner without an advisory lock.
type IdentityStore struct {
	db   *bun.DB
	repo repository.Repository[*leadIdentityRecord]
}

func NewIdentityStore(db *bun.DB) (*IdentityStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*leadIdentityRecord](db, leadIdentityHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid lead identity repository wiring: %w", err)
		}
	}
	return &IdentityStore{db: db, repo: repo}, nil
}

func (s *IdentityStore) InsertOrGet(ctx context.Context, identity core.LeadIdentity) (core.LeadIdentity, bool, error) {
	if s == nil || s.db == nil {
		return core.LeadIdentity{}, false, fmt.Errorf("sqlstore: identity store is not configured")
	}
	if err := identity.Type.Validate(); err != nil {
		return core.LeadIdentity{}, false, err
	}
	if strings.TrimSpace(identity.NormalizedValue) == "" {
		return core.LeadIdentity{}, false, fmt.Errorf("sqlstore: normalized identity value is required")
	}

	record := newLeadIdentityRecord(identity)
	if _, err := conn(ctx, s.db).NewInsert().Model(record).Exec(ctx); err != nil {
		if !isUniqueViolation(err) {
			return core.LeadIdentity{}, false, err
		}
		existing, found, lookupErr := s.Lookup(ctx, identity.WorkspaceID, identity.Type, identity.NormalizedValue)
		if lookupErr != nil {
			return core.LeadIdentity{}, false, lookupErr
		}
		if !found {
			return core.LeadIdentity{}, false, err
		}
		return existing, false, nil
	}
	return record.toDomain(), true, nil
}

func (s *IdentityStore) Lookup(
	ctx context.Context,
	workspaceID string,
	identityType core.IdentityType,
	normalizedValue string,
) (core.LeadIdentity, bool, error) {
	if s == nil || s.db == nil {
		return core.LeadIdentity{}, false, fmt.Errorf("sqlstore: identity store is not configured")
	}
	record := &leadIdentityRecord{}
	err := conn(ctx, s.db).NewSelect().
		Model(record).
		Where("?TableAlias.workspace_id = ?", strings.TrimSpace(workspaceID)).
		Where("?TableAlias.identity_type = ?", string(identityType)).
		Where("?TableAlias.normalized_value = ?", strings.TrimSpace(normalizedValue)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.LeadIdentity{}, false, nil
		}
		return core.LeadIdentity{}, false, err
	}
	return record.toDomain(), true, nil
}

func (s *IdentityStore) ListByLead(ctx context.Context, leadID string) ([]core.LeadIdentity, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: identity store is not configured")
	}
	var records []leadIdentityRecord
	err := conn(ctx, s.db).NewSelect().
		Model(&records).
		Where("?TableAlias.lead_id = ?", strings.TrimSpace(leadID)).
		OrderExpr("?TableAlias.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	identities := make([]core.LeadIdentity, 0, len(records))
	for i := range records {
		identities = append(identities, records[i].toDomain())
	}
	return identities, nil
}

func (s *IdentityStore) Update(ctx context.Context, identity core.LeadIdentity) (core.LeadIdentity, error) {
	if s == nil || s.db == nil {
		return core.LeadIdentity{}, fmt.Errorf("sqlstore: identity store is not configured")
	}
	if strings.TrimSpace(identity.ID) == "" {
		return core.LeadIdentity{}, fmt.Errorf("sqlstore: identity id is required")
	}
	_, err := conn(ctx, s.db).NewUpdate().
		Model((*leadIdentityRecord)(nil)).
		Set("raw_value = ?", identity.RawValue).
		Set("source_id = ?", identity.SourceID).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", strings.TrimSpace(identity.ID)).
		Exec(ctx)
	if err != nil {
		return core.LeadIdentity{}, err
	}
	return identity, nil
}

// Repoint moves every identity owned by fromLeadID onto toLeadID. Rows whose
// (type, normalized_value) tuple the target already owns are deleted first,
// so the move itself cannot trip the unique index mid-merge.
func (s *IdentityStore) Repoint(
	ctx context.Context,
	workspaceID string,
	fromLeadID string,
	toLeadID string,
) (int, int, error) {
	if s == nil || s.db == nil {
		return 0, 0, fmt.Errorf("sqlstore: identity store is not configured")
	}
	workspaceID = strings.TrimSpace(workspaceID)
	fromLeadID = strings.TrimSpace(fromLeadID)
	toLeadID = strings.TrimSpace(toLeadID)
	if workspaceID == "" || fromLeadID == "" || toLeadID == "" {
		return 0, 0, fmt.Errorf("sqlstore: workspace id and both lead ids are required")
	}

	database := conn(ctx, s.db)

	dropResult, err := database.NewDelete().
		Model((*leadIdentityRecord)(nil)).
		Where("workspace_id = ?", workspaceID).
		Where("lead_id = ?", fromLeadID).
		Where(`EXISTS (
			SELECT 1 FROM lead_identities AS target
			WHERE target.workspace_id = ?
			  AND target.lead_id = ?
			  AND target.identity_type = lid.identity_type
			  AND target.normalized_value = lid.normalized_value
		)`, workspaceID, toLeadID).
		Exec(ctx)
	if err != nil {
		return 0, 0, err
	}
	dropped, _ := dropResult.RowsAffected()

	moveResult, err := database.NewUpdate().
		Model((*leadIdentityRecord)(nil)).
		Set("lead_id = ?", toLeadID).
		Set("updated_at = ?", time.Now().UTC()).
		Where("workspace_id = ?", workspaceID).
		Where("lead_id = ?", fromLeadID).
		Exec(ctx)
	if err != nil {
		return 0, int(dropped), err
	}
	moved, _ := moveResult.RowsAffected()

	return int(moved), int(dropped), nil
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

var _ core.IdentityStore = (*IdentityStore)(nil)
