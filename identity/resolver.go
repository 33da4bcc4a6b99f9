// Package identity resolves normalized intake identities to one canonical
// lead, merging duplicates discovered through shared identities.
package identity

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lippelima5/repolead-sub000/core"
	"github.com/lippelima5/repolead-sub000/normalize"
)

type Input struct {
	WorkspaceID string
	SourceID    string
	IngestionID string
	Identities  []normalize.Identity
	Name        string
	Email       string
	Phone       string
	Tags        []string
}

func (in Input) Validate() error {
	if strings.TrimSpace(in.WorkspaceID) == "" {
		return fmt.Errorf("identity: workspace id is required")
	}
	if strings.TrimSpace(in.IngestionID) == "" {
		return fmt.Errorf("identity: ingestion id is required")
	}
	for _, claim := range in.Identities {
		if err := claim.Type.Validate(); err != nil {
			return err
		}
		if strings.TrimSpace(claim.Normalized) == "" {
			return fmt.Errorf("identity: normalized identity value is required")
		}
	}
	return nil
}

type Resolver struct {
	Leads       core.LeadStore
	Identities  core.IdentityStore
	Events      core.LeadEventStore
	Deliveries  core.DeliveryStore
	Ingestions  core.IngestionStore
	Tx          core.Transactor
	Observer    core.Observer
	Now         func() time.Time
	NewID       func() string
}

func NewResolver(stores core.StoreProvider) *Resolver {
	resolver := &Resolver{
		Now: func() time.Time {
			return time.Now().UTC()
		},
		NewID: uuid.NewString,
	}
	if stores != nil {
		resolver.Leads = stores.LeadStore()
		resolver.Identities = stores.IdentityStore()
		resolver.Events = stores.LeadEventStore()
		resolver.Deliveries = stores.DeliveryStore()
		resolver.Ingestions = stores.IngestionStore()
		resolver.Tx = stores.Transactor()
	}
	if resolver.Tx == nil {
		resolver.Tx = core.NopTransactor{}
	}
	return resolver
}

// Resolve finds or creates the canonical lead for the extracted identities,
// merges secondary leads into it, records the timeline and settles the
// ingestion status. Identity lookups and merge re-pointing run inside one
// transaction so partial merges are never observable.
func (r *Resolver) Resolve(ctx context.Context, in Input) (core.Resolution, error) {
	if r == nil || r.Leads == nil || r.Identities == nil || r.Events == nil || r.Ingestions == nil {
		return core.Resolution{}, fmt.Errorf("identity: resolver requires lead, identity, event and ingestion stores")
	}
	if err := in.Validate(); err != nil {
		return core.Resolution{}, err
	}
	startedAt := r.now()

	if len(in.Identities) == 0 {
		resolution, err := r.resolveWithoutIdentity(ctx, in)
		r.Observer.Observe(ctx, startedAt, "identity.resolve", err, map[string]any{
			"workspace_id": in.WorkspaceID,
			"source_id":    in.SourceID,
			"ingestion_id": in.IngestionID,
			"outcome":      string(resolution.Outcome),
		})
		return resolution, err
	}

	var resolution core.Resolution
	err := r.tx().InTx(ctx, func(ctx context.Context) error {
		var txErr error
		resolution, txErr = r.resolveWithIdentities(ctx, in)
		return txErr
	})
	if err != nil {
		// Merge inconsistencies are not retried automatically; the ingestion
		// status is the only user-visible trace.
		_ = r.Ingestions.UpdateStatus(ctx, in.IngestionID, core.IngestionStatusFailed)
		r.Observer.Observe(ctx, startedAt, "identity.resolve", err, map[string]any{
			"workspace_id": in.WorkspaceID,
			"source_id":    in.SourceID,
			"ingestion_id": in.IngestionID,
		})
		return core.Resolution{}, err
	}

	if statusErr := r.Ingestions.UpdateStatus(ctx, in.IngestionID, core.IngestionStatusProcessed); statusErr != nil {
		return core.Resolution{}, statusErr
	}
	r.Observer.Observe(ctx, startedAt, "identity.resolve", nil, map[string]any{
		"workspace_id": in.WorkspaceID,
		"source_id":    in.SourceID,
		"ingestion_id": in.IngestionID,
		"lead_id":      resolution.Lead.ID,
		"outcome":      string(resolution.Outcome),
	})
	return resolution, nil
}

// resolveWithoutIdentity creates a lead that is intentionally not
// merge-eligible until a future ingestion supplies an identity.
func (r *Resolver) resolveWithoutIdentity(ctx context.Context, in Input) (core.Resolution, error) {
	now := r.now()
	lead, err := r.Leads.Create(ctx, core.Lead{
		ID:          r.newID(),
		WorkspaceID: in.WorkspaceID,
		Name:        strings.TrimSpace(in.Name),
		Email:       strings.TrimSpace(in.Email),
		Phone:       strings.TrimSpace(in.Phone),
		Status:      core.LeadStatusNeedsIdentity,
		Tags:        cloneTags(in.Tags),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return core.Resolution{}, err
	}
	if err := r.appendIntakeEvents(ctx, in, lead.ID); err != nil {
		return core.Resolution{}, err
	}
	if err := r.Ingestions.UpdateStatus(ctx, in.IngestionID, core.IngestionStatusNeedsIdentity); err != nil {
		return core.Resolution{}, err
	}
	return core.Resolution{Lead: lead, Outcome: core.ResolveOutcomeNeedsIdentity}, nil
}

func (r *Resolver) resolveWithIdentities(ctx context.Context, in Input) (core.Resolution, error) {
	matched, err := r.lookupMatches(ctx, in)
	if err != nil {
		return core.Resolution{}, err
	}

	var (
		target     core.Lead
		createdNew bool
		mergedIDs  []string
	)
	switch len(matched) {
	case 0:
		target, err = r.createLead(ctx, in)
		if err != nil {
			return core.Resolution{}, err
		}
		createdNew = true
	case 1:
		target = matched[0]
	default:
		target = matched[0]
		mergedIDs, err = r.mergeInto(ctx, target, matched[1:])
		if err != nil {
			return core.Resolution{}, err
		}
	}

	target, createdNew, err = r.claimIdentities(ctx, in, target, createdNew)
	if err != nil {
		return core.Resolution{}, err
	}
	if strings.TrimSpace(target.ID) == "" {
		return core.Resolution{}, core.ErrNoTargetLead
	}

	target, err = r.applyDisplayFields(ctx, in, target)
	if err != nil {
		return core.Resolution{}, err
	}
	if err := r.appendIntakeEvents(ctx, in, target.ID); err != nil {
		return core.Resolution{}, err
	}

	outcome := core.ResolveOutcomeLeadUpdated
	if createdNew {
		outcome = core.ResolveOutcomeLeadCreated
	}
	return core.Resolution{Lead: target, Outcome: outcome, MergedLeadIDs: mergedIDs}, nil
}

// lookupMatches returns the distinct leads owning any of the extracted
// identities, ordered by creation time ascending so the oldest is the merge
// target.
func (r *Resolver) lookupMatches(ctx context.Context, in Input) ([]core.Lead, error) {
	seen := map[string]struct{}{}
	var ids []string
	for _, claim := range in.Identities {
		row, found, err := r.Identities.Lookup(ctx, in.WorkspaceID, claim.Type, claim.Normalized)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		if _, dup := seen[row.LeadID]; dup {
			continue
		}
		seen[row.LeadID] = struct{}{}
		ids = append(ids, row.LeadID)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	leads, err := r.Leads.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(leads, func(i, j int) bool {
		if leads[i].CreatedAt.Equal(leads[j].CreatedAt) {
			return leads[i].ID < leads[j].ID
		}
		return leads[i].CreatedAt.Before(leads[j].CreatedAt)
	})
	return leads, nil
}

func (r *Resolver) createLead(ctx context.Context, in Input) (core.Lead, error) {
	now := r.now()
	return r.Leads.Create(ctx, core.Lead{
		ID:          r.newID(),
		WorkspaceID: in.WorkspaceID,
		Status:      core.LeadStatusNew,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

// mergeInto merges each source lead into the target in ascending creation
// order: identities are re-pointed (conflicting rows dropped), timeline and
// deliveries follow, the source lead is deleted, and one merged event lists
// the losing ids.
func (r *Resolver) mergeInto(ctx context.Context, target core.Lead, sources []core.Lead) ([]string, error) {
	mergedIDs := make([]string, 0, len(sources))
	for _, source := range sources {
		if _, _, err := r.Identities.Repoint(ctx, target.WorkspaceID, source.ID, target.ID); err != nil {
			return nil, err
		}
		if _, err := r.Events.RepointLead(ctx, source.ID, target.ID); err != nil {
			return nil, err
		}
		if r.Deliveries != nil {
			if _, err := r.Deliveries.RepointLead(ctx, source.ID, target.ID); err != nil {
				return nil, err
			}
		}
		if err := r.Leads.Delete(ctx, source.ID); err != nil {
			return nil, err
		}
		mergedIDs = append(mergedIDs, source.ID)
	}

	_, err := r.Events.Append(ctx, core.LeadEvent{
		ID:          r.newID(),
		WorkspaceID: target.WorkspaceID,
		LeadID:      target.ID,
		Type:        core.LeadEventMerged,
		Data:        map[string]any{"merged_lead_ids": mergedIDs},
		CreatedAt:   r.now(),
	})
	if err != nil {
		return nil, err
	}
	return mergedIDs, nil
}

// claimIdentities upserts every extracted identity onto the target. A lost
// claim means another process owns the tuple: when our own freshly created
// lead holds nothing, the winner's lead is adopted and ours deleted; after
// that the winner's claim rows are updated in place.
func (r *Resolver) claimIdentities(
	ctx context.Context,
	in Input,
	target core.Lead,
	createdNew bool,
) (core.Lead, bool, error) {
	now := r.now()
	claimedAny := false
	for _, claim := range in.Identities {
		row, claimed, err := r.Identities.InsertOrGet(ctx, core.LeadIdentity{
			ID:              r.newID(),
			WorkspaceID:     in.WorkspaceID,
			LeadID:          target.ID,
			Type:            claim.Type,
			NormalizedValue: claim.Normalized,
			RawValue:        claim.Raw,
			SourceID:        in.SourceID,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		if err != nil {
			return core.Lead{}, false, err
		}
		if claimed {
			claimedAny = true
			continue
		}

		if row.LeadID == target.ID {
			row.RawValue = claim.Raw
			row.SourceID = in.SourceID
			row.UpdatedAt = now
			if _, err := r.Identities.Update(ctx, row); err != nil {
				return core.Lead{}, false, err
			}
			continue
		}

		if createdNew && !claimedAny {
			// Another process created the canonical lead first: adopt it.
			winner, err := r.Leads.Get(ctx, row.LeadID)
			if err != nil {
				return core.Lead{}, false, err
			}
			if err := r.Leads.Delete(ctx, target.ID); err != nil {
				return core.Lead{}, false, err
			}
			return r.claimIdentities(ctx, in, winner, false)
		}

		// Late-discovered duplicate: fold the conflicting owner into the
		// established target the same way a lookup-time match would be.
		loser, err := r.Leads.Get(ctx, row.LeadID)
		if err != nil {
			return core.Lead{}, false, err
		}
		if _, err := r.mergeInto(ctx, target, []core.Lead{loser}); err != nil {
			return core.Lead{}, false, err
		}
		claimedAny = true
	}
	return target, createdNew, nil
}

// applyDisplayFields overwrites name/email/phone only with non-empty values,
// replaces tags only with a non-empty tag list, and clears needs_identity.
func (r *Resolver) applyDisplayFields(ctx context.Context, in Input, target core.Lead) (core.Lead, error) {
	if name := strings.TrimSpace(in.Name); name != "" {
		target.Name = name
	}
	if email := strings.TrimSpace(in.Email); email != "" {
		target.Email = email
	}
	if phone := strings.TrimSpace(in.Phone); phone != "" {
		target.Phone = phone
	}
	if len(in.Tags) > 0 {
		target.Tags = cloneTags(in.Tags)
	}
	if target.Status == core.LeadStatusNeedsIdentity {
		target.Status = core.LeadStatusNew
	}
	target.UpdatedAt = r.now()
	return r.Leads.Update(ctx, target)
}

func (r *Resolver) appendIntakeEvents(ctx context.Context, in Input, leadID string) error {
	now := r.now()
	identityTypes := make([]string, 0, len(in.Identities))
	for _, claim := range in.Identities {
		identityTypes = append(identityTypes, string(claim.Type))
	}

	_, err := r.Events.Append(ctx, core.LeadEvent{
		ID:          r.newID(),
		WorkspaceID: in.WorkspaceID,
		LeadID:      leadID,
		IngestionID: in.IngestionID,
		Type:        core.LeadEventIngested,
		Data:        map[string]any{"source_id": in.SourceID},
		CreatedAt:   now,
	})
	if err != nil {
		return err
	}
	_, err = r.Events.Append(ctx, core.LeadEvent{
		ID:          r.newID(),
		WorkspaceID: in.WorkspaceID,
		LeadID:      leadID,
		IngestionID: in.IngestionID,
		Type:        core.LeadEventNormalized,
		Data:        map[string]any{"identity_types": identityTypes},
		CreatedAt:   now,
	})
	return err
}

func (r *Resolver) tx() core.Transactor {
	if r != nil && r.Tx != nil {
		return r.Tx
	}
	return core.NopTransactor{}
}

func (r *Resolver) now() time.Time {
	if r != nil && r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *Resolver) newID() string {
	if r != nil && r.NewID != nil {
		return r.NewID()
	}
	return uuid.NewString()
}

func cloneTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	return append([]string(nil), tags...)
}
