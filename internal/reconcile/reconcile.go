// Package reconcile resolves an extracted identity to exactly one stored
// candidate: lookup by identity key, create when absent, merge when present.
package reconcile

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hireloop/resume-intake/internal/identity"
	"github.com/hireloop/resume-intake/internal/model"
	"github.com/hireloop/resume-intake/internal/store"
)

// nameUpgradeQuality is the quality bar a new name must clear, and the
// stored name must fall below, for a merge to replace the stored name.
const nameUpgradeQuality = 0.70

// Reconciler maps identity decisions onto candidate rows. It is safe for
// concurrent use; key races resolve through the identity_key unique
// constraint.
type Reconciler struct {
	Logger *zap.Logger
}

func New(logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.L()
	}
	return &Reconciler{Logger: logger}
}

// GetOrCreate returns the candidate owning the identity key, creating it if
// absent and merging the new signals if present. A concurrent create of the
// same key is caught via the unique constraint and retried as a merge.
// created reports whether a new candidate row was inserted.
func (r *Reconciler) GetOrCreate(ctx context.Context, st store.Store, ident model.IdentityCandidate, links []string) (*model.Candidate, bool, error) {
	existing, err := st.GetCandidateByIdentityKey(ctx, ident.IdentityKey)
	if err != nil {
		return nil, false, eris.Wrap(err, "reconcile: lookup candidate")
	}

	if existing == nil {
		created, err := st.CreateCandidate(ctx, model.Candidate{
			IdentityKey: ident.IdentityKey,
			Name:        ident.Name,
			Email:       ident.Email,
			Phone:       ident.Phone,
			Links:       sortedUnique(links),
		})
		if err == nil {
			return created, true, nil
		}
		if !eris.Is(err, store.ErrDuplicateKey) {
			return nil, false, eris.Wrap(err, "reconcile: create candidate")
		}

		// Lost a create race; the key now exists, so merge into it.
		existing, err = st.GetCandidateByIdentityKey(ctx, ident.IdentityKey)
		if err != nil {
			return nil, false, eris.Wrap(err, "reconcile: refetch after key conflict")
		}
		if existing == nil {
			return nil, false, eris.Errorf("reconcile: key %s conflicted but is absent", ident.IdentityKey)
		}
	}

	if MergeIdentity(existing, ident, links) {
		if err := st.UpdateCandidate(ctx, existing); err != nil {
			return nil, false, eris.Wrap(err, "reconcile: update candidate")
		}
		r.Logger.Debug("merged identity into candidate",
			zap.Int64("candidate_id", existing.ID),
			zap.String("identity_key", existing.IdentityKey))
	}
	return existing, false, nil
}

// MergeIdentity folds a newly extracted identity into an existing candidate.
// Email and phone are first-write-wins. The name is replaced only when the
// incoming name clears the upgrade quality bar and the stored one does not.
// Links accumulate as a sorted set. Returns whether anything changed.
func MergeIdentity(cand *model.Candidate, ident model.IdentityCandidate, links []string) bool {
	changed := false

	if cand.Email == "" && ident.Email != "" {
		cand.Email = ident.Email
		changed = true
	}
	if cand.Phone == "" && ident.Phone != "" {
		cand.Phone = ident.Phone
		changed = true
	}
	if shouldUpgradeName(cand.Name, ident.Name, nameScore(ident)) {
		cand.Name = ident.Name
		changed = true
	}
	if merged := unionLinks(cand.Links, links); len(merged) != len(cand.Links) {
		cand.Links = merged
		changed = true
	}
	return changed
}

// MergeCandidates folds a losing duplicate's fields into the surviving
// candidate under the same rules, used by the identity backfill.
func MergeCandidates(winner, loser *model.Candidate) bool {
	changed := false

	if winner.Email == "" && loser.Email != "" {
		winner.Email = loser.Email
		changed = true
	}
	if winner.Phone == "" && loser.Phone != "" {
		winner.Phone = loser.Phone
		changed = true
	}
	if shouldUpgradeName(winner.Name, loser.Name, identity.EstimateNameQuality(loser.Name)) {
		winner.Name = loser.Name
		changed = true
	}
	if merged := unionLinks(winner.Links, loser.Links); len(merged) != len(winner.Links) {
		winner.Links = merged
		changed = true
	}
	return changed
}

// nameScore takes the stronger of the resolution confidence and the static
// quality heuristic, so a model-accepted name with a low heuristic score can
// still win.
func nameScore(ident model.IdentityCandidate) float64 {
	quality := identity.EstimateNameQuality(ident.Name)
	if ident.Signals.NameConfidence > quality {
		return ident.Signals.NameConfidence
	}
	return quality
}

func shouldUpgradeName(current, incoming string, incomingScore float64) bool {
	if incoming == "" || incoming == current {
		return false
	}
	if current == "" {
		return true
	}
	return incomingScore >= nameUpgradeQuality &&
		identity.EstimateNameQuality(current) < nameUpgradeQuality
}

func unionLinks(existing, incoming []string) []string {
	if len(incoming) == 0 {
		return existing
	}
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, link := range existing {
		if _, ok := seen[link]; !ok {
			seen[link] = struct{}{}
			merged = append(merged, link)
		}
	}
	for _, link := range incoming {
		if _, ok := seen[link]; !ok {
			seen[link] = struct{}{}
			merged = append(merged, link)
		}
	}
	sort.Strings(merged)
	return merged
}

func sortedUnique(links []string) []string {
	return unionLinks(nil, links)
}
