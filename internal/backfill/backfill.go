// Package backfill dedupes candidate rows created before versioned identity
// keys existed: it groups candidates by shared contact signals, merges each
// group into one canonical row, repoints foreign references, and rewrites
// identity keys to the current version. Runs are dry-run by default.
package backfill

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hireloop/resume-intake/internal/identity"
	"github.com/hireloop/resume-intake/internal/model"
	"github.com/hireloop/resume-intake/internal/reconcile"
	"github.com/hireloop/resume-intake/internal/store"
	"github.com/hireloop/resume-intake/internal/textnorm"
)

const pageSize = 500

// Report accounts for everything a backfill run did (or would do, in dry-run
// mode).
type Report struct {
	DryRun               bool          `json:"dry_run"`
	CandidatesScanned    int           `json:"candidates_scanned"`
	GroupsMerged         int           `json:"groups_merged"`
	CandidatesDeleted    int           `json:"candidates_deleted"`
	ResumesReassigned    int64         `json:"resumes_reassigned"`
	EmbeddingsReassigned int64         `json:"embeddings_reassigned"`
	MatchesReassigned    int64         `json:"matches_reassigned"`
	KeysRewritten        int           `json:"keys_rewritten"`
	MergedGroups         []MergedGroup `json:"merged_groups,omitempty"`
}

// MergedGroup records one merge decision for operator review.
type MergedGroup struct {
	Signal      string  `json:"signal"`
	CanonicalID int64   `json:"canonical_id"`
	MergedIDs   []int64 `json:"merged_ids"`
}

// Job is one backfill invocation. Apply false (the default) previews the
// mutations inside a rolled-back transaction.
type Job struct {
	Store  store.Store
	Logger *zap.Logger
	Apply  bool
}

func New(st store.Store, logger *zap.Logger, apply bool) *Job {
	if logger == nil {
		logger = zap.L()
	}
	return &Job{Store: st, Logger: logger, Apply: apply}
}

// Run executes the backfill in a single transaction.
func (j *Job) Run(ctx context.Context) (*Report, error) {
	report := &Report{DryRun: !j.Apply}

	err := j.Store.InTx(ctx, func(tx store.Store) error {
		if err := j.run(ctx, tx, report); err != nil {
			return err
		}
		if !j.Apply {
			return store.ErrRollback
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	j.Logger.Info("backfill finished",
		zap.Bool("dry_run", report.DryRun),
		zap.Int("candidates_scanned", report.CandidatesScanned),
		zap.Int("groups_merged", report.GroupsMerged),
		zap.Int("candidates_deleted", report.CandidatesDeleted),
		zap.Int("keys_rewritten", report.KeysRewritten))
	return report, nil
}

func (j *Job) run(ctx context.Context, tx store.Store, report *Report) error {
	candidates, err := listAllCandidates(ctx, tx)
	if err != nil {
		return err
	}
	report.CandidatesScanned = len(candidates)

	counts, err := tx.ResumeCountsByCandidate(ctx)
	if err != nil {
		return eris.Wrap(err, "backfill: resume counts")
	}

	survivors := make(map[int64]*model.Candidate, len(candidates))
	for i := range candidates {
		survivors[candidates[i].ID] = &candidates[i]
	}

	for _, group := range groupBySignal(candidates) {
		if len(group.members) < 2 {
			continue
		}
		canonical, losers := pickCanonical(group.members, counts)

		for _, loser := range losers {
			if err := j.mergeInto(ctx, tx, canonical, loser, report); err != nil {
				return err
			}
			delete(survivors, loser.ID)
		}
		report.GroupsMerged++
		report.MergedGroups = append(report.MergedGroups, MergedGroup{
			Signal:      group.signal,
			CanonicalID: canonical.ID,
			MergedIDs:   ids(losers),
		})
	}

	return j.rewriteKeys(ctx, tx, survivors, report)
}

func (j *Job) mergeInto(ctx context.Context, tx store.Store, winner, loser *model.Candidate, report *Report) error {
	moved, err := tx.ReassignResumes(ctx, loser.ID, winner.ID)
	if err != nil {
		return err
	}
	report.ResumesReassigned += moved

	moved, err = tx.ReassignEmbeddings(ctx, loser.ID, winner.ID)
	if err != nil {
		return err
	}
	report.EmbeddingsReassigned += moved

	moved, err = tx.ReassignMatches(ctx, loser.ID, winner.ID)
	if err != nil {
		return err
	}
	report.MatchesReassigned += moved

	if reconcile.MergeCandidates(winner, loser) {
		if err := tx.UpdateCandidate(ctx, winner); err != nil {
			return err
		}
	}

	if err := tx.DeleteCandidate(ctx, loser.ID); err != nil {
		return err
	}
	report.CandidatesDeleted++

	j.Logger.Debug("merged duplicate candidate",
		zap.Int64("winner_id", winner.ID),
		zap.Int64("loser_id", loser.ID))
	return nil
}

// rewriteKeys re-derives each surviving candidate's identity key from its
// merged contact signals. Content-fallback keys are left alone: they encode
// resume text this job does not see.
func (j *Job) rewriteKeys(ctx context.Context, tx store.Store, survivors map[int64]*model.Candidate, report *Report) error {
	ordered := make([]*model.Candidate, 0, len(survivors))
	for _, cand := range survivors {
		ordered = append(ordered, cand)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	for _, cand := range ordered {
		key, reason := identity.DeriveKey(cand.Name, cand.Email, cand.Phone, "")
		if reason == model.KeyReasonContentFallback {
			continue
		}
		if key == cand.IdentityKey {
			continue
		}
		cand.IdentityKey = key
		if err := tx.UpdateCandidate(ctx, cand); err != nil {
			// Distinct survivors can still derive the same key, e.g. name
			// keys for two people sharing a name. Keep the existing key.
			if eris.Is(err, store.ErrDuplicateKey) {
				j.Logger.Warn("identity key already taken, keeping old key",
					zap.Int64("candidate_id", cand.ID),
					zap.String("derived_key", key))
				continue
			}
			return err
		}
		report.KeysRewritten++
	}
	return nil
}

func listAllCandidates(ctx context.Context, tx store.Store) ([]model.Candidate, error) {
	var all []model.Candidate
	for offset := 0; ; offset += pageSize {
		page, err := tx.ListCandidates(ctx, store.CandidateFilter{Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, eris.Wrap(err, "backfill: list candidates")
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

type signalGroup struct {
	signal  string
	members []*model.Candidate
}

// groupBySignal buckets candidates by normalized email, falling back to
// normalized phone for candidates without one, so legacy rows storing raw
// variants of the same contact still land in one group. Candidates with
// neither signal are never grouped.
func groupBySignal(candidates []model.Candidate) []signalGroup {
	byKey := make(map[string]*signalGroup)
	var order []string

	for i := range candidates {
		cand := &candidates[i]
		var key string
		switch {
		case textnorm.Email(cand.Email) != "":
			key = "email:" + textnorm.Email(cand.Email)
		case textnorm.Phone(cand.Phone) != "":
			key = "phone:" + textnorm.Phone(cand.Phone)
		default:
			continue
		}
		group, ok := byKey[key]
		if !ok {
			group = &signalGroup{signal: key}
			byKey[key] = group
			order = append(order, key)
		}
		group.members = append(group.members, cand)
	}

	groups := make([]signalGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, *byKey[key])
	}
	return groups
}

// pickCanonical ranks a duplicate group: best name quality, then most
// resumes, then lowest id.
func pickCanonical(members []*model.Candidate, counts map[int64]int) (*model.Candidate, []*model.Candidate) {
	ranked := make([]*model.Candidate, len(members))
	copy(ranked, members)

	sort.Slice(ranked, func(i, j int) bool {
		qi := identity.EstimateNameQuality(ranked[i].Name)
		qj := identity.EstimateNameQuality(ranked[j].Name)
		if qi != qj {
			return qi > qj
		}
		if counts[ranked[i].ID] != counts[ranked[j].ID] {
			return counts[ranked[i].ID] > counts[ranked[j].ID]
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked[0], ranked[1:]
}

func ids(candidates []*model.Candidate) []int64 {
	out := make([]int64, 0, len(candidates))
	for _, cand := range candidates {
		out = append(out, cand.ID)
	}
	return out
}
