package store

import (
	"context"

	"github.com/clinrec/recordstore/internal/domain"
	"github.com/clinrec/recordstore/internal/identifier"
	"github.com/clinrec/recordstore/internal/repository"
)

// CommitEntry is one object in a multi-object commit.
type CommitEntry struct {
	Payload             *domain.Record
	Lifecycle           domain.LifecycleState
	ChangeType          domain.ChangeType
	PrecedingVersionUID *identifier.VersionID
	Description         string
}

// isCreate reports whether the entry implies a first version: nothing to
// supersede and no pre-existing root id carried by the payload.
func (e CommitEntry) isCreate() bool {
	if e.ChangeType.Code == domain.ChangeCreation.Code {
		return true
	}
	return e.PrecedingVersionUID == nil && e.Payload.UID() == ""
}

// Commit applies every entry as one all-or-nothing unit sharing a single
// contribution. If any entry would fail — invalid payload, create collision,
// concurrency conflict — none of the entries are committed and every lineage
// is left exactly as it was.
func (s *Store) Commit(ctx context.Context, committer domain.Party, commitChangeType domain.ChangeType, entries []CommitEntry, commitDescription string) (domain.Contribution, error) {
	if len(entries) == 0 {
		return domain.Contribution{}, &domain.ValidationError{Reason: "commit has no entries"}
	}

	// Fail fast at the boundary: validate every payload and resolve every
	// root id before any lock is taken or mutation attempted.
	rootIDs := make([]identifier.RootID, len(entries))
	for i, e := range entries {
		if err := e.Payload.Validate(); err != nil {
			return domain.Contribution{}, err
		}
		var err error
		if e.isCreate() {
			rootIDs[i], err = s.rootIDForPayload(e.Payload)
		} else {
			rootIDs[i], err = s.updateRootID(UpdateParams{
				Payload:             e.Payload,
				PrecedingVersionUID: e.PrecedingVersionUID,
			})
		}
		if err != nil {
			return domain.Contribution{}, err
		}
	}

	keys := make([]string, len(rootIDs))
	for i, r := range rootIDs {
		keys[i] = r.Value()
	}
	release := s.locks.acquire(keys...)
	defer release()

	contribID := s.newUID()
	commitAudit := s.audit(committer, commitChangeType, commitDescription)
	contribution := domain.Contribution{UID: contribID, Audit: commitAudit}

	err := s.repo.Atomic(ctx, func(r repository.LineageRepository) error {
		for i, e := range entries {
			versionID, err := s.applyEntry(ctx, r, rootIDs[i], e, committer, contribID)
			if err != nil {
				return err
			}
			contribution.VersionIDs = append(contribution.VersionIDs, versionID)
		}
		return r.SaveContribution(ctx, contribution, committer)
	})
	if err != nil {
		return domain.Contribution{}, err
	}
	return contribution, nil
}

func (s *Store) applyEntry(ctx context.Context, r repository.LineageRepository, rootID identifier.RootID, e CommitEntry, committer domain.Party, contribID identifier.UID) (identifier.VersionID, error) {
	audit := s.audit(committer, e.ChangeType, e.Description)

	if e.isCreate() {
		versionID := identifier.NewVersionID(rootID, s.systemID, identifier.FirstTrunk())
		data := e.Payload.Clone()
		data.SetUID(versionID.String())
		version := domain.Version{
			UID:            versionID,
			Data:           data,
			CommitAudit:    audit,
			LifecycleState: e.Lifecycle,
			ContributionID: contribID,
		}
		lineage := domain.Lineage{
			UID:         rootID,
			RecordType:  e.Payload.RecordType(),
			TimeCreated: audit.TimeCommitted,
			VersionIDs:  []identifier.VersionID{versionID},
			LatestTrunk: versionID,
		}
		item := domain.RevisionHistoryItem{VersionID: versionID, Audit: audit}
		return versionID, r.CreateLineage(ctx, lineage, version, item, committer)
	}

	lineage, err := r.GetLineage(ctx, rootID, committer)
	if err != nil {
		return identifier.VersionID{}, err
	}
	preceding := lineage.LatestTrunk
	if e.PrecedingVersionUID != nil {
		preceding = *e.PrecedingVersionUID
		if !preceding.Equal(lineage.LatestTrunk) {
			return identifier.VersionID{}, &domain.ConflictError{
				RootID:   rootID,
				Expected: preceding,
				Actual:   lineage.LatestTrunk,
			}
		}
	}

	versionID := identifier.NewVersionID(rootID, s.systemID, preceding.TreeID().NextTrunk())
	data := e.Payload.Clone()
	data.SetUID(versionID.String())
	version := domain.Version{
		UID:                 versionID,
		Data:                data,
		CommitAudit:         audit,
		LifecycleState:      e.Lifecycle,
		PrecedingVersionUID: &preceding,
		ContributionID:      contribID,
	}
	item := domain.RevisionHistoryItem{VersionID: versionID, Audit: audit}
	return versionID, r.AppendVersion(ctx, preceding, version, item, committer)
}
