package store

import (
	"context"
	"fmt"

	"github.com/clinrec/recordstore/internal/domain"
	"github.com/clinrec/recordstore/internal/identifier"
	"github.com/clinrec/recordstore/internal/path"
)

// ReadLatest returns the version at the lineage's latest-trunk pointer.
// Reads never take lineage locks and always observe a fully committed
// version.
func (s *Store) ReadLatest(ctx context.Context, recordType string, rootID identifier.RootID, reader domain.Party) (domain.Version, error) {
	lineage, err := s.repo.GetLineage(ctx, rootID, reader)
	if err != nil {
		return domain.Version{}, err
	}
	if recordType != "" && lineage.RecordType != recordType {
		return domain.Version{}, &domain.NotFoundError{Key: rootID.Value()}
	}
	return s.repo.GetVersion(ctx, lineage.LatestTrunk, reader)
}

// ReadVersion returns one exact version by its composite id.
func (s *Store) ReadVersion(ctx context.Context, recordType string, versionID identifier.VersionID, reader domain.Party) (domain.Version, error) {
	version, err := s.repo.GetVersion(ctx, versionID, reader)
	if err != nil {
		return domain.Version{}, err
	}
	if recordType != "" && version.RecordType() != recordType {
		return domain.Version{}, &domain.NotFoundError{Key: versionID.String()}
	}
	return version, nil
}

// TrunkLifecycleState returns the lifecycle state of the lineage's latest
// trunk version. The probe for logical deletion: a deleted record reports
// LifecycleDeleted here while every version stays readable.
func (s *Store) TrunkLifecycleState(ctx context.Context, rootID identifier.RootID, reader domain.Party) (domain.LifecycleState, error) {
	version, err := s.ReadLatest(ctx, "", rootID, reader)
	if err != nil {
		return domain.LifecycleState{}, err
	}
	return version.LifecycleState, nil
}

// QueryEqual scans the latest version of every lineage of the record type
// and returns the first whose payload matches every supplied path: the value
// resolved at the path must equal one of the candidate values given for it.
// schemaID, when non-empty, must match the payload root's node id. This is a
// linear scan over simple equality filters, not a query planner.
func (s *Store) QueryEqual(ctx context.Context, recordType, schemaID string, pathValues map[string][]string, reader domain.Party) (domain.Version, error) {
	// Malformed path expressions are caller input errors; reject them before
	// touching storage.
	for expr := range pathValues {
		if _, err := path.Parse(expr); err != nil {
			return domain.Version{}, err
		}
	}

	versions, err := s.repo.LatestVersions(ctx, recordType, reader)
	if err != nil {
		return domain.Version{}, err
	}
	for _, v := range versions {
		if v.Data == nil {
			continue
		}
		if schemaID != "" && v.Data.NodeID() != schemaID {
			continue
		}
		if matchesAll(v.Data, pathValues) {
			return v, nil
		}
	}
	return domain.Version{}, &domain.NotFoundError{Key: fmt.Sprintf("%s matching %d path filters", recordType, len(pathValues))}
}

func matchesAll(root *domain.Record, pathValues map[string][]string) bool {
	for expr, candidates := range pathValues {
		node, err := path.ItemAtPath(root, expr)
		if err != nil {
			return false
		}
		rec, ok := node.(*domain.Record)
		if !ok {
			return false
		}
		got := fmt.Sprint(rec.Value())
		matched := false
		for _, want := range candidates {
			if got == want {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// LineageView is the result of RetrieveLineage: lineage metadata, the full
// audit trail, and — when eager loading was requested — every version
// payload in creation order.
type LineageView struct {
	Lineage  domain.Lineage
	History  domain.RevisionHistory
	Versions []domain.Version // nil unless metadataOnly was false
}

// RetrieveLineage returns a lineage and its revision history. With
// metadataOnly false it additionally eager-loads every version; costly, used
// for full-history export.
func (s *Store) RetrieveLineage(ctx context.Context, rootID identifier.RootID, reader domain.Party, metadataOnly bool) (LineageView, error) {
	lineage, err := s.repo.GetLineage(ctx, rootID, reader)
	if err != nil {
		return LineageView{}, err
	}
	history, err := s.repo.RevisionHistory(ctx, rootID, reader)
	if err != nil {
		return LineageView{}, err
	}
	view := LineageView{Lineage: lineage, History: history}
	if !metadataOnly {
		view.Versions = make([]domain.Version, 0, len(lineage.VersionIDs))
		for _, id := range lineage.VersionIDs {
			v, err := s.repo.GetVersion(ctx, id, reader)
			if err != nil {
				return LineageView{}, err
			}
			view.Versions = append(view.Versions, v)
		}
	}
	return view, nil
}
