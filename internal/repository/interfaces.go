package repository

import (
	"context"

	"github.com/clinrec/recordstore/internal/domain"
	"github.com/clinrec/recordstore/internal/identifier"
)

// LineageRepository is the storage collaborator contract for the versioned
// store: per-key reads, an append guarded by a compare-and-swap on the
// latest-trunk pointer, and an atomic scope for multi-lineage commits.
//
// Readers never observe a half-written version: every mutation becomes
// visible as a whole or not at all. The reader/actor parties are recorded for
// access auditing only and never affect results.
type LineageRepository interface {
	// GetLineage returns the lineage for the root id, or
	// domain.NotFoundError.
	GetLineage(ctx context.Context, rootID identifier.RootID, reader domain.Party) (domain.Lineage, error)

	// GetVersion returns one version by its composite id, or
	// domain.NotFoundError.
	GetVersion(ctx context.Context, versionID identifier.VersionID, reader domain.Party) (domain.Version, error)

	// RevisionHistory returns the lineage's full audit trail, or
	// domain.NotFoundError when no lineage exists.
	RevisionHistory(ctx context.Context, rootID identifier.RootID, reader domain.Party) (domain.RevisionHistory, error)

	// LatestVersions returns the latest-trunk version of every lineage of
	// the given record type, for equality scans. Order is unspecified.
	LatestVersions(ctx context.Context, recordType string, reader domain.Party) ([]domain.Version, error)

	// CreateLineage stores a brand-new lineage together with its first
	// version and history item. Fails with domain.AlreadyExistsError if a
	// lineage for the root id exists.
	CreateLineage(ctx context.Context, lineage domain.Lineage, version domain.Version, item domain.RevisionHistoryItem, actor domain.Party) error

	// AppendVersion appends a version to an existing lineage iff the
	// lineage's latest-trunk pointer still equals expectedLatest
	// (compare-and-swap). Fails with domain.ConflictError otherwise, or
	// domain.NotFoundError when the lineage is missing.
	AppendVersion(ctx context.Context, expectedLatest identifier.VersionID, version domain.Version, item domain.RevisionHistoryItem, actor domain.Party) error

	// SaveContribution stores the audit record of one atomic commit.
	SaveContribution(ctx context.Context, contribution domain.Contribution, actor domain.Party) error

	// Atomic runs fn so that either every mutation it performs becomes
	// visible or none does.
	Atomic(ctx context.Context, fn func(LineageRepository) error) error
}
