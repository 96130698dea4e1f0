package domain

import (
	"time"

	"github.com/clinrec/recordstore/internal/identifier"
)

// Lineage is the version-control container for one logical record: the
// ordered, append-only list of its version identifiers and the pointer to the
// current latest trunk version. A lineage is created exactly once, on the
// first commit of its root id, and is never deleted.
type Lineage struct {
	UID         identifier.RootID
	RecordType  string
	TimeCreated time.Time

	// VersionIDs in creation order, which is not necessarily trunk order
	// once branches exist.
	VersionIDs []identifier.VersionID

	// LatestTrunk is the optimistic-concurrency anchor: updates must name it
	// to succeed.
	LatestTrunk identifier.VersionID
}

// VersionCount returns the number of versions committed so far.
func (l Lineage) VersionCount() int { return len(l.VersionIDs) }

// HasVersion reports whether the given version id belongs to this lineage.
func (l Lineage) HasVersion(id identifier.VersionID) bool {
	for _, v := range l.VersionIDs {
		if v.Equal(id) {
			return true
		}
	}
	return false
}

// Clone returns an independent copy; lineages handed out by the store never
// alias its internal state.
func (l Lineage) Clone() Lineage {
	out := l
	out.VersionIDs = append([]identifier.VersionID(nil), l.VersionIDs...)
	return out
}

// RevisionHistoryItem pairs one version id with the audit recorded at its
// committal. The ordered sequence forms the revision history, always exactly
// as long as the lineage's version list and in the same order.
type RevisionHistoryItem struct {
	VersionID identifier.VersionID
	Audit     AuditDetails
}

// RevisionHistory is the full audit trail of a lineage.
type RevisionHistory []RevisionHistoryItem

// MostRecentVersionID returns the id of the last committed version, or the
// zero id when the history is empty.
func (h RevisionHistory) MostRecentVersionID() identifier.VersionID {
	if len(h) == 0 {
		return identifier.VersionID{}
	}
	return h[len(h)-1].VersionID
}
