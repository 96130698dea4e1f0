package domain

import (
	"github.com/clinrec/recordstore/internal/identifier"
)

// Version is one immutable, write-once snapshot within a lineage: the
// committed payload plus its commit audit trail.
type Version struct {
	UID identifier.VersionID

	// Data is the committed payload tree. Exclusively owned by this
	// snapshot; commits always capture a structurally independent copy.
	Data *Record

	CommitAudit    AuditDetails
	LifecycleState LifecycleState

	// PrecedingVersionUID identifies the version this one supersedes. Unset
	// only for the very first version of a lineage.
	PrecedingVersionUID *identifier.VersionID

	// ContributionID references the atomic commit this version was part of.
	ContributionID identifier.UID

	// Attestations layered onto this version at commit time.
	Attestations []Attestation
}

// OwnerID returns the root identifier of the owning lineage.
func (v Version) OwnerID() identifier.RootID { return v.UID.ObjectID() }

// IsBranch reports whether this version sits on a branch of the version tree.
func (v Version) IsBranch() bool { return v.UID.IsBranch() }

// RecordType returns the record family of the payload root.
func (v Version) RecordType() string {
	if v.Data == nil {
		return ""
	}
	return v.Data.RecordType()
}
