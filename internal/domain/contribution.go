package domain

import "github.com/clinrec/recordstore/internal/identifier"

// Contribution documents one atomic, audited commit of one or more versions,
// possibly spanning several lineages. Either every version in the set is
// committed or none is.
type Contribution struct {
	UID        identifier.UID
	VersionIDs []identifier.VersionID
	Audit      AuditDetails
}
