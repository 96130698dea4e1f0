package domain

import "time"

// ChangeType is a coded audit change type from the clinical terminology's
// "audit change type" group.
type ChangeType struct {
	Code  string
	Label string
}

var (
	ChangeCreation         = ChangeType{Code: "249", Label: "creation"}
	ChangeAmendment        = ChangeType{Code: "250", Label: "amendment"}
	ChangeModification     = ChangeType{Code: "251", Label: "modification"}
	ChangeSynthesis        = ChangeType{Code: "252", Label: "synthesis"}
	ChangeDeleted          = ChangeType{Code: "523", Label: "deleted"}
	ChangeAttestation      = ChangeType{Code: "666", Label: "attestation"}
	ChangeRestoration      = ChangeType{Code: "816", Label: "restoration"}
	ChangeFormatConversion = ChangeType{Code: "817", Label: "format conversion"}
	ChangeUnknown          = ChangeType{Code: "253", Label: "unknown"}
)

// LifecycleState is a coded version lifecycle state.
type LifecycleState struct {
	Code  string
	Label string
}

var (
	LifecycleComplete   = LifecycleState{Code: "532", Label: "complete"}
	LifecycleIncomplete = LifecycleState{Code: "553", Label: "incomplete"}
	LifecycleDeleted    = LifecycleState{Code: "523", Label: "deleted"}
	LifecycleInactive   = LifecycleState{Code: "800", Label: "inactive"}
	LifecycleAbandoned  = LifecycleState{Code: "801", Label: "abandoned"}
)

// IsDeleted reports whether the state marks the record as logically deleted.
// Logical deletion is an ordinary version carrying this state, not a distinct
// structural state of the lineage.
func (s LifecycleState) IsDeleted() bool { return s.Code == LifecycleDeleted.Code }

// Party is a proxy description of a committer, attester or reader: a
// human-readable name plus an optional reference into an external identity
// system. At least one of the two should be present.
type Party struct {
	Name        string
	ExternalRef string
}

// AuditDetails records who committed a change, when, on which system and why.
type AuditDetails struct {
	SystemID      string
	Committer     Party
	TimeCommitted time.Time
	ChangeType    ChangeType
	Description   string
}

// Attestation records that a clinician has explicitly attested the content of
// one version.
type Attestation struct {
	Attester     Party
	Reason       string
	IsPending    bool
	AttestedView string // optional URI of the view that was attested
	Time         time.Time
}
