package domain

import (
	"fmt"

	"github.com/clinrec/recordstore/internal/identifier"
)

// ValidationError reports a structurally invalid payload. Raised at the
// boundary before any mutation is attempted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid payload: " + e.Reason
}

// NotFoundError reports a missing lineage or version. Terminal for the
// specific lookup.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.Key)
}

// AlreadyExistsError reports a create collision: a lineage already exists for
// the root id. Terminal; the caller must switch to an update.
type AlreadyExistsError struct {
	RootID identifier.RootID
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("lineage %s already exists", e.RootID.Value())
}

// ConflictError reports an optimistic-concurrency violation: the preceding
// version named by an update is no longer the latest trunk version.
// Recoverable; callers re-read and retry.
type ConflictError struct {
	RootID   identifier.RootID
	Expected identifier.VersionID // preceding version the caller supplied
	Actual   identifier.VersionID // latest trunk at commit time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s: expected preceding version %s but latest trunk is %s",
		e.RootID.Value(), e.Expected, e.Actual)
}
