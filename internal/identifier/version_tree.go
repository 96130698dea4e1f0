package identifier

import (
	"fmt"
	"regexp"
	"strconv"
)

var versionTreeRegex = regexp.MustCompile(`^([1-9][0-9]*)(\.([1-9][0-9]*)\.([1-9][0-9]*))?$`)

// VersionTreeID locates one version within a version tree. Lexical form:
// trunk [ '.' branch '.' branchVersion ]. Numbering starts at 1 and the two
// branch components co-occur: "N.B" alone is rejected.
type VersionTreeID struct {
	trunk         int
	branch        int
	branchVersion int
}

// ParseVersionTreeID parses "N" or "N.B.V". Any other arity, non-numeric
// parts, leading zeros or non-positive components fail.
func ParseVersionTreeID(s string) (VersionTreeID, error) {
	m := versionTreeRegex.FindStringSubmatch(s)
	if m == nil {
		return VersionTreeID{}, &InvalidFormatError{Value: s, Expected: "trunk [ '.' branch '.' branch_version ]"}
	}
	trunk, err := strconv.Atoi(m[1])
	if err != nil {
		return VersionTreeID{}, &InvalidFormatError{Value: s, Expected: "numeric trunk version"}
	}
	id := VersionTreeID{trunk: trunk}
	if m[2] != "" {
		if id.branch, err = strconv.Atoi(m[3]); err != nil {
			return VersionTreeID{}, &InvalidFormatError{Value: s, Expected: "numeric branch number"}
		}
		if id.branchVersion, err = strconv.Atoi(m[4]); err != nil {
			return VersionTreeID{}, &InvalidFormatError{Value: s, Expected: "numeric branch version"}
		}
	}
	return id, nil
}

// FirstTrunk is the version tree id allocated to the first version of every
// lineage.
func FirstTrunk() VersionTreeID { return VersionTreeID{trunk: 1} }

// TrunkVersion returns the trunk version number; numbering starts at 1.
func (v VersionTreeID) TrunkVersion() int { return v.trunk }

// IsBranch reports whether the id carries branch components.
func (v VersionTreeID) IsBranch() bool { return v.branch != 0 }

// BranchNumber returns the branch number, or 0 for trunk ids.
func (v VersionTreeID) BranchNumber() int { return v.branch }

// BranchVersion returns the branch version, or 0 for trunk ids.
func (v VersionTreeID) BranchVersion() int { return v.branchVersion }

// NextTrunk returns the id of the next trunk version. Branch components are
// not carried over: trunk succession always happens on the trunk.
func (v VersionTreeID) NextTrunk() VersionTreeID {
	return VersionTreeID{trunk: v.trunk + 1}
}

// IsZero reports whether the id is the zero value, i.e. unset.
func (v VersionTreeID) IsZero() bool { return v.trunk == 0 }

// Equal reports structural equality.
func (v VersionTreeID) Equal(other VersionTreeID) bool { return v == other }

// String renders the canonical lexical form; parsing it back yields an equal
// id.
func (v VersionTreeID) String() string {
	if v.IsBranch() {
		return fmt.Sprintf("%d.%d.%d", v.trunk, v.branch, v.branchVersion)
	}
	return strconv.Itoa(v.trunk)
}
