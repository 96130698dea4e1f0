package identifier

import (
	"regexp"
	"strings"
)

// UIDKind tags which identifier grammar a parsed UID matched, so callers can
// branch on identifier family without re-parsing.
type UIDKind int

const (
	KindUUID UIDKind = iota
	KindISOOID
	KindInternetID
)

func (k UIDKind) String() string {
	switch k {
	case KindUUID:
		return "uuid"
	case KindISOOID:
		return "iso-oid"
	case KindInternetID:
		return "internet-id"
	}
	return "unknown"
}

var (
	uuidRegex       = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	isoOIDRegex     = regexp.MustCompile(`^[0-2]((\.0)|(\.[1-9][0-9]*))*$`)
	internetIDRegex = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9-]{0,62}\.)+[a-zA-Z][a-zA-Z0-9-]{0,62}$`)
)

// UID is a durable unique identifier in one of the three recognized shapes:
// DCE UUID (8-4-4-4-12 hex), dotted ISO OID, or reverse-domain internet id.
type UID struct {
	value string
	kind  UIDKind
}

// ParseUID recognizes a UID without prior knowledge of which shape is being
// passed in. OID is tried first so purely numeric dotted values are not
// mistaken for domains.
func ParseUID(s string) (UID, error) {
	switch {
	case isoOIDRegex.MatchString(s):
		return UID{value: s, kind: KindISOOID}, nil
	case uuidRegex.MatchString(s):
		return UID{value: s, kind: KindUUID}, nil
	case internetIDRegex.MatchString(s):
		return UID{value: s, kind: KindInternetID}, nil
	}
	return UID{}, &InvalidFormatError{Value: s, Expected: "UUID, ISO OID or internet id"}
}

// Value returns the lexical form of the identifier.
func (u UID) Value() string { return u.value }

// Kind reports which grammar the identifier matched.
func (u UID) Kind() UIDKind { return u.kind }

// IsZero reports whether the UID is the zero value, i.e. unset.
func (u UID) IsZero() bool { return u.value == "" }

// Equal reports structural equality.
func (u UID) Equal(other UID) bool { return u.value == other.value && u.kind == other.kind }

func (u UID) String() string { return u.value }

// RootID is the globally unique identifier of a logical record: a UID with no
// extension part, the anchor of a lineage.
type RootID struct {
	UID
}

// ParseRootID parses the root identifier of a lineage. A value containing a
// "::" separator is rejected: version identifiers are not root identifiers.
func ParseRootID(s string) (RootID, error) {
	if strings.Contains(s, "::") {
		return RootID{}, &InvalidFormatError{Value: s, Expected: "root identifier without '::' extension"}
	}
	uid, err := ParseUID(s)
	if err != nil {
		return RootID{}, err
	}
	return RootID{UID: uid}, nil
}

// Equal reports structural equality of two root identifiers.
func (r RootID) Equal(other RootID) bool {
	return r.value == other.value && r.kind == other.kind
}
