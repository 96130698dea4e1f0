package identifier

import "strings"

// VersionID is the globally unique identifier of one version of a versioned
// record. Lexical form: object_id '::' creating_system_id '::' version_tree_id.
// Equality is structural: the creating system id records provenance, so two
// VersionIDs differing only there refer to different versions.
type VersionID struct {
	object         RootID
	creatingSystem UID
	tree           VersionTreeID
}

// ParseVersionID requires exactly two "::" separators; a bare root identifier
// is not a valid version identifier.
func ParseVersionID(s string) (VersionID, error) {
	parts := strings.Split(s, "::")
	if len(parts) != 3 {
		return VersionID{}, &InvalidFormatError{Value: s, Expected: "object_id '::' creating_system_id '::' version_tree_id"}
	}
	object, err := ParseRootID(parts[0])
	if err != nil {
		return VersionID{}, err
	}
	system, err := ParseUID(parts[1])
	if err != nil {
		return VersionID{}, err
	}
	tree, err := ParseVersionTreeID(parts[2])
	if err != nil {
		return VersionID{}, err
	}
	return VersionID{object: object, creatingSystem: system, tree: tree}, nil
}

// NewVersionID assembles a version id from its three parts.
func NewVersionID(object RootID, creatingSystem UID, tree VersionTreeID) VersionID {
	return VersionID{object: object, creatingSystem: creatingSystem, tree: tree}
}

// ObjectID returns the root identifier of the lineage this version belongs to.
func (v VersionID) ObjectID() RootID { return v.object }

// CreatingSystemID identifies the system that created this version.
func (v VersionID) CreatingSystemID() UID { return v.creatingSystem }

// TreeID locates the version within its version tree.
func (v VersionID) TreeID() VersionTreeID { return v.tree }

// IsBranch reports whether this version sits on a branch.
func (v VersionID) IsBranch() bool { return v.tree.IsBranch() }

// IsZero reports whether the id is the zero value, i.e. unset.
func (v VersionID) IsZero() bool { return v.object.IsZero() }

// Equal reports structural equality of all three parts.
func (v VersionID) Equal(other VersionID) bool { return v == other }

// String renders the canonical composite form used as the persisted key.
func (v VersionID) String() string {
	return v.object.Value() + "::" + v.creatingSystem.Value() + "::" + v.tree.String()
}
