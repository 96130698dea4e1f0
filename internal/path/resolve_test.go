package path_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinrec/recordstore/internal/domain"
	"github.com/clinrec/recordstore/internal/path"
)

// buildRecord returns a tree shaped like a minimal clinical entry:
//
//	root (at0000)
//	  details (at0001, single)
//	    items (list): at0001.1, at0002, at0003
//	      each item has value (single leaf)
func buildRecord() *domain.Record {
	root := domain.NewRecord("COMPOSITION", "vitals", "at0000")
	details := domain.NewNode("details", "at0001")
	root.PutChild("details", details)
	details.PutList("items",
		domain.NewNode("item one", "at0001.1").PutChild("value", domain.NewLeaf("value", "at0010", "first")),
		domain.NewNode("item two", "at0002").PutChild("value", domain.NewLeaf("value", "at0011", "second")),
		domain.NewNode("item three", "at0003").PutChild("value", domain.NewLeaf("value", "at0012", "third")),
	)
	return root
}

func TestItemAtPath(t *testing.T) {
	root := buildRecord()

	node, err := path.ItemAtPath(root, "details/items[at0002]")
	require.NoError(t, err)
	assert.Equal(t, "at0002", node.NodeID())

	leaf, err := path.ItemAtPath(root, "details/items[at0002]/value")
	require.NoError(t, err)
	assert.Equal(t, "second", leaf.(*domain.Record).Value())

	// Empty path denotes the current node.
	self, err := path.ItemAtPath(root, "")
	require.NoError(t, err)
	assert.Same(t, any(root), any(self))
}

func TestItemAtPath_ListWithoutPredicateIsAmbiguous(t *testing.T) {
	root := buildRecord()

	_, err := path.ItemAtPath(root, "details/items")
	require.Error(t, err)
	var amb *path.AmbiguousError
	require.ErrorAs(t, err, &amb)
	assert.False(t, amb.WantMany)
}

func TestItemAtPath_UnknownAttribute(t *testing.T) {
	root := buildRecord()

	_, err := path.ItemAtPath(root, "details/bogus")
	var inv *path.InvalidError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "bogus", inv.Attribute)
	assert.Equal(t, []string{"items"}, inv.Expected)
}

func TestItemAtPath_MissingNodeID(t *testing.T) {
	root := buildRecord()

	_, err := path.ItemAtPath(root, "details/items[at9999]")
	var nf *path.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "at9999", nf.NodeID)
}

func TestItemsAtPath(t *testing.T) {
	root := buildRecord()

	nodes, err := path.ItemsAtPath(root, "details/items")
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, "at0001.1", nodes[0].NodeID())
	assert.Equal(t, "at0002", nodes[1].NodeID())
	assert.Equal(t, "at0003", nodes[2].NodeID())

	// A path that always resolves to one item is rejected.
	_, err = path.ItemsAtPath(root, "details/items[at0002]")
	var amb *path.AmbiguousError
	require.ErrorAs(t, err, &amb)
	assert.True(t, amb.WantMany)
}

func TestExists(t *testing.T) {
	root := buildRecord()

	assert.True(t, path.Exists(root, ""))
	assert.True(t, path.Exists(root, "details"))
	assert.True(t, path.Exists(root, "details/items"))
	assert.True(t, path.Exists(root, "details/items[at0003]"))
	assert.False(t, path.Exists(root, "details/items[at9999]"))
	assert.False(t, path.Exists(root, "nope"))
	assert.False(t, path.Exists(root, "details/items/value")) // predicate required mid-path
	assert.False(t, path.Exists(root, "details/items[")) // malformed, never raises
}

func TestIsUnique(t *testing.T) {
	root := buildRecord()

	assert.False(t, path.IsUnique(root, "details/items"))
	assert.True(t, path.IsUnique(root, "details/items[at0002]"))
	assert.True(t, path.IsUnique(root, "details"))
	assert.False(t, path.IsUnique(root, "details/items[at9999]"))
}

func TestDuplicateNodeIDsFirstMatchWins(t *testing.T) {
	root := domain.NewRecord("COMPOSITION", "dup", "at0000")
	first := domain.NewLeaf("first", "at0001", 1)
	second := domain.NewLeaf("second", "at0001", 2)
	root.PutList("items", first, second)

	node, err := path.ItemAtPath(root, "items[at0001]")
	require.NoError(t, err)
	assert.Equal(t, 1, node.(*domain.Record).Value())
}

func TestOfItem(t *testing.T) {
	root := buildRecord()

	node, err := path.ItemAtPath(root, "details/items[at0002]/value")
	require.NoError(t, err)

	p, err := path.OfItem(node)
	require.NoError(t, err)
	assert.Equal(t, "details/items[at0002]/value", p.String())

	// OfItem composed with ItemAtPath is identity.
	back, err := path.ItemAtPath(root, p.String())
	require.NoError(t, err)
	assert.Same(t, any(node), any(back))
}

func TestOfItem_RootHasNoParent(t *testing.T) {
	root := buildRecord()

	_, err := path.OfItem(root)
	var np *path.NoParentError
	require.ErrorAs(t, err, &np)
}

func TestParse_Syntax(t *testing.T) {
	valid := []string{"", "/", "a", "a/b", "a[x]/b", "/a/b[y]"}
	for _, c := range valid {
		_, err := path.Parse(c)
		assert.NoError(t, err, c)
	}

	invalid := []string{"a//b", "a[", "a]", "[x]", "a[]", "a[x]y", "a[[x]]", "/a/"}
	for _, c := range invalid {
		_, err := path.Parse(c)
		var syn *path.SyntaxError
		assert.ErrorAs(t, err, &syn, c)
	}
}
