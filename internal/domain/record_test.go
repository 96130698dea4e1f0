package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() *Record {
	root := NewRecord("PERSON", "person", "at0000")
	details := NewNode("details", "at0001")
	root.PutChild("details", details)
	details.PutList("items",
		NewLeaf("nhs number", "at0002", "9449305552"),
		NewLeaf("given name", "at0003", "Ada"),
	)
	return root
}

func TestRecordParentLinks(t *testing.T) {
	root := sampleRecord()

	attr, ok := root.Attribute("details")
	require.True(t, ok)
	require.False(t, attr.Multiple)

	details := attr.Child.(*Record)
	parent, attrName, ok := details.Parent()
	require.True(t, ok)
	assert.Same(t, root, parent)
	assert.Equal(t, "details", attrName)

	_, _, ok = root.Parent()
	assert.False(t, ok)
}

func TestRecordCloneIsIndependent(t *testing.T) {
	root := sampleRecord()
	clone := root.Clone()

	require.Equal(t, root.AttributeNames(), clone.AttributeNames())
	assert.Equal(t, "PERSON", clone.RecordType())

	origAttr, _ := root.Attribute("details")
	cloneAttr, _ := clone.Attribute("details")
	assert.NotSame(t, origAttr.Child.(*Record), cloneAttr.Child.(*Record))

	// Parent links in the clone point into the clone, not the original.
	parent, _, ok := cloneAttr.Child.(*Record).Parent()
	require.True(t, ok)
	assert.Same(t, clone, parent)
}

func TestRecordJSONRoundTrip(t *testing.T) {
	root := sampleRecord()

	data, err := json.Marshal(root)
	require.NoError(t, err)

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))

	assert.Equal(t, "PERSON", back.RecordType())
	assert.Equal(t, []string{"details"}, back.AttributeNames())

	attr, ok := back.Attribute("details")
	require.True(t, ok)
	items, ok := attr.Child.(*Record).Attribute("items")
	require.True(t, ok)
	require.True(t, items.Multiple)
	require.Len(t, items.Children, 2)
	assert.Equal(t, "9449305552", items.Children[0].(*Record).Value())

	// Parent links are re-established on decode.
	parent, attrName, ok := items.Children[1].(*Record).Parent()
	require.True(t, ok)
	assert.Equal(t, "details", parent.(*Record).Name())
	assert.Equal(t, "items", attrName)
}
