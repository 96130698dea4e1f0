package domain

import (
	"encoding/json"
	"fmt"

	"github.com/clinrec/recordstore/internal/path"
)

// Record is the generic payload tree committed into the store: an interior
// node with named single- or list-valued attributes, or a leaf carrying a
// value. Node-ids are caller-supplied local discriminators used by path
// predicates. Parent links are weak back-references populated when a child is
// attached; they carry no ownership.
type Record struct {
	recordType string // set on snapshot roots, e.g. "COMPOSITION"
	uid        string // optional root identifier carried by the payload
	name       string
	nodeID     string
	value      any
	attrs      []recordAttr
	parent     *Record
	parentAttr string
}

type recordAttr struct {
	name     string
	multiple bool
	child    *Record
	children []*Record
}

// NewRecord creates a snapshot root node. recordType names the record family
// the storage layer files the lineage under; nodeID is conventionally the
// schema (archetype) id at the root.
func NewRecord(recordType, name, nodeID string) *Record {
	return &Record{recordType: recordType, name: name, nodeID: nodeID}
}

// NewNode creates an interior or leaf node to be attached under a parent.
func NewNode(name, nodeID string) *Record {
	return &Record{name: name, nodeID: nodeID}
}

// NewLeaf creates a leaf node carrying a value.
func NewLeaf(name, nodeID string, value any) *Record {
	return &Record{name: name, nodeID: nodeID, value: value}
}

// PutChild attaches a single-valued attribute. It replaces any previous
// attribute of the same name and records the parent back-link on the child.
func (r *Record) PutChild(attribute string, child *Record) *Record {
	child.parent = r
	child.parentAttr = attribute
	r.setAttr(recordAttr{name: attribute, child: child})
	return r
}

// PutList attaches a list-valued attribute in the given order.
func (r *Record) PutList(attribute string, children ...*Record) *Record {
	for _, c := range children {
		c.parent = r
		c.parentAttr = attribute
	}
	r.setAttr(recordAttr{name: attribute, multiple: true, children: children})
	return r
}

func (r *Record) setAttr(a recordAttr) {
	for i := range r.attrs {
		if r.attrs[i].name == a.name {
			r.attrs[i] = a
			return
		}
	}
	r.attrs = append(r.attrs, a)
}

// RecordType returns the record family of a snapshot root, or "" on interior
// nodes.
func (r *Record) RecordType() string { return r.recordType }

// UID returns the root identifier carried by the payload, or "" when the
// store is expected to allocate one.
func (r *Record) UID() string { return r.uid }

// SetUID records the root identifier on the payload.
func (r *Record) SetUID(uid string) *Record {
	r.uid = uid
	return r
}

// Name returns the runtime name of this node.
func (r *Record) Name() string { return r.name }

// NodeID returns the node's local discriminator.
func (r *Record) NodeID() string { return r.nodeID }

// Value returns the leaf value, or nil on interior nodes.
func (r *Record) Value() any { return r.value }

// SetValue records a leaf value on the node.
func (r *Record) SetValue(value any) *Record {
	r.value = value
	return r
}

// IsLeaf reports whether the node carries a value and no attributes.
func (r *Record) IsLeaf() bool { return len(r.attrs) == 0 }

// AttributeNames lists attribute names in declaration order.
func (r *Record) AttributeNames() []string {
	names := make([]string, len(r.attrs))
	for i, a := range r.attrs {
		names[i] = a.name
	}
	return names
}

// Attribute implements path.Addressable.
func (r *Record) Attribute(name string) (path.Attribute, bool) {
	for _, a := range r.attrs {
		if a.name != name {
			continue
		}
		out := path.Attribute{Name: a.name, Multiple: a.multiple}
		if a.multiple {
			out.Children = make([]path.Addressable, len(a.children))
			for i, c := range a.children {
				out.Children[i] = c
			}
		} else if a.child != nil {
			out.Child = a.child
		}
		return out, true
	}
	return path.Attribute{}, false
}

// Parent implements path.Addressable.
func (r *Record) Parent() (path.Addressable, string, bool) {
	if r.parent == nil {
		return nil, "", false
	}
	return r.parent, r.parentAttr, true
}

// Clone returns a structurally independent deep copy with fresh parent
// links. The store clones every payload at commit time so no node is shared
// across snapshots.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{recordType: r.recordType, uid: r.uid, name: r.name, nodeID: r.nodeID, value: r.value}
	for _, a := range r.attrs {
		if a.multiple {
			children := make([]*Record, len(a.children))
			for i, c := range a.children {
				children[i] = c.Clone()
			}
			out.PutList(a.name, children...)
		} else if a.child != nil {
			out.PutChild(a.name, a.child.Clone())
		} else {
			out.setAttr(recordAttr{name: a.name})
		}
	}
	return out
}

// Validate checks the structural invariants every committed payload must
// satisfy: the root names a record type, and every node carries a non-empty
// node id and name.
func (r *Record) Validate() error {
	if r == nil {
		return &ValidationError{Reason: "payload is nil"}
	}
	if r.recordType == "" {
		return &ValidationError{Reason: "root record has no record type"}
	}
	return r.validateNode()
}

func (r *Record) validateNode() error {
	if r.nodeID == "" {
		return &ValidationError{Reason: fmt.Sprintf("node %q has no node id", r.name)}
	}
	if r.name == "" {
		return &ValidationError{Reason: fmt.Sprintf("node %q has no name", r.nodeID)}
	}
	for _, a := range r.attrs {
		if a.multiple {
			for _, c := range a.children {
				if err := c.validateNode(); err != nil {
					return err
				}
			}
		} else if a.child != nil {
			if err := a.child.validateNode(); err != nil {
				return err
			}
		}
	}
	return nil
}

// recordJSON is the persisted shape used by the storage collaborators and
// the history exporter. This is internal storage layout, not a clinical
// interchange format.
type recordJSON struct {
	RecordType string     `json:"record_type,omitempty"`
	UID        string     `json:"uid,omitempty"`
	Name       string     `json:"name"`
	NodeID     string     `json:"node_id"`
	Value      any        `json:"value,omitempty"`
	Attributes []attrJSON `json:"attributes,omitempty"`
}

type attrJSON struct {
	Name     string        `json:"name"`
	Multiple bool          `json:"multiple,omitempty"`
	Child    *recordJSON   `json:"child,omitempty"`
	Children []*recordJSON `json:"children,omitempty"`
}

func (r *Record) toJSON() *recordJSON {
	out := &recordJSON{RecordType: r.recordType, UID: r.uid, Name: r.name, NodeID: r.nodeID, Value: r.value}
	for _, a := range r.attrs {
		ja := attrJSON{Name: a.name, Multiple: a.multiple}
		if a.multiple {
			ja.Children = make([]*recordJSON, len(a.children))
			for i, c := range a.children {
				ja.Children[i] = c.toJSON()
			}
		} else if a.child != nil {
			ja.Child = a.child.toJSON()
		}
		out.Attributes = append(out.Attributes, ja)
	}
	return out
}

func fromJSON(j *recordJSON) *Record {
	r := &Record{recordType: j.RecordType, uid: j.UID, name: j.Name, nodeID: j.NodeID, value: j.Value}
	for _, ja := range j.Attributes {
		if ja.Multiple {
			children := make([]*Record, len(ja.Children))
			for i, jc := range ja.Children {
				children[i] = fromJSON(jc)
			}
			r.PutList(ja.Name, children...)
		} else if ja.Child != nil {
			r.PutChild(ja.Name, fromJSON(ja.Child))
		} else {
			r.setAttr(recordAttr{name: ja.Name})
		}
	}
	return r
}

// MarshalJSON implements json.Marshaler.
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.toJSON())
}

// UnmarshalJSON implements json.Unmarshaler, re-establishing parent links.
func (r *Record) UnmarshalJSON(data []byte) error {
	var j recordJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("failed to decode record payload: %w", err)
	}
	*r = *fromJSON(&j)
	return nil
}

var _ path.Addressable = (*Record)(nil)
