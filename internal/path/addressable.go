// Package path resolves path expressions against trees of addressable record
// nodes. A path expression is the empty string (this node) or a '/'-separated
// sequence of segments, each an attribute name optionally followed by a
// [nodeID] predicate selecting one element of a list attribute.
package path

// Addressable is the capability a record node exposes to the path engine.
// Any concrete record type implements this one small interface; the engine
// never depends on concrete node shapes.
type Addressable interface {
	// NodeID returns the node's local discriminator within a list attribute.
	// Node-ids are advisory: uniqueness among siblings is not enforced here.
	NodeID() string

	// AttributeNames lists the node's named attributes in declaration order.
	AttributeNames() []string

	// Attribute reports the child slot with the given name.
	Attribute(name string) (Attribute, bool)

	// Parent returns the parent node and the attribute under which this node
	// sits, or ok=false when the node is a snapshot root. Parent links are
	// weak back-references populated at snapshot construction; they carry no
	// ownership.
	Parent() (parent Addressable, attribute string, ok bool)
}

// Attribute describes one named child slot of a node: either a single child
// or an ordered list of children, each carrying its own node-id.
type Attribute struct {
	Name     string
	Multiple bool
	Child    Addressable   // set when Multiple is false
	Children []Addressable // set when Multiple is true
}
