package path

// resolution is the outcome of a walk: either exactly one node, or the full
// child list of a terminal list attribute reached without a predicate.
type resolution struct {
	node   Addressable
	many   []Addressable
	isMany bool
}

// walk resolves the expression left to right against root, applying the
// shared resolution rules; termination policy is left to the callers.
func walk(root Addressable, expr string) (resolution, error) {
	p, err := Parse(expr)
	if err != nil {
		return resolution{}, err
	}
	current := root
	segs := p.Segments()
	for i, seg := range segs {
		attr, ok := current.Attribute(seg.Attribute)
		if !ok {
			return resolution{}, &InvalidError{Path: expr, Attribute: seg.Attribute, Expected: current.AttributeNames()}
		}
		if !attr.Multiple {
			if attr.Child == nil {
				return resolution{}, &NotFoundError{Path: expr, Attribute: seg.Attribute}
			}
			if seg.HasPredicate && attr.Child.NodeID() != seg.NodeID {
				return resolution{}, &NotFoundError{Path: expr, Attribute: seg.Attribute, NodeID: seg.NodeID}
			}
			current = attr.Child
			continue
		}
		if !seg.HasPredicate {
			if i != len(segs)-1 {
				return resolution{}, &AmbiguousError{Path: expr}
			}
			return resolution{many: attr.Children, isMany: true}, nil
		}
		// First match in list order wins; duplicate node-ids among siblings
		// are a modeling concern upstream, not an error here.
		next := Addressable(nil)
		for _, child := range attr.Children {
			if child.NodeID() == seg.NodeID {
				next = child
				break
			}
		}
		if next == nil {
			return resolution{}, &NotFoundError{Path: expr, Attribute: seg.Attribute, NodeID: seg.NodeID}
		}
		current = next
	}
	return resolution{node: current}, nil
}

// ItemAtPath resolves the expression to exactly one node. A path ending on a
// list attribute without a predicate is ambiguous, not missing, and fails
// with AmbiguousError.
func ItemAtPath(root Addressable, expr string) (Addressable, error) {
	res, err := walk(root, expr)
	if err != nil {
		return nil, err
	}
	if res.isMany {
		return nil, &AmbiguousError{Path: expr}
	}
	return res.node, nil
}

// ItemsAtPath resolves the expression to the full child list of a list
// attribute. A path that would resolve to a single node fails with
// AmbiguousError: it would always return one item.
func ItemsAtPath(root Addressable, expr string) ([]Addressable, error) {
	res, err := walk(root, expr)
	if err != nil {
		return nil, err
	}
	if !res.isMany {
		return nil, &AmbiguousError{Path: expr, WantMany: true}
	}
	return res.many, nil
}

// Exists reports whether the expression resolves at all, to one node or to a
// list. It never returns an error.
func Exists(root Addressable, expr string) bool {
	_, err := walk(root, expr)
	return err == nil
}

// IsUnique reports whether the expression resolves to exactly one node.
func IsUnique(root Addressable, expr string) bool {
	_, err := ItemAtPath(root, expr)
	return err == nil
}

// OfItem computes the path of a descendant relative to its snapshot root by
// following parent back-references. The predicate is emitted only for nodes
// held in list attributes. Fails with NoParentError when the node is itself
// a root.
func OfItem(descendant Addressable) (Path, error) {
	parent, attrName, ok := descendant.Parent()
	if !ok {
		return Path{}, &NoParentError{NodeID: descendant.NodeID()}
	}
	var segs []Segment
	node := descendant
	for ok {
		seg := Segment{Attribute: attrName}
		if attr, found := parent.Attribute(attrName); found && attr.Multiple {
			seg.NodeID = node.NodeID()
			seg.HasPredicate = true
		}
		segs = append(segs, seg)
		node = parent
		parent, attrName, ok = node.Parent()
	}
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	return Path{segments: segs}, nil
}
