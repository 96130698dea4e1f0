package path

import "fmt"

// SyntaxError reports a malformed path expression. Caller input error, never
// retried.
type SyntaxError struct {
	Path   string
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid path %q: %s", e.Path, e.Reason)
}

// InvalidError reports that a named attribute does not exist at the node the
// walk had reached. Expected carries the attribute set that was available.
type InvalidError struct {
	Path      string
	Attribute string
	Expected  []string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("path %q invalid: no attribute %q (have %v)", e.Path, e.Attribute, e.Expected)
}

// NotFoundError reports that the walk was syntactically and structurally
// valid but no node matched, e.g. a predicate naming an absent node-id.
type NotFoundError struct {
	Path      string
	Attribute string
	NodeID    string
}

func (e *NotFoundError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("path %q not found: no child with node id %q under %q", e.Path, e.NodeID, e.Attribute)
	}
	return fmt.Sprintf("path %q not found at attribute %q", e.Path, e.Attribute)
}

// AmbiguousError reports a mismatch between the path's cardinality and the
// operation used: a list attribute reached without a predicate when a single
// item was required, or the reverse. Caller logic error.
type AmbiguousError struct {
	Path     string
	WantMany bool
}

func (e *AmbiguousError) Error() string {
	if e.WantMany {
		return fmt.Sprintf("path %q would always return one item; use the single-item lookup", e.Path)
	}
	return fmt.Sprintf("path %q resolves to a list without a predicate; use the multi-item lookup", e.Path)
}

// NoParentError reports a reverse lookup on a node with no recorded parent
// link, i.e. a snapshot root.
type NoParentError struct {
	NodeID string
}

func (e *NoParentError) Error() string {
	return fmt.Sprintf("node %q has no parent: cannot compute path of a root", e.NodeID)
}
