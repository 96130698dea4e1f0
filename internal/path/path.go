package path

import "strings"

// Segment is one step of a parsed path expression: an attribute name with an
// optional [nodeID] predicate.
type Segment struct {
	Attribute    string
	NodeID       string
	HasPredicate bool
}

func (s Segment) String() string {
	if s.HasPredicate {
		return s.Attribute + "[" + s.NodeID + "]"
	}
	return s.Attribute
}

// Path is a parsed path expression. The zero value denotes "this node".
type Path struct {
	segments []Segment
}

// Parse parses a path expression. The empty string denotes the current node;
// a single leading '/' is tolerated so paths produced by OfItem on different
// conventions still resolve.
func Parse(expr string) (Path, error) {
	trimmed := strings.TrimPrefix(expr, "/")
	if trimmed == "" {
		return Path{}, nil
	}
	parts := strings.Split(trimmed, "/")
	segments := make([]Segment, 0, len(parts))
	for _, part := range parts {
		seg, err := parseSegment(expr, part)
		if err != nil {
			return Path{}, err
		}
		segments = append(segments, seg)
	}
	return Path{segments: segments}, nil
}

func parseSegment(full, part string) (Segment, error) {
	if part == "" {
		return Segment{}, &SyntaxError{Path: full, Reason: "empty segment"}
	}
	open := strings.IndexByte(part, '[')
	if open == -1 {
		if strings.ContainsRune(part, ']') {
			return Segment{}, &SyntaxError{Path: full, Reason: "unmatched ']' in segment " + part}
		}
		return Segment{Attribute: part}, nil
	}
	if !strings.HasSuffix(part, "]") {
		return Segment{}, &SyntaxError{Path: full, Reason: "predicate not closed in segment " + part}
	}
	attr := part[:open]
	nodeID := part[open+1 : len(part)-1]
	if attr == "" {
		return Segment{}, &SyntaxError{Path: full, Reason: "segment has predicate but no attribute name"}
	}
	if nodeID == "" {
		return Segment{}, &SyntaxError{Path: full, Reason: "empty predicate in segment " + part}
	}
	if strings.ContainsAny(nodeID, "[]") {
		return Segment{}, &SyntaxError{Path: full, Reason: "nested predicate in segment " + part}
	}
	return Segment{Attribute: attr, NodeID: nodeID, HasPredicate: true}, nil
}

// Segments returns the parsed segments in walk order.
func (p Path) Segments() []Segment { return p.segments }

// IsEmpty reports whether the path denotes the current node.
func (p Path) IsEmpty() bool { return len(p.segments) == 0 }

func (p Path) String() string {
	parts := make([]string, len(p.segments))
	for i, s := range p.segments {
		parts[i] = s.String()
	}
	return strings.Join(parts, "/")
}
