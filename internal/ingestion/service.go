// Package ingestion bulk-loads record payloads from tabular files. Every row
// becomes the first version of a new lineage; one file commits as one
// contribution, all rows or none.
package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/clinrec/recordstore/internal/domain"
	"github.com/clinrec/recordstore/internal/path"
	"github.com/clinrec/recordstore/internal/store"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
)

// Service turns tabular rows into committed record versions.
type Service struct {
	store *store.Store
}

// NewService creates a new ingestion service.
func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// Request describes the ingestion input. The file's header row names the
// layout: a "name" column, a "schema_id" column, and one column per leaf
// path expression (e.g. "/data[at0001]/events[at0004]"). Every path segment
// must carry a node-id predicate so the payload tree can be built.
type Request struct {
	RecordType  string
	Committer   domain.Party
	Description string
	FileName    string
	Data        io.Reader
}

// Summary returns ingestion level metrics.
type Summary struct {
	TotalRows    int
	Contribution domain.Contribution
}

// Ingest parses the file, builds one payload per row and commits them all as
// a single contribution. Any malformed row fails the whole file; nothing is
// stored.
func (s *Service) Ingest(ctx context.Context, req Request) (Summary, error) {
	if strings.TrimSpace(req.RecordType) == "" {
		return Summary{}, errors.New("record type is required")
	}

	headers, rows, err := readTable(req.FileName, req.Data)
	if err != nil {
		return Summary{}, err
	}
	if len(rows) == 0 {
		return Summary{}, errors.New("file has no data rows")
	}

	layout, err := parseLayout(headers)
	if err != nil {
		return Summary{}, err
	}

	entries := make([]store.CommitEntry, 0, len(rows))
	for i, row := range rows {
		payload, err := buildPayload(req.RecordType, layout, row)
		if err != nil {
			return Summary{}, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, store.CommitEntry{
			Payload:     payload,
			Lifecycle:   domain.LifecycleComplete,
			ChangeType:  domain.ChangeCreation,
			Description: req.Description,
		})
	}

	contribution, err := s.store.Commit(ctx, req.Committer, domain.ChangeCreation, entries, req.Description)
	if err != nil {
		return Summary{}, err
	}
	return Summary{TotalRows: len(rows), Contribution: contribution}, nil
}

// layout maps header columns onto payload structure.
type layout struct {
	nameCol   int
	schemaCol int
	paths     map[int]path.Path // column index -> parsed leaf path
}

func parseLayout(headers []string) (layout, error) {
	l := layout{nameCol: -1, schemaCol: -1, paths: make(map[int]path.Path)}
	for i, header := range headers {
		header = strings.TrimSpace(header)
		switch {
		case strings.EqualFold(header, "name"):
			l.nameCol = i
		case strings.EqualFold(header, "schema_id"):
			l.schemaCol = i
		case strings.HasPrefix(header, "/"):
			p, err := path.Parse(header)
			if err != nil {
				return layout{}, fmt.Errorf("column %q: %w", header, err)
			}
			if p.IsEmpty() {
				return layout{}, fmt.Errorf("column %q: path addresses the root", header)
			}
			for _, seg := range p.Segments() {
				if !seg.HasPredicate {
					return layout{}, fmt.Errorf("column %q: segment %q needs a node-id predicate", header, seg.Attribute)
				}
			}
			l.paths[i] = p
		default:
			return layout{}, fmt.Errorf("unrecognized column %q", header)
		}
	}
	if l.nameCol < 0 || l.schemaCol < 0 {
		return layout{}, errors.New(`header must include "name" and "schema_id" columns`)
	}
	if len(l.paths) == 0 {
		return layout{}, errors.New("header has no path columns")
	}
	return l, nil
}

func buildPayload(recordType string, l layout, row []string) (*domain.Record, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	name := cell(l.nameCol)
	schemaID := cell(l.schemaCol)
	if name == "" || schemaID == "" {
		return nil, errors.New("name and schema_id must be non-empty")
	}

	root := domain.NewRecord(recordType, name, schemaID)
	for col, p := range l.paths {
		value := cell(col)
		if value == "" {
			continue
		}
		segments := p.Segments()
		node := root
		for _, seg := range segments[:len(segments)-1] {
			node = ensureChild(node, seg.Attribute, seg.NodeID)
		}
		last := segments[len(segments)-1]
		leaf := ensureChild(node, last.Attribute, last.NodeID)
		if !leaf.IsLeaf() {
			return nil, fmt.Errorf("path %s addresses an interior node", p)
		}
		leaf.SetValue(value)
	}
	return root, nil
}

// ensureChild returns the child with the given node id under the named
// attribute, creating it if absent. A second distinct node id under the same
// attribute promotes it to a list.
func ensureChild(parent *domain.Record, attribute, nodeID string) *domain.Record {
	if attr, ok := parent.Attribute(attribute); ok {
		if attr.Multiple {
			for _, c := range attr.Children {
				child := c.(*domain.Record)
				if child.NodeID() == nodeID {
					return child
				}
			}
			added := domain.NewNode(attribute, nodeID)
			children := make([]*domain.Record, 0, len(attr.Children)+1)
			for _, c := range attr.Children {
				children = append(children, c.(*domain.Record))
			}
			parent.PutList(attribute, append(children, added)...)
			return added
		}
		existing := attr.Child.(*domain.Record)
		if existing.NodeID() == nodeID {
			return existing
		}
		added := domain.NewNode(attribute, nodeID)
		parent.PutList(attribute, existing, added)
		return added
	}
	added := domain.NewNode(attribute, nodeID)
	parent.PutChild(attribute, added)
	return added
}

func readTable(fileName string, data io.Reader) ([]string, [][]string, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx":
		return readWorkbook(data)
	case ".csv":
		return readCSV(data)
	default:
		return nil, nil, ErrUnsupportedFormat
	}
}

func readWorkbook(data io.Reader) ([]string, [][]string, error) {
	f, err := excelize.OpenReader(data)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil, errors.New("sheet is empty")
	}
	return rows[0], rows[1:], nil
}

func readCSV(data io.Reader) ([]string, [][]string, error) {
	buffered := bufio.NewReader(data)
	// Strip a UTF-8 BOM left by spreadsheet tools.
	if lead, err := buffered.Peek(len(byteOrderMark)); err == nil && bytes.Equal(lead, byteOrderMark) {
		if _, err := buffered.Discard(len(byteOrderMark)); err != nil {
			return nil, nil, fmt.Errorf("strip byte order mark: %w", err)
		}
	}
	reader := csv.NewReader(buffered)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, errors.New("file is empty")
	}
	return records[0], records[1:], nil
}
