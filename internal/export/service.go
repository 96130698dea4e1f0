// Package export renders lineage histories as spreadsheet workbooks for
// audit review and offline inspection.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/clinrec/recordstore/internal/domain"
	"github.com/clinrec/recordstore/internal/identifier"
	"github.com/clinrec/recordstore/internal/store"
)

const (
	historySheet      = "Revision History"
	versionsSheet     = "Versions"
	attestationsSheet = "Attestations"
)

// Service writes one workbook per exported lineage.
type Service struct {
	store     *store.Store
	exportDir string
	now       func() time.Time
}

type Option func(*Service)

func WithExportDirectory(dir string) Option {
	return func(s *Service) {
		if strings.TrimSpace(dir) != "" {
			s.exportDir = filepath.Clean(dir)
		}
	}
}

// WithClock replaces the timestamp source used for file naming.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(st *store.Store, opts ...Option) *Service {
	service := &Service{
		store:     st,
		exportDir: filepath.Join(os.TempDir(), "recordstore-exports"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// ExportLineageHistory writes the full history of one lineage to an xlsx
// workbook and returns its path: the audit trail on one sheet, every version
// payload on another, attestations on a third.
func (s *Service) ExportLineageHistory(ctx context.Context, rootID identifier.RootID, requester domain.Party) (string, error) {
	view, err := s.store.RetrieveLineage(ctx, rootID, requester, false)
	if err != nil {
		return "", fmt.Errorf("load lineage for export: %w", err)
	}
	if err := s.ensureExportDirectory(); err != nil {
		return "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := writeHistorySheet(f, view); err != nil {
		return "", err
	}
	if err := writeVersionsSheet(f, view.Versions); err != nil {
		return "", err
	}
	if err := writeAttestationsSheet(f, view.Versions); err != nil {
		return "", err
	}
	// The workbook opens on the audit trail.
	f.DeleteSheet("Sheet1")

	finalPath := filepath.Join(s.exportDir, s.fileName(view.Lineage))
	if err := f.SaveAs(finalPath); err != nil {
		return "", fmt.Errorf("save export workbook: %w", err)
	}
	return finalPath, nil
}

func (s *Service) ensureExportDirectory() error {
	if strings.TrimSpace(s.exportDir) == "" {
		return fmt.Errorf("export directory is not configured")
	}
	if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
		return fmt.Errorf("ensure export directory: %w", err)
	}
	return nil
}

func (s *Service) fileName(lineage domain.Lineage) string {
	base := sanitizeFileComponent(lineage.RecordType)
	if base == "" {
		base = "lineage"
	}
	return fmt.Sprintf("%s-%s-%s.xlsx", base, lineage.UID.Value(), s.now().UTC().Format("20060102T150405Z"))
}

func writeHistorySheet(f *excelize.File, view store.LineageView) error {
	if _, err := f.NewSheet(historySheet); err != nil {
		return fmt.Errorf("create history sheet: %w", err)
	}
	headers := []string{"Version ID", "Change Type", "Committer", "Committer Ref", "System", "Time Committed", "Description"}
	if err := writeRow(f, historySheet, 1, headers); err != nil {
		return err
	}
	for i, item := range view.History {
		row := []any{
			item.VersionID.String(),
			item.Audit.ChangeType.Label,
			item.Audit.Committer.Name,
			item.Audit.Committer.ExternalRef,
			item.Audit.SystemID,
			item.Audit.TimeCommitted.UTC().Format(time.RFC3339),
			item.Audit.Description,
		}
		if err := writeRow(f, historySheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeVersionsSheet(f *excelize.File, versions []domain.Version) error {
	if _, err := f.NewSheet(versionsSheet); err != nil {
		return fmt.Errorf("create versions sheet: %w", err)
	}
	headers := []string{"Version ID", "Lifecycle", "Preceding Version", "Contribution", "Payload"}
	if err := writeRow(f, versionsSheet, 1, headers); err != nil {
		return err
	}
	for i, v := range versions {
		preceding := ""
		if v.PrecedingVersionUID != nil {
			preceding = v.PrecedingVersionUID.String()
		}
		payload, err := json.Marshal(v.Data)
		if err != nil {
			return fmt.Errorf("marshal payload of %s: %w", v.UID, err)
		}
		row := []any{
			v.UID.String(),
			v.LifecycleState.Label,
			preceding,
			v.ContributionID.Value(),
			string(payload),
		}
		if err := writeRow(f, versionsSheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeAttestationsSheet(f *excelize.File, versions []domain.Version) error {
	if _, err := f.NewSheet(attestationsSheet); err != nil {
		return fmt.Errorf("create attestations sheet: %w", err)
	}
	headers := []string{"Version ID", "Attester", "Reason", "Pending", "Time"}
	if err := writeRow(f, attestationsSheet, 1, headers); err != nil {
		return err
	}
	rowNum := 2
	for _, v := range versions {
		for _, a := range v.Attestations {
			row := []any{
				v.UID.String(),
				a.Attester.Name,
				a.Reason,
				a.IsPending,
				a.Time.UTC().Format(time.RFC3339),
			}
			if err := writeRow(f, attestationsSheet, rowNum, row); err != nil {
				return err
			}
			rowNum++
		}
	}
	return nil
}

func writeRow[T any](f *excelize.File, sheet string, row int, values []T) error {
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("resolve cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return fmt.Errorf("write cell %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

func sanitizeFileComponent(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	builder := strings.Builder{}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	return strings.Trim(builder.String(), "-")
}
