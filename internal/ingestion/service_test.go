package ingestion_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/clinrec/recordstore/internal/domain"
	"github.com/clinrec/recordstore/internal/ingestion"
	"github.com/clinrec/recordstore/internal/repository"
	"github.com/clinrec/recordstore/internal/store"
)

const csvHeader = "name,schema_id,/data[at0001]/events[at0004],/data[at0001]/events[at0005]\n"

func newService(t *testing.T) *ingestion.Service {
	t.Helper()
	repo := repository.NewMemoryRepository()
	s, err := store.New(repo, "3b241101-e2bb-4255-8caf-4136c566a962")
	require.NoError(t, err)
	return ingestion.NewService(s)
}

func newStoreAndService(t *testing.T) (*store.Store, *ingestion.Service) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	s, err := store.New(repo, "3b241101-e2bb-4255-8caf-4136c566a962")
	require.NoError(t, err)
	return s, ingestion.NewService(s)
}

func TestIngestCSV(t *testing.T) {
	s, svc := newStoreAndService(t)
	committer := domain.Party{Name: "Dr. Alice Hart"}

	file := csvHeader +
		"bp reading,obs-bp.v1,120,80\n" +
		"bp reading,obs-bp.v1,135,85\n"

	summary, err := svc.Ingest(context.Background(), ingestion.Request{
		RecordType:  "OBSERVATION",
		Committer:   committer,
		Description: "march batch",
		FileName:    "readings.csv",
		Data:        strings.NewReader(file),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalRows)
	require.Len(t, summary.Contribution.VersionIDs, 2)
	assert.Equal(t, "march batch", summary.Contribution.Audit.Description)

	// Each row landed as trunk version 1 of its own lineage, queryable by
	// leaf value.
	got, err := s.QueryEqual(context.Background(), "OBSERVATION", "obs-bp.v1", map[string][]string{
		"/data[at0001]/events[at0004]": {"135"},
		"/data[at0001]/events[at0005]": {"85"},
	}, committer)
	require.NoError(t, err)
	assert.Equal(t, "1", got.UID.TreeID().String())
	assert.Equal(t, "bp reading", got.Data.Name())
}

func TestIngestCSVStripsByteOrderMark(t *testing.T) {
	svc := newService(t)

	file := append([]byte{0xEF, 0xBB, 0xBF}, []byte(csvHeader+"bp,obs-bp.v1,120,80\n")...)
	summary, err := svc.Ingest(context.Background(), ingestion.Request{
		RecordType: "OBSERVATION",
		Committer:  domain.Party{Name: "importer"},
		FileName:   "readings.csv",
		Data:       bytes.NewReader(file),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalRows)
}

func TestIngestWorkbook(t *testing.T) {
	s, svc := newStoreAndService(t)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]string{"name", "schema_id", "/data[at0001]/events[at0004]"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]string{"bp reading", "obs-bp.v1", "120"}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	committer := domain.Party{Name: "importer"}
	summary, err := svc.Ingest(context.Background(), ingestion.Request{
		RecordType: "OBSERVATION",
		Committer:  committer,
		FileName:   "readings.xlsx",
		Data:       &buf,
	})
	require.NoError(t, err)
	require.Len(t, summary.Contribution.VersionIDs, 1)

	version, err := s.ReadVersion(context.Background(), "OBSERVATION", summary.Contribution.VersionIDs[0], committer)
	require.NoError(t, err)
	assert.Equal(t, "obs-bp.v1", version.Data.NodeID())
}

func TestIngestIsAllOrNothing(t *testing.T) {
	s, svc := newStoreAndService(t)
	committer := domain.Party{Name: "importer"}

	// Second row is missing its schema id; the whole file must be rejected.
	file := csvHeader +
		"bp reading,obs-bp.v1,120,80\n" +
		"bp reading,,135,85\n"

	_, err := svc.Ingest(context.Background(), ingestion.Request{
		RecordType: "OBSERVATION",
		Committer:  committer,
		FileName:   "readings.csv",
		Data:       strings.NewReader(file),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 3")

	_, err = s.QueryEqual(context.Background(), "OBSERVATION", "", map[string][]string{
		"/data[at0001]/events[at0004]": {"120"},
	}, committer)
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestIngestRejectsBadInput(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	t.Run("unsupported format", func(t *testing.T) {
		_, err := svc.Ingest(ctx, ingestion.Request{
			RecordType: "OBSERVATION",
			FileName:   "readings.pdf",
			Data:       strings.NewReader("x"),
		})
		require.ErrorIs(t, err, ingestion.ErrUnsupportedFormat)
	})

	t.Run("path column without predicate", func(t *testing.T) {
		file := "name,schema_id,/data/events[at0004]\nbp,obs-bp.v1,120\n"
		_, err := svc.Ingest(ctx, ingestion.Request{
			RecordType: "OBSERVATION",
			FileName:   "readings.csv",
			Data:       strings.NewReader(file),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "node-id predicate")
	})

	t.Run("unrecognized column", func(t *testing.T) {
		file := "name,schema_id,comment\nbp,obs-bp.v1,fine\n"
		_, err := svc.Ingest(ctx, ingestion.Request{
			RecordType: "OBSERVATION",
			FileName:   "readings.csv",
			Data:       strings.NewReader(file),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unrecognized column")
	})
}
