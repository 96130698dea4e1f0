package export_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/clinrec/recordstore/internal/domain"
	"github.com/clinrec/recordstore/internal/export"
	"github.com/clinrec/recordstore/internal/repository"
	"github.com/clinrec/recordstore/internal/store"
)

func TestExportLineageHistory(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	s, err := store.New(repo, "ef12a33c-5c4e-4f02-a3c9-1f2d3e4a5b6c")
	require.NoError(t, err)

	committer := domain.Party{Name: "Dr. Alice Hart"}
	payload := domain.NewRecord("OBSERVATION", "blood pressure", "obs-bp.v1")
	payload.PutChild("data", domain.NewLeaf("systolic", "at0004", "120"))
	res, err := s.Create(ctx, payload, committer, domain.LifecycleComplete, "initial reading")
	require.NoError(t, err)

	amended := domain.NewRecord("OBSERVATION", "blood pressure", "obs-bp.v1")
	amended.PutChild("data", domain.NewLeaf("systolic", "at0004", "118"))
	amended.SetUID(res.Lineage.UID.Value())
	_, err = s.Update(ctx, store.UpdateParams{
		Payload: amended, Committer: committer,
		Lifecycle: domain.LifecycleComplete, ChangeType: domain.ChangeAmendment,
		Description: "corrected transcription",
	})
	require.NoError(t, err)

	_, err = s.Attest(ctx, store.AttestParams{
		RecordType: "OBSERVATION",
		VersionID:  res.Version.UID,
		Attester:   domain.Party{Name: "Dr. Bob Reyes"},
		Reason:     "verified",
	})
	require.NoError(t, err)

	svc := export.NewService(s,
		export.WithExportDirectory(t.TempDir()),
		export.WithClock(func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }),
	)
	path, err := svc.ExportLineageHistory(ctx, res.Lineage.UID, committer)
	require.NoError(t, err)
	require.FileExists(t, path)
	assert.Contains(t, path, "observation-")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	historyRows, err := f.GetRows("Revision History")
	require.NoError(t, err)
	require.Len(t, historyRows, 4) // header + three versions
	assert.Equal(t, "Version ID", historyRows[0][0])
	assert.Equal(t, res.Version.UID.String(), historyRows[1][0])
	assert.Equal(t, "creation", historyRows[1][1])
	assert.Equal(t, "amendment", historyRows[2][1])
	assert.Equal(t, "attestation", historyRows[3][1])

	versionRows, err := f.GetRows("Versions")
	require.NoError(t, err)
	require.Len(t, versionRows, 4)
	assert.Contains(t, versionRows[1][4], `"node_id":"obs-bp.v1"`)

	attestationRows, err := f.GetRows("Attestations")
	require.NoError(t, err)
	require.Len(t, attestationRows, 2)
	assert.Equal(t, "Dr. Bob Reyes", attestationRows[1][1])
	assert.Equal(t, "verified", attestationRows[1][2])
}
