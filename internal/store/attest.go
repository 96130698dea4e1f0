package store

import (
	"context"

	"github.com/clinrec/recordstore/internal/domain"
	"github.com/clinrec/recordstore/internal/identifier"
	"github.com/clinrec/recordstore/internal/repository"
)

// AttestParams names the inputs of one attestation.
type AttestParams struct {
	RecordType   string
	VersionID    identifier.VersionID
	Attester     domain.Party
	Reason       string
	IsPending    bool
	AttestedView string // optional URI of the attested rendering
}

// Attest records that a clinician has explicitly attested the identified
// version's content. The attested payload is carried unchanged into a new
// trunk version whose change type is "attestation"; the attestation is
// layered onto the attestations already present on the identified version.
func (s *Store) Attest(ctx context.Context, p AttestParams) (domain.Lineage, error) {
	rootID := p.VersionID.ObjectID()

	release := s.locks.acquire(rootID.Value())
	defer release()

	attested, err := s.repo.GetVersion(ctx, p.VersionID, p.Attester)
	if err != nil {
		return domain.Lineage{}, err
	}
	if p.RecordType != "" && attested.RecordType() != p.RecordType {
		return domain.Lineage{}, &domain.NotFoundError{Key: p.VersionID.String()}
	}
	lineage, err := s.repo.GetLineage(ctx, rootID, p.Attester)
	if err != nil {
		return domain.Lineage{}, err
	}

	audit := s.audit(p.Attester, domain.ChangeAttestation, p.Reason)
	preceding := lineage.LatestTrunk
	versionID := identifier.NewVersionID(rootID, s.systemID, preceding.TreeID().NextTrunk())

	data := attested.Data.Clone()
	data.SetUID(versionID.String())

	attestation := domain.Attestation{
		Attester:     p.Attester,
		Reason:       p.Reason,
		IsPending:    p.IsPending,
		AttestedView: p.AttestedView,
		Time:         audit.TimeCommitted,
	}

	version := domain.Version{
		UID:                 versionID,
		Data:                data,
		CommitAudit:         audit,
		LifecycleState:      attested.LifecycleState,
		PrecedingVersionUID: &preceding,
		ContributionID:      s.newUID(),
		Attestations:        append(append([]domain.Attestation(nil), attested.Attestations...), attestation),
	}
	item := domain.RevisionHistoryItem{VersionID: versionID, Audit: audit}
	contribution := domain.Contribution{
		UID:        version.ContributionID,
		VersionIDs: []identifier.VersionID{versionID},
		Audit:      audit,
	}

	err = s.repo.Atomic(ctx, func(r repository.LineageRepository) error {
		if err := r.AppendVersion(ctx, preceding, version, item, p.Attester); err != nil {
			return err
		}
		return r.SaveContribution(ctx, contribution, p.Attester)
	})
	if err != nil {
		return domain.Lineage{}, err
	}

	lineage.VersionIDs = append(lineage.VersionIDs, versionID)
	lineage.LatestTrunk = versionID
	return lineage, nil
}
