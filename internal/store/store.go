// Package store implements the versioned record store: optimistic-concurrency
// change control over lineages of immutable record versions.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinrec/recordstore/internal/domain"
	"github.com/clinrec/recordstore/internal/identifier"
	"github.com/clinrec/recordstore/internal/repository"
)

// Store coordinates version allocation, concurrency checks and lineage
// appends over a storage collaborator. Safe for concurrent use: writers to
// the same lineage serialize on a per-lineage lock, writers to different
// lineages do not block each other, and readers never take lineage locks.
type Store struct {
	repo     repository.LineageRepository
	systemID identifier.UID
	now      func() time.Time
	newUID   func() identifier.UID
	locks    *lockTable
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces the commit timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithUIDGenerator replaces the allocator used for new root and contribution
// ids.
func WithUIDGenerator(gen func() identifier.UID) Option {
	return func(s *Store) {
		if gen != nil {
			s.newUID = gen
		}
	}
}

// New creates a store committing on behalf of the identified system. Every
// version created here is stamped with this system id; provenance is set at
// creation time, never at read time.
func New(repo repository.LineageRepository, systemID string, opts ...Option) (*Store, error) {
	sys, err := identifier.ParseUID(systemID)
	if err != nil {
		return nil, fmt.Errorf("invalid system id: %w", err)
	}
	s := &Store{
		repo:     repo,
		systemID: sys,
		now:      time.Now,
		locks:    newLockTable(),
	}
	s.newUID = func() identifier.UID {
		id, err := identifier.ParseUID(uuid.NewString())
		if err != nil {
			// uuid.NewString always matches the UUID grammar.
			panic(err)
		}
		return id
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SystemID returns the id stamped into versions created by this store.
func (s *Store) SystemID() identifier.UID { return s.systemID }

func (s *Store) audit(committer domain.Party, changeType domain.ChangeType, description string) domain.AuditDetails {
	return domain.AuditDetails{
		SystemID:      s.systemID.Value(),
		Committer:     committer,
		TimeCommitted: s.now(),
		ChangeType:    changeType,
		Description:   description,
	}
}

// rootIDForPayload resolves the root id a payload implies: its own uid when
// carried, otherwise a freshly allocated one.
func (s *Store) rootIDForPayload(payload *domain.Record) (identifier.RootID, error) {
	if payload.UID() == "" {
		return identifier.RootID{UID: s.newUID()}, nil
	}
	root, err := identifier.ParseRootID(payload.UID())
	if err != nil {
		// Payloads read back from the store carry their version id; fall
		// back to its object part.
		vid, verr := identifier.ParseVersionID(payload.UID())
		if verr != nil {
			return identifier.RootID{}, fmt.Errorf("payload uid is neither a root id nor a version id: %w", err)
		}
		return vid.ObjectID(), nil
	}
	return root, nil
}

// CreateResult carries everything a successful Create produced.
type CreateResult struct {
	Version      domain.Version
	Contribution domain.Contribution
	Lineage      domain.Lineage
	HistoryItem  domain.RevisionHistoryItem
}

// Create commits the first version of a new lineage, allocating trunk
// version "1". Fails with domain.AlreadyExistsError when a lineage already
// exists for the root id the payload implies.
func (s *Store) Create(ctx context.Context, payload *domain.Record, committer domain.Party, lifecycle domain.LifecycleState, description string) (CreateResult, error) {
	if err := payload.Validate(); err != nil {
		return CreateResult{}, err
	}
	rootID, err := s.rootIDForPayload(payload)
	if err != nil {
		return CreateResult{}, err
	}

	release := s.locks.acquire(rootID.Value())
	defer release()

	versionID := identifier.NewVersionID(rootID, s.systemID, identifier.FirstTrunk())
	contribID := s.newUID()
	audit := s.audit(committer, domain.ChangeCreation, description)

	data := payload.Clone()
	data.SetUID(versionID.String())

	version := domain.Version{
		UID:            versionID,
		Data:           data,
		CommitAudit:    audit,
		LifecycleState: lifecycle,
		ContributionID: contribID,
	}
	lineage := domain.Lineage{
		UID:         rootID,
		RecordType:  payload.RecordType(),
		TimeCreated: audit.TimeCommitted,
		VersionIDs:  []identifier.VersionID{versionID},
		LatestTrunk: versionID,
	}
	item := domain.RevisionHistoryItem{VersionID: versionID, Audit: audit}
	contribution := domain.Contribution{
		UID:        contribID,
		VersionIDs: []identifier.VersionID{versionID},
		Audit:      audit,
	}

	err = s.repo.Atomic(ctx, func(r repository.LineageRepository) error {
		if err := r.CreateLineage(ctx, lineage, version, item, committer); err != nil {
			return err
		}
		return r.SaveContribution(ctx, contribution, committer)
	})
	if err != nil {
		return CreateResult{}, err
	}
	return CreateResult{Version: version, Contribution: contribution, Lineage: lineage, HistoryItem: item}, nil
}

// UpdateParams names the inputs of one update.
type UpdateParams struct {
	Payload    *domain.Record
	Committer  domain.Party
	Lifecycle  domain.LifecycleState
	ChangeType domain.ChangeType

	// PrecedingVersionUID is the version this update claims to supersede.
	// When nil it defaults to the lineage's current latest trunk. The update
	// fails with domain.ConflictError if it does not equal the actual latest
	// trunk at commit time.
	PrecedingVersionUID *identifier.VersionID

	Description string
}

// Update commits the next trunk version of an existing lineage, guarded by
// the optimistic-concurrency check. Returns the updated lineage.
//
// An omitted preceding version defaults to the latest trunk as observed at
// call time, before the lineage lock is taken: two racing updates that both
// omit it capture the same default, and whichever serializes second fails
// with domain.ConflictError.
func (s *Store) Update(ctx context.Context, p UpdateParams) (domain.Lineage, error) {
	if err := p.Payload.Validate(); err != nil {
		return domain.Lineage{}, err
	}
	rootID, err := s.updateRootID(p)
	if err != nil {
		return domain.Lineage{}, err
	}
	if p.PrecedingVersionUID == nil {
		observed, err := s.repo.GetLineage(ctx, rootID, p.Committer)
		if err != nil {
			return domain.Lineage{}, err
		}
		preceding := observed.LatestTrunk
		p.PrecedingVersionUID = &preceding
	}

	release := s.locks.acquire(rootID.Value())
	defer release()

	lineage, version, item, contribution, err := s.buildUpdate(ctx, rootID, p)
	if err != nil {
		return domain.Lineage{}, err
	}

	err = s.repo.Atomic(ctx, func(r repository.LineageRepository) error {
		if err := r.AppendVersion(ctx, *version.PrecedingVersionUID, version, item, p.Committer); err != nil {
			return err
		}
		return r.SaveContribution(ctx, contribution, p.Committer)
	})
	if err != nil {
		return domain.Lineage{}, err
	}
	return lineage, nil
}

func (s *Store) updateRootID(p UpdateParams) (identifier.RootID, error) {
	if p.PrecedingVersionUID != nil {
		root := p.PrecedingVersionUID.ObjectID()
		if p.Payload.UID() != "" {
			implied, err := s.rootIDForPayload(p.Payload)
			if err != nil {
				return identifier.RootID{}, err
			}
			if !implied.Equal(root) {
				return identifier.RootID{}, &domain.ValidationError{
					Reason: fmt.Sprintf("preceding version %s does not belong to payload root %s", p.PrecedingVersionUID, implied.Value()),
				}
			}
		}
		return root, nil
	}
	if p.Payload.UID() == "" {
		return identifier.RootID{}, &domain.ValidationError{Reason: "update needs a payload uid or an explicit preceding version"}
	}
	return s.rootIDForPayload(p.Payload)
}

// buildUpdate assembles the next trunk version under the lineage lock. The
// preceding-version check here is advisory; the repository re-checks it with
// a compare-and-swap so check-then-append is atomic.
func (s *Store) buildUpdate(ctx context.Context, rootID identifier.RootID, p UpdateParams) (domain.Lineage, domain.Version, domain.RevisionHistoryItem, domain.Contribution, error) {
	var zero domain.Lineage
	lineage, err := s.repo.GetLineage(ctx, rootID, p.Committer)
	if err != nil {
		return zero, domain.Version{}, domain.RevisionHistoryItem{}, domain.Contribution{}, err
	}

	preceding := lineage.LatestTrunk
	if p.PrecedingVersionUID != nil {
		preceding = *p.PrecedingVersionUID
		if !preceding.Equal(lineage.LatestTrunk) {
			return zero, domain.Version{}, domain.RevisionHistoryItem{}, domain.Contribution{}, &domain.ConflictError{
				RootID:   rootID,
				Expected: preceding,
				Actual:   lineage.LatestTrunk,
			}
		}
	}

	versionID := identifier.NewVersionID(rootID, s.systemID, preceding.TreeID().NextTrunk())
	contribID := s.newUID()
	audit := s.audit(p.Committer, p.ChangeType, p.Description)

	data := p.Payload.Clone()
	data.SetUID(versionID.String())

	version := domain.Version{
		UID:                 versionID,
		Data:                data,
		CommitAudit:         audit,
		LifecycleState:      p.Lifecycle,
		PrecedingVersionUID: &preceding,
		ContributionID:      contribID,
	}
	item := domain.RevisionHistoryItem{VersionID: versionID, Audit: audit}
	contribution := domain.Contribution{
		UID:        contribID,
		VersionIDs: []identifier.VersionID{versionID},
		Audit:      audit,
	}

	lineage.VersionIDs = append(lineage.VersionIDs, versionID)
	lineage.LatestTrunk = versionID
	return lineage, version, item, contribution, nil
}
