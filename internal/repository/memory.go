package repository

import (
	"context"
	"sync"
	"time"

	"github.com/clinrec/recordstore/internal/domain"
	"github.com/clinrec/recordstore/internal/identifier"
)

// ActionType labels one entry in the in-memory engine's access audit log.
type ActionType string

const (
	ActionCreate ActionType = "create"
	ActionUpdate ActionType = "update"
	ActionRead   ActionType = "read"
	ActionQuery  ActionType = "query"
)

// ActionItem is one access-audit entry recorded against a stored object.
type ActionItem struct {
	Action ActionType
	Party  domain.Party
	Time   time.Time
}

// MemoryRepository is an in-memory lineage store for exploration and testing.
// Data is not persisted. Stored values are treated as immutable: payloads are
// deep-copied on the way in and out, so no caller ever aliases repository
// state.
type MemoryRepository struct {
	mu            sync.RWMutex
	lineages      map[string]domain.Lineage
	versions      map[string]domain.Version
	histories     map[string]domain.RevisionHistory
	contributions map[string]domain.Contribution
	actions       map[string][]ActionItem
	now           func() time.Time
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		lineages:      make(map[string]domain.Lineage),
		versions:      make(map[string]domain.Version),
		histories:     make(map[string]domain.RevisionHistory),
		contributions: make(map[string]domain.Contribution),
		actions:       make(map[string][]ActionItem),
		now:           time.Now,
	}
}

func (m *MemoryRepository) logAction(key string, action ActionType, party domain.Party) {
	m.actions[key] = append(m.actions[key], ActionItem{Action: action, Party: party, Time: m.now()})
}

// Actions returns the access-audit entries recorded for a stored object key
// (a root id or version id string form).
func (m *MemoryRepository) Actions(key string) []ActionItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ActionItem(nil), m.actions[key]...)
}

func copyVersion(v domain.Version) domain.Version {
	out := v
	out.Data = v.Data.Clone()
	if v.PrecedingVersionUID != nil {
		preceding := *v.PrecedingVersionUID
		out.PrecedingVersionUID = &preceding
	}
	out.Attestations = append([]domain.Attestation(nil), v.Attestations...)
	return out
}

// GetLineage implements LineageRepository.
func (m *MemoryRepository) GetLineage(ctx context.Context, rootID identifier.RootID, reader domain.Party) (domain.Lineage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLineageLocked(rootID, reader)
}

func (m *MemoryRepository) getLineageLocked(rootID identifier.RootID, reader domain.Party) (domain.Lineage, error) {
	lin, ok := m.lineages[rootID.Value()]
	if !ok {
		return domain.Lineage{}, &domain.NotFoundError{Key: rootID.Value()}
	}
	m.logAction(rootID.Value(), ActionRead, reader)
	return lin.Clone(), nil
}

// GetVersion implements LineageRepository.
func (m *MemoryRepository) GetVersion(ctx context.Context, versionID identifier.VersionID, reader domain.Party) (domain.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getVersionLocked(versionID, reader)
}

func (m *MemoryRepository) getVersionLocked(versionID identifier.VersionID, reader domain.Party) (domain.Version, error) {
	v, ok := m.versions[versionID.String()]
	if !ok {
		return domain.Version{}, &domain.NotFoundError{Key: versionID.String()}
	}
	m.logAction(versionID.String(), ActionRead, reader)
	return copyVersion(v), nil
}

// RevisionHistory implements LineageRepository.
func (m *MemoryRepository) RevisionHistory(ctx context.Context, rootID identifier.RootID, reader domain.Party) (domain.RevisionHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revisionHistoryLocked(rootID, reader)
}

func (m *MemoryRepository) revisionHistoryLocked(rootID identifier.RootID, reader domain.Party) (domain.RevisionHistory, error) {
	if _, ok := m.lineages[rootID.Value()]; !ok {
		return nil, &domain.NotFoundError{Key: rootID.Value()}
	}
	m.logAction(rootID.Value(), ActionRead, reader)
	return append(domain.RevisionHistory(nil), m.histories[rootID.Value()]...), nil
}

// LatestVersions implements LineageRepository.
func (m *MemoryRepository) LatestVersions(ctx context.Context, recordType string, reader domain.Party) ([]domain.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latestVersionsLocked(recordType, reader)
}

func (m *MemoryRepository) latestVersionsLocked(recordType string, reader domain.Party) ([]domain.Version, error) {
	var out []domain.Version
	for _, lin := range m.lineages {
		if lin.RecordType != recordType {
			continue
		}
		if v, ok := m.versions[lin.LatestTrunk.String()]; ok {
			out = append(out, copyVersion(v))
		}
	}
	m.logAction("type:"+recordType, ActionQuery, reader)
	return out, nil
}

// CreateLineage implements LineageRepository.
func (m *MemoryRepository) CreateLineage(ctx context.Context, lineage domain.Lineage, version domain.Version, item domain.RevisionHistoryItem, actor domain.Party) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLineageLocked(lineage, version, item, actor)
}

func (m *MemoryRepository) createLineageLocked(lineage domain.Lineage, version domain.Version, item domain.RevisionHistoryItem, actor domain.Party) error {
	key := lineage.UID.Value()
	if _, ok := m.lineages[key]; ok {
		return &domain.AlreadyExistsError{RootID: lineage.UID}
	}
	m.lineages[key] = lineage.Clone()
	m.versions[version.UID.String()] = copyVersion(version)
	m.histories[key] = domain.RevisionHistory{item}
	m.logAction(key, ActionCreate, actor)
	m.logAction(version.UID.String(), ActionCreate, actor)
	return nil
}

// AppendVersion implements LineageRepository.
func (m *MemoryRepository) AppendVersion(ctx context.Context, expectedLatest identifier.VersionID, version domain.Version, item domain.RevisionHistoryItem, actor domain.Party) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendVersionLocked(expectedLatest, version, item, actor)
}

func (m *MemoryRepository) appendVersionLocked(expectedLatest identifier.VersionID, version domain.Version, item domain.RevisionHistoryItem, actor domain.Party) error {
	rootID := version.UID.ObjectID()
	lin, ok := m.lineages[rootID.Value()]
	if !ok {
		return &domain.NotFoundError{Key: rootID.Value()}
	}
	if !lin.LatestTrunk.Equal(expectedLatest) {
		return &domain.ConflictError{RootID: rootID, Expected: expectedLatest, Actual: lin.LatestTrunk}
	}
	lin = lin.Clone()
	lin.VersionIDs = append(lin.VersionIDs, version.UID)
	if !version.UID.IsBranch() {
		lin.LatestTrunk = version.UID
	}
	m.lineages[rootID.Value()] = lin
	m.versions[version.UID.String()] = copyVersion(version)
	m.histories[rootID.Value()] = append(m.histories[rootID.Value()], item)
	m.logAction(rootID.Value(), ActionUpdate, actor)
	m.logAction(version.UID.String(), ActionCreate, actor)
	return nil
}

// SaveContribution implements LineageRepository.
func (m *MemoryRepository) SaveContribution(ctx context.Context, contribution domain.Contribution, actor domain.Party) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveContributionLocked(contribution, actor)
}

func (m *MemoryRepository) saveContributionLocked(contribution domain.Contribution, actor domain.Party) error {
	m.contributions[contribution.UID.Value()] = contribution
	m.logAction(contribution.UID.Value(), ActionCreate, actor)
	return nil
}

// Atomic implements LineageRepository. The maps are snapshotted up front and
// restored wholesale if fn fails, so partial mutations are never visible.
func (m *MemoryRepository) Atomic(ctx context.Context, fn func(LineageRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	backup := struct {
		lineages      map[string]domain.Lineage
		versions      map[string]domain.Version
		histories     map[string]domain.RevisionHistory
		contributions map[string]domain.Contribution
	}{
		lineages:      make(map[string]domain.Lineage, len(m.lineages)),
		versions:      make(map[string]domain.Version, len(m.versions)),
		histories:     make(map[string]domain.RevisionHistory, len(m.histories)),
		contributions: make(map[string]domain.Contribution, len(m.contributions)),
	}
	for k, v := range m.lineages {
		backup.lineages[k] = v
	}
	for k, v := range m.versions {
		backup.versions[k] = v
	}
	for k, v := range m.histories {
		backup.histories[k] = v
	}
	for k, v := range m.contributions {
		backup.contributions[k] = v
	}

	if err := fn(&memoryTx{m}); err != nil {
		m.lineages = backup.lineages
		m.versions = backup.versions
		m.histories = backup.histories
		m.contributions = backup.contributions
		return err
	}
	return nil
}

// memoryTx is the view handed to Atomic callbacks: same engine, lock already
// held.
type memoryTx struct {
	m *MemoryRepository
}

func (t *memoryTx) GetLineage(ctx context.Context, rootID identifier.RootID, reader domain.Party) (domain.Lineage, error) {
	return t.m.getLineageLocked(rootID, reader)
}

func (t *memoryTx) GetVersion(ctx context.Context, versionID identifier.VersionID, reader domain.Party) (domain.Version, error) {
	return t.m.getVersionLocked(versionID, reader)
}

func (t *memoryTx) RevisionHistory(ctx context.Context, rootID identifier.RootID, reader domain.Party) (domain.RevisionHistory, error) {
	return t.m.revisionHistoryLocked(rootID, reader)
}

func (t *memoryTx) LatestVersions(ctx context.Context, recordType string, reader domain.Party) ([]domain.Version, error) {
	return t.m.latestVersionsLocked(recordType, reader)
}

func (t *memoryTx) CreateLineage(ctx context.Context, lineage domain.Lineage, version domain.Version, item domain.RevisionHistoryItem, actor domain.Party) error {
	return t.m.createLineageLocked(lineage, version, item, actor)
}

func (t *memoryTx) AppendVersion(ctx context.Context, expectedLatest identifier.VersionID, version domain.Version, item domain.RevisionHistoryItem, actor domain.Party) error {
	return t.m.appendVersionLocked(expectedLatest, version, item, actor)
}

func (t *memoryTx) SaveContribution(ctx context.Context, contribution domain.Contribution, actor domain.Party) error {
	return t.m.saveContributionLocked(contribution, actor)
}

func (t *memoryTx) Atomic(ctx context.Context, fn func(LineageRepository) error) error {
	return fn(t)
}

var (
	_ LineageRepository = (*MemoryRepository)(nil)
	_ LineageRepository = (*memoryTx)(nil)
)
