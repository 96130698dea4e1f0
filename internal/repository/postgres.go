package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinrec/recordstore/internal/db"
	"github.com/clinrec/recordstore/internal/domain"
	"github.com/clinrec/recordstore/internal/identifier"
)

// querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so the
// same statement helpers serve both the pooled and the transactional view.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository is the durable lineage store. Version payloads and audit
// records are stored as JSONB; the latest-trunk pointer lives on the lineage
// row and is advanced with a compare-and-swap UPDATE.
type PostgresRepository struct {
	conn *db.Connection
	q    querier
	inTx bool
}

// NewPostgresRepository creates a repository over an open connection pool.
func NewPostgresRepository(conn *db.Connection) *PostgresRepository {
	return &PostgresRepository{conn: conn, q: conn.Pool}
}

// GetLineage implements LineageRepository.
func (r *PostgresRepository) GetLineage(ctx context.Context, rootID identifier.RootID, reader domain.Party) (domain.Lineage, error) {
	var (
		lineage     domain.Lineage
		latestTrunk string
	)
	err := r.q.QueryRow(ctx,
		`SELECT record_type, time_created, latest_trunk FROM lineages WHERE root_id = $1`,
		rootID.Value(),
	).Scan(&lineage.RecordType, &lineage.TimeCreated, &latestTrunk)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lineage{}, &domain.NotFoundError{Key: rootID.Value()}
	}
	if err != nil {
		return domain.Lineage{}, fmt.Errorf("failed to get lineage: %w", err)
	}
	lineage.UID = rootID
	if lineage.LatestTrunk, err = identifier.ParseVersionID(latestTrunk); err != nil {
		return domain.Lineage{}, fmt.Errorf("corrupt latest trunk pointer on %s: %w", rootID.Value(), err)
	}

	rows, err := r.q.Query(ctx,
		`SELECT version_id FROM revision_history WHERE root_id = $1 ORDER BY seq`,
		rootID.Value(),
	)
	if err != nil {
		return domain.Lineage{}, fmt.Errorf("failed to list lineage versions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return domain.Lineage{}, fmt.Errorf("failed to scan version id: %w", err)
		}
		id, err := identifier.ParseVersionID(raw)
		if err != nil {
			return domain.Lineage{}, fmt.Errorf("corrupt version id on %s: %w", rootID.Value(), err)
		}
		lineage.VersionIDs = append(lineage.VersionIDs, id)
	}
	if err := rows.Err(); err != nil {
		return domain.Lineage{}, fmt.Errorf("failed to list lineage versions: %w", err)
	}

	r.logAccess(ctx, rootID.Value(), string(ActionRead), reader)
	return lineage, nil
}

// GetVersion implements LineageRepository.
func (r *PostgresRepository) GetVersion(ctx context.Context, versionID identifier.VersionID, reader domain.Party) (domain.Version, error) {
	row := r.q.QueryRow(ctx,
		`SELECT version_id, data, commit_audit, lifecycle_code, lifecycle_label,
		        preceding_version_id, contribution_id, attestations
		   FROM versions WHERE version_id = $1`,
		versionID.String(),
	)
	version, err := scanVersion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Version{}, &domain.NotFoundError{Key: versionID.String()}
	}
	if err != nil {
		return domain.Version{}, err
	}
	r.logAccess(ctx, versionID.String(), string(ActionRead), reader)
	return version, nil
}

// RevisionHistory implements LineageRepository.
func (r *PostgresRepository) RevisionHistory(ctx context.Context, rootID identifier.RootID, reader domain.Party) (domain.RevisionHistory, error) {
	rows, err := r.q.Query(ctx,
		`SELECT version_id, audit FROM revision_history WHERE root_id = $1 ORDER BY seq`,
		rootID.Value(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load revision history: %w", err)
	}
	defer rows.Close()

	var history domain.RevisionHistory
	for rows.Next() {
		var (
			raw      string
			auditRaw []byte
		)
		if err := rows.Scan(&raw, &auditRaw); err != nil {
			return nil, fmt.Errorf("failed to scan history item: %w", err)
		}
		item := domain.RevisionHistoryItem{}
		if item.VersionID, err = identifier.ParseVersionID(raw); err != nil {
			return nil, fmt.Errorf("corrupt version id in history of %s: %w", rootID.Value(), err)
		}
		if err := json.Unmarshal(auditRaw, &item.Audit); err != nil {
			return nil, fmt.Errorf("failed to decode audit: %w", err)
		}
		history = append(history, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load revision history: %w", err)
	}
	if history == nil {
		return nil, &domain.NotFoundError{Key: rootID.Value()}
	}
	r.logAccess(ctx, rootID.Value(), string(ActionRead), reader)
	return history, nil
}

// LatestVersions implements LineageRepository.
func (r *PostgresRepository) LatestVersions(ctx context.Context, recordType string, reader domain.Party) ([]domain.Version, error) {
	rows, err := r.q.Query(ctx,
		`SELECT v.version_id, v.data, v.commit_audit, v.lifecycle_code, v.lifecycle_label,
		        v.preceding_version_id, v.contribution_id, v.attestations
		   FROM lineages l
		   JOIN versions v ON v.version_id = l.latest_trunk
		  WHERE l.record_type = $1`,
		recordType,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest versions: %w", err)
	}
	defer rows.Close()

	var out []domain.Version
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list latest versions: %w", err)
	}
	r.logAccess(ctx, "type:"+recordType, string(ActionQuery), reader)
	return out, nil
}

// CreateLineage implements LineageRepository.
func (r *PostgresRepository) CreateLineage(ctx context.Context, lineage domain.Lineage, version domain.Version, item domain.RevisionHistoryItem, actor domain.Party) error {
	return r.write(ctx, func(tx *PostgresRepository) error {
		tag, err := tx.q.Exec(ctx,
			`INSERT INTO lineages (root_id, record_type, time_created, latest_trunk)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (root_id) DO NOTHING`,
			lineage.UID.Value(), lineage.RecordType, lineage.TimeCreated, lineage.LatestTrunk.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to create lineage: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return &domain.AlreadyExistsError{RootID: lineage.UID}
		}
		if err := tx.insertVersion(ctx, lineage.UID, version); err != nil {
			return err
		}
		if err := tx.insertHistoryItem(ctx, lineage.UID, item); err != nil {
			return err
		}
		tx.logAccess(ctx, lineage.UID.Value(), string(ActionCreate), actor)
		tx.logAccess(ctx, version.UID.String(), string(ActionCreate), actor)
		return nil
	})
}

// AppendVersion implements LineageRepository. The compare-and-swap runs in
// SQL: the latest-trunk pointer only advances if it still equals
// expectedLatest, and a zero row count distinguishes conflict from success.
func (r *PostgresRepository) AppendVersion(ctx context.Context, expectedLatest identifier.VersionID, version domain.Version, item domain.RevisionHistoryItem, actor domain.Party) error {
	rootID := version.UID.ObjectID()
	return r.write(ctx, func(tx *PostgresRepository) error {
		newLatest := version.UID
		if version.UID.IsBranch() {
			// Branch versions never advance the trunk pointer, but the CAS
			// still guards against concurrent trunk movement.
			newLatest = expectedLatest
		}
		tag, err := tx.q.Exec(ctx,
			`UPDATE lineages SET latest_trunk = $1 WHERE root_id = $2 AND latest_trunk = $3`,
			newLatest.String(), rootID.Value(), expectedLatest.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to advance lineage: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var actual string
			err := tx.q.QueryRow(ctx,
				`SELECT latest_trunk FROM lineages WHERE root_id = $1`, rootID.Value(),
			).Scan(&actual)
			if errors.Is(err, pgx.ErrNoRows) {
				return &domain.NotFoundError{Key: rootID.Value()}
			}
			if err != nil {
				return fmt.Errorf("failed to inspect lineage: %w", err)
			}
			actualID, err := identifier.ParseVersionID(actual)
			if err != nil {
				return fmt.Errorf("corrupt latest trunk pointer on %s: %w", rootID.Value(), err)
			}
			return &domain.ConflictError{RootID: rootID, Expected: expectedLatest, Actual: actualID}
		}
		if err := tx.insertVersion(ctx, rootID, version); err != nil {
			return err
		}
		if err := tx.insertHistoryItem(ctx, rootID, item); err != nil {
			return err
		}
		tx.logAccess(ctx, rootID.Value(), string(ActionUpdate), actor)
		tx.logAccess(ctx, version.UID.String(), string(ActionCreate), actor)
		return nil
	})
}

// SaveContribution implements LineageRepository.
func (r *PostgresRepository) SaveContribution(ctx context.Context, contribution domain.Contribution, actor domain.Party) error {
	auditJSON, err := json.Marshal(contribution.Audit)
	if err != nil {
		return fmt.Errorf("failed to marshal contribution audit: %w", err)
	}
	ids := make([]string, len(contribution.VersionIDs))
	for i, id := range contribution.VersionIDs {
		ids[i] = id.String()
	}
	_, err = r.q.Exec(ctx,
		`INSERT INTO contributions (contribution_id, version_ids, audit) VALUES ($1, $2, $3)`,
		contribution.UID.Value(), ids, auditJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save contribution: %w", err)
	}
	r.logAccess(ctx, contribution.UID.Value(), string(ActionCreate), actor)
	return nil
}

// Atomic implements LineageRepository over one database transaction.
func (r *PostgresRepository) Atomic(ctx context.Context, fn func(LineageRepository) error) error {
	if r.inTx {
		return fn(r)
	}
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(&PostgresRepository{conn: r.conn, q: tx, inTx: true})
	})
}

// write runs fn transactionally: directly when already inside Atomic,
// otherwise in a transaction of its own so a single mutation is still
// all-or-nothing.
func (r *PostgresRepository) write(ctx context.Context, fn func(*PostgresRepository) error) error {
	if r.inTx {
		return fn(r)
	}
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(&PostgresRepository{conn: r.conn, q: tx, inTx: true})
	})
}

func (r *PostgresRepository) insertVersion(ctx context.Context, rootID identifier.RootID, version domain.Version) error {
	dataJSON, err := json.Marshal(version.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal version payload: %w", err)
	}
	auditJSON, err := json.Marshal(version.CommitAudit)
	if err != nil {
		return fmt.Errorf("failed to marshal commit audit: %w", err)
	}
	attestationsJSON, err := json.Marshal(version.Attestations)
	if err != nil {
		return fmt.Errorf("failed to marshal attestations: %w", err)
	}
	var preceding *string
	if version.PrecedingVersionUID != nil {
		s := version.PrecedingVersionUID.String()
		preceding = &s
	}
	_, err = r.q.Exec(ctx,
		`INSERT INTO versions (version_id, root_id, record_type, data, commit_audit,
		                       lifecycle_code, lifecycle_label, preceding_version_id,
		                       contribution_id, attestations)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		version.UID.String(), rootID.Value(), version.RecordType(), dataJSON, auditJSON,
		version.LifecycleState.Code, version.LifecycleState.Label, preceding,
		version.ContributionID.Value(), attestationsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert version: %w", err)
	}
	return nil
}

func (r *PostgresRepository) insertHistoryItem(ctx context.Context, rootID identifier.RootID, item domain.RevisionHistoryItem) error {
	auditJSON, err := json.Marshal(item.Audit)
	if err != nil {
		return fmt.Errorf("failed to marshal audit: %w", err)
	}
	_, err = r.q.Exec(ctx,
		`INSERT INTO revision_history (root_id, seq, version_id, audit)
		 SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3 FROM revision_history WHERE root_id = $1`,
		rootID.Value(), item.VersionID.String(), auditJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert history item: %w", err)
	}
	return nil
}

// logAccess records an access-audit row. Best effort: a failed audit insert
// never fails the read it describes.
func (r *PostgresRepository) logAccess(ctx context.Context, key, action string, party domain.Party) {
	_, _ = r.q.Exec(ctx,
		`INSERT INTO access_log (object_key, action, party_name, party_ref) VALUES ($1, $2, $3, $4)`,
		key, action, party.Name, party.ExternalRef,
	)
}

func scanVersion(row pgx.Row) (domain.Version, error) {
	var (
		version         domain.Version
		rawID           string
		dataRaw         []byte
		auditRaw        []byte
		preceding       *string
		contributionID  string
		attestationsRaw []byte
	)
	err := row.Scan(&rawID, &dataRaw, &auditRaw, &version.LifecycleState.Code,
		&version.LifecycleState.Label, &preceding, &contributionID, &attestationsRaw)
	if err != nil {
		return domain.Version{}, err
	}
	if version.UID, err = identifier.ParseVersionID(rawID); err != nil {
		return domain.Version{}, fmt.Errorf("corrupt version id %q: %w", rawID, err)
	}
	version.Data = &domain.Record{}
	if err := json.Unmarshal(dataRaw, version.Data); err != nil {
		return domain.Version{}, fmt.Errorf("failed to decode version payload: %w", err)
	}
	if err := json.Unmarshal(auditRaw, &version.CommitAudit); err != nil {
		return domain.Version{}, fmt.Errorf("failed to decode commit audit: %w", err)
	}
	if preceding != nil {
		id, err := identifier.ParseVersionID(*preceding)
		if err != nil {
			return domain.Version{}, fmt.Errorf("corrupt preceding version id %q: %w", *preceding, err)
		}
		version.PrecedingVersionUID = &id
	}
	if version.ContributionID, err = identifier.ParseUID(contributionID); err != nil {
		return domain.Version{}, fmt.Errorf("corrupt contribution id %q: %w", contributionID, err)
	}
	if len(attestationsRaw) > 0 {
		if err := json.Unmarshal(attestationsRaw, &version.Attestations); err != nil {
			return domain.Version{}, fmt.Errorf("failed to decode attestations: %w", err)
		}
	}
	return version, nil
}

var _ LineageRepository = (*PostgresRepository)(nil)
