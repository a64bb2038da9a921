// Package postgres persists completed study runs.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"qcluster/domain/core"
	"qcluster/domain/study"
	apperrors "qcluster/internal/errors"
	"qcluster/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS study_results (
	id          TEXT PRIMARY KEY,
	seed        BIGINT NOT NULL,
	fingerprint TEXT NOT NULL,
	config      JSONB NOT NULL,
	results     JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
)`

// StudyRepository implements ports.ResultsStore over PostgreSQL.
type StudyRepository struct {
	db *sqlx.DB
}

// NewStudyRepository connects to the database and ensures the schema.
func NewStudyRepository(databaseURL string) (*StudyRepository, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, apperrors.Wrap(err, "connecting to database")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, "ensuring study_results schema")
	}
	return &StudyRepository{db: db}, nil
}

// NewStudyRepositoryWithDB wraps an existing connection (used by tests).
func NewStudyRepositoryWithDB(db *sqlx.DB) *StudyRepository {
	return &StudyRepository{db: db}
}

// Close releases the underlying connection pool.
func (r *StudyRepository) Close() error {
	return r.db.Close()
}

var _ ports.ResultsStore = (*StudyRepository)(nil)

// SaveResults upserts one completed run keyed by study id.
func (r *StudyRepository) SaveResults(ctx context.Context, res *study.Results) error {
	configJSON, err := json.Marshal(res.Config)
	if err != nil {
		return apperrors.Wrap(err, "encoding config")
	}
	resultsJSON, err := json.Marshal(res)
	if err != nil {
		return apperrors.Wrap(err, "encoding results")
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO study_results (id, seed, fingerprint, config, results, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			seed = EXCLUDED.seed,
			fingerprint = EXCLUDED.fingerprint,
			config = EXCLUDED.config,
			results = EXCLUDED.results,
			created_at = EXCLUDED.created_at`,
		res.StudyID.String(), res.Seed, res.Fingerprint.String(),
		configJSON, resultsJSON, res.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, "saving study results")
	}
	return nil
}

// GetResults loads one run and restores its ordered indexes.
func (r *StudyRepository) GetResults(ctx context.Context, id core.StudyID) (*study.Results, error) {
	var raw []byte
	err := r.db.QueryRowxContext(ctx,
		`SELECT results FROM study_results WHERE id = $1`, id.String()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError("study", id.String())
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "loading study results")
	}

	var res study.Results
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, apperrors.Wrap(err, "decoding study results")
	}
	res.RebuildOrder()
	return &res, nil
}

// ListStudies returns the stored study ids, newest first.
func (r *StudyRepository) ListStudies(ctx context.Context) ([]core.StudyID, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids,
		`SELECT id FROM study_results ORDER BY created_at DESC`)
	if err != nil {
		return nil, apperrors.Wrap(err, "listing studies")
	}
	out := make([]core.StudyID, len(ids))
	for i, id := range ids {
		out[i] = core.StudyID(id)
	}
	return out, nil
}
