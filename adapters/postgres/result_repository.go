package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"gocausal/domain/causal"
	"gocausal/domain/core"
	"gocausal/internal/errors"
	"gocausal/ports"

	"github.com/jmoiron/sqlx"
)

// ResultRepositoryImpl implements ResultRepository for PostgreSQL
type ResultRepositoryImpl struct {
	db *sqlx.DB
}

// NewResultRepository creates a new PostgreSQL result repository
func NewResultRepository(db *sqlx.DB) ports.ResultRepository {
	return &ResultRepositoryImpl{db: db}
}

// EnsureSchema creates the results table when it does not exist yet
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ate_results (
			id          TEXT PRIMARY KEY,
			method      TEXT NOT NULL,
			estimate    DOUBLE PRECISION NOT NULL,
			sample_size INTEGER NOT NULL,
			diagnostics JSONB NOT NULL,
			replicates  JSONB,
			created_at  TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return errors.Wrap(err, "failed to create ate_results table")
	}
	return nil
}

// Save stores a result, overwriting any prior row with the same ID
func (r *ResultRepositoryImpl) Save(ctx context.Context, result *causal.ATEResult) error {
	diagnosticsJSON, err := json.Marshal(result.Diagnostics)
	if err != nil {
		return errors.Wrap(err, "failed to marshal diagnostics")
	}
	var replicatesJSON []byte
	if result.Replicates != nil {
		replicatesJSON, err = json.Marshal(result.Replicates)
		if err != nil {
			return errors.Wrap(err, "failed to marshal replicates")
		}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO ate_results (id, method, estimate, sample_size, diagnostics, replicates, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			method = EXCLUDED.method,
			estimate = EXCLUDED.estimate,
			sample_size = EXCLUDED.sample_size,
			diagnostics = EXCLUDED.diagnostics,
			replicates = EXCLUDED.replicates`,
		result.ID.String(), string(result.Method), result.Estimate, result.SampleSize,
		diagnosticsJSON, replicatesJSON, result.CreatedAt.Time())
	if err != nil {
		return errors.Wrap(err, "failed to save result")
	}
	return nil
}

// Get retrieves a result by run ID
func (r *ResultRepositoryImpl) Get(ctx context.Context, id core.RunID) (*causal.ATEResult, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, method, estimate, sample_size, diagnostics, replicates, created_at
		FROM ate_results
		WHERE id = $1`, id.String())
	result, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("result")
	}
	return result, err
}

// List returns results ordered newest first
func (r *ResultRepositoryImpl) List(ctx context.Context, limit int) ([]*causal.ATEResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, method, estimate, sample_size, diagnostics, replicates, created_at
		FROM ate_results
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list results")
	}
	defer rows.Close()

	var results []*causal.ATEResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanResult(row scannable) (*causal.ATEResult, error) {
	var (
		id, method                      string
		diagnosticsJSON, replicatesJSON []byte
		createdAt                       time.Time
		result                          causal.ATEResult
	)
	err := row.Scan(&id, &method, &result.Estimate, &result.SampleSize,
		&diagnosticsJSON, &replicatesJSON, &createdAt)
	if err != nil {
		return nil, err
	}
	result.ID = core.RunID(id)
	result.Method = causal.Method(method)
	result.CreatedAt = core.NewTimestamp(createdAt)
	if err := json.Unmarshal(diagnosticsJSON, &result.Diagnostics); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal diagnostics")
	}
	if len(replicatesJSON) > 0 {
		if err := json.Unmarshal(replicatesJSON, &result.Replicates); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal replicates")
		}
	}
	return &result, nil
}
