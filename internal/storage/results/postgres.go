package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"docverify/internal/verification/models"
	"docverify/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists artifacts in the run_artifacts table. The summary
// columns are denormalized from the JSON document for querying.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type summaryRow struct {
	RunID       string         `db:"run_id"`
	Verdict     bool           `db:"verdict"`
	ErrorCodes  pq.StringArray `db:"error_codes"`
	DocType     sql.NullString `db:"doc_type"`
	CompletedAt time.Time      `db:"completed_at"`
}

// Summary is the indexed part of a stored artifact.
type Summary struct {
	RunID       string    `json:"run_id"`
	Verdict     bool      `json:"verdict"`
	ErrorCodes  []string  `json:"error_codes"`
	DocType     string    `json:"doc_type,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

func (s *PostgresStore) Save(ctx context.Context, artifact *models.Artifact) error {
	if err := checkRunID(artifact.RunID); err != nil {
		return err
	}
	payload, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}
	var docType sql.NullString
	if artifact.ExtractedDocType != nil {
		docType = sql.NullString{String: *artifact.ExtractedDocType, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO run_artifacts (
			run_id, verdict, error_codes, doc_type, trace_id,
			created_at, completed_at, processing_time_seconds, artifact
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		artifact.RunID,
		artifact.Verdict,
		pq.Array(artifact.ErrorCodes()),
		docType,
		artifact.TraceID,
		artifact.CreatedAt,
		artifact.CompletedAt,
		artifact.ProcessingTimeSeconds,
		payload,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("artifact %s: %w", artifact.RunID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, runID string) (*models.Artifact, error) {
	var payload []byte
	err := s.db.GetContext(ctx, &payload, `SELECT artifact FROM run_artifacts WHERE run_id = $1`, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	var a models.Artifact
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", runID, err)
	}
	return &a, nil
}

// ListByErrorCode returns the most recent runs that reported code.
func (s *PostgresStore) ListByErrorCode(ctx context.Context, code string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []summaryRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT run_id, verdict, error_codes, doc_type, completed_at
		FROM run_artifacts
		WHERE error_codes @> $1
		ORDER BY completed_at DESC
		LIMIT $2`, pq.Array([]string{code}), limit)
	if err != nil {
		return nil, fmt.Errorf("list artifacts by code: %w", err)
	}
	out := make([]Summary, 0, len(rows))
	for _, r := range rows {
		out = append(out, Summary{
			RunID:       r.RunID,
			Verdict:     r.Verdict,
			ErrorCodes:  []string(r.ErrorCodes),
			DocType:     r.DocType.String,
			CompletedAt: r.CompletedAt,
		})
	}
	return out, nil
}
