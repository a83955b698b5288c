package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chordwise/seville/internal/decode"
)

// ErrNotFound reports a cache miss.
var ErrNotFound = errors.New("storage: analysis not found")

// AnalysisRecord mirrors the analyses table: one recognized piece at one
// quantization precision.
type AnalysisRecord struct {
	ID          int64
	ContentHash string
	Filename    string
	Precision   float64
	NFrames     int
	SpansJSON   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewAnalysisRecord builds a record ready for persistence.
func NewAnalysisRecord(contentHash, filename string, precision float64, nFrames int, spans []decode.Span) (*AnalysisRecord, error) {
	if contentHash == "" {
		return nil, errors.New("content hash is required")
	}
	if spans == nil {
		spans = []decode.Span{}
	}
	data, err := json.Marshal(spans)
	if err != nil {
		return nil, fmt.Errorf("marshal spans: %w", err)
	}
	return &AnalysisRecord{
		ContentHash: contentHash,
		Filename:    filename,
		Precision:   precision,
		NFrames:     nFrames,
		SpansJSON:   string(data),
	}, nil
}

// Spans decodes the cached chord spans.
func (rec *AnalysisRecord) Spans() ([]decode.Span, error) {
	var spans []decode.Span
	if err := json.Unmarshal([]byte(rec.SpansJSON), &spans); err != nil {
		return nil, fmt.Errorf("unmarshal spans: %w", err)
	}
	return spans, nil
}

// UpsertAnalysis writes or updates an analysis row (identified by
// content_hash + precision).
func (d *DB) UpsertAnalysis(rec *AnalysisRecord) error {
	_, err := d.db.Exec(`
		INSERT INTO analyses (content_hash, filename, precision, n_frames, spans_json, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(content_hash, precision) DO UPDATE SET
			filename = excluded.filename,
			n_frames = excluded.n_frames,
			spans_json = excluded.spans_json,
			updated_at = CURRENT_TIMESTAMP
	`, rec.ContentHash, rec.Filename, rec.Precision, rec.NFrames, rec.SpansJSON)
	return err
}

// GetAnalysis fetches the cached analysis for a piece at a precision.
func (d *DB) GetAnalysis(contentHash string, precision float64) (*AnalysisRecord, error) {
	row := d.db.QueryRow(`
		SELECT id, content_hash, filename, precision, n_frames, spans_json, created_at, updated_at
		FROM analyses
		WHERE content_hash = ? AND precision = ?
	`, contentHash, precision)
	return scanAnalysis(row)
}

// ListAnalyses returns the most recently updated analyses.
func (d *DB) ListAnalyses(limit int) ([]*AnalysisRecord, error) {
	sqlStr := `
		SELECT id, content_hash, filename, precision, n_frames, spans_json, created_at, updated_at
		FROM analyses
		ORDER BY updated_at DESC
	`
	args := []any{}
	if limit > 0 {
		sqlStr += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*AnalysisRecord
	for rows.Next() {
		rec := &AnalysisRecord{}
		var createdAt, updatedAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.ContentHash, &rec.Filename, &rec.Precision,
			&rec.NFrames, &rec.SpansJSON, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if createdAt.Valid {
			rec.CreatedAt = createdAt.Time
		}
		if updatedAt.Valid {
			rec.UpdatedAt = updatedAt.Time
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanAnalysis(row *sql.Row) (*AnalysisRecord, error) {
	rec := &AnalysisRecord{}
	var createdAt, updatedAt sql.NullTime
	if err := row.Scan(&rec.ID, &rec.ContentHash, &rec.Filename, &rec.Precision,
		&rec.NFrames, &rec.SpansJSON, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if createdAt.Valid {
		rec.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		rec.UpdatedAt = updatedAt.Time
	}
	return rec, nil
}
