// Package store persists chunking runs to SQLite. Each run keeps the
// classification, outcome metrics, and the full parent/child chunk tree so
// results can be fetched after the processing job has left the queue.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/somchaik/chunkd/internal/chunk"
	"github.com/somchaik/chunkd/internal/coordinator"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	job_id             TEXT PRIMARY KEY,
	filename           TEXT NOT NULL,
	path_used          TEXT NOT NULL,
	fallback_occurred  INTEGER NOT NULL DEFAULT 0,
	fallback_reason    TEXT NOT NULL DEFAULT '',
	quality_score      REAL NOT NULL,
	confidence_score   REAL NOT NULL,
	duration_ms        INTEGER NOT NULL,
	error              TEXT NOT NULL DEFAULT '',
	classification     TEXT NOT NULL,
	ocr_metrics        TEXT,
	semantic_metrics   TEXT,
	structural_metrics TEXT,
	created_at         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS parent_chunks (
	job_id     TEXT NOT NULL REFERENCES runs(job_id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	content    TEXT NOT NULL,
	summary    TEXT NOT NULL DEFAULT '',
	chapter    TEXT NOT NULL DEFAULT '',
	section    TEXT NOT NULL DEFAULT '',
	confidence REAL NOT NULL,
	PRIMARY KEY (job_id, seq)
);

CREATE TABLE IF NOT EXISTS child_units (
	job_id     TEXT NOT NULL,
	parent_seq INTEGER NOT NULL,
	seq        INTEGER NOT NULL,
	content    TEXT NOT NULL,
	role       TEXT NOT NULL,
	PRIMARY KEY (job_id, parent_seq, seq),
	FOREIGN KEY (job_id, parent_seq) REFERENCES parent_chunks(job_id, seq) ON DELETE CASCADE
);
`

// Store wraps the SQLite handle. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// SaveRun writes a completed outcome and its chunk tree in one transaction.
func (s *Store) SaveRun(ctx context.Context, jobID, filename string, out *coordinator.Outcome) error {
	cls, err := json.Marshal(out.Classification)
	if err != nil {
		return fmt.Errorf("marshal classification: %w", err)
	}
	var ocrJSON, semJSON, structJSON []byte
	if out.OCR != nil {
		if ocrJSON, err = json.Marshal(out.OCR); err != nil {
			return fmt.Errorf("marshal ocr metrics: %w", err)
		}
	}
	if out.Semantic != nil {
		if semJSON, err = json.Marshal(out.Semantic); err != nil {
			return fmt.Errorf("marshal semantic metrics: %w", err)
		}
	}
	if out.Structural != nil {
		if structJSON, err = json.Marshal(out.Structural); err != nil {
			return fmt.Errorf("marshal structural metrics: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (job_id, filename, path_used, fallback_occurred, fallback_reason,
			quality_score, confidence_score, duration_ms, error,
			classification, ocr_metrics, semantic_metrics, structural_metrics, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		jobID, filename, string(out.PathUsed), boolToInt(out.FallbackOccurred), out.FallbackReason,
		out.QualityScore, out.ConfidenceScore, out.Duration.Milliseconds(), out.Error,
		string(cls), nullable(ocrJSON), nullable(semJSON), nullable(structJSON),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, p := range out.Parents {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO parent_chunks (job_id, seq, content, summary, chapter, section, confidence)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			jobID, i+1, p.Content, p.Summary, p.Chapter, p.Section, p.Confidence)
		if err != nil {
			return fmt.Errorf("insert parent %d: %w", i+1, err)
		}
		for _, u := range p.Children {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO child_units (job_id, parent_seq, seq, content, role)
				VALUES (?, ?, ?, ?, ?)`,
				jobID, i+1, u.Sequence, u.Content, string(u.Role))
			if err != nil {
				return fmt.Errorf("insert child %d of parent %d: %w", u.Sequence, i+1, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Run is a stored outcome as returned by GetRun.
type Run struct {
	JobID    string              `json:"job_id"`
	Filename string              `json:"filename"`
	Outcome  coordinator.Outcome `json:"result"`
	Created  time.Time           `json:"created_at"`
}

// GetRun loads a run and its chunk tree. Returns sql.ErrNoRows when the
// job is unknown.
func (s *Store) GetRun(ctx context.Context, jobID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT filename, path_used, fallback_occurred, fallback_reason,
			quality_score, confidence_score, duration_ms, error,
			classification, ocr_metrics, semantic_metrics, structural_metrics, created_at
		FROM runs WHERE job_id = ?`, jobID)

	var (
		r          Run
		pathUsed   string
		fbOccurred int
		durationMS int64
		clsJSON    string
		ocrJSON    sql.NullString
		semJSON    sql.NullString
		structJSON sql.NullString
		created    string
	)
	r.JobID = jobID
	err := row.Scan(&r.Filename, &pathUsed, &fbOccurred, &r.Outcome.FallbackReason,
		&r.Outcome.QualityScore, &r.Outcome.ConfidenceScore, &durationMS, &r.Outcome.Error,
		&clsJSON, &ocrJSON, &semJSON, &structJSON, &created)
	if err != nil {
		return nil, err
	}

	r.Outcome.PathUsed = chunk.Path(pathUsed)
	r.Outcome.FallbackOccurred = fbOccurred != 0
	r.Outcome.Duration = time.Duration(durationMS) * time.Millisecond
	if err := json.Unmarshal([]byte(clsJSON), &r.Outcome.Classification); err != nil {
		return nil, fmt.Errorf("decode classification: %w", err)
	}
	if ocrJSON.Valid {
		r.Outcome.OCR = &chunk.OCRMetrics{}
		if err := json.Unmarshal([]byte(ocrJSON.String), r.Outcome.OCR); err != nil {
			return nil, fmt.Errorf("decode ocr metrics: %w", err)
		}
	}
	if semJSON.Valid {
		r.Outcome.Semantic = &chunk.SemanticMetrics{}
		if err := json.Unmarshal([]byte(semJSON.String), r.Outcome.Semantic); err != nil {
			return nil, fmt.Errorf("decode semantic metrics: %w", err)
		}
	}
	if structJSON.Valid {
		r.Outcome.Structural = &chunk.StructuralMetrics{}
		if err := json.Unmarshal([]byte(structJSON.String), r.Outcome.Structural); err != nil {
			return nil, fmt.Errorf("decode structural metrics: %w", err)
		}
	}
	if t, err := time.Parse(time.RFC3339, created); err == nil {
		r.Created = t
	}

	parents, err := s.loadParents(ctx, jobID)
	if err != nil {
		return nil, err
	}
	r.Outcome.Parents = parents
	return &r, nil
}

func (s *Store) loadParents(ctx context.Context, jobID string) ([]chunk.ParentChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, content, summary, chapter, section, confidence
		FROM parent_chunks WHERE job_id = ? ORDER BY seq`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query parents: %w", err)
	}
	defer rows.Close()

	parents := []chunk.ParentChunk{}
	seqs := []int{}
	for rows.Next() {
		var p chunk.ParentChunk
		var seq int
		if err := rows.Scan(&seq, &p.Content, &p.Summary, &p.Chapter, &p.Section, &p.Confidence); err != nil {
			return nil, fmt.Errorf("scan parent: %w", err)
		}
		parents = append(parents, p)
		seqs = append(seqs, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, seq := range seqs {
		children, err := s.loadChildren(ctx, jobID, seq)
		if err != nil {
			return nil, err
		}
		parents[i].Children = children
	}
	return parents, nil
}

func (s *Store) loadChildren(ctx context.Context, jobID string, parentSeq int) ([]chunk.ChildUnit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, content, role
		FROM child_units WHERE job_id = ? AND parent_seq = ? ORDER BY seq`, jobID, parentSeq)
	if err != nil {
		return nil, fmt.Errorf("query children: %w", err)
	}
	defer rows.Close()

	children := []chunk.ChildUnit{}
	for rows.Next() {
		var u chunk.ChildUnit
		var role string
		if err := rows.Scan(&u.Sequence, &u.Content, &role); err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		u.Role = chunk.Role(role)
		children = append(children, u)
	}
	return children, rows.Err()
}

// DeleteOlderThan removes runs created before the cutoff. Used by the
// janitor to enforce the retention window.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE created_at < ?`, cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("delete old runs: %w", err)
	}
	return res.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
