// Package history records one audit row per pipeline stage run.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"doctranslate/internal/errlog"
)

// Stages.
const (
	StageExtract   = "extract"
	StageTranslate = "translate"
	StageExport    = "export"
)

// Statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Job is one recorded stage run.
type Job struct {
	ID         string        `json:"id"`
	Stage      string        `json:"stage"`
	FileName   string        `json:"file_name"`
	Format     string        `json:"format"`
	Units      int           `json:"units"`
	Failed     int           `json:"failed"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
	SourceLang string        `json:"source_lang,omitempty"`
	TargetLang string        `json:"target_lang,omitempty"`
	Duration   time.Duration `json:"-"`
	CreatedAt  time.Time     `json:"created_at"`
}

type jobJSON Job

// MarshalJSON encodes Duration as whole milliseconds in duration_ms.
func (j Job) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		jobJSON
		DurationMS int64 `json:"duration_ms"`
	}{jobJSON(j), j.Duration.Milliseconds()})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (j *Job) UnmarshalJSON(data []byte) error {
	var v struct {
		*jobJSON
		DurationMS int64 `json:"duration_ms"`
	}
	v.jobJSON = (*jobJSON)(j)
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	j.Duration = time.Duration(v.DurationMS) * time.Millisecond
	return nil
}

// Recorder is implemented by stores that accept job rows.
type Recorder interface {
	Record(ctx context.Context, job *Job) error
}

// Store persists jobs in the jobs table created by db.InitDB.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over an initialized database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record inserts job, assigning an ID and timestamp when unset.
func (s *Store) Record(ctx context.Context, job *Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = StatusSuccess
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, stage, file_name, format, units, failed, status, error, source_lang, target_lang, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Stage, job.FileName, job.Format, job.Units, job.Failed, job.Status, job.Error,
		job.SourceLang, job.TargetLang, job.Duration.Milliseconds(), job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Recent returns up to limit jobs, newest first. A non-positive limit
// defaults to 50.
func (s *Store) Recent(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, stage, file_name, format, units, failed, status, error, source_lang, target_lang, duration_ms, created_at
		 FROM jobs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	jobs := []Job{}
	for rows.Next() {
		var j Job
		var errStr, src, dst sql.NullString
		var ms int64
		var createdAt sql.NullTime
		if err := rows.Scan(&j.ID, &j.Stage, &j.FileName, &j.Format, &j.Units, &j.Failed, &j.Status,
			&errStr, &src, &dst, &ms, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		j.Error = errStr.String
		j.SourceLang = src.String
		j.TargetLang = dst.String
		j.Duration = time.Duration(ms) * time.Millisecond
		if createdAt.Valid {
			j.CreatedAt = createdAt.Time
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}
	return jobs, nil
}

// Discard is a Recorder that drops every job, used when history is disabled.
type Discard struct{}

// Record does nothing.
func (Discard) Record(context.Context, *Job) error { return nil }

// Save records job on r and logs a failure instead of returning it; history
// never fails a stage.
func Save(ctx context.Context, r Recorder, job *Job) {
	if r == nil {
		return
	}
	if err := r.Record(context.WithoutCancel(ctx), job); err != nil {
		log.Printf("[History] record %s %q: %v", job.Stage, job.FileName, err)
		errlog.Logf("[History] record %s %q: %v", job.Stage, job.FileName, err)
	}
}
