package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const jobColumns = "id, status, stage, progress, language, source_name, window_start, window_end, results_json, notes_json, error_message, created_at, updated_at"

// Create inserts a new job.
func (s *Store) Create(ctx context.Context, job *Job) error {
	results, notes, err := encodeJSONColumns(job)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		string(job.Status),
		nullableString(job.Stage),
		job.Progress,
		job.Language,
		nullableString(job.SourceName),
		job.Start,
		job.End,
		results,
		notes,
		nullableString(job.Error),
		formatTime(job.CreatedAt),
		formatTime(job.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Save overwrites the mutable fields of an existing job.
func (s *Store) Save(ctx context.Context, job *Job) error {
	results, notes, err := encodeJSONColumns(job)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx,
		`UPDATE jobs SET status = ?, stage = ?, progress = ?, results_json = ?, notes_json = ?,
            error_message = ?, updated_at = ? WHERE id = ?`,
		string(job.Status),
		nullableString(job.Stage),
		job.Progress,
		results,
		notes,
		nullableString(job.Error),
		formatTime(job.UpdatedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return notFound(job.ID)
	}
	return nil
}

// Get fetches a job by ID.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns all jobs, newest first.
func (s *Store) List(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// Counts groups jobs by lifecycle state.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return Counts{}, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	var counts Counts
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return Counts{}, fmt.Errorf("scan count: %w", err)
		}
		for range n {
			counts.Add(Status(status))
		}
	}
	return counts, rows.Err()
}

// FailInterrupted moves every non-terminal job to error. It runs when the
// daemon starts, since jobs only live in the process that ran them.
func (s *Store) FailInterrupted(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx,
		`UPDATE jobs SET status = ?, stage = ?, error_message = ?, updated_at = ?
            WHERE status NOT IN (?, ?)`,
		string(StatusError),
		string(StatusError),
		InterruptedReason,
		formatTime(time.Now().UTC()),
		string(StatusDone),
		string(StatusError),
	)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}

// Remove deletes a job record.
func (s *Store) Remove(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove job: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return notFound(id)
	}
	return nil
}

func encodeJSONColumns(job *Job) (results, notes any, err error) {
	data, err := json.Marshal(job.Results)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal results: %w", err)
	}
	results = string(data)
	if !job.Notes.Empty() {
		data, err = json.Marshal(job.Notes)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal notes: %w", err)
		}
		notes = string(data)
	}
	return results, notes, nil
}
