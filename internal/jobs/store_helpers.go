package jobs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id          string
		status      string
		stage       sql.NullString
		progress    int
		language    string
		sourceName  sql.NullString
		windowStart float64
		windowEnd   float64
		resultsRaw  sql.NullString
		notesRaw    sql.NullString
		errorMsg    sql.NullString
		createdRaw  string
		updatedRaw  string
	)
	if err := scanner.Scan(
		&id,
		&status,
		&stage,
		&progress,
		&language,
		&sourceName,
		&windowStart,
		&windowEnd,
		&resultsRaw,
		&notesRaw,
		&errorMsg,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:         id,
		Status:     Status(status),
		Stage:      stage.String,
		Progress:   progress,
		Language:   language,
		SourceName: sourceName.String,
		Start:      windowStart,
		End:        windowEnd,
		Error:      errorMsg.String,
	}
	if resultsRaw.Valid && resultsRaw.String != "" {
		if err := json.Unmarshal([]byte(resultsRaw.String), &job.Results); err != nil {
			return nil, fmt.Errorf("decode results for %s: %w", id, err)
		}
	}
	if notesRaw.Valid && notesRaw.String != "" {
		if err := json.Unmarshal([]byte(notesRaw.String), &job.Notes); err != nil {
			return nil, fmt.Errorf("decode notes for %s: %w", id, err)
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// timeLayout keeps a fixed fraction width so timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
