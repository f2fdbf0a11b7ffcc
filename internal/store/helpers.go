package store

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "id, filename, source_path, original_size, model_size, status, duration_seconds, transcription_text, processing_time_seconds, error_message, created_at, started_at, completed_at, expires_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job            Job
		statusStr      string
		duration       sql.NullFloat64
		text           sql.NullString
		processingTime sql.NullFloat64
		errorMessage   sql.NullString
		createdRaw     string
		startedRaw     sql.NullString
		completedRaw   sql.NullString
		expiresRaw     string
	)
	if err := scanner.Scan(
		&job.ID,
		&job.Filename,
		&job.SourcePath,
		&job.OriginalSize,
		&job.ModelSize,
		&statusStr,
		&duration,
		&text,
		&processingTime,
		&errorMessage,
		&createdRaw,
		&startedRaw,
		&completedRaw,
		&expiresRaw,
	); err != nil {
		return nil, err
	}

	job.Status = Status(statusStr)
	job.DurationSeconds = duration.Float64
	job.ResultText = text.String
	job.ProcessingTimeSeconds = processingTime.Float64
	job.ErrorMessage = errorMessage.String
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if expires, err := parseTimeString(expiresRaw); err == nil {
		job.ExpiresAt = expires
	}
	job.StartedAt = parseNullableTime(startedRaw)
	job.CompletedAt = parseNullableTime(completedRaw)
	return &job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &t
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

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
