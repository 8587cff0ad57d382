package db

import (
	"context"
	"database/sql"
	"fmt"
)

type JobOperations struct{}

func (o *JobOperations) CreateJob(ctx context.Context, j *PrintJob) error {
	result, err := GetDB().ExecContext(ctx, InsertJob,
		j.Ref, j.Payload, j.ProductName, j.LocationName, j.PackerName,
		j.Symbology, j.Copies, j.Status, j.SubmittedBy)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get job id: %w", err)
	}
	j.ID = id
	return nil
}

func (o *JobOperations) GetJobByID(ctx context.Context, id int64) (*PrintJob, error) {
	return o.getJob(ctx, GetJobByID, id)
}

func (o *JobOperations) GetJobByRef(ctx context.Context, ref string) (*PrintJob, error) {
	return o.getJob(ctx, GetJobByRef, ref)
}

func (o *JobOperations) getJob(ctx context.Context, query string, arg interface{}) (*PrintJob, error) {
	j := &PrintJob{}
	err := GetDB().QueryRowContext(ctx, query, arg).Scan(
		&j.ID, &j.Ref, &j.Payload, &j.ProductName, &j.LocationName, &j.PackerName,
		&j.Symbology, &j.Copies, &j.Status, &j.AttemptCount, &j.ErrorMessage,
		&j.ExportPath, &j.SubmittedBy, &j.CreatedAt, &j.StartedAt, &j.CompletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

func (o *JobOperations) ListJobs(ctx context.Context, filter JobFilter) ([]*PrintJob, error) {
	limit := 100
	if filter.Limit > 0 {
		limit = filter.Limit
	}

	var (
		rows *sql.Rows
		err  error
	)
	if filter.Status != "" {
		rows, err = GetDB().QueryContext(ctx, ListJobsByStatus, filter.Status, limit, filter.Offset)
	} else {
		rows, err = GetDB().QueryContext(ctx, ListJobs, limit, filter.Offset)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

func (o *JobOperations) ListPendingJobIDs(ctx context.Context) ([]int64, error) {
	rows, err := GetDB().QueryContext(ctx, ListPendingJobIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan job id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (o *JobOperations) MarkJobStarted(ctx context.Context, id int64, status string) error {
	_, err := GetDB().ExecContext(ctx, MarkJobStarted, status, id)
	if err != nil {
		return fmt.Errorf("failed to mark job started: %w", err)
	}
	return nil
}

func (o *JobOperations) MarkJobCompleted(ctx context.Context, id int64, status, errorMsg, exportPath string, attempts int) error {
	_, err := GetDB().ExecContext(ctx, MarkJobCompleted, status, errorMsg, exportPath, attempts, id)
	if err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	return nil
}

func (o *JobOperations) CancelPendingJob(ctx context.Context, id int64) (bool, error) {
	result, err := GetDB().ExecContext(ctx, CancelPendingJob, id)
	if err != nil {
		return false, fmt.Errorf("failed to cancel job: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to cancel job: %w", err)
	}
	return n > 0, nil
}

func (o *JobOperations) ResetJobForRetry(ctx context.Context, id int64) (bool, error) {
	result, err := GetDB().ExecContext(ctx, ResetJobForRetry, id)
	if err != nil {
		return false, fmt.Errorf("failed to reset job for retry: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to reset job for retry: %w", err)
	}
	return n > 0, nil
}

func (o *JobOperations) RecoverInterrupted(ctx context.Context) (int64, error) {
	result, err := GetDB().ExecContext(ctx, RecoverInterruptedJobs)
	if err != nil {
		return 0, fmt.Errorf("failed to recover interrupted jobs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to recover interrupted jobs: %w", err)
	}
	return n, nil
}

func (o *JobOperations) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := GetDB().QueryContext(ctx, CountJobsByStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan job count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func scanJobs(rows *sql.Rows) ([]*PrintJob, error) {
	var jobs []*PrintJob
	for rows.Next() {
		j := &PrintJob{}
		if err := rows.Scan(
			&j.ID, &j.Ref, &j.Payload, &j.ProductName, &j.LocationName, &j.PackerName,
			&j.Symbology, &j.Copies, &j.Status, &j.AttemptCount, &j.ErrorMessage,
			&j.ExportPath, &j.SubmittedBy, &j.CreatedAt, &j.StartedAt, &j.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

type HistoryOperations struct{}

func (o *HistoryOperations) Record(ctx context.Context, e *HistoryEntry) error {
	result, err := GetDB().ExecContext(ctx, InsertHistory,
		e.JobRef, e.Payload, e.Outcome, e.AttemptCount)
	if err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get history id: %w", err)
	}
	e.ID = id
	return nil
}

func (o *HistoryOperations) List(ctx context.Context, limit, offset int) ([]*HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := GetDB().QueryContext(ctx, ListHistory, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []*HistoryEntry
	for rows.Next() {
		e := &HistoryEntry{}
		if err := rows.Scan(
			&e.ID, &e.JobRef, &e.Payload, &e.Outcome, &e.AttemptCount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type SettingsOperations struct{}

func (o *SettingsOperations) GetSetting(ctx context.Context, key string) (*Setting, error) {
	s := &Setting{}
	err := GetDB().QueryRowContext(ctx, GetSetting, key).Scan(&s.Key, &s.Value, &s.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get setting: %w", err)
	}
	return s, nil
}

func (o *SettingsOperations) SetSetting(ctx context.Context, key, value string) error {
	_, err := GetDB().ExecContext(ctx, UpsertSetting, key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}

var (
	Jobs     = &JobOperations{}
	History  = &HistoryOperations{}
	Settings = &SettingsOperations{}
)
