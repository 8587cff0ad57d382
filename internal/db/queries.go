package db

const (
	InsertJob = `
		INSERT INTO print_jobs (ref, payload, product_name, location_name, packer_name, symbology, copies, status, submitted_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	jobColumns = `id, ref, payload, product_name, location_name, packer_name, symbology, copies,
		status, attempt_count, error_message, export_path, submitted_by, created_at, started_at, completed_at`

	GetJobByID = `
		SELECT ` + jobColumns + `
		FROM print_jobs WHERE id = ?
	`

	GetJobByRef = `
		SELECT ` + jobColumns + `
		FROM print_jobs WHERE ref = ?
	`

	ListJobs = `
		SELECT ` + jobColumns + `
		FROM print_jobs
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	ListJobsByStatus = `
		SELECT ` + jobColumns + `
		FROM print_jobs WHERE status = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	ListPendingJobIDs = `
		SELECT id FROM print_jobs
		WHERE status = 'pending'
		ORDER BY created_at ASC
	`

	MarkJobStarted = `
		UPDATE print_jobs SET status = ?, started_at = CURRENT_TIMESTAMP WHERE id = ?
	`

	MarkJobCompleted = `
		UPDATE print_jobs SET status = ?, error_message = ?, export_path = ?, attempt_count = ?,
			completed_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	CancelPendingJob = `
		UPDATE print_jobs SET status = 'cancelled', completed_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'pending'
	`

	ResetJobForRetry = `
		UPDATE print_jobs
		SET status = 'pending', attempt_count = 0, error_message = '', export_path = '',
			started_at = NULL, completed_at = NULL
		WHERE id = ? AND status = 'failed'
	`

	RecoverInterruptedJobs = `
		UPDATE print_jobs SET status = 'pending' WHERE status = 'printing'
	`

	CountJobsByStatus = `
		SELECT status, COUNT(*) FROM print_jobs GROUP BY status
	`
)

const (
	InsertHistory = `
		INSERT INTO print_history (job_ref, payload, outcome, attempt_count)
		VALUES (?, ?, ?, ?)
	`

	ListHistory = `
		SELECT id, job_ref, payload, outcome, attempt_count, created_at
		FROM print_history
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`
)

const (
	GetSetting = `
		SELECT key, value, updated_at FROM settings WHERE key = ?
	`

	UpsertSetting = `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`
)
