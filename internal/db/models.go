package db

import (
	"time"
)

type PrintJob struct {
	ID           int64      `json:"id"`
	Ref          string     `json:"ref"`
	Payload      string     `json:"payload"`
	ProductName  string     `json:"product_name"`
	LocationName string     `json:"location_name"`
	PackerName   string     `json:"packer_name"`
	Symbology    string     `json:"symbology"`
	Copies       int        `json:"copies"`
	Status       string     `json:"status"`
	AttemptCount int        `json:"attempt_count"`
	ErrorMessage string     `json:"error_message,omitempty"`
	ExportPath   string     `json:"export_path,omitempty"`
	SubmittedBy  string     `json:"submitted_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

type HistoryEntry struct {
	ID           int64     `json:"id"`
	JobRef       string    `json:"job_ref"`
	Payload      string    `json:"payload"`
	Outcome      string    `json:"outcome"`
	AttemptCount int       `json:"attempt_count"`
	CreatedAt    time.Time `json:"created_at"`
}

type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

type JobFilter struct {
	Status string
	Limit  int
	Offset int
}
