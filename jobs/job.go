// Package jobs tracks asynchronous report generation: the job table and the
// bounded worker pool that fills it.
package jobs

import (
	"errors"
	"time"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

var (
	ErrDuplicateKey = errors.New("report job already exists")
	ErrNotFound     = errors.New("report job not found")
	ErrAlreadyFinal = errors.New("report job already finished")
	ErrQueueFull    = errors.New("report queue is full")
	ErrStopped      = errors.New("report runner stopped")
)

// ReportJob is one row of generated_reports. ReportContent and CompletedAt
// are nil while the job is processing.
type ReportJob struct {
	ReportID      string     `json:"report_id"`
	PatientID     string     `json:"patient_id"`
	Status        Status     `json:"status"`
	ReportContent *string    `json:"report_content"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at"`
}
