package model

import (
	"math"
	"time"
)

// ExamType selects which exam's question bank the backend searches.
type ExamType string

const (
	ExamSSC  ExamType = "SSC"
	ExamBPSC ExamType = "BPSC"
)

// ExamTypes lists the exam types accepted by the backend, in display order.
var ExamTypes = []ExamType{ExamSSC, ExamBPSC}

// Valid reports whether e is an exam type the backend accepts.
func (e ExamType) Valid() bool {
	for _, t := range ExamTypes {
		if t == e {
			return true
		}
	}
	return false
}

// PDFFormat selects how the backend renders the question document.
type PDFFormat string

const (
	FormatText  PDFFormat = "text"
	FormatImage PDFFormat = "image"
)

// Valid reports whether f is a format the backend accepts.
func (f PDFFormat) Valid() bool {
	return f == FormatText || f == FormatImage
}

// JobStatus is the backend-reported lifecycle state of a job.
type JobStatus string

const (
	JobCreated   JobStatus = "created"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobError     JobStatus = "error"
)

// Terminal reports whether no further status transitions will happen.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobError
}

// ConnectionHealth summarizes whether the backend pipeline is reachable.
// Values received from the wire are kept verbatim, so a value outside the
// known set is possible and renders as unknown.
type ConnectionHealth string

const (
	HealthStable            ConnectionHealth = "stable"
	HealthBrowserRestarting ConnectionHealth = "browser_restarting"
	HealthError             ConnectionHealth = "error"
)

// Label is the human-readable text shown next to the health indicator.
func (h ConnectionHealth) Label() string {
	switch h {
	case HealthStable:
		return "Connected"
	case HealthBrowserRestarting:
		return "Browser restarting..."
	case HealthError:
		return "Connection error"
	default:
		return "Unknown status"
	}
}

// CreateJobRequest is the body of POST /api/generate-mcq-pdf.
type CreateJobRequest struct {
	Topic     string    `json:"topic"`
	ExamType  ExamType  `json:"exam_type"`
	PDFFormat PDFFormat `json:"pdf_format"`
}

// BrowserStatus is the out-of-band health probe payload. The backend also
// embeds it in job status responses as browser_monitoring.
type BrowserStatus struct {
	ConnectionHealth    ConnectionHealth `json:"connection_health"`
	BrowserRestartCount int              `json:"browser_restart_count,omitempty"`
	BrowserAlive        *bool            `json:"browser_alive,omitempty"`
	LastRestart         string           `json:"last_restart,omitempty"`
}

// Job mirrors the backend's latest snapshot of a generation job.
type Job struct {
	ID                string           `json:"job_id,omitempty"`
	Status            JobStatus        `json:"status"`
	Progress          string           `json:"progress"`
	TotalLinks        int              `json:"total_links"`
	ProcessedLinks    int              `json:"processed_links"`
	MCQsFound         int              `json:"mcqs_found"`
	PDFURL            string           `json:"pdf_url,omitempty"`
	ConnectionHealth  ConnectionHealth `json:"connection_health,omitempty"`
	BrowserMonitoring *BrowserStatus   `json:"browser_monitoring,omitempty"`
}

// ProgressPercent returns processed/total as a rounded percentage, 0 when
// the total is unknown.
func (j Job) ProgressPercent() int {
	if j.TotalLinks <= 0 {
		return 0
	}
	return int(math.Round(float64(j.ProcessedLinks) / float64(j.TotalLinks) * 100))
}

// RetryState is the retry counter exposed for UI retry indicators.
type RetryState struct {
	AttemptsMade int  `json:"attempts_made"`
	MaxAttempts  int  `json:"max_attempts"`
	IsRetrying   bool `json:"is_retrying"`
}

// NewRetryState builds a RetryState with IsRetrying derived from attempts.
func NewRetryState(attempts, maxAttempts int) RetryState {
	return RetryState{
		AttemptsMade: attempts,
		MaxAttempts:  maxAttempts,
		IsRetrying:   attempts > 0,
	}
}

// Exhausted reports whether no retries remain.
func (r RetryState) Exhausted() bool {
	return r.AttemptsMade >= r.MaxAttempts
}

// AdStatus is the host ad system state reported by the bridge.
type AdStatus struct {
	AdSystemReady bool   `json:"ad_system_ready"`
	BrowserMode   bool   `json:"browser_mode,omitempty"`
	Error         string `json:"error,omitempty"`
}

// HealthSnapshot is a cached probe result with the time it was taken.
type HealthSnapshot struct {
	Status    BrowserStatus
	FetchedAt time.Time
}
