package model

import "time"

// Shared defaults used by both the client and the development backend.
const (
	DefaultBackendURL = "http://localhost:8001"
	DefaultExamType   = ExamSSC
	DefaultPDFFormat  = FormatText

	// Retry policy.
	MaxRetryAttempts = 8
	RetryBaseDelay   = 1 * time.Second
	RetryMaxDelay    = 30 * time.Second
	RetryJitterMax   = 1 * time.Second

	// Out-of-band health probe.
	HealthCacheTTL     = 5 * time.Second
	HealthProbeTimeout = 5 * time.Second

	// Per-attempt request timeouts.
	CreateJobTimeout = 30 * time.Second
	JobStatusTimeout = 10 * time.Second

	// Loop cadences.
	StatusPollInterval  = 2 * time.Second
	HealthCheckInterval = 5 * time.Second
	AdStatusInterval    = 10 * time.Second
	UIRefreshInterval   = 250 * time.Millisecond
)
