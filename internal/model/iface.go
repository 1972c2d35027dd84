package model

import "context"

// JobAPI is the backend contract consumed by the job poller through
// poller.Backend.
type JobAPI interface {
	CreateJob(ctx context.Context, req CreateJobRequest) (Job, error)
	JobStatus(ctx context.Context, jobID string) (Job, error)
	BrowserStatus(ctx context.Context) (BrowserStatus, error)
}

// HealthProber performs the lightweight out-of-band liveness check.
type HealthProber interface {
	BrowserStatus(ctx context.Context) (BrowserStatus, error)
}
