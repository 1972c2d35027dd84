// Package poller drives a generation job from submission to a terminal
// state: it creates the job, polls its status, runs the out-of-band health
// loop, and derives the connection health shown to the user.
package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tinytelemetry/mcqpdf/internal/adbridge"
	"github.com/tinytelemetry/mcqpdf/internal/api"
	"github.com/tinytelemetry/mcqpdf/internal/model"
	"github.com/tinytelemetry/mcqpdf/internal/retry"
)

var (
	// ErrTopicRequired rejects a submission with a blank topic.
	ErrTopicRequired = errors.New("Please enter a topic name")
	// ErrAdRequired rejects an image-format submission until the host
	// reports the feature as unlocked.
	ErrAdRequired = errors.New("Please watch the ad to unlock high-quality screenshot feature")
	// ErrInvalidRequest rejects an unknown exam type or format.
	ErrInvalidRequest = errors.New("invalid exam type or pdf format")
	// ErrNoJob is returned when the backend accepted a job without an id.
	ErrNoJob = errors.New("backend did not return a job id")
	// ErrStale is returned when the session was reset while a submission
	// was in flight.
	ErrStale = errors.New("session was reset")
)

const defaultCreateError = "Failed to start MCQ generation"

// Phase is the poller's state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSubmitting
	PhasePolling
	PhaseCompleted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSubmitting:
		return "submitting"
	case PhasePolling:
		return "polling"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Request is what the user submits.
type Request struct {
	Topic     string
	ExamType  model.ExamType
	PDFFormat model.PDFFormat
}

// Config holds loop cadences and per-attempt timeouts.
type Config struct {
	StatusInterval time.Duration
	HealthInterval time.Duration
	CreateTimeout  time.Duration
	StatusTimeout  time.Duration
	// RetryOptions are applied to every retry client the session creates.
	RetryOptions []retry.Option
}

// DefaultConfig returns 2s status polling, 5s health checks, and 30s/10s
// request timeouts.
func DefaultConfig() Config {
	return Config{
		StatusInterval: model.StatusPollInterval,
		HealthInterval: model.HealthCheckInterval,
		CreateTimeout:  model.CreateJobTimeout,
		StatusTimeout:  model.JobStatusTimeout,
	}
}

// Snapshot is a copy of everything the UI renders.
type Snapshot struct {
	Phase         Phase
	Request       Request
	JobID         string
	Job           *model.Job
	Health        model.ConnectionHealth
	BrowserStatus *model.BrowserStatus
	RetryInfo     *model.RetryState
	Error         string
	DownloadURL   string
}

// Generating reports whether a job is being created or polled.
func (s Snapshot) Generating() bool {
	return s.Phase == PhaseSubmitting || s.Phase == PhasePolling
}

// Backend is the job API plus the document fetch a session needs.
type Backend interface {
	model.JobAPI
	ResolveURL(path string) string
	Download(ctx context.Context, pdfURL string, w io.Writer) (int64, error)
}

var _ Backend = (*api.Client)(nil)

// Session owns one user's job lifecycle. All methods are safe for
// concurrent use.
type Session struct {
	api       Backend
	gate      *adbridge.Gate
	cfg       Config
	logger    *zap.Logger
	scheduler *Scheduler

	baseCtx    context.Context
	baseCancel context.CancelFunc

	// lifecycleMu serializes loop start and teardown. Task callbacks never
	// take it.
	lifecycleMu sync.Mutex

	mu        sync.Mutex
	epoch     uint64
	client    *retry.Client
	phase     Phase
	req       Request
	jobID     string
	job       *model.Job
	health    model.ConnectionHealth
	browser   *model.BrowserStatus
	retryInfo *model.RetryState
	errMsg    string
}

// NewSession creates an idle session against backend.
func NewSession(backend Backend, gate *adbridge.Gate, cfg Config, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gate == nil {
		gate = adbridge.NewGate(nil, logger)
	}
	def := DefaultConfig()
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = def.StatusInterval
	}
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = def.HealthInterval
	}
	if cfg.CreateTimeout <= 0 {
		cfg.CreateTimeout = def.CreateTimeout
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = def.StatusTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		api:        backend,
		gate:       gate,
		cfg:        cfg,
		logger:     logger,
		scheduler:  NewScheduler(logger.Named("scheduler")),
		baseCtx:    ctx,
		baseCancel: cancel,
		health:     model.HealthStable,
	}
	s.client = s.newRetryClient()
	return s
}

// Gate returns the ad gate the session consults.
func (s *Session) Gate() *adbridge.Gate { return s.gate }

// Submit validates req, creates the job and starts polling. It blocks
// for the duration of the creation call, including its retries.
func (s *Session) Submit(ctx context.Context, req Request) error {
	req.Topic = strings.TrimSpace(req.Topic)
	if req.ExamType == "" {
		req.ExamType = model.DefaultExamType
	}
	if req.PDFFormat == "" {
		req.PDFFormat = model.DefaultPDFFormat
	}

	if req.Topic == "" {
		s.setError(ErrTopicRequired.Error())
		return ErrTopicRequired
	}
	if !req.ExamType.Valid() || !req.PDFFormat.Valid() {
		s.setError(ErrInvalidRequest.Error())
		return ErrInvalidRequest
	}

	imageGated := req.PDFFormat == model.FormatImage && s.gate.Hosted()
	if imageGated && !s.gate.CheckUnlocked(ctx) {
		if s.gate.RequestFeature(ctx) {
			s.setError(ErrAdRequired.Error())
			return ErrAdRequired
		}
	}

	s.lifecycleMu.Lock()
	s.scheduler.Stop()
	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	s.phase = PhaseSubmitting
	s.req = req
	s.jobID = ""
	s.job = nil
	s.retryInfo = nil
	s.browser = nil
	s.health = model.HealthStable
	s.errMsg = ""
	client := s.client
	s.mu.Unlock()
	s.lifecycleMu.Unlock()

	if imageGated {
		s.gate.ConsumeUnlock(ctx)
	}

	s.logger.Info("submitting job",
		zap.String("topic", req.Topic),
		zap.String("exam_type", string(req.ExamType)),
		zap.String("pdf_format", string(req.PDFFormat)),
	)

	var job model.Job
	err := client.Execute(ctx, "MCQ generation request", retry.Timeout(s.cfg.CreateTimeout, func(ctx context.Context) error {
		var err error
		job, err = s.api.CreateJob(ctx, model.CreateJobRequest{
			Topic:     req.Topic,
			ExamType:  req.ExamType,
			PDFFormat: req.PDFFormat,
		})
		return err
	}))

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return ErrStale
	}
	if err != nil {
		s.phase = PhaseFailed
		s.errMsg = createErrorMessage(err)
		s.mu.Unlock()
		s.logger.Error("starting generation failed", zap.Error(err))
		return err
	}
	if job.ID == "" {
		s.phase = PhaseFailed
		s.errMsg = defaultCreateError
		s.mu.Unlock()
		return ErrNoJob
	}
	s.jobID = job.ID
	created := job
	s.job = &created
	s.phase = PhasePolling
	s.mu.Unlock()

	s.logger.Info("job created", zap.String("job_id", job.ID))
	s.startLoops(epoch, job.ID)
	return nil
}

func (s *Session) startLoops(epoch uint64, jobID string) {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.mu.Lock()
	current := s.epoch == epoch && s.phase == PhasePolling
	s.mu.Unlock()
	if !current {
		return
	}

	s.scheduler.Start(s.baseCtx,
		Task{
			Name:      "status",
			Interval:  s.cfg.StatusInterval,
			Immediate: true,
			Run:       func(ctx context.Context) { s.pollStatus(ctx, epoch, jobID) },
		},
		Task{
			Name:     "health",
			Interval: s.cfg.HealthInterval,
			Run:      func(ctx context.Context) { s.checkHealth(ctx, epoch) },
		},
	)
}

func (s *Session) pollStatus(ctx context.Context, epoch uint64, jobID string) {
	client := s.clientFor(epoch)
	if client == nil {
		return
	}

	var job model.Job
	err := client.Execute(ctx, "job status for "+jobID, retry.Timeout(s.cfg.StatusTimeout, func(ctx context.Context) error {
		var err error
		job, err = s.api.JobStatus(ctx, jobID)
		return err
	}))
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.handleStatusFailure(ctx, epoch, client, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return
	}

	if job.ID == "" {
		job.ID = jobID
	}
	s.job = &job
	s.health = job.ConnectionHealth
	if s.health == "" {
		s.health = model.HealthStable
	}
	s.retryInfo = nil
	if job.BrowserMonitoring != nil {
		b := *job.BrowserMonitoring
		s.browser = &b
	}

	if !job.Status.Terminal() {
		return
	}
	if job.Status == model.JobCompleted {
		s.phase = PhaseCompleted
	} else {
		s.phase = PhaseFailed
		s.errMsg = jobErrorMessage(job)
	}
	s.scheduler.Cancel()
	s.logger.Info("job finished", zap.String("job_id", jobID), zap.String("status", string(job.Status)))
}

func (s *Session) handleStatusFailure(ctx context.Context, epoch uint64, client *retry.Client, err error) {
	s.logger.Error("job status polling failed",
		zap.Int("status_code", retry.StatusCode(err)),
		zap.Error(err),
	)

	state := client.Status()
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.retryInfo = &state
	s.mu.Unlock()

	browser := client.ProbeHealth(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || ctx.Err() != nil {
		return
	}
	if browser != nil {
		s.browser = browser
		s.health = browser.ConnectionHealth
	} else {
		s.health = model.HealthError
	}

	if state.Exhausted() {
		s.phase = PhaseFailed
		s.errMsg = fmt.Sprintf("Failed to fetch job status after %d attempts. Browser may be restarting.", state.MaxAttempts+1)
		s.scheduler.Cancel()
	}
}

func (s *Session) checkHealth(ctx context.Context, epoch uint64) {
	client := s.clientFor(epoch)
	if client == nil {
		return
	}
	browser := client.ProbeHealth(ctx)
	if browser == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || ctx.Err() != nil {
		return
	}
	s.browser = browser
	s.health = browser.ConnectionHealth
}

// Reset stops both loops, discards the retry client and returns to Idle.
// It is safe to call at any time, including repeatedly.
func (s *Session) Reset() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.scheduler.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.client = s.newRetryClient()
	s.phase = PhaseIdle
	s.req = Request{}
	s.jobID = ""
	s.job = nil
	s.health = model.HealthStable
	s.browser = nil
	s.retryInfo = nil
	s.errMsg = ""
}

// Close resets the session and releases its background context.
func (s *Session) Close() {
	s.Reset()
	s.baseCancel()
}

// Polling reports whether the status and health loops are active.
func (s *Session) Polling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == PhasePolling
}

// LoopsActive reports whether the scheduler currently owns running loops.
func (s *Session) LoopsActive() bool {
	return s.scheduler.Running()
}

// RetryStatus returns the current retry client's counter.
func (s *Session) RetryStatus() model.RetryState {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	return client.Status()
}

// Snapshot returns a copy of the session's observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Phase:   s.phase,
		Request: s.req,
		JobID:   s.jobID,
		Health:  s.health,
		Error:   s.errMsg,
	}
	if s.job != nil {
		j := *s.job
		snap.Job = &j
		snap.DownloadURL = s.api.ResolveURL(j.PDFURL)
	}
	if s.browser != nil {
		b := *s.browser
		snap.BrowserStatus = &b
	}
	if s.retryInfo != nil {
		r := *s.retryInfo
		snap.RetryInfo = &r
	}
	return snap
}

// DownloadURL is the backend origin joined with the job's pdf_url, or
// empty while no document exists.
func (s *Session) DownloadURL() string {
	return s.Snapshot().DownloadURL
}

func (s *Session) setError(msg string) {
	s.mu.Lock()
	s.errMsg = msg
	s.mu.Unlock()
}

func (s *Session) clientFor(epoch uint64) *retry.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return nil
	}
	return s.client
}

// newRetryClient builds a client whose mid-flight retries are mirrored
// into retryInfo while it is still the session's current client.
func (s *Session) newRetryClient() *retry.Client {
	var c *retry.Client
	observer := func(label string, state model.RetryState, _ error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.client == c {
			st := state
			s.retryInfo = &st
		}
	}
	opts := []retry.Option{
		retry.WithLogger(s.logger.Named("retry")),
		retry.WithProber(s.api),
		retry.WithRetryObserver(observer),
	}
	c = retry.New(append(opts, s.cfg.RetryOptions...)...)
	return c
}

func createErrorMessage(err error) string {
	var se *api.StatusError
	if errors.As(err, &se) && se.Detail != "" {
		return se.Detail
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return defaultCreateError
}

func jobErrorMessage(job model.Job) string {
	if job.Progress != "" {
		return job.Progress
	}
	return "MCQ generation failed"
}
