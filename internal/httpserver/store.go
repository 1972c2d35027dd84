package httpserver

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinytelemetry/mcqpdf/internal/model"
)

type jobRecord struct {
	id        string
	req       model.CreateJobRequest
	createdAt time.Time
}

// jobStore keeps simulated jobs in memory and derives their state from
// elapsed time.
type jobStore struct {
	scenario Scenario

	mu           sync.Mutex
	jobs         map[string]*jobRecord
	restarts     int
	lastRestart  time.Time
	restartUntil time.Time
}

func newJobStore(sc Scenario) *jobStore {
	return &jobStore{
		scenario: sc,
		jobs:     make(map[string]*jobRecord),
	}
}

func (s *jobStore) create(req model.CreateJobRequest, now time.Time) model.Job {
	rec := &jobRecord{
		id:        uuid.NewString(),
		req:       req,
		createdAt: now,
	}

	s.mu.Lock()
	s.jobs[rec.id] = rec
	s.mu.Unlock()

	return model.Job{
		ID:               rec.id,
		Status:           model.JobCreated,
		Progress:         "Job created",
		TotalLinks:       s.scenario.TotalLinks,
		ConnectionHealth: model.HealthStable,
	}
}

func (s *jobStore) get(id string) (*jobRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	return rec, ok
}

func (s *jobStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// snapshot computes the job's state at now.
func (s *jobStore) snapshot(rec *jobRecord, now time.Time) model.Job {
	sc := s.scenario
	steps := int(now.Sub(rec.createdAt) / sc.StepInterval)
	processed := min(steps, sc.TotalLinks)

	browser := s.browserStatus(now)
	job := model.Job{
		ID:                rec.id,
		Status:            model.JobRunning,
		TotalLinks:        sc.TotalLinks,
		ProcessedLinks:    processed,
		MCQsFound:         processed * sc.MCQsPerLink,
		ConnectionHealth:  browser.ConnectionHealth,
		BrowserMonitoring: &browser,
	}

	switch {
	case sc.fails(rec.req.Topic) && steps >= 1:
		job.Status = model.JobError
		job.ProcessedLinks = 0
		job.MCQsFound = 0
		job.Progress = fmt.Sprintf("No MCQs found for topic '%s'", rec.req.Topic)
	case processed >= sc.TotalLinks:
		job.Status = model.JobCompleted
		job.Progress = fmt.Sprintf("Generated PDF with %d MCQs", job.MCQsFound)
		job.PDFURL = "/files/" + documentName(rec)
	case processed == 0:
		job.Progress = fmt.Sprintf("Searching for %s MCQs...", rec.req.Topic)
	default:
		job.Progress = fmt.Sprintf("Processing link %d of %d", processed, sc.TotalLinks)
	}
	return job
}

// restart marks the browser as restarting for the scenario's window.
func (s *jobStore) restart(now time.Time) model.BrowserStatus {
	s.mu.Lock()
	s.restarts++
	s.lastRestart = now
	s.restartUntil = now.Add(s.scenario.RestartWindow)
	s.mu.Unlock()
	return s.browserStatus(now)
}

func (s *jobStore) restarting(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Before(s.restartUntil)
}

func (s *jobStore) browserStatus(now time.Time) model.BrowserStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	alive := !now.Before(s.restartUntil)
	st := model.BrowserStatus{
		ConnectionHealth:    model.HealthStable,
		BrowserRestartCount: s.restarts,
		BrowserAlive:        &alive,
	}
	if !alive {
		st.ConnectionHealth = model.HealthBrowserRestarting
	}
	if !s.lastRestart.IsZero() {
		st.LastRestart = s.lastRestart.UTC().Format(time.RFC3339)
	}
	return st
}

func documentName(rec *jobRecord) string {
	return rec.id + ".pdf"
}
