package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/mcqpdf/internal/adbridge"
	"github.com/tinytelemetry/mcqpdf/internal/model"
	"github.com/tinytelemetry/mcqpdf/internal/poller"
)

type fakeGenerator struct {
	mu        sync.Mutex
	snap      poller.Snapshot
	submitted []poller.Request
	submitErr error
	resets    int
	downloads int
	result    poller.DownloadResult
}

func (f *fakeGenerator) Submit(_ context.Context, req poller.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, req)
	return f.submitErr
}

func (f *fakeGenerator) Snapshot() poller.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeGenerator) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.snap = poller.Snapshot{Health: model.HealthStable}
}

func (f *fakeGenerator) Download(context.Context, string) (poller.DownloadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads++
	return f.result, nil
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var (
	enterKey = tea.KeyMsg{Type: tea.KeyEnter}
	tabKey   = tea.KeyMsg{Type: tea.KeyTab}
	rightKey = tea.KeyMsg{Type: tea.KeyRight}
)

func newForm(gen *fakeGenerator) *FormPage {
	p := NewFormPage(context.Background(), gen, nil, FormDefaults{ExamType: model.ExamSSC, PDFFormat: model.FormatText})
	p.Init()
	return p
}

func TestFormSubmitNavigatesToJob(t *testing.T) {
	gen := &fakeGenerator{snap: poller.Snapshot{Health: model.HealthStable}}
	p := newForm(gen)

	p.Update(runes("Heart"))
	cmd, nav := p.Update(enterKey)
	require.NotNil(t, nav)
	assert.Equal(t, PageJob, nav.PageID)
	assert.Equal(t, poller.Request{Topic: "Heart", ExamType: model.ExamSSC, PDFFormat: model.FormatText}, nav.Params)

	require.NotNil(t, cmd)
	msg, ok := cmd().(submitDoneMsg)
	require.True(t, ok)
	assert.NoError(t, msg.err)
	require.Len(t, gen.submitted, 1)
	assert.Equal(t, "Heart", gen.submitted[0].Topic)
}

func TestFormBlankTopicStaysOnForm(t *testing.T) {
	gen := &fakeGenerator{}
	p := newForm(gen)

	p.Update(runes("   "))
	cmd, nav := p.Update(enterKey)
	assert.Nil(t, cmd)
	assert.Nil(t, nav)
	assert.Contains(t, p.View(100, 40), "Please enter a topic name")
	assert.Empty(t, gen.submitted)
}

func TestFormBlocksSubmitOnConnectionError(t *testing.T) {
	gen := &fakeGenerator{snap: poller.Snapshot{Health: model.HealthError}}
	p := newForm(gen)

	p.Update(runes("Heart"))
	_, nav := p.Update(enterKey)
	assert.Nil(t, nav)
	assert.Contains(t, p.View(100, 40), "Connection error")
}

func TestFormTogglesExamAndFormat(t *testing.T) {
	p := newForm(&fakeGenerator{})

	p.Update(tabKey)
	p.Update(rightKey)
	assert.Equal(t, model.ExamBPSC, p.examType())

	p.Update(tabKey)
	p.Update(rightKey)
	assert.Equal(t, model.FormatImage, p.pdfFormat())

	view := p.View(120, 40)
	assert.Contains(t, view, "BPSC-Focused MCQ Extractor")
	assert.Contains(t, view, "High-Quality Screenshots of MCQs (Available in browser)")
	assert.Contains(t, view, "Generate BPSC MCQ PDF (High-Quality Image Format)")
	assert.NotContains(t, view, "Watch Ad")
}

func TestFormIgnoresStaleTicks(t *testing.T) {
	p := newForm(&fakeGenerator{})

	cmd, _ := p.Update(uiTickMsg{page: PageForm, id: p.tickID - 1})
	assert.Nil(t, cmd)
	cmd, _ = p.Update(uiTickMsg{page: PageJob, id: p.tickID})
	assert.Nil(t, cmd)
	cmd, _ = p.Update(uiTickMsg{page: PageForm, id: p.tickID})
	assert.NotNil(t, cmd)
}

func newJob(gen *fakeGenerator) *JobPage {
	p := NewJobPage(context.Background(), gen, nil, "")
	p.SetParams(poller.Request{Topic: "Heart", ExamType: model.ExamSSC, PDFFormat: model.FormatText})
	p.Init()
	return p
}

func TestJobViewShowsRetryAndHealth(t *testing.T) {
	gen := &fakeGenerator{snap: poller.Snapshot{
		Phase: poller.PhasePolling,
		Job: &model.Job{
			ID: "abc123", Status: model.JobRunning, Progress: "Processing link 3",
			TotalLinks: 10, ProcessedLinks: 3, MCQsFound: 12,
		},
		Health:        model.HealthBrowserRestarting,
		BrowserStatus: &model.BrowserStatus{ConnectionHealth: model.HealthBrowserRestarting, BrowserRestartCount: 2},
		RetryInfo:     &model.RetryState{AttemptsMade: 3, MaxAttempts: 8, IsRetrying: true},
	}}
	p := newJob(gen)

	view := p.View(120, 50)
	assert.Contains(t, view, "Browser restarting...")
	assert.Contains(t, view, "Retrying (3/8)")
	assert.Contains(t, view, "Browser restarts: 2")
	assert.Contains(t, view, "Links processed: 3/10")
	assert.Contains(t, view, "MCQs found: 12")
	assert.Contains(t, view, "processing will continue automatically")
}

func TestJobViewFailed(t *testing.T) {
	gen := &fakeGenerator{snap: poller.Snapshot{
		Phase:  poller.PhaseFailed,
		Health: model.HealthError,
		Error:  "Failed to fetch job status after 9 attempts. Browser may be restarting.",
	}}
	p := newJob(gen)

	view := p.View(120, 50)
	assert.Contains(t, view, "Error Occurred")
	assert.Contains(t, view, "Failed to fetch job status after 9 attempts")
	assert.Contains(t, view, "Connection error")
}

func TestJobCompletedDownload(t *testing.T) {
	gen := &fakeGenerator{
		snap: poller.Snapshot{
			Phase:       poller.PhaseCompleted,
			Request:     poller.Request{Topic: "Heart", ExamType: model.ExamSSC, PDFFormat: model.FormatText},
			Job:         &model.Job{ID: "abc123", Status: model.JobCompleted, MCQsFound: 40, PDFURL: "/files/abc123.pdf"},
			Health:      model.HealthStable,
			DownloadURL: "http://localhost:8001/files/abc123.pdf",
		},
		result: poller.DownloadResult{Path: "/tmp/SSC_Heart_MCQs.pdf", Bytes: 1234},
	}
	p := newJob(gen)

	view := p.View(120, 50)
	assert.Contains(t, view, "PDF Generated Successfully!")
	assert.Contains(t, view, `Found 40 SSC MCQs related to "Heart"`)

	cmd, _ := p.Update(runes("d"))
	require.NotNil(t, cmd)
	again, _ := p.Update(runes("d"))
	assert.Nil(t, again, "second download while one is in flight")

	p.Update(cmd())
	assert.Equal(t, 1, gen.downloads)
	assert.Contains(t, p.View(120, 50), "Saved /tmp/SSC_Heart_MCQs.pdf (1234 bytes)")
}

func TestJobDownloadIgnoredWithoutDocument(t *testing.T) {
	gen := &fakeGenerator{snap: poller.Snapshot{Phase: poller.PhasePolling}}
	p := newJob(gen)

	cmd, _ := p.Update(runes("d"))
	assert.Nil(t, cmd)
	assert.Zero(t, gen.downloads)
}

func TestJobResetReturnsToForm(t *testing.T) {
	gen := &fakeGenerator{snap: poller.Snapshot{Phase: poller.PhasePolling}}
	p := newJob(gen)

	_, nav := p.Update(runes("r"))
	require.NotNil(t, nav)
	assert.Equal(t, PageForm, nav.PageID)
	assert.Equal(t, 1, gen.resets)
}

func TestJobRejectedSubmitReturnsToForm(t *testing.T) {
	p := newJob(&fakeGenerator{})

	_, nav := p.Update(submitDoneMsg{err: poller.ErrAdRequired})
	require.NotNil(t, nav)
	assert.Equal(t, PageForm, nav.PageID)

	_, nav = p.Update(submitDoneMsg{err: errors.New("boom")})
	assert.Nil(t, nav)
}

func TestAppRoutesBetweenPages(t *testing.T) {
	gen := &fakeGenerator{snap: poller.Snapshot{Health: model.HealthStable}}
	form := NewFormPage(context.Background(), gen, nil, FormDefaults{})
	job := NewJobPage(context.Background(), gen, nil, "")
	app := NewApp(form, job)
	app.Init()

	assert.Equal(t, PageForm, app.ActivePage())
	app.Update(runes("Heart"))
	app.Update(enterKey)
	assert.Equal(t, PageJob, app.ActivePage())
	assert.Equal(t, "Heart", job.req.Topic)

	app.Update(runes("r"))
	assert.Equal(t, PageForm, app.ActivePage())
}

func TestFormatDescription(t *testing.T) {
	assert.Equal(t, "Text-based PDF with clean formatting", formatDescription(model.FormatText, true, false))
	assert.Equal(t, "High-Quality Screenshots of MCQs (Watch ad to unlock)", formatDescription(model.FormatImage, true, false))
	assert.Equal(t, "High-Quality Screenshots of MCQs (Unlocked)", formatDescription(model.FormatImage, true, true))
	assert.Equal(t, "High-Quality Screenshots of MCQs (Available in browser)", formatDescription(model.FormatImage, false, false))
}

func TestHeaderShowsAdStatus(t *testing.T) {
	assert.NotContains(t, renderHeader(model.ExamSSC, adbridge.NewGate(nil, nil)), "Ad system")

	host := adbridge.NewSimulatedHost(time.Hour)
	t.Cleanup(host.Close)
	gate := adbridge.NewGate(host, nil)
	assert.Contains(t, renderHeader(model.ExamSSC, gate), "ads loading")

	gate.Refresh(context.Background())
	assert.Contains(t, renderHeader(model.ExamSSC, gate), "Ad system ready")

	assert.Contains(t, renderAdStatus(model.AdStatus{Error: "no fill"}), "Ad system unavailable: no fill")
}
