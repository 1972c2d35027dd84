package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/mcqpdf/internal/adbridge"
	"github.com/tinytelemetry/mcqpdf/internal/model"
	"github.com/tinytelemetry/mcqpdf/internal/poller"
)

// JobPage shows a running or finished job.
type JobPage struct {
	ctx         context.Context
	gen         Generator
	gate        *adbridge.Gate
	keys        KeyMap
	downloadDir string
	now         func() time.Time
	tickID      int

	spinner  spinner.Model
	progress progress.Model

	snap        poller.Snapshot
	req         poller.Request
	downloading bool
	result      string
	resultErr   bool
}

// NewJobPage creates the job view. Downloads are written to downloadDir.
func NewJobPage(ctx context.Context, gen Generator, gate *adbridge.Gate, downloadDir string) *JobPage {
	if gate == nil {
		gate = adbridge.NewGate(nil, nil)
	}
	return &JobPage{
		ctx:         ctx,
		gen:         gen,
		gate:        gate,
		keys:        DefaultKeyMap(),
		downloadDir: downloadDir,
		now:         time.Now,
		spinner:     newSpinner(),
		progress:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (p *JobPage) ID() string { return PageJob }

// SetParams receives the submitted request from the form.
func (p *JobPage) SetParams(params interface{}) {
	if req, ok := params.(poller.Request); ok {
		p.req = req
	}
}

func (p *JobPage) Init() tea.Cmd {
	p.tickID++
	p.downloading = false
	p.result = ""
	p.resultErr = false
	p.snap = p.gen.Snapshot()
	return tea.Batch(uiTick(PageJob, p.tickID), p.spinner.Tick)
}

func (p *JobPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case uiTickMsg:
		if msg.page != PageJob || msg.id != p.tickID {
			return nil, nil
		}
		p.snap = p.gen.Snapshot()
		return uiTick(PageJob, p.tickID), nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return cmd, nil

	case submitDoneMsg:
		p.snap = p.gen.Snapshot()
		if rejected(msg.err) {
			return nil, &PageNav{PageID: PageForm}
		}
		return nil, nil

	case downloadDoneMsg:
		p.downloading = false
		p.resultErr = msg.err != nil
		switch {
		case msg.err != nil:
			p.result = "Download failed: " + msg.err.Error()
		case msg.res.HandledByHost:
			p.result = "Watch a short ad, then your PDF will be ready in the Downloads section!"
		default:
			p.result = fmt.Sprintf("Saved %s (%d bytes)", msg.res.Path, msg.res.Bytes)
		}
		return nil, nil

	case tea.WindowSizeMsg:
		p.progress.Width = min(max(msg.Width-20, 10), 60)
		return nil, nil

	case tea.KeyMsg:
		return p.handleKey(msg)
	}
	return nil, nil
}

// rejected reports whether Submit refused the request before any job
// existed, so the user belongs back on the form.
func rejected(err error) bool {
	return errors.Is(err, poller.ErrTopicRequired) ||
		errors.Is(err, poller.ErrAdRequired) ||
		errors.Is(err, poller.ErrInvalidRequest)
}

func (p *JobPage) handleKey(msg tea.KeyMsg) (tea.Cmd, *PageNav) {
	switch {
	case key.Matches(msg, p.keys.ForceQuit), key.Matches(msg, p.keys.Quit):
		return tea.Quit, nil
	case key.Matches(msg, p.keys.Reset):
		p.gen.Reset()
		p.snap = p.gen.Snapshot()
		return nil, &PageNav{PageID: PageForm}
	case key.Matches(msg, p.keys.Download):
		if p.downloading || p.snap.DownloadURL == "" {
			return nil, nil
		}
		p.downloading = true
		p.result = ""
		ctx, gen, dir := p.ctx, p.gen, p.downloadDir
		return func() tea.Msg {
			res, err := gen.Download(ctx, dir)
			return downloadDoneMsg{res: res, err: err}
		}, nil
	}
	return nil, nil
}

func (p *JobPage) request() poller.Request {
	if p.snap.Request.Topic != "" {
		return p.snap.Request
	}
	return p.req
}

func (p *JobPage) View(width, height int) string {
	req := p.request()
	exam := req.ExamType
	if exam == "" {
		exam = model.DefaultExamType
	}

	var b strings.Builder
	b.WriteString(renderHeader(exam, p.gate))
	b.WriteString("\n\n")
	b.WriteString(renderConnectionBar(p.snap, width))
	b.WriteString("\n\n")

	switch p.snap.Phase {
	case poller.PhaseSubmitting, poller.PhasePolling, poller.PhaseIdle:
		b.WriteString(p.viewGenerating(req, width))
	case poller.PhaseCompleted:
		b.WriteString(p.viewCompleted(req))
	case poller.PhaseFailed:
		b.WriteString(p.viewFailed())
	}

	if n := renderNotice(p.gate, p.now()); n != "" {
		b.WriteString("\n")
		b.WriteString(n)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	download := p.keys.Download
	download.SetEnabled(p.snap.DownloadURL != "")
	b.WriteString(renderHelp(download, p.keys.Reset, p.keys.Quit))

	return lipgloss.NewStyle().MaxWidth(max(width, 1)).Render(b.String())
}

func (p *JobPage) viewGenerating(req poller.Request, width int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Generating %s MCQ PDF (%s Format)...\n\n",
		p.spinner.View(), req.ExamType, formatLabel(req.PDFFormat))

	job := p.snap.Job
	if job == nil {
		b.WriteString(mutedStyle.Render("Starting job..."))
		b.WriteString("\n")
		return b.String()
	}

	status := lipgloss.NewStyle().Foreground(statusColor(job.Status)).Bold(true).Render(string(job.Status))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Status:"), status)
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Progress:"), job.Progress)

	if job.TotalLinks > 0 {
		b.WriteString("\n")
		fmt.Fprintf(&b, "Links processed: %d/%d   MCQs found: %d\n", job.ProcessedLinks, job.TotalLinks, job.MCQsFound)
		b.WriteString(p.progress.ViewAs(float64(job.ProgressPercent()) / 100))
		b.WriteString("\n\n")
		b.WriteString(renderCounters(*job, width))
		b.WriteString("\n")
	}

	switch p.snap.Health {
	case model.HealthBrowserRestarting:
		b.WriteString("\n")
		b.WriteString(warningStyle.Render("Smart Connection: Browser is restarting, processing will continue automatically..."))
		b.WriteString("\n")
	case model.HealthError:
		b.WriteString("\n")
		b.WriteString(warningStyle.Render("Smart Connection: Monitoring connection health..."))
		b.WriteString("\n")
	}
	return b.String()
}

func (p *JobPage) viewCompleted(req poller.Request) string {
	var b strings.Builder
	b.WriteString(successStyle.Bold(true).Render("PDF Generated Successfully!"))
	b.WriteString("\n")
	mcqs := 0
	if p.snap.Job != nil {
		mcqs = p.snap.Job.MCQsFound
	}
	fmt.Fprintf(&b, "Found %d %s MCQs related to %q\n", mcqs, req.ExamType, req.Topic)
	b.WriteString(mutedStyle.Render(fmt.Sprintf("Format: %s PDF", formatLabel(req.PDFFormat))))
	b.WriteString("\n")
	if p.snap.DownloadURL != "" {
		b.WriteString(mutedStyle.Render(p.snap.DownloadURL))
		b.WriteString("\n")
	}

	switch {
	case p.downloading:
		b.WriteString("\n")
		b.WriteString(p.spinner.View() + " Downloading...")
		b.WriteString("\n")
	case p.result != "":
		b.WriteString("\n")
		if p.resultErr {
			b.WriteString(errorStyle.Render(p.result))
		} else {
			b.WriteString(successStyle.Render(p.result))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (p *JobPage) viewFailed() string {
	var b strings.Builder
	b.WriteString(errorStyle.Bold(true).Render("Error Occurred"))
	b.WriteString("\n")
	msg := p.snap.Error
	if msg == "" {
		msg = "MCQ generation failed"
	}
	b.WriteString(errorStyle.Render(msg))
	b.WriteString("\n")
	return b.String()
}
