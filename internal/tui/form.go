package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/mcqpdf/internal/adbridge"
	"github.com/tinytelemetry/mcqpdf/internal/model"
	"github.com/tinytelemetry/mcqpdf/internal/poller"
)

type formField int

const (
	fieldTopic formField = iota
	fieldExam
	fieldFormat
	fieldCount
)

// FormDefaults preselects the exam type and format.
type FormDefaults struct {
	ExamType  model.ExamType
	PDFFormat model.PDFFormat
}

// FormPage collects the topic, exam type and PDF format.
type FormPage struct {
	ctx    context.Context
	gen    Generator
	gate   *adbridge.Gate
	keys   KeyMap
	now    func() time.Time
	tickID int

	topic  textinput.Model
	focus  formField
	exam   int
	format int

	snap  poller.Snapshot
	local string
}

// NewFormPage creates the topic form.
func NewFormPage(ctx context.Context, gen Generator, gate *adbridge.Gate, defaults FormDefaults) *FormPage {
	if gate == nil {
		gate = adbridge.NewGate(nil, nil)
	}
	ti := textinput.New()
	ti.Placeholder = "e.g., Heart, Physics, Mathematics"
	ti.CharLimit = 120
	ti.Width = 40
	ti.Prompt = "› "
	ti.Focus()

	p := &FormPage{
		ctx:   ctx,
		gen:   gen,
		gate:  gate,
		keys:  DefaultKeyMap(),
		now:   time.Now,
		topic: ti,
	}
	for i, e := range model.ExamTypes {
		if e == defaults.ExamType {
			p.exam = i
		}
	}
	if defaults.PDFFormat == model.FormatImage {
		p.format = 1
	}
	return p
}

var formats = []model.PDFFormat{model.FormatText, model.FormatImage}

func (p *FormPage) ID() string { return PageForm }

func (p *FormPage) Init() tea.Cmd {
	p.tickID++
	p.snap = p.gen.Snapshot()
	return tea.Batch(textinput.Blink, uiTick(PageForm, p.tickID), p.checkUnlock())
}

func (p *FormPage) examType() model.ExamType { return model.ExamTypes[p.exam] }

func (p *FormPage) pdfFormat() model.PDFFormat { return formats[p.format] }

// request returns what would be submitted.
func (p *FormPage) request() poller.Request {
	return poller.Request{
		Topic:     p.topic.Value(),
		ExamType:  p.examType(),
		PDFFormat: p.pdfFormat(),
	}
}

func (p *FormPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case uiTickMsg:
		if msg.page != PageForm || msg.id != p.tickID {
			return nil, nil
		}
		p.snap = p.gen.Snapshot()
		return uiTick(PageForm, p.tickID), nil

	case unlockCheckedMsg:
		return nil, nil

	case tea.KeyMsg:
		return p.handleKey(msg)
	}

	if p.focus == fieldTopic {
		var cmd tea.Cmd
		p.topic, cmd = p.topic.Update(msg)
		return cmd, nil
	}
	return nil, nil
}

func (p *FormPage) handleKey(msg tea.KeyMsg) (tea.Cmd, *PageNav) {
	switch {
	case key.Matches(msg, p.keys.ForceQuit):
		return tea.Quit, nil
	case key.Matches(msg, p.keys.Submit):
		return p.submit()
	case key.Matches(msg, p.keys.NextField):
		p.setFocus((p.focus + 1) % fieldCount)
		return nil, nil
	case key.Matches(msg, p.keys.PrevField):
		p.setFocus((p.focus + fieldCount - 1) % fieldCount)
		return nil, nil
	}

	switch p.focus {
	case fieldExam:
		if key.Matches(msg, p.keys.Left, p.keys.Right) {
			p.exam = (p.exam + 1) % len(model.ExamTypes)
		}
		return nil, nil
	case fieldFormat:
		if key.Matches(msg, p.keys.Left, p.keys.Right) {
			p.format = (p.format + 1) % len(formats)
			return p.checkUnlock(), nil
		}
		return nil, nil
	}

	p.local = ""
	var cmd tea.Cmd
	p.topic, cmd = p.topic.Update(msg)
	return cmd, nil
}

func (p *FormPage) setFocus(f formField) {
	p.focus = f
	if f == fieldTopic {
		p.topic.Focus()
	} else {
		p.topic.Blur()
	}
}

// checkUnlock refreshes the gate's cached unlock state when the image
// format is selected under a host.
func (p *FormPage) checkUnlock() tea.Cmd {
	if p.pdfFormat() != model.FormatImage || !p.gate.Hosted() {
		return nil
	}
	ctx, gate := p.ctx, p.gate
	return func() tea.Msg {
		gate.CheckUnlocked(ctx)
		return unlockCheckedMsg{}
	}
}

func (p *FormPage) submit() (tea.Cmd, *PageNav) {
	if strings.TrimSpace(p.topic.Value()) == "" {
		p.local = poller.ErrTopicRequired.Error()
		return nil, nil
	}
	if p.gen.Snapshot().Health == model.HealthError {
		p.local = "Connection error. Reset or wait for the backend to recover."
		return nil, nil
	}
	p.local = ""

	req := p.request()
	ctx, gen := p.ctx, p.gen
	cmd := func() tea.Msg {
		return submitDoneMsg{err: gen.Submit(ctx, req)}
	}
	return cmd, &PageNav{PageID: PageJob, Params: req}
}

// adRequired reports whether submitting now would ask for an ad.
func (p *FormPage) adRequired() bool {
	return p.pdfFormat() == model.FormatImage && p.gate.Hosted() && !p.gate.Unlocked()
}

func (p *FormPage) View(width, height int) string {
	var b strings.Builder

	b.WriteString(renderHeader(p.examType(), p.gate))
	b.WriteString("\n\n")
	b.WriteString(renderConnectionBar(p.snap, width))
	b.WriteString("\n\n")

	b.WriteString(p.fieldLabel(fieldTopic, `Enter Topic (e.g., "Heart", "President", "Bharatanatyam")`))
	b.WriteString("\n")
	b.WriteString(p.topic.View())
	b.WriteString("\n\n")

	b.WriteString(p.fieldLabel(fieldExam, "Select Exam Type"))
	b.WriteString("\n")
	b.WriteString(renderChoice(examLabels(), p.exam, p.focus == fieldExam))
	b.WriteString("\n\n")

	b.WriteString(p.fieldLabel(fieldFormat, "Select PDF Format"))
	b.WriteString("\n")
	b.WriteString(renderChoice([]string{"Text Form (PDF with text)", "Image Form"}, p.format, p.focus == fieldFormat))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(formatDescription(p.pdfFormat(), p.gate.Hosted(), p.gate.Unlocked())))
	b.WriteString("\n\n")

	if msg := p.errorText(); msg != "" {
		b.WriteString(errorStyle.Render(msg))
		b.WriteString("\n\n")
	}
	if p.adRequired() {
		b.WriteString(warningStyle.Render("High-quality screenshot feature requires watching a short ad. Press enter to watch the ad and unlock this feature."))
		b.WriteString("\n\n")
	}

	action := fmt.Sprintf("Generate %s MCQ PDF (%s Format)", p.examType(), formatLabel(p.pdfFormat()))
	if p.adRequired() {
		action += " - Watch Ad"
	}
	b.WriteString(focusStyle.Render("[enter] " + action))
	b.WriteString("\n")

	if n := renderNotice(p.gate, p.now()); n != "" {
		b.WriteString("\n")
		b.WriteString(n)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(renderHelp(p.keys.NextField, p.keys.Left, p.keys.Submit, p.keys.ForceQuit))

	return lipgloss.NewStyle().MaxWidth(max(width, 1)).Render(b.String())
}

// errorText prefers a local validation message over the session's.
func (p *FormPage) errorText() string {
	if p.local != "" {
		return p.local
	}
	return p.snap.Error
}

func (p *FormPage) fieldLabel(f formField, text string) string {
	if p.focus == f {
		return focusStyle.Render(text)
	}
	return labelStyle.Render(text)
}

func examLabels() []string {
	out := make([]string, len(model.ExamTypes))
	for i, e := range model.ExamTypes {
		out[i] = string(e)
	}
	return out
}

func renderChoice(options []string, selected int, focused bool) string {
	parts := make([]string, len(options))
	for i, o := range options {
		switch {
		case i == selected && focused:
			parts[i] = focusStyle.Render("(•) " + o)
		case i == selected:
			parts[i] = labelStyle.Render("(•) " + o)
		default:
			parts[i] = mutedStyle.Render("( ) " + o)
		}
	}
	return strings.Join(parts, "   ")
}
