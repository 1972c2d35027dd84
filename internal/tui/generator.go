package tui

import (
	"context"

	"github.com/tinytelemetry/mcqpdf/internal/poller"
)

// Generator is the job lifecycle the TUI drives. *poller.Session
// implements it.
type Generator interface {
	Submit(ctx context.Context, req poller.Request) error
	Snapshot() poller.Snapshot
	Reset()
	Download(ctx context.Context, dir string) (poller.DownloadResult, error)
}

var _ Generator = (*poller.Session)(nil)

type submitDoneMsg struct{ err error }

type downloadDoneMsg struct {
	res poller.DownloadResult
	err error
}

type unlockCheckedMsg struct{}
