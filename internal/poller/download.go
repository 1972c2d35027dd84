package poller

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// ErrNoDocument is returned by Download before the job has produced a PDF.
var ErrNoDocument = errors.New("no document to download yet")

// nameSeparators matches runs of whitespace and path separators in a topic.
var nameSeparators = regexp.MustCompile(`[\s/\\]+`)

// DownloadResult describes where a document went.
type DownloadResult struct {
	// Path is the local file written, empty when the host handled it.
	Path          string
	HandledByHost bool
	Bytes         int64
	URL           string
}

// DownloadFilename is the name offered for a finished document, for
// example "SSC_World_War_II_MCQs.pdf". The result is a single path
// element: separators in the topic become underscores.
func DownloadFilename(r Request) string {
	topic := nameSeparators.ReplaceAllString(strings.TrimSpace(r.Topic), "_")
	return filepath.Base(fmt.Sprintf("%s_%s_MCQs.pdf", r.ExamType, topic))
}

// Download offers the finished document to the ad host first and falls
// back to fetching it into dir.
func (s *Session) Download(ctx context.Context, dir string) (DownloadResult, error) {
	snap := s.Snapshot()
	if snap.DownloadURL == "" || snap.Job == nil || snap.Job.PDFURL == "" {
		return DownloadResult{}, ErrNoDocument
	}

	name := DownloadFilename(snap.Request)
	res := DownloadResult{URL: snap.DownloadURL}

	if s.gate.RequestGatedDownload(ctx, snap.DownloadURL, name) {
		s.logger.Info("download handled by host", zap.String("filename", name))
		res.HandledByHost = true
		return res, nil
	}

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return res, fmt.Errorf("create download dir: %w", err)
	}

	path := filepath.Join(dir, name)
	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return res, fmt.Errorf("create %s: %w", tmp, err)
	}

	n, err := s.api.Download(ctx, snap.Job.PDFURL, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return res, err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return res, fmt.Errorf("rename download: %w", err)
	}

	s.logger.Info("document saved", zap.String("path", path), zap.Int64("bytes", n))
	res.Path = path
	res.Bytes = n
	return res, nil
}
