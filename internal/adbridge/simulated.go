package adbridge

import (
	"context"
	"sync"
	"time"

	"github.com/tinytelemetry/mcqpdf/internal/model"
)

// SimulatedHost is an in-memory host used by the development server.
// A requested feature unlocks after UnlockDelay, as if the user had
// watched the rewarded ad.
type SimulatedHost struct {
	UnlockDelay     time.Duration
	HandleDownloads bool

	mu       sync.Mutex
	unlocked bool
	pending  []Event
	timer    *time.Timer
}

var _ Bridge = (*SimulatedHost)(nil)

// NewSimulatedHost creates a host that unlocks after delay.
func NewSimulatedHost(delay time.Duration) *SimulatedHost {
	return &SimulatedHost{UnlockDelay: delay}
}

func (h *SimulatedHost) Hosted() bool { return true }

func (h *SimulatedHost) RequestFeature(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer != nil {
		h.timer.Stop()
	}
	h.timer = time.AfterFunc(h.UnlockDelay, func() {
		h.mu.Lock()
		h.unlocked = true
		h.pending = append(h.pending, Event{Kind: EventFeatureUnlocked})
		h.mu.Unlock()
	})
	return nil
}

func (h *SimulatedHost) CheckUnlocked(context.Context) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unlocked, nil
}

func (h *SimulatedHost) ConsumeUnlock(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unlocked {
		h.unlocked = false
		h.pending = append(h.pending, Event{Kind: EventFeatureUsed})
	}
	return nil
}

func (h *SimulatedHost) RequestGatedDownload(_ context.Context, url, filename string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = append(h.pending, Event{Kind: EventDownloadAdWatched, URL: url, Filename: filename})
	return h.HandleDownloads, nil
}

func (h *SimulatedHost) Status(context.Context) (model.AdStatus, error) {
	return model.AdStatus{AdSystemReady: true}, nil
}

func (h *SimulatedHost) Events(context.Context) ([]Event, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.pending
	h.pending = nil
	return out, nil
}

// Close stops a pending unlock timer.
func (h *SimulatedHost) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}
