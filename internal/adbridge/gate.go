package adbridge

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tinytelemetry/mcqpdf/internal/model"
)

// NoticeLevel is the severity of a user-facing notice.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a transient message for the UI.
type Notice struct {
	Level   NoticeLevel
	Message string
	At      time.Time
}

// Callbacks are invoked when the corresponding host event is drained.
// Any field may be nil.
type Callbacks struct {
	OnFeatureUnlocked   func()
	OnFeatureUsed       func()
	OnDownloadAdWatched func(url, filename string)
	OnAdError           func(message string)
}

// Gate applies the client's fail-open policy on top of a Bridge: a broken
// bridge never blocks the user, it only downgrades to browser behaviour.
type Gate struct {
	bridge Bridge
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	callbacks Callbacks
	unlocked  bool
	status    model.AdStatus
	notice    *Notice
}

// NewGate wraps bridge. A nil bridge is treated as Browser.
func NewGate(bridge Bridge, logger *zap.Logger) *Gate {
	if bridge == nil {
		bridge = Browser{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	mode := "browser"
	if bridge.Hosted() {
		mode = "host"
	}
	logger.Info("ad bridge initialized", zap.String("mode", mode))
	return &Gate{bridge: bridge, logger: logger, now: time.Now}
}

// SetCallbacks replaces the registered event callbacks.
func (g *Gate) SetCallbacks(cb Callbacks) {
	g.mu.Lock()
	g.callbacks = cb
	g.mu.Unlock()
}

// Hosted reports whether a host bridge is present.
func (g *Gate) Hosted() bool { return g.bridge.Hosted() }

// RequestFeature asks the host for a rewarded ad. It returns true when the
// user now has to watch an ad before the feature becomes available.
func (g *Gate) RequestFeature(ctx context.Context) bool {
	if !g.bridge.Hosted() {
		return false
	}
	if err := g.bridge.RequestFeature(ctx); err != nil {
		g.logger.Error("request feature failed", zap.Error(err))
		g.notify(NoticeWarning, "Unable to show ad. Feature available anyway.")
		return false
	}
	return true
}

// CheckUnlocked reports whether the image format may be used. Bridge
// errors allow it.
func (g *Gate) CheckUnlocked(ctx context.Context) bool {
	if !g.bridge.Hosted() {
		return true
	}
	ok, err := g.bridge.CheckUnlocked(ctx)
	if err != nil {
		g.logger.Error("check unlocked failed", zap.Error(err))
		return true
	}
	g.mu.Lock()
	g.unlocked = ok
	g.mu.Unlock()
	return ok
}

// ConsumeUnlock spends the unlock before an image-format job starts.
func (g *Gate) ConsumeUnlock(ctx context.Context) {
	if !g.bridge.Hosted() {
		return
	}
	if err := g.bridge.ConsumeUnlock(ctx); err != nil {
		g.logger.Error("consume unlock failed", zap.Error(err))
		return
	}
	g.mu.Lock()
	g.unlocked = false
	g.mu.Unlock()
}

// RequestGatedDownload offers a download to the host. false means the
// caller must download directly.
func (g *Gate) RequestGatedDownload(ctx context.Context, url, filename string) bool {
	if !g.bridge.Hosted() {
		return false
	}
	handled, err := g.bridge.RequestGatedDownload(ctx, url, filename)
	if err != nil {
		g.logger.Error("gated download failed", zap.String("filename", filename), zap.Error(err))
		g.notify(NoticeWarning, "Unable to show ad. Starting download anyway.")
		return false
	}
	return handled
}

// Refresh polls the host for its ad status and dispatches queued events.
func (g *Gate) Refresh(ctx context.Context) {
	status, err := g.bridge.Status(ctx)
	if err != nil {
		g.logger.Error("ad status failed", zap.Error(err))
		status = model.AdStatus{AdSystemReady: false, Error: err.Error()}
	}
	g.mu.Lock()
	g.status = status
	g.mu.Unlock()

	events, err := g.bridge.Events(ctx)
	if err != nil {
		g.logger.Warn("draining ad events failed", zap.Error(err))
		return
	}
	for _, ev := range events {
		g.dispatch(ev)
	}
}

// Status returns the ad status from the latest Refresh.
func (g *Gate) Status() model.AdStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Unlocked returns the last known unlock flag.
func (g *Gate) Unlocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unlocked
}

// Notice returns the most recent notice, if any.
func (g *Gate) Notice() (Notice, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.notice == nil {
		return Notice{}, false
	}
	return *g.notice, true
}

func (g *Gate) dispatch(ev Event) {
	g.mu.Lock()
	cb := g.callbacks
	g.mu.Unlock()

	switch ev.Kind {
	case EventFeatureUnlocked:
		g.mu.Lock()
		g.unlocked = true
		g.mu.Unlock()
		g.notify(NoticeSuccess, "Screenshot feature unlocked! You can now generate high-quality image PDFs.")
		if cb.OnFeatureUnlocked != nil {
			cb.OnFeatureUnlocked()
		}
	case EventFeatureUsed:
		g.mu.Lock()
		g.unlocked = false
		g.mu.Unlock()
		g.notify(NoticeInfo, "Screenshot feature used. Watch another ad to use it again.")
		if cb.OnFeatureUsed != nil {
			cb.OnFeatureUsed()
		}
	case EventDownloadAdWatched:
		g.notify(NoticeSuccess, "Ad watched! Your download is ready.")
		if cb.OnDownloadAdWatched != nil {
			cb.OnDownloadAdWatched(ev.URL, ev.Filename)
		}
	case EventAdError:
		g.notify(NoticeWarning, "Ad not available: "+ev.Message)
		if cb.OnAdError != nil {
			cb.OnAdError(ev.Message)
		}
	default:
		g.logger.Warn("unknown ad event", zap.String("kind", string(ev.Kind)))
	}
}

func (g *Gate) notify(level NoticeLevel, msg string) {
	g.mu.Lock()
	g.notice = &Notice{Level: level, Message: msg, At: g.now()}
	g.mu.Unlock()
}
