package adbridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/mcqpdf/internal/model"
)

// brokenHost is a hosted bridge whose every call fails.
type brokenHost struct{}

var errBridge = errors.New("bridge unavailable")

func (brokenHost) Hosted() bool                                { return true }
func (brokenHost) RequestFeature(context.Context) error        { return errBridge }
func (brokenHost) CheckUnlocked(context.Context) (bool, error) { return false, errBridge }
func (brokenHost) ConsumeUnlock(context.Context) error         { return errBridge }
func (brokenHost) RequestGatedDownload(context.Context, string, string) (bool, error) {
	return false, errBridge
}
func (brokenHost) Status(context.Context) (model.AdStatus, error) {
	return model.AdStatus{}, errBridge
}
func (brokenHost) Events(context.Context) ([]Event, error) { return nil, errBridge }

func TestGate_BrowserAllowsEverything(t *testing.T) {
	g := NewGate(nil, nil)
	ctx := context.Background()

	assert.False(t, g.Hosted())
	assert.True(t, g.CheckUnlocked(ctx))
	assert.False(t, g.RequestFeature(ctx), "no ad is required in browser mode")
	assert.False(t, g.RequestGatedDownload(ctx, "http://x/files/a.pdf", "a.pdf"))
	g.ConsumeUnlock(ctx)

	g.Refresh(ctx)
	assert.Equal(t, model.AdStatus{BrowserMode: true}, g.Status())
	_, ok := g.Notice()
	assert.False(t, ok)
}

func TestGate_BrokenHostFailsOpen(t *testing.T) {
	g := NewGate(brokenHost{}, nil)
	ctx := context.Background()

	assert.True(t, g.CheckUnlocked(ctx))

	assert.False(t, g.RequestFeature(ctx))
	n, ok := g.Notice()
	require.True(t, ok)
	assert.Equal(t, NoticeWarning, n.Level)
	assert.Contains(t, n.Message, "Feature available anyway")

	assert.False(t, g.RequestGatedDownload(ctx, "u", "f.pdf"))
	n, _ = g.Notice()
	assert.Contains(t, n.Message, "Starting download anyway")

	g.Refresh(ctx)
	status := g.Status()
	assert.False(t, status.AdSystemReady)
	assert.Equal(t, errBridge.Error(), status.Error)
}

func TestGate_SimulatedUnlockFlow(t *testing.T) {
	host := NewSimulatedHost(0)
	defer host.Close()
	g := NewGate(host, nil)
	ctx := context.Background()

	unlocked := make(chan struct{}, 1)
	used := 0
	g.SetCallbacks(Callbacks{
		OnFeatureUnlocked: func() { unlocked <- struct{}{} },
		OnFeatureUsed:     func() { used++ },
	})

	require.True(t, g.Hosted())
	assert.False(t, g.CheckUnlocked(ctx))
	assert.True(t, g.RequestFeature(ctx))

	require.Eventually(t, func() bool {
		ok, _ := host.CheckUnlocked(ctx)
		return ok
	}, time.Second, 5*time.Millisecond)

	g.Refresh(ctx)
	select {
	case <-unlocked:
	default:
		t.Fatal("OnFeatureUnlocked not called")
	}
	assert.True(t, g.Unlocked())
	assert.True(t, g.Status().AdSystemReady)
	n, _ := g.Notice()
	assert.Equal(t, NoticeSuccess, n.Level)

	g.ConsumeUnlock(ctx)
	assert.False(t, g.Unlocked())
	g.Refresh(ctx)
	assert.Equal(t, 1, used)
	assert.False(t, g.CheckUnlocked(ctx))
}

func TestGate_DownloadEvents(t *testing.T) {
	host := NewSimulatedHost(time.Hour)
	host.HandleDownloads = true
	g := NewGate(host, nil)
	ctx := context.Background()

	var gotURL, gotName string
	var adErr string
	g.SetCallbacks(Callbacks{
		OnDownloadAdWatched: func(url, filename string) { gotURL, gotName = url, filename },
		OnAdError:           func(msg string) { adErr = msg },
	})

	assert.True(t, g.RequestGatedDownload(ctx, "http://b/files/x.pdf", "SSC_Heart_MCQs.pdf"))
	g.Refresh(ctx)
	assert.Equal(t, "http://b/files/x.pdf", gotURL)
	assert.Equal(t, "SSC_Heart_MCQs.pdf", gotName)

	g.dispatch(Event{Kind: EventAdError, Message: "no fill"})
	assert.Equal(t, "no fill", adErr)
	n, _ := g.Notice()
	assert.Equal(t, "Ad not available: no fill", n.Message)
}
