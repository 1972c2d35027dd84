// Package adbridge models the host platform's ad bridge as an injected
// capability. Outside a host app the Browser bridge allows everything.
package adbridge

import (
	"context"

	"github.com/tinytelemetry/mcqpdf/internal/model"
)

// EventKind identifies a host-side ad event.
type EventKind string

const (
	EventFeatureUnlocked   EventKind = "feature_unlocked"
	EventFeatureUsed       EventKind = "feature_used"
	EventDownloadAdWatched EventKind = "download_ad_watched"
	EventAdError           EventKind = "ad_error"
)

// Event is a notification queued by the host until the client drains it.
type Event struct {
	Kind     EventKind `json:"kind"`
	URL      string    `json:"url,omitempty"`
	Filename string    `json:"filename,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// Bridge is the method set a host platform exposes to the client.
type Bridge interface {
	// Hosted reports whether a real host is on the other side.
	Hosted() bool
	// RequestFeature asks the host to show a rewarded ad that unlocks the
	// image format.
	RequestFeature(ctx context.Context) error
	CheckUnlocked(ctx context.Context) (bool, error)
	// ConsumeUnlock spends a previously earned unlock.
	ConsumeUnlock(ctx context.Context) error
	// RequestGatedDownload hands a download to the host. It returns true
	// when the host takes over the download.
	RequestGatedDownload(ctx context.Context, url, filename string) (bool, error)
	Status(ctx context.Context) (model.AdStatus, error)
	// Events drains notifications queued since the previous call.
	Events(ctx context.Context) ([]Event, error)
}

// Browser is the bridge used when no host is present.
type Browser struct{}

var _ Bridge = Browser{}

func (Browser) Hosted() bool                                { return false }
func (Browser) RequestFeature(context.Context) error        { return nil }
func (Browser) CheckUnlocked(context.Context) (bool, error) { return true, nil }
func (Browser) ConsumeUnlock(context.Context) error         { return nil }

func (Browser) RequestGatedDownload(context.Context, string, string) (bool, error) {
	return false, nil
}

func (Browser) Status(context.Context) (model.AdStatus, error) {
	return model.AdStatus{AdSystemReady: false, BrowserMode: true}, nil
}

func (Browser) Events(context.Context) ([]Event, error) { return nil, nil }
