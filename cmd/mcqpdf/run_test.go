package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAdCallbacksLogEvents(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	cb := adCallbacks(zap.New(core))

	cb.OnFeatureUnlocked()
	cb.OnDownloadAdWatched("http://localhost:8001/files/a.pdf", "SSC_Heart_MCQs.pdf")
	cb.OnAdError("no fill")

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)
	assert.Equal(t, "screenshot feature unlocked", entries[0].Message)
	assert.Equal(t, "SSC_Heart_MCQs.pdf", entries[1].ContextMap()["filename"])
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "no fill", entries[2].ContextMap()["message"])
}
