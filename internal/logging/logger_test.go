package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestGet_DefaultsToNop(t *testing.T) {
	SetLogger(zap.NewNop(), nil)
	l := Get(CategoryDispatch)
	require.NotNil(t, l)
	// Must not panic even without Initialize.
	l.Info("noop")
}

func TestGet_CategoryFiltering(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(core), map[Category]bool{CategoryCompose: true})
	defer SetLogger(zap.NewNop(), nil)

	Get(CategoryCompose).Info("kept")
	Get(CategoryDispatch).Info("dropped")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Message)
	assert.Equal(t, string(CategoryCompose), entries[0].LoggerName)
}

func TestGet_CachesPerCategory(t *testing.T) {
	SetLogger(zap.NewNop(), nil)
	assert.Same(t, Get(CategoryRegistry), Get(CategoryRegistry))
}
