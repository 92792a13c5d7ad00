package dap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListConfig(t *testing.T) {
	cfg := defaultSessionConfig
	out := listConfig(&cfg)
	assert.Contains(t, out, "stackTraceDepth = 50")
	assert.Contains(t, out, "supportsInvalidatedEvent = false")
}

func TestConfigureSetInt(t *testing.T) {
	cfg := defaultSessionConfig
	out, err := configureSet(&cfg, "stackTraceDepth 10")
	require.NoError(t, err)
	assert.Contains(t, out, "stackTraceDepth = 10")
	assert.Equal(t, 10, cfg.StackTraceDepth)
}

func TestConfigureSetBool(t *testing.T) {
	cfg := defaultSessionConfig
	out, err := configureSet(&cfg, "supportsInvalidatedEvent true")
	require.NoError(t, err)
	assert.Contains(t, out, "supportsInvalidatedEvent = true")
	assert.True(t, cfg.SupportsInvalidatedEvent)
}

func TestConfigureSetUnknownField(t *testing.T) {
	cfg := defaultSessionConfig
	_, err := configureSet(&cfg, "doesNotExist 1")
	require.Error(t, err)
}

func TestConfigureSetBadValue(t *testing.T) {
	cfg := defaultSessionConfig
	_, err := configureSet(&cfg, "stackTraceDepth notanumber")
	require.Error(t, err)
}

func TestConfigureListSingleField(t *testing.T) {
	cfg := defaultSessionConfig
	out, err := configureSet(&cfg, "stackTraceDepth")
	require.NoError(t, err)
	assert.Equal(t, "stackTraceDepth = 50", out)
}
