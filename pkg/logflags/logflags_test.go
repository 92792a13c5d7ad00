package logflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetFlags() {
	dap, trace, sourcemap, state, cursor = false, false, false, false, false
}

func TestSetupRequiresLogForLogOutput(t *testing.T) {
	defer resetFlags()
	err := Setup(false, "dap", "")
	require.ErrorIs(t, err, errLogstrWithoutLog)
}

func TestSetupDefaultsToDAP(t *testing.T) {
	defer resetFlags()
	require.NoError(t, Setup(true, "", ""))
	assert.True(t, DAP())
}

func TestSetupEnablesNamedComponents(t *testing.T) {
	defer resetFlags()
	require.NoError(t, Setup(true, "trace,cursor", ""))
	assert.False(t, DAP())
	assert.True(t, trace)
	assert.True(t, cursor)
	assert.False(t, sourcemap)
	assert.False(t, state)
}

func TestMakeLoggerRespectsEnabled(t *testing.T) {
	enabled := makeLogger(true, nil)
	assert.Equal(t, "debug", enabled.Logger.Level.String())
	disabled := makeLogger(false, nil)
	assert.Equal(t, "panic", disabled.Logger.Level.String())
}
