package avm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetFileVerifiesAgainstSourceMap(t *testing.T) {
	hash := testHash(9)
	assets, _, _ := singleAppCallAssets(hash, opcodeEvents(3))
	bt := NewBreakpointTable(assets)

	resolved := bt.SetFile("program.teal", []struct {
		Line   int
		Column int
		HasCol bool
	}{
		{Line: 2, HasCol: false},
		{Line: 99, HasCol: false}, // no event maps to this line
	})

	require.Len(t, resolved, 2)
	assert.True(t, resolved[0].Verified)
	assert.False(t, resolved[1].Verified)
	assert.NotEqual(t, resolved[0].ID, resolved[1].ID)
}

func TestSetFileUnknownFileNeverVerifies(t *testing.T) {
	hash := testHash(9)
	assets, _, _ := singleAppCallAssets(hash, opcodeEvents(3))
	bt := NewBreakpointTable(assets)

	resolved := bt.SetFile("nonexistent.teal", []struct {
		Line   int
		Column int
		HasCol bool
	}{{Line: 1, HasCol: false}})

	require.Len(t, resolved, 1)
	assert.False(t, resolved[0].Verified)
}

func TestSetFileReplacesPriorBreakpoints(t *testing.T) {
	hash := testHash(9)
	assets, _, _ := singleAppCallAssets(hash, opcodeEvents(3))
	bt := NewBreakpointTable(assets)

	bt.SetFile("program.teal", []struct {
		Line   int
		Column int
		HasCol bool
	}{{Line: 1, HasCol: false}, {Line: 2, HasCol: false}})

	second := bt.SetFile("program.teal", []struct {
		Line   int
		Column int
		HasCol bool
	}{{Line: 3, HasCol: false}})

	require.Len(t, second, 1)
	assert.Equal(t, 3, second[0].Line)
}

func TestMatchesOnlyVerifiedBreakpoints(t *testing.T) {
	hash := testHash(9)
	assets, root, positions := singleAppCallAssets(hash, opcodeEvents(3))
	bt := NewBreakpointTable(assets)
	bt.SetFile("program.teal", []struct {
		Line   int
		Column int
		HasCol bool
	}{{Line: 99, HasCol: false}})
	_ = root

	assert.False(t, bt.Matches(positions[0]), "unverified breakpoints never match")
}

func TestMatchesRespectsColumnWhenGiven(t *testing.T) {
	hash := testHash(9)
	assets, _, positions := singleAppCallAssets(hash, opcodeEvents(3))
	bt := NewBreakpointTable(assets)
	bt.SetFile("program.teal", []struct {
		Line   int
		Column int
		HasCol bool
	}{{Line: 2, Column: 5, HasCol: true}})

	// simpleSourceMap places every pc at column 1, so a column-5 breakpoint
	// on the same line never verifies.
	assert.False(t, bt.Matches(positions[1]))
}
