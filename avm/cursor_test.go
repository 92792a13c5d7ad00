package avm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorLaunchStopOnEntry(t *testing.T) {
	hash := testHash(1)
	_, root, positions := singleAppCallAssets(hash, opcodeEvents(3))
	c := NewCursor(root, positions, nil)

	c.Launch(true)
	assert.Equal(t, StateStopped, c.State())
	assert.Equal(t, StopEntry, c.StopReason())
	pos, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, 0, pos.Index)
}

func TestCursorLaunchRunsToEndWithoutStopOnEntry(t *testing.T) {
	hash := testHash(1)
	_, root, positions := singleAppCallAssets(hash, opcodeEvents(3))
	c := NewCursor(root, positions, nil)

	c.Launch(false)
	assert.Equal(t, StateTerminated, c.State())
	assert.True(t, c.AtEnd())
}

func TestCursorStepInAdvancesOneEvent(t *testing.T) {
	hash := testHash(1)
	_, root, positions := singleAppCallAssets(hash, opcodeEvents(3))
	c := NewCursor(root, positions, nil)
	c.Launch(true)

	c.StepIn()
	pos, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, 1, pos.Index)
	assert.Equal(t, StopStep, c.StopReason())

	c.StepIn()
	c.StepIn()
	assert.Equal(t, StateTerminated, c.State(), "stepping past the last event terminates the session")
}

func TestCursorStepBackMirrorsStepIn(t *testing.T) {
	hash := testHash(1)
	_, root, positions := singleAppCallAssets(hash, opcodeEvents(3))
	c := NewCursor(root, positions, nil)
	c.Launch(true)
	c.StepIn()
	c.StepIn()

	c.StepBack()
	pos, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, 1, pos.Index)

	c.StepBack()
	c.StepBack()
	assert.True(t, c.AtStart())
	assert.Equal(t, StateStopped, c.State())
	assert.Equal(t, StopEntry, c.StopReason())
}

// TestCursorStepOverSkipsSpawnedSubtree exercises stepping over an
// itxn_submit event: StepOver must land on the next event of the *same*
// frame, not descend into the inner group the way StepIn does.
func TestCursorStepOverSkipsSpawnedSubtree(t *testing.T) {
	hash := testHash(5)
	innerHash := testHash(6)
	events := opcodeEvents(2)
	events[0].SpawnedInners = []int{0}
	raw := &rawSimulateResponse{
		TxnGroups: []rawTxnGroupResult{{
			TxnResults: []rawTxnResult{{
				ExecTrace: &rawExecTrace{
					ApprovalProgramTrace: events,
					ApprovalProgramHash:  hash[:],
					InnerTrace: []rawExecTrace{{
						ApprovalProgramTrace: opcodeEvents(2),
						ApprovalProgramHash:  innerHash[:],
					}},
				},
			}},
		}},
	}
	assets := &TraceAssets{
		Sources: map[ProgramHash]*ProgramSource{
			hash:      newProgramSource(hash, "outer.teal", 2),
			innerHash: newProgramSource(innerHash, "inner.teal", 2),
		},
		raw: raw,
	}
	root, positions, err := BuildExecutionTree(assets)
	require.NoError(t, err)
	require.Len(t, positions, 4) // outer[0], inner[0], inner[1], outer[1]

	c := NewCursor(root, positions, nil)
	c.Launch(true)
	outer := root.Children[0].Children[0]

	c.StepOver()
	pos, ok := c.Current()
	require.True(t, ok)
	assert.Same(t, outer, pos.Frame, "step-over stays in the outer frame")
	assert.Equal(t, 1, pos.Index)

	// But StepIn from the start does descend into the inner group.
	c2 := NewCursor(root, positions, nil)
	c2.Launch(true)
	c2.StepIn()
	pos2, ok := c2.Current()
	require.True(t, ok)
	assert.NotSame(t, outer, pos2.Frame)
}

func TestCursorStepOutReturnsAfterSpawningEvent(t *testing.T) {
	hash := testHash(7)
	innerHash := testHash(8)
	events := opcodeEvents(2)
	events[0].SpawnedInners = []int{0}
	raw := &rawSimulateResponse{
		TxnGroups: []rawTxnGroupResult{{
			TxnResults: []rawTxnResult{{
				ExecTrace: &rawExecTrace{
					ApprovalProgramTrace: events,
					ApprovalProgramHash:  hash[:],
					InnerTrace: []rawExecTrace{{
						ApprovalProgramTrace: opcodeEvents(1),
						ApprovalProgramHash:  innerHash[:],
					}},
				},
			}},
		}},
	}
	assets := &TraceAssets{
		Sources: map[ProgramHash]*ProgramSource{
			hash:      newProgramSource(hash, "outer.teal", 2),
			innerHash: newProgramSource(innerHash, "inner.teal", 1),
		},
		raw: raw,
	}
	root, positions, err := BuildExecutionTree(assets)
	require.NoError(t, err)

	c := NewCursor(root, positions, nil)
	c.Launch(true)
	c.StepIn() // descend into the inner group's one event

	outer := root.Children[0].Children[0]
	c.StepOut()
	pos, ok := c.Current()
	require.True(t, ok)
	assert.Same(t, outer, pos.Frame)
	assert.Equal(t, 1, pos.Index, "step-out lands on the event after the one that spawned the inner group")
}

func TestCursorContinueStopsAtVerifiedBreakpoint(t *testing.T) {
	hash := testHash(1)
	assets, root, positions := singleAppCallAssets(hash, opcodeEvents(3))
	bt := NewBreakpointTable(assets)
	bt.SetFile("program.teal", []struct {
		Line   int
		Column int
		HasCol bool
	}{{Line: 2, HasCol: false}}) // pc 1 sits on line 2 (simpleSourceMap: line = pc+1)

	c := NewCursor(root, positions, bt)
	c.Launch(true)
	c.Continue()

	assert.Equal(t, StateStopped, c.State())
	assert.Equal(t, StopBreakpoint, c.StopReason())
	pos, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, 1, pos.Index)
}

func TestCursorContinueTerminatesWithNoMatch(t *testing.T) {
	hash := testHash(1)
	_, root, positions := singleAppCallAssets(hash, opcodeEvents(2))
	c := NewCursor(root, positions, nil)
	c.Launch(true)
	c.Continue()
	assert.Equal(t, StateTerminated, c.State())
}

func TestCursorReverseContinueStopsAtEntryWhenNoEarlierBreakpoint(t *testing.T) {
	hash := testHash(1)
	_, root, positions := singleAppCallAssets(hash, opcodeEvents(3))
	c := NewCursor(root, positions, nil)
	c.Launch(true)
	c.StepIn()
	c.StepIn()

	c.ReverseContinue()
	assert.Equal(t, StateStopped, c.State())
	assert.Equal(t, StopEntry, c.StopReason())
	assert.True(t, c.AtStart())
}
