package avm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildExecutionTreeFlatOrder(t *testing.T) {
	hash := testHash(1)
	_, root, positions := singleAppCallAssets(hash, opcodeEvents(3))

	require.Len(t, positions, 3)
	for i, p := range positions {
		assert.Equal(t, i, p.Index)
		assert.Equal(t, hash, p.Frame.Program)
	}
	require.Len(t, root.Children, 1)
	txn := root.Children[0]
	assert.Equal(t, FrameTransaction, txn.Kind)
	require.Len(t, txn.Children, 1)
	app := txn.Children[0]
	assert.Equal(t, FrameAppCall, app.Kind)
	assert.True(t, app.HasProgram())
	assert.Equal(t, hash, app.Program)
}

func TestEventSpawnsInnerFindsMatchingChild(t *testing.T) {
	hash := testHash(2)
	innerHash := testHash(3)
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
	// flattened order: outer event 0, inner event 0, outer event 1.
	require.Len(t, positions, 3)

	app := root.Children[0].Children[0]
	child, ok := app.EventSpawnsInner(0)
	require.True(t, ok)
	assert.Equal(t, FrameTransactionGroup, child.Kind)
	assert.Same(t, app, child.SpawnedByFrame)
	assert.Equal(t, 0, child.SpawnedByEvent)

	_, ok = app.EventSpawnsInner(1)
	assert.False(t, ok, "event 1 did not spawn anything")
}

func TestFrameNameDefaults(t *testing.T) {
	hash := testHash(4)
	_, root, _ := singleAppCallAssets(hash, opcodeEvents(1))
	assert.Equal(t, FrameTransactionGroup, root.Kind)
	assert.Nil(t, root.SpawnedByFrame)
}
