package avm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconstructAppliesDeltasUpToTarget(t *testing.T) {
	hash := testHash(11)
	raw := &rawSimulateResponse{
		TxnGroups: []rawTxnGroupResult{{
			TxnResults: []rawTxnResult{{
				ExecTrace: &rawExecTrace{
					ApprovalProgramTrace: []rawOpcodeEvent{
						{PC: 0},
						{PC: 1, StateChanges: []rawStateChange{
							{Op: "write", Kind: "global", AppID: 7, Key: []byte("k"), Value: rawAvmValue{Type: 1, Uint: uint64ptr(42)}},
						}},
						{PC: 2},
					},
					ApprovalProgramHash: hash[:],
				},
			}},
		}},
	}
	assets := &TraceAssets{
		Sources: map[ProgramHash]*ProgramSource{hash: newProgramSource(hash, "program.teal", 3)},
		raw:     raw,
	}
	root, _, err := BuildExecutionTree(assets)
	require.NoError(t, err)
	app := root.Children[0].Children[0]

	before := Reconstruct(root, app, 0)
	_, ok := before.AppGlobal(7, []byte("k"))
	assert.False(t, ok, "the write at event 1 has not happened yet at event 0")

	after := Reconstruct(root, app, 1)
	v, ok := after.AppGlobal(7, []byte("k"))
	require.True(t, ok)
	assert.Equal(t, Uint(42), v)
}

func uint64ptr(v uint64) *uint64 { return &v }

func TestReconstructStackAndScratch(t *testing.T) {
	hash := testHash(12)
	raw := &rawSimulateResponse{
		TxnGroups: []rawTxnGroupResult{{
			TxnResults: []rawTxnResult{{
				ExecTrace: &rawExecTrace{
					ApprovalProgramTrace: []rawOpcodeEvent{
						{PC: 0, StackAdditions: []rawAvmValue{{Type: 1, Uint: uint64ptr(5)}}},
						{PC: 1, StackAdditions: []rawAvmValue{{Type: 1, Uint: uint64ptr(6)}}, ScratchChanges: []rawScratchChange{
							{Slot: 3, NewValue: rawAvmValue{Type: 1, Uint: uint64ptr(99)}},
						}},
						{PC: 2, StackPopCount: 2, StackAdditions: []rawAvmValue{{Type: 1, Uint: uint64ptr(11)}}},
					},
					ApprovalProgramHash: hash[:],
				},
			}},
		}},
	}
	assets := &TraceAssets{
		Sources: map[ProgramHash]*ProgramSource{hash: newProgramSource(hash, "program.teal", 3)},
		raw:     raw,
	}
	root, _, err := BuildExecutionTree(assets)
	require.NoError(t, err)
	app := root.Children[0].Children[0]

	mid := Reconstruct(root, app, 1)
	require.Len(t, mid.Stack, 2)
	assert.Equal(t, Uint(5), mid.Stack[0])
	assert.Equal(t, Uint(6), mid.Stack[1])
	assert.Equal(t, Uint(99), mid.Scratch[3])

	final := Reconstruct(root, app, 2)
	require.Len(t, final.Stack, 1)
	assert.Equal(t, Uint(11), final.Stack[0])
}

func TestDecodeStateValueRoundTrips(t *testing.T) {
	m := NewByteMap()
	m.Set("k1", valueBytes(Uint(123)))
	m.Set("k2", valueBytes(Bytes([]byte("hello"))))

	b1, ok := m.Get("k1")
	require.True(t, ok)
	assert.Equal(t, Uint(123), DecodeStateValue(b1))

	b2, ok := m.Get("k2")
	require.True(t, ok)
	assert.Equal(t, Bytes([]byte("hello")), DecodeStateValue(b2))
}

func TestReconstructLocalAndBoxState(t *testing.T) {
	hash := testHash(13)
	raw := &rawSimulateResponse{
		TxnGroups: []rawTxnGroupResult{{
			TxnResults: []rawTxnResult{{
				ExecTrace: &rawExecTrace{
					ApprovalProgramTrace: []rawOpcodeEvent{
						{PC: 0, StateChanges: []rawStateChange{
							{Op: "write", Kind: "local", AppID: 1, Key: []byte("balance"), Account: "ADDR1",
								Value: rawAvmValue{Type: 1, Uint: uint64ptr(100)}},
							{Op: "write", Kind: "box", AppID: 1, Key: []byte("box1"),
								Value: rawAvmValue{Type: 0, Bytes: []byte("payload")}},
						}},
						{PC: 1, StateChanges: []rawStateChange{
							{Op: "delete", Kind: "local", AppID: 1, Key: []byte("balance"), Account: "ADDR1"},
						}},
					},
					ApprovalProgramHash: hash[:],
				},
			}},
		}},
	}
	assets := &TraceAssets{
		Sources: map[ProgramHash]*ProgramSource{hash: newProgramSource(hash, "program.teal", 2)},
		raw:     raw,
	}
	root, _, err := BuildExecutionTree(assets)
	require.NoError(t, err)
	app := root.Children[0].Children[0]

	afterWrite := Reconstruct(root, app, 0)
	appState := afterWrite.Apps[1]
	require.NotNil(t, appState)
	boxVal, ok := appState.Box.Get("box1")
	require.True(t, ok)
	assert.Equal(t, Bytes([]byte("payload")), DecodeStateValue(boxVal))
	localVal, ok := appState.Local["ADDR1"].Get("balance")
	require.True(t, ok)
	assert.Equal(t, Uint(100), DecodeStateValue(localVal))

	afterDelete := Reconstruct(root, app, 1)
	_, ok = afterDelete.Apps[1].Local["ADDR1"].Get("balance")
	assert.False(t, ok)
}
