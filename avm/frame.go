package avm

import "fmt"

// FrameKind tags a node in the execution tree.
type FrameKind uint8

const (
	FrameTransactionGroup FrameKind = iota
	FrameTransaction
	FrameLogicSig
	FrameAppCall
)

func (k FrameKind) String() string {
	switch k {
	case FrameTransactionGroup:
		return "TransactionGroup"
	case FrameTransaction:
		return "Transaction"
	case FrameLogicSig:
		return "LogicSig"
	case FrameAppCall:
		return "AppCall"
	default:
		return "Unknown"
	}
}

// Frame is a node in the execution tree built once at load time and never
// mutated afterward (spec.md §3).
type Frame struct {
	Kind FrameKind

	// Program is set for LogicSig/AppCall frames: the hash of the TEAL
	// being executed by this frame.
	Program ProgramHash
	hasProgram bool

	// Events is the flattened, contiguous opcode event sequence for a
	// LogicSig/AppCall frame. Empty for Group/Transaction frames.
	Events []OpcodeEvent

	// Children are nested frames: the per-transaction frames of a Group,
	// the LogicSig/AppCall of a Transaction, or the inner Transaction
	// group(s) spawned by an AppCall.
	Children []*Frame

	// Parent is nil only for the root TransactionGroup.
	Parent *Frame

	// TxnIndex is this frame's index within its parent's Children, used
	// for presentation (Transaction (0), Transaction (1), ...) and for
	// locating this transaction's JSON position in the pseudo-source.
	TxnIndex int

	// GroupPath identifies this frame's transaction-group ancestry as a
	// sequence of transaction indexes from the root, mirroring
	// simulation.TxnPath: e.g. [0, 1] is the second inner txn of the
	// first txn of the root group.
	GroupPath []int

	// SpawnedByFrame/SpawnedByEvent locate the AppCall event that produced
	// this TransactionGroup frame, nil/-1 for the overall root group. Used
	// by the cursor to compute step-out targets without re-walking the
	// tree from scratch on every request.
	SpawnedByFrame *Frame
	SpawnedByEvent int

	// globalPos[i] is this frame's event i's position in the execution
	// tree's flattened depth-first event order (see flattenPositions),
	// filled in once by BuildExecutionTree.
	globalPos []int
}

// FirstEventIndex and LastEventIndex give the inclusive [first, last] span
// of this frame's own Events slice (spec.md §3's "span"); for a frame with
// no events this returns (0, -1), an empty range.
func (f *Frame) FirstEventIndex() int { return 0 }
func (f *Frame) LastEventIndex() int  { return len(f.Events) - 1 }

// BuildExecutionTree constructs the nested program-execution frame tree
// (C3) from a loaded TraceAssets, then flattens it into the depth-first
// event order the stepping cursor (C5) walks. Implements spec.md §4.3.
func BuildExecutionTree(assets *TraceAssets) (*Frame, []Position, error) {
	root := &Frame{Kind: FrameTransactionGroup, SpawnedByEvent: -1}
	if err := buildGroup(root, assets.raw.TxnGroups, nil); err != nil {
		return nil, nil, err
	}
	positions := flattenPositions(root)
	return root, positions, nil
}

func buildGroup(parent *Frame, groups []rawTxnGroupResult, path []int) error {
	// spec.md models one top-level TxnGroupResult list but an AppCall's
	// inner-trace is itself a TxnGroupResult-shaped group: both are
	// represented the same way here, so this helper is reentrant.
	if len(groups) != 1 {
		return &BadTraceError{Field: "txn-groups", Reason: fmt.Sprintf("expected exactly one group at this level, got %d", len(groups))}
	}
	group := groups[0]
	for i, txnResult := range group.TxnResults {
		txnPath := append(append([]int{}, path...), i)
		txn := &Frame{Kind: FrameTransaction, Parent: parent, TxnIndex: i, GroupPath: txnPath}
		parent.Children = append(parent.Children, txn)
		if txnResult.ExecTrace == nil {
			continue
		}
		if err := buildTxnExecution(txn, txnResult.ExecTrace, txnPath); err != nil {
			return err
		}
	}
	return nil
}

func buildTxnExecution(txn *Frame, t *rawExecTrace, path []int) error {
	if len(t.LogicSigTrace) > 0 {
		lsig, err := buildProgramFrame(txn, FrameLogicSig, t.LogicSigHash, t.LogicSigTrace)
		if err != nil {
			return err
		}
		txn.Children = append(txn.Children, lsig)
	}
	programTrace := t.ApprovalProgramTrace
	programHash := t.ApprovalProgramHash
	if len(programTrace) == 0 {
		programTrace = t.ClearStateProgramTrace
		programHash = t.ClearStateProgramHash
	}
	if len(programTrace) > 0 {
		app, err := buildProgramFrame(txn, FrameAppCall, programHash, programTrace)
		if err != nil {
			return err
		}
		txn.Children = append(txn.Children, app)
		if len(t.InnerTrace) > 0 {
			// Each event's SpawnedInners lists the subset of t.InnerTrace it
			// submitted (algorand's OpcodeTraceUnit.SpawnedInners
			// semantics): a run of itxn_submit calls can each contribute a
			// distinct slice of the flat InnerTrace array, executed in
			// order. One TransactionGroup frame is built per spawning
			// event so step-in from that event descends into exactly the
			// inner transactions it produced, not the whole array.
			for i := range app.Events {
				var indexes []int
				if len(t.ApprovalProgramTrace) > 0 {
					indexes = t.ApprovalProgramTrace[i].SpawnedInners
				} else {
					indexes = t.ClearStateProgramTrace[i].SpawnedInners
				}
				if len(indexes) == 0 {
					continue
				}
				slice := make([]rawExecTrace, len(indexes))
				for j, idx := range indexes {
					if idx < 0 || idx >= len(t.InnerTrace) {
						return &BadTraceError{Field: "spawned-inners", Reason: fmt.Sprintf("index %d out of range", idx)}
					}
					slice[j] = t.InnerTrace[idx]
				}
				innerGroup := &Frame{Kind: FrameTransactionGroup, Parent: app, SpawnedByFrame: app, SpawnedByEvent: i}
				app.Children = append(app.Children, innerGroup)
				if err := buildGroup(innerGroup, []rawTxnGroupResult{{TxnResults: innerTraceToTxnResults(slice)}}, path); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// innerTraceToTxnResults adapts the recursive []rawExecTrace shape of
// inner-trace into the TxnResult-list shape buildGroup expects, since an
// inner transaction group carries exactly one exec-trace per inner txn.
func innerTraceToTxnResults(traces []rawExecTrace) []rawTxnResult {
	out := make([]rawTxnResult, len(traces))
	for i := range traces {
		t := traces[i]
		out[i] = rawTxnResult{ExecTrace: &t}
	}
	return out
}

func buildProgramFrame(parent *Frame, kind FrameKind, hash []byte, trace []rawOpcodeEvent) (*Frame, error) {
	f := &Frame{Kind: kind, Parent: parent}
	if len(hash) == 32 {
		copy(f.Program[:], hash)
		f.hasProgram = true
	}
	f.Events = make([]OpcodeEvent, len(trace))
	for i, e := range trace {
		ev, err := e.toEvent()
		if err != nil {
			return nil, err
		}
		f.Events[i] = ev
	}
	return f, nil
}

// HasProgram reports whether this frame carries a program hash (true for
// LogicSig/AppCall frames with at least one traced event).
func (f *Frame) HasProgram() bool { return f.hasProgram }

// EventSpawnsInner reports whether the event at index i on this frame
// spawns an inner transaction group, and if so returns the TransactionGroup
// child frame built specifically for that spawning event.
func (f *Frame) EventSpawnsInner(i int) (*Frame, bool) {
	if i < 0 || i >= len(f.Events) || len(f.Events[i].SpawnedInners) == 0 {
		return nil, false
	}
	for _, c := range f.Children {
		if c.Kind == FrameTransactionGroup && c.SpawnedByFrame == f && c.SpawnedByEvent == i {
			return c, true
		}
	}
	return nil, false
}
