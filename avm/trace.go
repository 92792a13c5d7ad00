package avm

import (
	"crypto/sha512"
	"encoding/json"
	"fmt"
)

// ProgramHash is the SHA-512/256 digest of a program's bytecode, used to key
// TraceAssets.Sources and to correlate trace events back to source.
type ProgramHash [32]byte

func hashProgram(b []byte) ProgramHash {
	return sha512.Sum512_256(b)
}

// AppStateKind distinguishes the three kinds of application state a Delta
// can touch.
type AppStateKind uint8

const (
	AppStateGlobal AppStateKind = iota
	AppStateLocal
	AppStateBox
)

// DeltaOp is the exhaustive tagged variant for a single state-delta record,
// replacing the free-form {op, kind, ...} JSON shape from the trace with a
// closed set the reconstructor can switch over exhaustively.
type DeltaOp uint8

const (
	DeltaGlobalWrite DeltaOp = iota
	DeltaGlobalDelete
	DeltaLocalWrite
	DeltaLocalDelete
	DeltaBoxWrite
	DeltaBoxDelete
)

// StateDelta is one upsert/delete against global, local, or box state,
// produced by a single opcode.
type StateDelta struct {
	Op      DeltaOp
	AppID   uint64
	Key     []byte
	Value   Value // zero value for delete ops
	Account string // Algorand address; only meaningful for Local ops
}

// ScratchWrite is a write to one scratch slot.
type ScratchWrite struct {
	Slot  uint8
	Value Value
}

// OpcodeEvent is a single VM step record: the state of the world
// immediately after one opcode finished executing.
type OpcodeEvent struct {
	PC             uint64
	StackPopCount  uint64
	StackAdditions []Value
	ScratchWrites  []ScratchWrite
	StateDeltas    []StateDelta
	// SpawnedInners holds indexes into the enclosing exec trace's inner-trace
	// array; non-empty only for opcodes that submit inner transactions
	// (itxn_submit).
	SpawnedInners []int
}

// ProgramSource is the decoded TEAL source and its source map for one
// program hash.
type ProgramSource struct {
	Hash     ProgramHash
	Filename string
	Text     string
	Map      *SourceMap
}

// TraceAssets is the immutable root shared by every other component: the
// loaded simulation response plus a program-hash-keyed source index.
type TraceAssets struct {
	Sources map[ProgramHash]*ProgramSource
	// Pretty is the pretty-printed JSON of the raw simulation response,
	// used to drive the synthetic transaction-group-N.json pseudo-source.
	Pretty []byte
	raw    *rawSimulateResponse
}

// --- Wire JSON shapes -------------------------------------------------
//
// These mirror the simulate-response / sources-descriptor shapes described
// in spec.md §6. []byte fields decode from base64 for free via encoding/json
// (mirroring how algod's generated AvmValue model represents byte values).

type rawSimulateResponse struct {
	TxnGroups []rawTxnGroupResult `json:"txn-groups"`
}

type rawTxnGroupResult struct {
	TxnResults []rawTxnResult `json:"txn-results"`
}

type rawTxnResult struct {
	ExecTrace *rawExecTrace `json:"exec-trace,omitempty"`
}

type rawExecTrace struct {
	ApprovalProgramTrace  []rawOpcodeEvent `json:"approval-program-trace,omitempty"`
	ApprovalProgramHash   []byte           `json:"approval-program-hash,omitempty"`
	ClearStateProgramTrace []rawOpcodeEvent `json:"clear-state-program-trace,omitempty"`
	ClearStateProgramHash []byte           `json:"clear-state-program-hash,omitempty"`
	LogicSigTrace         []rawOpcodeEvent `json:"logic-sig-trace,omitempty"`
	LogicSigHash          []byte           `json:"logic-sig-hash,omitempty"`
	InnerTrace            []rawExecTrace   `json:"inner-trace,omitempty"`
}

type rawAvmValue struct {
	// Type follows basics.TealType: 0 = bytes, 1 = uint.
	Type  uint8   `json:"type"`
	Bytes []byte  `json:"bytes,omitempty"`
	Uint  *uint64 `json:"uint,omitempty"`
}

func (v rawAvmValue) toValue() Value {
	if v.Type == 1 {
		u := uint64(0)
		if v.Uint != nil {
			u = *v.Uint
		}
		return Uint(u)
	}
	return Bytes(v.Bytes)
}

type rawScratchChange struct {
	Slot     uint8       `json:"slot"`
	NewValue rawAvmValue `json:"new-value"`
}

type rawStateChange struct {
	Op      string      `json:"op"` // "write" | "delete"
	Kind    string      `json:"kind"` // "global" | "local" | "box"
	AppID   jsonUint64   `json:"app-id"`
	Key     []byte      `json:"key"`
	Value   rawAvmValue `json:"value"`
	Account string      `json:"account,omitempty"`
}

func (c rawStateChange) toDelta() (StateDelta, error) {
	var kind AppStateKind
	switch c.Kind {
	case "global":
		kind = AppStateGlobal
	case "local":
		kind = AppStateLocal
	case "box":
		kind = AppStateBox
	default:
		return StateDelta{}, &BadTraceError{Field: "state-changes.kind", Reason: fmt.Sprintf("unknown kind %q", c.Kind)}
	}
	isDelete := c.Op == "delete"
	if !isDelete && c.Op != "write" {
		return StateDelta{}, &BadTraceError{Field: "state-changes.op", Reason: fmt.Sprintf("unknown op %q", c.Op)}
	}
	var op DeltaOp
	switch {
	case kind == AppStateGlobal && !isDelete:
		op = DeltaGlobalWrite
	case kind == AppStateGlobal && isDelete:
		op = DeltaGlobalDelete
	case kind == AppStateLocal && !isDelete:
		op = DeltaLocalWrite
	case kind == AppStateLocal && isDelete:
		op = DeltaLocalDelete
	case kind == AppStateBox && !isDelete:
		op = DeltaBoxWrite
	case kind == AppStateBox && isDelete:
		op = DeltaBoxDelete
	}
	return StateDelta{
		Op:      op,
		AppID:   uint64(c.AppID),
		Key:     c.Key,
		Value:   c.Value.toValue(),
		Account: c.Account,
	}, nil
}

type rawOpcodeEvent struct {
	PC             jsonUint64         `json:"pc"`
	StackPopCount  uint64             `json:"stack-pop-count,omitempty"`
	StackAdditions []rawAvmValue      `json:"stack-additions,omitempty"`
	ScratchChanges []rawScratchChange `json:"scratch-changes,omitempty"`
	StateChanges   []rawStateChange   `json:"state-changes,omitempty"`
	SpawnedInners  []int              `json:"spawned-inners,omitempty"`
}

func (e rawOpcodeEvent) toEvent() (OpcodeEvent, error) {
	additions := make([]Value, len(e.StackAdditions))
	for i, a := range e.StackAdditions {
		additions[i] = a.toValue()
	}
	scratch := make([]ScratchWrite, len(e.ScratchChanges))
	for i, s := range e.ScratchChanges {
		scratch[i] = ScratchWrite{Slot: s.Slot, Value: s.NewValue.toValue()}
	}
	deltas := make([]StateDelta, len(e.StateChanges))
	for i, c := range e.StateChanges {
		d, err := c.toDelta()
		if err != nil {
			return OpcodeEvent{}, err
		}
		deltas[i] = d
	}
	return OpcodeEvent{
		PC:             uint64(e.PC),
		StackPopCount:  e.StackPopCount,
		StackAdditions: additions,
		ScratchWrites:  scratch,
		StateDeltas:    deltas,
		SpawnedInners:  e.SpawnedInners,
	}, nil
}

// jsonUint64 accepts both JSON numbers and JSON strings for values that may
// exceed the 2^53 float64-safe-integer boundary, per spec.md §4.1.
type jsonUint64 uint64

func (j *jsonUint64) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		var v uint64
		if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
			return fmt.Errorf("invalid numeric string %q: %w", s, err)
		}
		*j = jsonUint64(v)
		return nil
	}
	var v uint64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*j = jsonUint64(v)
	return nil
}

// rawSourcesDescriptor is the sources descriptor document from spec.md §6.
type rawSourcesDescriptor struct {
	Sources []rawSourceEntry `json:"txn-group-sources"`
}

type rawSourceEntry struct {
	Hash         []byte           `json:"hash"`
	Filename     string           `json:"filename"`
	SourceMapPath string          `json:"source-map-path,omitempty"`
	SourceMap    *rawSourceMapV3  `json:"source-map,omitempty"`
}
