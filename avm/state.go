package avm

import "github.com/algorand/avm-replay-dap/pkg/logflags"

// AppState is the reconstructed global/local/box state for one application.
type AppState struct {
	Global *ByteMap
	Local  map[string]*ByteMap // account address -> local state
	Box    *ByteMap
}

func newAppState() *AppState {
	return &AppState{Global: NewByteMap(), Local: make(map[string]*ByteMap), Box: NewByteMap()}
}

func (a *AppState) localFor(account string) *ByteMap {
	m, ok := a.Local[account]
	if !ok {
		m = NewByteMap()
		a.Local[account] = m
	}
	return m
}

// ReconstructedState is the C4 projection at a single cursor position
// (spec.md §3 / §4.4).
type ReconstructedState struct {
	Stack   []Value
	Scratch map[uint8]Value // sparse; zero-value slots omitted
	Apps    map[uint64]*AppState
}

func newReconstructedState() *ReconstructedState {
	return &ReconstructedState{
		Scratch: make(map[uint8]Value),
		Apps:    make(map[uint64]*AppState),
	}
}

func (s *ReconstructedState) appFor(id uint64) *AppState {
	a, ok := s.Apps[id]
	if !ok {
		a = newAppState()
		s.Apps[id] = a
	}
	return a
}

func (s *ReconstructedState) applyDelta(d StateDelta) {
	app := s.appFor(d.AppID)
	key := string(d.Key)
	switch d.Op {
	case DeltaGlobalWrite:
		app.Global.Set(key, valueBytes(d.Value))
	case DeltaGlobalDelete:
		app.Global.Delete(key)
	case DeltaLocalWrite:
		app.localFor(d.Account).Set(key, valueBytes(d.Value))
	case DeltaLocalDelete:
		app.localFor(d.Account).Delete(key)
	case DeltaBoxWrite:
		app.Box.Set(key, valueBytes(d.Value))
	case DeltaBoxDelete:
		app.Box.Delete(key)
	}
}

// valueBytes stores a Value in a ByteMap. State values are TealValues (uint
// or bytes); to keep ByteMap's contract (byte keys -> byte values) simple,
// every value gets a 1-byte kind prefix: 0 followed by the raw bytes for a
// bytes-kind value, 1 followed by the 8-byte big-endian encoding for a
// uint-kind value. Callers read values back through bytesToValue (via
// AppGlobal or DecodeStateValue).
func valueBytes(v Value) []byte {
	if v.Kind == KindBytes {
		out := make([]byte, len(v.Bytes)+1)
		out[0] = 0
		copy(out[1:], v.Bytes)
		return out
	}
	out := make([]byte, 9)
	out[0] = 1
	u := v.Uint
	for i := 0; i < 8; i++ {
		out[8-i] = byte(u)
		u >>= 8
	}
	return out
}

func bytesToValue(b []byte) Value {
	if len(b) == 0 {
		return Bytes(nil)
	}
	if b[0] == 1 {
		var u uint64
		for i := 1; i < len(b) && i <= 9; i++ {
			u = u<<8 | uint64(b[i])
		}
		return Uint(u)
	}
	return Bytes(b[1:])
}

// DecodeStateValue decodes a ByteMap entry back into the tagged Value it was
// stored from, for presentation layers that walk a ByteMap's entries
// directly instead of going through AppGlobal.
func DecodeStateValue(b []byte) Value { return bytesToValue(b) }

// AppGlobal returns the decoded Value for a global-state key, if present.
func (s *ReconstructedState) AppGlobal(appID uint64, key []byte) (Value, bool) {
	a, ok := s.Apps[appID]
	if !ok {
		return Value{}, false
	}
	b, ok := a.Global.Get(string(key))
	if !ok {
		return Value{}, false
	}
	return bytesToValue(b), true
}

// walkState performs the pre-order, depth-first traversal matching real AVM
// execution order (spec.md §4.4), applying state deltas into acc for every
// event up to and including (targetFrame, targetIndex), then stopping. Stack
// and scratch are intentionally not touched here: they reset at frame entry
// and are reconstructed separately, locally, for the target frame only.
func walkState(frame *Frame, targetFrame *Frame, targetIndex int, acc *ReconstructedState) (stopped bool) {
	switch frame.Kind {
	case FrameTransactionGroup, FrameTransaction:
		for _, child := range frame.Children {
			if walkState(child, targetFrame, targetIndex, acc) {
				return true
			}
		}
		return false
	default: // LogicSig, AppCall
		for i, ev := range frame.Events {
			for _, d := range ev.StateDeltas {
				acc.applyDelta(d)
			}
			if frame == targetFrame && i == targetIndex {
				return true
			}
			if child, ok := frame.EventSpawnsInner(i); ok {
				if walkState(child, targetFrame, targetIndex, acc) {
					return true
				}
			}
		}
		return false
	}
}

// Reconstruct produces the ReconstructedState at the leaf (frame, eventIndex)
// position, per the algorithm in spec.md §4.4: the projection is a pure
// function of (root, frame, eventIndex), so equal cursors always yield equal
// states (invariant 1 in spec.md §8).
func Reconstruct(root *Frame, frame *Frame, eventIndex int) *ReconstructedState {
	logger := logflags.StateLogger()
	state := newReconstructedState()
	walkState(root, frame, eventIndex, state)

	if eventIndex >= 0 {
		for i := 0; i <= eventIndex && i < len(frame.Events); i++ {
			ev := frame.Events[i]
			if int(ev.StackPopCount) > len(state.Stack) {
				state.Stack = nil
			} else {
				state.Stack = state.Stack[:len(state.Stack)-int(ev.StackPopCount)]
			}
			state.Stack = append(state.Stack, ev.StackAdditions...)
			for _, w := range ev.ScratchWrites {
				if w.Value.IsZero() {
					delete(state.Scratch, w.Slot)
				} else {
					state.Scratch[w.Slot] = w.Value
				}
			}
		}
	}
	logger.WithField("events", eventIndex+1).Debug("reconstructed state")
	return state
}
