package avm

import "github.com/algorand/avm-replay-dap/pkg/logflags"

// Position is one stop in the flattened, depth-first execution order: the
// leaf (LogicSig/AppCall) frame and the index into its own Events slice.
// spec.md §3 describes the Cursor as "a path from root to a leaf frame plus
// an index into that frame's opcode events" — Frame.Parent already encodes
// the path, so a Position is sufficient to name a cursor location.
type Position struct {
	Frame *Frame
	Index int
}

// flattenPositions walks the tree in the exact order the AVM executed it
// (depth-first, descending into an inner transaction group the instant the
// opcode that spawned it is reached) and records every leaf opcode event as
// one Position. It also fills in Frame.globalPos so StepIn/StepOver/StepOut
// can look up "this frame's event i" to "flat position" in O(1).
func flattenPositions(root *Frame) []Position {
	var positions []Position
	var walk func(f *Frame)
	walk = func(f *Frame) {
		switch f.Kind {
		case FrameTransactionGroup, FrameTransaction:
			for _, c := range f.Children {
				walk(c)
			}
		default: // LogicSig, AppCall
			f.globalPos = make([]int, len(f.Events))
			for i := range f.Events {
				f.globalPos[i] = len(positions)
				positions = append(positions, Position{Frame: f, Index: i})
				if child, ok := f.EventSpawnsInner(i); ok {
					walk(child)
				}
			}
		}
	}
	walk(root)
	return positions
}

// StopReason is the cause of a halt, paired with every Stopped state.
type StopReason uint8

const (
	StopEntry StopReason = iota
	StopStep
	StopBreakpoint
	StopException
)

func (r StopReason) String() string {
	switch r {
	case StopEntry:
		return "entry"
	case StopStep:
		return "step"
	case StopBreakpoint:
		return "breakpoint"
	case StopException:
		return "exception"
	default:
		return "unknown"
	}
}

// SessionState is the DAP session state machine from spec.md §4.5.
type SessionState uint8

const (
	StateUninitialized SessionState = iota
	StateConfiguring
	StateReadyToLaunch
	StateStopped
	StateRunning
	StateTerminated
)

// Cursor walks the flattened execution tree forward and backward at opcode,
// breakpoint, and frame granularity (C5). It owns no I/O and never blocks.
type Cursor struct {
	root      *Frame
	positions []Position
	pos       int // index into positions; -1 before first use

	breakpoints *BreakpointTable
	state       SessionState
	stopReason  StopReason
}

// NewCursor builds a cursor over an execution tree. The cursor starts
// unpositioned (ReadyToLaunch); call Launch to enter Stopped(entry) or
// Running.
func NewCursor(root *Frame, positions []Position, breakpoints *BreakpointTable) *Cursor {
	return &Cursor{root: root, positions: positions, pos: -1, breakpoints: breakpoints, state: StateReadyToLaunch}
}

// State reports the session state machine's current state.
func (c *Cursor) State() SessionState { return c.state }

// StopReason reports the reason for the current Stopped state (meaningless
// otherwise).
func (c *Cursor) StopReason() StopReason { return c.stopReason }

// AtEnd reports whether the cursor has run off the end of the trace.
func (c *Cursor) AtEnd() bool { return c.pos >= len(c.positions) }

// AtStart reports whether the cursor is positioned before the first event.
func (c *Cursor) AtStart() bool { return c.pos < 0 }

// Current returns the position the cursor currently occupies. Valid only
// when State() is StateStopped.
func (c *Cursor) Current() (Position, bool) {
	if c.pos < 0 || c.pos >= len(c.positions) {
		return Position{}, false
	}
	return c.positions[c.pos], true
}

// Launch transitions ReadyToLaunch -> Stopped(entry) | Running, matching
// the Launch(stopOnEntry) transition in spec.md §4.5.
func (c *Cursor) Launch(stopOnEntry bool) {
	if len(c.positions) == 0 {
		c.state = StateTerminated
		return
	}
	c.pos = 0
	if stopOnEntry {
		c.state = StateStopped
		c.stopReason = StopEntry
		return
	}
	c.Continue()
}

// StepIn advances to the immediately next opcode event, descending into a
// spawned inner-transaction group's first event if the current one spawned
// one, exactly like stepping to positions[pos+1] in the flattened order.
func (c *Cursor) StepIn() {
	logflags.CursorLogger().Debug("step-in")
	c.moveAndStop(c.pos+1, StopStep)
}

// StepBack (reverse step-in) is StepIn's mirror.
func (c *Cursor) StepBack() {
	logflags.CursorLogger().Debug("step-back")
	c.moveAndStop(c.pos-1, StopStep)
}

// StepOver advances within the current frame, skipping over any subtree
// spawned by the current event.
func (c *Cursor) StepOver() {
	logflags.CursorLogger().Debug("step-over")
	cur, ok := c.Current()
	if !ok {
		c.moveAndStop(c.pos+1, StopStep)
		return
	}
	c.moveAndStop(c.nextInFrame(cur.Frame, cur.Index), StopStep)
}

// StepOverBack mirrors StepOver in reverse: lands on the previous event of
// the current frame, skipping any subtree that event had spawned.
func (c *Cursor) StepOverBack() {
	logflags.CursorLogger().Debug("step-over-back")
	cur, ok := c.Current()
	if !ok {
		c.moveAndStop(c.pos-1, StopStep)
		return
	}
	c.moveAndStop(c.prevInFrame(cur.Frame, cur.Index), StopStep)
}

// StepOut advances until leaving the current frame.
func (c *Cursor) StepOut() {
	logflags.CursorLogger().Debug("step-out")
	cur, ok := c.Current()
	if !ok {
		return
	}
	target, ok := c.stepOutTarget(cur.Frame)
	if !ok {
		c.moveAndStop(len(c.positions), StopStep)
		return
	}
	c.moveAndStop(target, StopStep)
}

// StepOutBack mirrors StepOut in reverse: returns to the event that spawned
// the current frame's enclosing subtree.
func (c *Cursor) StepOutBack() {
	logflags.CursorLogger().Debug("step-out-back")
	cur, ok := c.Current()
	if !ok {
		return
	}
	owner := enclosingInnerGroup(cur.Frame)
	if owner == nil {
		c.moveAndStop(-1, StopStep)
		return
	}
	c.moveAndStop(owner.SpawnedByFrame.globalPos[owner.SpawnedByEvent], StopStep)
}

// nextInFrame finds the flat position of (frame, index+1), bubbling up
// through step-out targets when the frame has been exhausted.
func (c *Cursor) nextInFrame(frame *Frame, index int) int {
	if index+1 < len(frame.Events) {
		return frame.globalPos[index+1]
	}
	target, ok := c.stepOutTarget(frame)
	if !ok {
		return len(c.positions)
	}
	return target
}

// prevInFrame mirrors nextInFrame: the previous event of the same frame, or
// the position that entered this frame's subtree if we're at its first
// event.
func (c *Cursor) prevInFrame(frame *Frame, index int) int {
	if index > 0 {
		return frame.globalPos[index-1]
	}
	owner := enclosingInnerGroup(frame)
	if owner == nil {
		return -1
	}
	return owner.SpawnedByFrame.globalPos[owner.SpawnedByEvent]
}

// stepOutTarget finds the position immediately after the event that
// produced frame's enclosing subtree, recursing through ancestors whose own
// last event also spawned (so stepping out of a doubly-nested inner call
// bubbles all the way to a real next event, not just one level).
func (c *Cursor) stepOutTarget(frame *Frame) (int, bool) {
	owner := enclosingInnerGroup(frame)
	if owner == nil {
		return 0, false
	}
	ownerFrame, ownerEvent := owner.SpawnedByFrame, owner.SpawnedByEvent
	if ownerEvent+1 < len(ownerFrame.Events) {
		return ownerFrame.globalPos[ownerEvent+1], true
	}
	return c.stepOutTarget(ownerFrame)
}

// enclosingInnerGroup walks up the parent chain from frame to find the
// nearest TransactionGroup ancestor that was itself spawned by an AppCall
// event, i.e. the boundary frame whose SpawnedByFrame/SpawnedByEvent name
// the step-out target. Returns nil if frame's subtree is not nested inside
// any inner transaction group (it belongs to the top-level group).
func enclosingInnerGroup(frame *Frame) *Frame {
	for cur := frame.Parent; cur != nil; cur = cur.Parent {
		if cur.Kind == FrameTransactionGroup && cur.SpawnedByFrame != nil {
			return cur
		}
	}
	return nil
}

// Continue advances forward while no verified breakpoint matches, stopping
// at the first match or at end-of-trace.
func (c *Cursor) Continue() {
	logflags.CursorLogger().Debug("continue")
	for p := c.pos + 1; p < len(c.positions); p++ {
		if c.breakpoints != nil && c.breakpoints.Matches(c.positions[p]) {
			c.pos = p
			c.state = StateStopped
			c.stopReason = StopBreakpoint
			return
		}
	}
	c.pos = len(c.positions)
	c.state = StateTerminated
}

// ReverseContinue mirrors Continue: stops at the most recent breakpoint hit
// strictly before the starting cursor, or at the start of the trace.
func (c *Cursor) ReverseContinue() {
	logflags.CursorLogger().Debug("reverse-continue")
	for p := c.pos - 1; p >= 0; p-- {
		if c.breakpoints != nil && c.breakpoints.Matches(c.positions[p]) {
			c.pos = p
			c.state = StateStopped
			c.stopReason = StopBreakpoint
			return
		}
	}
	c.pos = -1
	c.state = StateStopped
	c.stopReason = StopEntry
}

// moveAndStop sets the cursor to position p and derives the resulting
// session state (Stopped/Terminated), promoting the stop reason to
// breakpoint if the landing spot matches a verified breakpoint.
func (c *Cursor) moveAndStop(p int, reason StopReason) {
	if p < -1 {
		p = -1
	}
	c.pos = p
	if p < 0 {
		c.state = StateStopped
		c.stopReason = StopEntry
		return
	}
	if p >= len(c.positions) {
		c.pos = len(c.positions)
		c.state = StateTerminated
		return
	}
	c.state = StateStopped
	c.stopReason = reason
	if c.breakpoints != nil && c.breakpoints.Matches(c.positions[p]) {
		c.stopReason = StopBreakpoint
	}
}
