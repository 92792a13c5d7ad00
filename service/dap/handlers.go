package dap

import (
	"fmt"

	"github.com/algorand/avm-replay-dap/avm"
	"github.com/google/go-dap"
	"golang.org/x/exp/slices"
)

func (s *Server) requireLaunched(request dap.Request) bool {
	if s.cursor == nil {
		s.sendErrorResponse(request, NotYetInitialized, "Not yet initialized", "no trace has been loaded yet")
		return false
	}
	return true
}

// onSetBreakpointsRequest wires the request onto BreakpointTable.SetFile,
// verifying each against the named program's source map (C5).
func (s *Server) onSetBreakpointsRequest(request *dap.SetBreakpointsRequest) {
	if !s.requireLaunched(request.Request) {
		return
	}
	args := request.Arguments
	reqs := make([]struct {
		Line   int
		Column int
		HasCol bool
	}, len(args.Breakpoints))
	for i, b := range args.Breakpoints {
		reqs[i] = struct {
			Line   int
			Column int
			HasCol bool
		}{Line: b.Line, Column: b.Column, HasCol: b.Column > 0}
	}
	resolved := s.breakpoints.SetFile(args.Source.Path, reqs)

	response := &dap.SetBreakpointsResponse{Response: *newResponse(request.Request)}
	response.Body.Breakpoints = make([]dap.Breakpoint, len(resolved))
	for i, bp := range resolved {
		response.Body.Breakpoints[i] = dap.Breakpoint{
			Id:       bp.ID,
			Verified: bp.Verified,
			Line:     bp.Line,
			Column:   bp.Column,
			Source:   &args.Source,
		}
		if !bp.Verified {
			response.Body.Breakpoints[i].Message = "no opcode event in this trace maps to this line"
		}
	}
	s.send(response)
}

// onBreakpointLocationsRequest consults the named program's source map
// directly (spec.md §9's corrected semantics), rather than echoing back the
// requested line unconditionally.
func (s *Server) onBreakpointLocationsRequest(request *dap.BreakpointLocationsRequest) {
	if !s.requireLaunched(request.Request) {
		return
	}
	args := request.Arguments
	ps := s.breakpoints.ProgramSourceForPath(args.Source.Path)
	response := &dap.BreakpointLocationsResponse{Response: *newResponse(request.Request)}
	if ps == nil {
		s.send(response)
		return
	}
	endLine := args.EndLine
	if endLine == 0 {
		endLine = args.Line
	}
	for _, bl := range ps.Map.BreakpointLocations(args.Line, endLine) {
		response.Body.Breakpoints = append(response.Body.Breakpoints, dap.BreakpointLocation{Line: bl.Line, Column: bl.Column})
	}
	s.send(response)
}

func (s *Server) onContinueRequest(request *dap.ContinueRequest) {
	if !s.requireLaunched(request.Request) {
		return
	}
	s.cursor.Continue()
	s.refreshState()
	s.send(&dap.ContinueResponse{Response: *newResponse(request.Request)})
	s.emitStopOrTerminate(s.cursor.StopReason())
}

func (s *Server) onReverseContinueRequest(request *dap.ReverseContinueRequest) {
	if !s.requireLaunched(request.Request) {
		return
	}
	s.cursor.ReverseContinue()
	s.refreshState()
	s.send(&dap.ReverseContinueResponse{Response: *newResponse(request.Request)})
	s.emitStopOrTerminate(s.cursor.StopReason())
}

func (s *Server) onNextRequest(request *dap.NextRequest) {
	if !s.requireLaunched(request.Request) {
		return
	}
	s.cursor.StepOver()
	s.refreshState()
	s.send(&dap.NextResponse{Response: *newResponse(request.Request)})
	s.emitStopOrTerminate(s.cursor.StopReason())
}

func (s *Server) onStepInRequest(request *dap.StepInRequest) {
	if !s.requireLaunched(request.Request) {
		return
	}
	s.cursor.StepIn()
	s.refreshState()
	s.send(&dap.StepInResponse{Response: *newResponse(request.Request)})
	s.emitStopOrTerminate(s.cursor.StopReason())
}

func (s *Server) onStepOutRequest(request *dap.StepOutRequest) {
	if !s.requireLaunched(request.Request) {
		return
	}
	s.cursor.StepOut()
	s.refreshState()
	s.send(&dap.StepOutResponse{Response: *newResponse(request.Request)})
	s.emitStopOrTerminate(s.cursor.StopReason())
}

// onStepBackRequest maps DAP's single backward-stepping request onto the
// cursor's step-over mirror, since DAP has no separate reverse-step-into
// request; a reverse step-in is still exercised directly at the avm package
// level (Cursor.StepBack), just not surfaced as its own DAP verb.
func (s *Server) onStepBackRequest(request *dap.StepBackRequest) {
	if !s.requireLaunched(request.Request) {
		return
	}
	s.cursor.StepOverBack()
	s.refreshState()
	s.send(&dap.StepBackResponse{Response: *newResponse(request.Request)})
	s.emitStopOrTerminate(s.cursor.StopReason())
}

func (s *Server) onThreadsRequest(request *dap.ThreadsRequest) {
	response := &dap.ThreadsResponse{Response: *newResponse(request.Request)}
	if s.cursor != nil {
		response.Body.Threads = []dap.Thread{{Id: 1, Name: "group"}}
	}
	s.send(response)
}

// onStackTraceRequest renders the ancestor Frame chain (leaf first) as a
// DAP stack: program frames are positioned in their TEAL source, and every
// other frame in the synthetic pseudo-source (spec.md §4.6).
func (s *Server) onStackTraceRequest(request *dap.StackTraceRequest) {
	if !s.requireLaunched(request.Request) || s.current == nil {
		s.send(&dap.StackTraceResponse{Response: *newResponse(request.Request)})
		return
	}
	pos, _ := s.cursor.Current()

	var chain []*avm.Frame
	for f := pos.Frame; f != nil; f = f.Parent {
		chain = append(chain, f)
	}

	depth := s.cfg.StackTraceDepth
	if depth <= 0 || depth > len(chain) {
		depth = len(chain)
	}
	frames := make([]dap.StackFrame, 0, depth)
	for i := 0; i < depth; i++ {
		f := chain[i]
		frameID := s.stackFrameHandles.create(f)
		name := frameName(f)
		line, col := 1, 1
		// The event a program frame is "at" is pos.Index for the leaf frame
		// itself (i==0), or the event that spawned the next frame down the
		// chain for every ancestor program frame.
		eventIndex, hasEvent := -1, false
		switch {
		case i == 0:
			eventIndex, hasEvent = pos.Index, true
		case f.Kind == avm.FrameLogicSig || f.Kind == avm.FrameAppCall:
			if child := chain[i-1]; child.Kind == avm.FrameTransactionGroup && child.SpawnedByFrame == f {
				eventIndex, hasEvent = child.SpawnedByEvent, true
			}
		}
		if hasEvent && (f.Kind == avm.FrameLogicSig || f.Kind == avm.FrameAppCall) {
			if ps, ok := s.assets.Sources[f.Program]; ok && eventIndex >= 0 && eventIndex < len(f.Events) {
				if loc, ok := ps.Map.PCToLoc(f.Events[eventIndex].PC); ok {
					line, col = loc.Line, loc.Column
				}
				frames = append(frames, dap.StackFrame{
					Id:                          frameID,
					Name:                        name,
					Source:                      &dap.Source{Name: ps.Filename, Path: ps.Filename},
					Line:                        line,
					Column:                      col,
					InstructionPointerReference: fmt.Sprintf("%d", frameID),
				})
				continue
			}
		}
		jpos := transactionSourcePosition(s.assets, f.GroupPath)
		frames = append(frames, dap.StackFrame{
			Id:     frameID,
			Name:   name,
			Source: &dap.Source{Name: pseudoSourceName, Path: pseudoSourceName},
			Line:   jpos.Line,
			Column: jpos.Column,
		})
	}

	response := &dap.StackTraceResponse{Response: *newResponse(request.Request)}
	response.Body.StackFrames = frames
	response.Body.TotalFrames = len(chain)
	s.send(response)
}

func frameName(f *avm.Frame) string {
	switch f.Kind {
	case avm.FrameLogicSig:
		return "LogicSig"
	case avm.FrameAppCall:
		return "AppCall"
	case avm.FrameTransaction:
		return fmt.Sprintf("Transaction (%d)", f.TxnIndex)
	default:
		if f.SpawnedByFrame != nil {
			return fmt.Sprintf("Inner TransactionGroup (event %d)", f.SpawnedByEvent)
		}
		return "TransactionGroup"
	}
}

// onScopesRequest presents the two scopes from spec.md §4.6: "Execution
// State" (stack/scratch, only meaningful inside a program frame) and
// "On-chain State" (per-app global/local/box, always present once stopped).
func (s *Server) onScopesRequest(request *dap.ScopesRequest) {
	if !s.requireLaunched(request.Request) || s.current == nil {
		s.send(&dap.ScopesResponse{Response: *newResponse(request.Request)})
		return
	}
	v, ok := s.stackFrameHandles.get(request.Arguments.FrameId)
	if !ok {
		s.sendErrorResponse(request.Request, UnableToListScopes, "Unable to list scopes", "unknown frameId")
		return
	}
	frame := v.(*avm.Frame)

	response := &dap.ScopesResponse{Response: *newResponse(request.Request)}
	if frame.Kind == avm.FrameLogicSig || frame.Kind == avm.FrameAppCall {
		ref := s.variableHandles.create(executionStateNode{})
		response.Body.Scopes = append(response.Body.Scopes, dap.Scope{
			Name: "Execution State", VariablesReference: ref, Expensive: false,
		})
	}
	ref := s.variableHandles.create(onChainStateNode{})
	response.Body.Scopes = append(response.Body.Scopes, dap.Scope{
		Name: "On-chain State", VariablesReference: ref, Expensive: false,
	})
	s.send(response)
}

func (s *Server) onEvaluateRequest(request *dap.EvaluateRequest) {
	if !s.requireLaunched(request.Request) || s.current == nil {
		s.sendErrorResponse(request.Request, UnableToEvaluateExpression, "Unable to evaluate expression", "no stopped state to evaluate against")
		return
	}
	value, ref := s.evaluateExpr(s.current, request.Arguments.Expression)
	response := &dap.EvaluateResponse{Response: *newResponse(request.Request)}
	response.Body.Result = value
	response.Body.VariablesReference = ref
	s.send(response)
}

// onStepInTargetsRequest reports the inner transaction group spawned by the
// current event, if any, as the single step-in target, labeled with its
// frame name. It returns at most one target and lists no opcode names; the
// stepIn handler does not read a chosen target id.
func (s *Server) onStepInTargetsRequest(request *dap.StepInTargetsRequest) {
	response := &dap.StepInTargetsResponse{Response: *newResponse(request.Request)}
	v, ok := s.stackFrameHandles.get(request.Arguments.FrameId)
	if !ok {
		s.send(response)
		return
	}
	frame := v.(*avm.Frame)
	pos, ok := s.cursor.Current()
	if !ok || pos.Frame != frame {
		s.send(response)
		return
	}
	if child, ok := frame.EventSpawnsInner(pos.Index); ok {
		id := s.stackFrameHandles.create(child)
		response.Body.Targets = []dap.StepInTarget{{Id: id, Label: frameName(child)}}
	}
	s.send(response)
}

// onLoadedSourcesRequest lists every program source plus the synthetic
// transaction-group pseudo-source.
func (s *Server) onLoadedSourcesRequest(request *dap.LoadedSourcesRequest) {
	response := &dap.LoadedSourcesResponse{Response: *newResponse(request.Request)}
	if s.assets == nil {
		s.send(response)
		return
	}
	names := make([]string, 0, len(s.assets.Sources))
	for _, ps := range s.assets.Sources {
		names = append(names, ps.Filename)
	}
	slices.Sort(names)
	for _, n := range names {
		response.Body.Sources = append(response.Body.Sources, dap.Source{Name: n, Path: n})
	}
	response.Body.Sources = append(response.Body.Sources, dap.Source{Name: pseudoSourceName, Path: pseudoSourceName})
	s.send(response)
}

func (s *Server) onSourceRequest(request *dap.SourceRequest) {
	response := &dap.SourceResponse{Response: *newResponse(request.Request)}
	path := request.Arguments.Source.Path
	if s.assets == nil {
		s.sendErrorResponse(request.Request, UnableToLookupVariable, "Unable to read source", "no trace has been loaded yet")
		return
	}
	if path == pseudoSourceName {
		response.Body.Content = string(s.assets.Pretty)
		s.send(response)
		return
	}
	for _, ps := range s.assets.Sources {
		if ps.Filename == path {
			response.Body.Content = ps.Text
			s.send(response)
			return
		}
	}
	s.sendErrorResponse(request.Request, UnableToLookupVariable, "Unable to read source", fmt.Sprintf("unknown source %q", path))
}

// onDisassembleRequest renders one coarse annotation line per opcode event
// of the frame named in MemoryReference (its stack-frame id, reused as a
// stand-in "address" since there is no real memory space here).
func (s *Server) onDisassembleRequest(request *dap.DisassembleRequest) {
	response := &dap.DisassembleResponse{Response: *newResponse(request.Request)}
	var frameID int
	if _, err := fmt.Sscanf(request.Arguments.MemoryReference, "%d", &frameID); err != nil {
		s.send(response)
		return
	}
	v, ok := s.stackFrameHandles.get(frameID)
	if !ok {
		s.send(response)
		return
	}
	frame, ok := v.(*avm.Frame)
	if !ok || !frame.HasProgram() || s.assets == nil {
		s.send(response)
		return
	}
	ps, ok := s.assets.Sources[frame.Program]
	if !ok {
		s.send(response)
		return
	}
	for i, ev := range frame.Events {
		response.Body.Instructions = append(response.Body.Instructions, dap.DisassembledInstruction{
			Address:     fmt.Sprintf("%d:%d", frameID, i),
			Instruction: disassembleLine(ps, ev.PC),
			Line:        mustLine(ps, ev.PC),
		})
	}
	s.send(response)
}

func mustLine(ps *avm.ProgramSource, pc uint64) int {
	loc, ok := ps.Map.PCToLoc(pc)
	if !ok {
		return 0
	}
	return loc.Line
}
