// Package dap implements a Debug Adapter Protocol server for post-mortem
// replay of an AVM transaction-group simulation trace. Unlike a live-process
// debugger, there is no debuggee to launch or attach to: "launch" loads a
// frozen trace and the entire session replays it forward and backward.
// For DAP details see https://microsoft.github.io/debug-adapter-protocol.
package dap

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/algorand/avm-replay-dap/avm"
	"github.com/algorand/avm-replay-dap/internal/iohelp"
	"github.com/algorand/avm-replay-dap/pkg/logflags"
	"github.com/google/go-dap"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Options carries the environment-derived configuration a Server needs
// before any client connects: where to read the simulation response and
// sources descriptor from (spec.md §6), and the byte source to read them
// through.
type Options struct {
	Reader                 iohelp.Reader
	SimulationResponsePath string
	SourcesDescriptorPath  string
}

// Server implements a DAP server that can accept a single client for a
// single debug session. It does not support restarting or concurrent
// sessions over one connection; run a fresh process per `--server`
// connection for multiple simultaneous sessions.
type Server struct {
	opts      Options
	listener  net.Listener
	conn      net.Conn
	stopChan  chan struct{}
	reader    *bufio.Reader
	out       io.Writer
	log       *logrus.Entry
	sessionID string

	// stackFrameHandles maps stack-frame ids to the *avm.Frame they present.
	stackFrameHandles *handlesMap
	// variableHandles maps compound variable references to the node they expand.
	variableHandles *handlesMap

	state avm.SessionState
	cfg   sessionConfig

	assets      *avm.TraceAssets
	root        *avm.Frame
	breakpoints *avm.BreakpointTable
	cursor      *avm.Cursor
	current     *avm.ReconstructedState

	stopOnEntry bool
}

// NewServer creates a new DAP Server that accepts a single connection on
// listener (matching the teacher's one-listener-per-process model for
// `--server=<port>`).
func NewServer(opts Options, listener net.Listener) *Server {
	logger := logflags.DAPLogger()
	logflags.WriteListeningMessage(listener.Addr().String())
	s := newSessionServer(opts, logger)
	s.listener = listener
	return s
}

// newSessionServer builds a Server with no transport wired in yet; the
// caller attaches either a net.Conn (Run) or raw stdio streams (RunStdio).
func newSessionServer(opts Options, logger *logrus.Entry) *Server {
	sessionID := uuid.New().String()
	logger.WithField("session", sessionID).Debug("DAP server pid = ", os.Getpid())
	return &Server{
		opts:              opts,
		stopChan:          make(chan struct{}),
		log:               logger,
		sessionID:         sessionID,
		stackFrameHandles: newHandlesMap(),
		variableHandles:   newHandlesMap(),
		cfg:               defaultSessionConfig,
		state:             avm.StateUninitialized,
	}
}

// RunStdio serves exactly one DAP session over in/out, for the no-`--server`
// CLI mode where the IDE talks to the adapter over its own stdin/stdout
// instead of a TCP port.
func RunStdio(opts Options, in io.Reader, out io.Writer) error {
	logger := logflags.DAPLogger()
	s := newSessionServer(opts, logger)
	s.reader = bufio.NewReader(in)
	s.out = out
	s.serveDAPCodec()
	return nil
}

// Stop closes the listener and the client connection. Safe to call once.
func (s *Server) Stop() {
	if s.listener != nil {
		s.listener.Close()
	}
	close(s.stopChan)
	if s.conn != nil {
		s.conn.Close()
	}
}

// Run accepts one client connection and serves it until disconnect or error.
// Blocks the caller; run it in its own goroutine to serve asynchronously.
func (s *Server) Run() {
	conn, err := s.listener.Accept()
	if err != nil {
		select {
		case <-s.stopChan:
		default:
			s.log.Errorf("error accepting client connection: %s", err)
		}
		return
	}
	s.conn = conn
	s.out = conn
	s.reader = bufio.NewReader(conn)
	s.serveDAPCodec()
}

// serveDAPCodec reads and decodes requests from the client until it
// encounters an error or EOF.
func (s *Server) serveDAPCodec() {
	for {
		request, err := dap.ReadProtocolMessage(s.reader)
		if err != nil {
			stopRequested := false
			select {
			case <-s.stopChan:
				stopRequested = true
			default:
			}
			if err != io.EOF && !stopRequested {
				s.log.Error("DAP error: ", err)
			}
			return
		}
		s.handleRequest(request)
	}
}

func (s *Server) handleRequest(request dap.Message) {
	defer func() {
		if ierr := recover(); ierr != nil {
			s.sendInternalErrorResponse(request.GetSeq(), fmt.Sprintf("%v", ierr))
		}
	}()

	jsonmsg, _ := json.Marshal(request)
	s.log.Debug("[<- from client] ", string(jsonmsg))

	switch request := request.(type) {
	case *dap.InitializeRequest:
		s.onInitializeRequest(request)
	case *dap.LaunchRequest:
		s.onLaunchRequest(request)
	case *dap.AttachRequest:
		s.sendErrorResponse(request.Request, UnsupportedCommand, "Unsupported command",
			"attach is not supported; this adapter replays a frozen trace loaded via launch")
	case *dap.DisconnectRequest:
		s.onDisconnectRequest(request)
	case *dap.TerminateRequest:
		s.onTerminateRequest(request)
	case *dap.SetBreakpointsRequest:
		s.onSetBreakpointsRequest(request)
	case *dap.BreakpointLocationsRequest:
		s.onBreakpointLocationsRequest(request)
	case *dap.SetExceptionBreakpointsRequest:
		s.send(&dap.SetExceptionBreakpointsResponse{Response: *newResponse(request.Request)})
	case *dap.ConfigurationDoneRequest:
		s.onConfigurationDoneRequest(request)
	case *dap.ContinueRequest:
		s.onContinueRequest(request)
	case *dap.ReverseContinueRequest:
		s.onReverseContinueRequest(request)
	case *dap.NextRequest:
		s.onNextRequest(request)
	case *dap.StepInRequest:
		s.onStepInRequest(request)
	case *dap.StepInTargetsRequest:
		s.onStepInTargetsRequest(request)
	case *dap.StepOutRequest:
		s.onStepOutRequest(request)
	case *dap.StepBackRequest:
		s.onStepBackRequest(request)
	case *dap.PauseRequest:
		s.sendErrorResponse(request.Request, UnsupportedCommand, "Unsupported command",
			"pause has no meaning over a frozen trace: every stop already is a pause")
	case *dap.ThreadsRequest:
		s.onThreadsRequest(request)
	case *dap.StackTraceRequest:
		s.onStackTraceRequest(request)
	case *dap.ScopesRequest:
		s.onScopesRequest(request)
	case *dap.VariablesRequest:
		s.onVariablesRequest(request)
	case *dap.EvaluateRequest:
		s.onEvaluateRequest(request)
	case *dap.LoadedSourcesRequest:
		s.onLoadedSourcesRequest(request)
	case *dap.SourceRequest:
		s.onSourceRequest(request)
	case *dap.DisassembleRequest:
		s.onDisassembleRequest(request)
	default:
		s.sendInternalErrorResponse(request.GetSeq(), fmt.Sprintf("unable to process %#v", request))
	}
}

func (s *Server) send(message dap.Message) {
	jsonmsg, _ := json.Marshal(message)
	s.log.Debug("[-> to client] ", string(jsonmsg))
	dap.WriteProtocolMessage(s.out, message)
}

func (s *Server) onInitializeRequest(request *dap.InitializeRequest) {
	s.state = avm.StateConfiguring
	response := &dap.InitializeResponse{Response: *newResponse(request.Request)}
	response.Body.SupportsConfigurationDoneRequest = true
	response.Body.SupportsStepBack = true
	response.Body.SupportsBreakpointLocationsRequest = true
	response.Body.SupportsEvaluateForHovers = true
	response.Body.SupportsDelayedStackTraceLoading = true
	response.Body.SupportsLoadedSourcesRequest = true
	response.Body.SupportsDisassembleRequest = true
	response.Body.SupportsStepInTargetsRequest = true
	response.Body.SupportsSetVariable = false
	response.Body.SupportsSetExpression = false
	response.Body.SupportsTerminateRequest = true
	s.send(response)
}

// onLaunchRequest implements C1/C2/C3 bring-up: it loads the trace, decodes
// source maps, builds the execution tree, and readies the stepping cursor.
// A malformed trace (BadTrace, MissingSource, IoError, per spec.md §7)
// terminates the session after an Output diagnostic.
func (s *Server) onLaunchRequest(request *dap.LaunchRequest) {
	var cfg LaunchConfig
	if err := mapToStruct(request.Arguments, &cfg); err != nil {
		s.sendErrorResponse(request.Request, FailedToLaunch, "Failed to launch", err.Error())
		return
	}

	simPath := cfg.SimulationResponsePath
	if simPath == "" {
		simPath = s.opts.SimulationResponsePath
	}
	if simPath == "" {
		simPath = os.Getenv("ALGORAND_SIMULATION_RESPONSE_PATH")
	}
	sourcesPath := cfg.SourcesDescriptorPath
	if sourcesPath == "" {
		sourcesPath = s.opts.SourcesDescriptorPath
	}
	if sourcesPath == "" {
		sourcesPath = os.Getenv("ALGORAND_TXN_GROUP_SOURCES_DESCRIPTION_PATH")
	}
	if simPath == "" || sourcesPath == "" {
		s.sendErrorResponse(request.Request, FailedToLaunch, "Failed to launch",
			"simulationResponsePath/ALGORAND_SIMULATION_RESPONSE_PATH and sourcesDescriptorPath/ALGORAND_TXN_GROUP_SOURCES_DESCRIPTION_PATH are required")
		return
	}

	assets, err := avm.Load(s.opts.Reader, simPath, sourcesPath)
	if err != nil {
		s.terminateWithDiagnostic(request.Request, err)
		return
	}
	root, positions, err := avm.BuildExecutionTree(assets)
	if err != nil {
		s.terminateWithDiagnostic(request.Request, err)
		return
	}

	s.assets = assets
	s.root = root
	s.breakpoints = avm.NewBreakpointTable(assets)
	s.cursor = avm.NewCursor(root, positions, s.breakpoints)
	s.stopOnEntry = cfg.StopOnEntry
	if cfg.StackTraceDepth > 0 {
		s.cfg.StackTraceDepth = cfg.StackTraceDepth
	}

	s.send(&dap.InitializedEvent{Event: *newEvent("initialized")})
	s.send(&dap.LaunchResponse{Response: *newResponse(request.Request)})
}

// terminateWithDiagnostic sends a human-readable Output event describing
// err, replies to the triggering request with failure, and terminates the
// session (spec.md §7: BadTrace/MissingSource/IoError all terminate).
func (s *Server) terminateWithDiagnostic(request dap.Request, err error) {
	s.log.Error("load error: ", err)
	s.send(&dap.OutputEvent{
		Event: *newEvent("output"),
		Body:  dap.OutputEventBody{Output: fmt.Sprintf("%s\n", err.Error()), Category: "stderr"},
	})
	s.sendErrorResponse(request, FailedToLaunch, "Failed to launch", err.Error())
	s.state = avm.StateTerminated
	s.send(&dap.TerminatedEvent{Event: *newEvent("terminated")})
}

func (s *Server) onConfigurationDoneRequest(request *dap.ConfigurationDoneRequest) {
	if s.cursor == nil {
		s.sendErrorResponse(request.Request, NotYetInitialized, "Not yet initialized", "configurationDone received before a successful launch")
		return
	}
	s.state = avm.StateReadyToLaunch
	s.cursor.Launch(s.stopOnEntry)
	s.send(&dap.ConfigurationDoneResponse{Response: *newResponse(request.Request)})
	s.refreshState()
	s.emitStopOrTerminate(s.cursor.StopReason())
}

func (s *Server) onDisconnectRequest(request *dap.DisconnectRequest) {
	s.send(&dap.DisconnectResponse{Response: *newResponse(request.Request)})
	s.state = avm.StateTerminated
}

func (s *Server) onTerminateRequest(request *dap.TerminateRequest) {
	s.send(&dap.TerminateResponse{Response: *newResponse(request.Request)})
	s.state = avm.StateTerminated
	s.send(&dap.TerminatedEvent{Event: *newEvent("terminated")})
}

func (s *Server) sendErrorResponse(request dap.Request, id int, summary, details string) {
	er := &dap.ErrorResponse{}
	er.Type = "response"
	er.Command = request.Command
	er.RequestSeq = request.Seq
	er.Success = false
	er.Message = summary
	er.Body.Error = &dap.ErrorMessage{}
	er.Body.Error.Id = id
	er.Body.Error.Format = fmt.Sprintf("%s: %s", summary, details)
	s.log.Error(er.Body.Error.Format)
	s.send(er)
}

func (s *Server) sendInternalErrorResponse(seq int, details string) {
	er := &dap.ErrorResponse{}
	er.Type = "response"
	er.RequestSeq = seq
	er.Success = false
	er.Message = "Internal Error"
	er.Body.Error = &dap.ErrorMessage{}
	er.Body.Error.Id = InternalError
	er.Body.Error.Format = fmt.Sprintf("%s: %s", er.Message, details)
	s.log.Error(er.Body.Error.Format)
	s.send(er)
}

func newResponse(request dap.Request) *dap.Response {
	return &dap.Response{
		ProtocolMessage: dap.ProtocolMessage{Seq: 0, Type: "response"},
		Command:         request.Command,
		RequestSeq:      request.Seq,
		Success:         true,
	}
}

func newEvent(event string) *dap.Event {
	return &dap.Event{
		ProtocolMessage: dap.ProtocolMessage{Seq: 0, Type: "event"},
		Event:           event,
	}
}

// refreshState recomputes the reconstructed state at the cursor's current
// position (C4) and drops every stale handle, matching the teacher's
// clearProcessStateHandles pattern: handles are only ever valid for the
// stop that produced them.
func (s *Server) refreshState() {
	s.stackFrameHandles.reset()
	s.variableHandles.reset()
	pos, ok := s.cursor.Current()
	if !ok {
		s.current = nil
		return
	}
	s.current = avm.Reconstruct(s.root, pos.Frame, pos.Index)
}

// emitStopOrTerminate sends the Stopped/Terminated event matching the
// cursor's state after a step/continue operation.
func (s *Server) emitStopOrTerminate(reason avm.StopReason) {
	switch s.cursor.State() {
	case avm.StateStopped:
		s.send(&dap.StoppedEvent{
			Event: *newEvent("stopped"),
			Body:  dap.StoppedEventBody{Reason: reason.String(), ThreadId: 1, AllThreadsStopped: true},
		})
	case avm.StateTerminated:
		s.send(&dap.TerminatedEvent{Event: *newEvent("terminated")})
	}
}
