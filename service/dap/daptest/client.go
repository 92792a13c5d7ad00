// Package daptest provides a sample client with utilities for DAP mode
// testing against the trace-replay adapter.
package daptest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"testing"

	"github.com/google/go-dap"
)

// Client is a debugger service client that uses the Debug Adapter Protocol.
// All client methods are synchronous.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	seq    int
}

// NewClient creates a new Client over a TCP connection. Call Close to close
// the connection.
func NewClient(addr string) *Client {
	fmt.Println("Connecting to server at:", addr)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		log.Fatal("dialing:", err)
	}
	return &Client{conn: conn, reader: bufio.NewReader(conn)}
}

// Close closes the client connection.
func (c *Client) Close() {
	c.conn.Close()
}

func (c *Client) send(request dap.Message) {
	jsonmsg, _ := json.Marshal(request)
	fmt.Println("[client -> server]", string(jsonmsg))
	dap.WriteProtocolMessage(c.conn, request)
}

func (c *Client) ExpectDisconnectResponse(t *testing.T) *dap.DisconnectResponse {
	return c.expect(t, &dap.DisconnectResponse{}).(*dap.DisconnectResponse)
}

func (c *Client) ExpectTerminateResponse(t *testing.T) *dap.TerminateResponse {
	return c.expect(t, &dap.TerminateResponse{}).(*dap.TerminateResponse)
}

func (c *Client) ExpectErrorResponse(t *testing.T) *dap.ErrorResponse {
	return c.expect(t, &dap.ErrorResponse{}).(*dap.ErrorResponse)
}

func (c *Client) ExpectContinueResponse(t *testing.T) *dap.ContinueResponse {
	return c.expect(t, &dap.ContinueResponse{}).(*dap.ContinueResponse)
}

func (c *Client) ExpectReverseContinueResponse(t *testing.T) *dap.ReverseContinueResponse {
	return c.expect(t, &dap.ReverseContinueResponse{}).(*dap.ReverseContinueResponse)
}

func (c *Client) ExpectNextResponse(t *testing.T) *dap.NextResponse {
	return c.expect(t, &dap.NextResponse{}).(*dap.NextResponse)
}

func (c *Client) ExpectStepInResponse(t *testing.T) *dap.StepInResponse {
	return c.expect(t, &dap.StepInResponse{}).(*dap.StepInResponse)
}

func (c *Client) ExpectStepOutResponse(t *testing.T) *dap.StepOutResponse {
	return c.expect(t, &dap.StepOutResponse{}).(*dap.StepOutResponse)
}

func (c *Client) ExpectStepBackResponse(t *testing.T) *dap.StepBackResponse {
	return c.expect(t, &dap.StepBackResponse{}).(*dap.StepBackResponse)
}

func (c *Client) ExpectTerminatedEvent(t *testing.T) *dap.TerminatedEvent {
	return c.expect(t, &dap.TerminatedEvent{}).(*dap.TerminatedEvent)
}

func (c *Client) ExpectOutputEvent(t *testing.T) *dap.OutputEvent {
	return c.expect(t, &dap.OutputEvent{}).(*dap.OutputEvent)
}

func (c *Client) ExpectInitializeResponse(t *testing.T) *dap.InitializeResponse {
	initResp := c.expect(t, &dap.InitializeResponse{}).(*dap.InitializeResponse)
	if !initResp.Body.SupportsConfigurationDoneRequest {
		t.Errorf("got %#v, want SupportsConfigurationDoneRequest=true", initResp)
	}
	return initResp
}

func (c *Client) ExpectInitializedEvent(t *testing.T) *dap.InitializedEvent {
	return c.expect(t, &dap.InitializedEvent{}).(*dap.InitializedEvent)
}

func (c *Client) ExpectLaunchResponse(t *testing.T) *dap.LaunchResponse {
	return c.expect(t, &dap.LaunchResponse{}).(*dap.LaunchResponse)
}

func (c *Client) ExpectSetExceptionBreakpointsResponse(t *testing.T) *dap.SetExceptionBreakpointsResponse {
	return c.expect(t, &dap.SetExceptionBreakpointsResponse{}).(*dap.SetExceptionBreakpointsResponse)
}

func (c *Client) ExpectSetBreakpointsResponse(t *testing.T) *dap.SetBreakpointsResponse {
	return c.expect(t, &dap.SetBreakpointsResponse{}).(*dap.SetBreakpointsResponse)
}

func (c *Client) ExpectBreakpointLocationsResponse(t *testing.T) *dap.BreakpointLocationsResponse {
	return c.expect(t, &dap.BreakpointLocationsResponse{}).(*dap.BreakpointLocationsResponse)
}

func (c *Client) ExpectStoppedEvent(t *testing.T) *dap.StoppedEvent {
	return c.expect(t, &dap.StoppedEvent{}).(*dap.StoppedEvent)
}

func (c *Client) ExpectConfigurationDoneResponse(t *testing.T) *dap.ConfigurationDoneResponse {
	return c.expect(t, &dap.ConfigurationDoneResponse{}).(*dap.ConfigurationDoneResponse)
}

func (c *Client) ExpectThreadsResponse(t *testing.T) *dap.ThreadsResponse {
	return c.expect(t, &dap.ThreadsResponse{}).(*dap.ThreadsResponse)
}

func (c *Client) ExpectStackTraceResponse(t *testing.T) *dap.StackTraceResponse {
	return c.expect(t, &dap.StackTraceResponse{}).(*dap.StackTraceResponse)
}

func (c *Client) ExpectScopesResponse(t *testing.T) *dap.ScopesResponse {
	return c.expect(t, &dap.ScopesResponse{}).(*dap.ScopesResponse)
}

func (c *Client) ExpectVariablesResponse(t *testing.T) *dap.VariablesResponse {
	return c.expect(t, &dap.VariablesResponse{}).(*dap.VariablesResponse)
}

func (c *Client) ExpectEvaluateResponse(t *testing.T) *dap.EvaluateResponse {
	return c.expect(t, &dap.EvaluateResponse{}).(*dap.EvaluateResponse)
}

func (c *Client) ExpectLoadedSourcesResponse(t *testing.T) *dap.LoadedSourcesResponse {
	return c.expect(t, &dap.LoadedSourcesResponse{}).(*dap.LoadedSourcesResponse)
}

func (c *Client) ExpectSourceResponse(t *testing.T) *dap.SourceResponse {
	return c.expect(t, &dap.SourceResponse{}).(*dap.SourceResponse)
}

func (c *Client) ExpectDisassembleResponse(t *testing.T) *dap.DisassembleResponse {
	return c.expect(t, &dap.DisassembleResponse{}).(*dap.DisassembleResponse)
}

func (c *Client) ExpectStepInTargetsResponse(t *testing.T) *dap.StepInTargetsResponse {
	return c.expect(t, &dap.StepInTargetsResponse{}).(*dap.StepInTargetsResponse)
}

// expect reads one protocol message and asserts its concrete type matches
// want, returning the decoded message so callers don't repeat the
// read-err-check-cast boilerplate per response type.
func (c *Client) expect(t *testing.T, want dap.Message) dap.Message {
	t.Helper()
	m, err := dap.ReadProtocolMessage(c.reader)
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprintf("%T", m) != fmt.Sprintf("%T", want) {
		t.Fatalf("got %T, want %T", m, want)
	}
	return m
}

// InitializeRequest sends an 'initialize' request.
func (c *Client) InitializeRequest() {
	request := &dap.InitializeRequest{Request: *c.newRequest("initialize")}
	request.Arguments = dap.InitializeRequestArguments{
		AdapterID:                    "avm-replay",
		PathFormat:                   "path",
		LinesStartAt1:                true,
		ColumnsStartAt1:              true,
		SupportsVariableType:         true,
		SupportsVariablePaging:       true,
		SupportsRunInTerminalRequest: true,
		Locale:                       "en-us",
	}
	c.send(request)
}

// LaunchRequest sends a 'launch' request naming the simulation response and
// sources descriptor to load.
func (c *Client) LaunchRequest(simulationResponsePath, sourcesDescriptorPath string, stopOnEntry bool) {
	request := &dap.LaunchRequest{Request: *c.newRequest("launch")}
	args, err := json.Marshal(map[string]interface{}{
		"request":                "launch",
		"simulationResponsePath": simulationResponsePath,
		"sourcesDescriptorPath":  sourcesDescriptorPath,
		"stopOnEntry":            stopOnEntry,
	})
	if err != nil {
		panic(err)
	}
	request.Arguments = args
	c.send(request)
}

// DisconnectRequest sends a 'disconnect' request.
func (c *Client) DisconnectRequest() {
	request := &dap.DisconnectRequest{Request: *c.newRequest("disconnect")}
	c.send(request)
}

// TerminateRequest sends a 'terminate' request.
func (c *Client) TerminateRequest() {
	request := &dap.TerminateRequest{Request: *c.newRequest("terminate")}
	c.send(request)
}

// SetBreakpointsRequest sends a 'setBreakpoints' request.
func (c *Client) SetBreakpointsRequest(file string, lines []int) {
	request := &dap.SetBreakpointsRequest{Request: *c.newRequest("setBreakpoints")}
	request.Arguments = dap.SetBreakpointsArguments{
		Source:      dap.Source{Name: file, Path: file},
		Breakpoints: make([]dap.SourceBreakpoint, len(lines)),
	}
	for i, l := range lines {
		request.Arguments.Breakpoints[i].Line = l
	}
	c.send(request)
}

// BreakpointLocationsRequest sends a 'breakpointLocations' request.
func (c *Client) BreakpointLocationsRequest(file string, line, endLine int) {
	request := &dap.BreakpointLocationsRequest{Request: *c.newRequest("breakpointLocations")}
	request.Arguments = &dap.BreakpointLocationsArguments{
		Source:  dap.Source{Name: file, Path: file},
		Line:    line,
		EndLine: endLine,
	}
	c.send(request)
}

// SetExceptionBreakpointsRequest sends a 'setExceptionBreakpoints' request.
func (c *Client) SetExceptionBreakpointsRequest() {
	request := &dap.SetExceptionBreakpointsRequest{Request: *c.newRequest("setExceptionBreakpoints")}
	c.send(request)
}

// ConfigurationDoneRequest sends a 'configurationDone' request.
func (c *Client) ConfigurationDoneRequest() {
	request := &dap.ConfigurationDoneRequest{Request: *c.newRequest("configurationDone")}
	c.send(request)
}

// ContinueRequest sends a 'continue' request.
func (c *Client) ContinueRequest(thread int) {
	request := &dap.ContinueRequest{Request: *c.newRequest("continue")}
	request.Arguments.ThreadId = thread
	c.send(request)
}

// ReverseContinueRequest sends a 'reverseContinue' request.
func (c *Client) ReverseContinueRequest(thread int) {
	request := &dap.ReverseContinueRequest{Request: *c.newRequest("reverseContinue")}
	request.Arguments.ThreadId = thread
	c.send(request)
}

// NextRequest sends a 'next' request.
func (c *Client) NextRequest(thread int) {
	request := &dap.NextRequest{Request: *c.newRequest("next")}
	request.Arguments.ThreadId = thread
	c.send(request)
}

// StepInRequest sends a 'stepIn' request.
func (c *Client) StepInRequest(thread int) {
	request := &dap.StepInRequest{Request: *c.newRequest("stepIn")}
	request.Arguments.ThreadId = thread
	c.send(request)
}

// StepOutRequest sends a 'stepOut' request.
func (c *Client) StepOutRequest(thread int) {
	request := &dap.StepOutRequest{Request: *c.newRequest("stepOut")}
	request.Arguments.ThreadId = thread
	c.send(request)
}

// StepBackRequest sends a 'stepBack' request.
func (c *Client) StepBackRequest(thread int) {
	request := &dap.StepBackRequest{Request: *c.newRequest("stepBack")}
	request.Arguments.ThreadId = thread
	c.send(request)
}

// ThreadsRequest sends a 'threads' request.
func (c *Client) ThreadsRequest() {
	request := &dap.ThreadsRequest{Request: *c.newRequest("threads")}
	c.send(request)
}

// StackTraceRequest sends a 'stackTrace' request.
func (c *Client) StackTraceRequest(thread int) {
	request := &dap.StackTraceRequest{Request: *c.newRequest("stackTrace")}
	request.Arguments.ThreadId = thread
	c.send(request)
}

// ScopesRequest sends a 'scopes' request.
func (c *Client) ScopesRequest(frameID int) {
	request := &dap.ScopesRequest{Request: *c.newRequest("scopes")}
	request.Arguments.FrameId = frameID
	c.send(request)
}

// VariablesRequest sends a 'variables' request.
func (c *Client) VariablesRequest(variablesReference int) {
	request := &dap.VariablesRequest{Request: *c.newRequest("variables")}
	request.Arguments.VariablesReference = variablesReference
	c.send(request)
}

// EvaluateRequest sends an 'evaluate' request.
func (c *Client) EvaluateRequest(expr string, frameID int, context string) {
	request := &dap.EvaluateRequest{Request: *c.newRequest("evaluate")}
	request.Arguments.Expression = expr
	request.Arguments.FrameId = frameID
	request.Arguments.Context = context
	c.send(request)
}

// LoadedSourcesRequest sends a 'loadedSources' request.
func (c *Client) LoadedSourcesRequest() {
	request := &dap.LoadedSourcesRequest{Request: *c.newRequest("loadedSources")}
	c.send(request)
}

// SourceRequest sends a 'source' request.
func (c *Client) SourceRequest(path string, ref int) {
	request := &dap.SourceRequest{Request: *c.newRequest("source")}
	request.Arguments.Source = &dap.Source{Name: path, Path: path}
	request.Arguments.SourceReference = ref
	c.send(request)
}

// DisassembleRequest sends a 'disassemble' request.
func (c *Client) DisassembleRequest(memoryReference string) {
	request := &dap.DisassembleRequest{Request: *c.newRequest("disassemble")}
	request.Arguments.MemoryReference = memoryReference
	c.send(request)
}

// StepInTargetsRequest sends a 'stepInTargets' request.
func (c *Client) StepInTargetsRequest(frameID int) {
	request := &dap.StepInTargetsRequest{Request: *c.newRequest("stepInTargets")}
	request.Arguments.FrameId = frameID
	c.send(request)
}

// UnknownRequest triggers dap.DecodeProtocolMessageFieldError.
func (c *Client) UnknownRequest() {
	request := c.newRequest("unknown")
	c.send(request)
}

// UnknownEvent triggers dap.DecodeProtocolMessageFieldError.
func (c *Client) UnknownEvent() {
	event := &dap.Event{}
	event.Type = "event"
	event.Seq = -1
	event.Event = "unknown"
	c.send(event)
}

func (c *Client) newRequest(command string) *dap.Request {
	request := &dap.Request{}
	request.Type = "request"
	request.Command = command
	request.Seq = c.seq
	c.seq++
	return request
}
