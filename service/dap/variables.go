package dap

import (
	"fmt"

	"github.com/algorand/avm-replay-dap/avm"
	"github.com/google/go-dap"
	"golang.org/x/exp/slices"
)

// The variable tree nodes below are the values a variablesReference handle
// can point to; onVariablesRequest type-switches on whatever handlesMap
// handed back. None of them retain a *Server: they're pure descriptions of
// "what to expand", built fresh from s.current on every scopes/evaluate
// call (handles never survive a step, see refreshState).

type executionStateNode struct{}
type onChainStateNode struct{}
type appNode struct{ appID uint64 }
type localAccountsNode struct{ app *avm.AppState }
type byteMapNode struct {
	label string
	m     *avm.ByteMap
}
type byteExpansionNode struct{ b []byte }

// convertAvmValue renders v the way it appears as a DAP variable's
// value/variablesReference pair: uint values never expand, byte values
// always get a variablesReference to their simultaneous renderings (S6).
func (s *Server) convertAvmValue(v avm.Value) (value string, ref int) {
	if v.Kind != avm.KindBytes {
		return v.String(), 0
	}
	return v.String(), s.variableHandles.create(byteExpansionNode{b: v.Bytes})
}

func (s *Server) onVariablesRequest(request *dap.VariablesRequest) {
	response := &dap.VariablesResponse{Response: *newResponse(request.Request)}
	node, ok := s.variableHandles.get(request.Arguments.VariablesReference)
	if !ok || s.current == nil {
		s.send(response)
		return
	}

	switch n := node.(type) {
	case executionStateNode:
		response.Body.Variables = s.stackAndScratchVariables()
	case onChainStateNode:
		response.Body.Variables = s.appVariables()
	case appNode:
		response.Body.Variables = s.appStateVariables(n.appID)
	case localAccountsNode:
		response.Body.Variables = s.localAccountVariables(n.app)
	case byteMapNode:
		response.Body.Variables = s.byteMapVariables(n.m)
	case byteExpansionNode:
		response.Body.Variables = byteExpansionVariables(n.b)
	}
	s.send(response)
}

func (s *Server) stackAndScratchVariables() []dap.Variable {
	var out []dap.Variable
	for i, v := range s.current.Stack {
		value, ref := s.convertAvmValue(v)
		out = append(out, dap.Variable{
			Name: fmt.Sprintf("stack[%d]", i), Value: value, VariablesReference: ref,
			EvaluateName: fmt.Sprintf("stack[%d]", i),
		})
	}
	slots := make([]int, 0, len(s.current.Scratch))
	for slot := range s.current.Scratch {
		slots = append(slots, int(slot))
	}
	slices.Sort(slots)
	for _, slot := range slots {
		v := s.current.Scratch[uint8(slot)]
		value, ref := s.convertAvmValue(v)
		out = append(out, dap.Variable{
			Name: fmt.Sprintf("scratch[%d]", slot), Value: value, VariablesReference: ref,
			EvaluateName: fmt.Sprintf("scratch[%d]", slot),
		})
	}
	return out
}

func (s *Server) appVariables() []dap.Variable {
	ids := make([]uint64, 0, len(s.current.Apps))
	for id := range s.current.Apps {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]dap.Variable, 0, len(ids))
	for _, id := range ids {
		out = append(out, dap.Variable{
			Name:               fmt.Sprintf("App %d", id),
			Value:              "",
			VariablesReference: s.variableHandles.create(appNode{appID: id}),
		})
	}
	return out
}

func (s *Server) appStateVariables(appID uint64) []dap.Variable {
	app, ok := s.current.Apps[appID]
	if !ok {
		return nil
	}
	return []dap.Variable{
		{Name: "globalState", VariablesReference: s.variableHandles.create(byteMapNode{label: "globalState", m: app.Global})},
		{Name: "localState", VariablesReference: s.variableHandles.create(localAccountsNode{app: app})},
		{Name: "boxState", VariablesReference: s.variableHandles.create(byteMapNode{label: "boxState", m: app.Box})},
	}
}

func (s *Server) localAccountVariables(app *avm.AppState) []dap.Variable {
	addrs := make([]string, 0, len(app.Local))
	for addr := range app.Local {
		addrs = append(addrs, addr)
	}
	slices.Sort(addrs)
	out := make([]dap.Variable, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, dap.Variable{
			Name:               addr,
			VariablesReference: s.variableHandles.create(byteMapNode{label: addr, m: app.Local[addr]}),
		})
	}
	return out
}

func (s *Server) byteMapVariables(m *avm.ByteMap) []dap.Variable {
	keys := m.Keys()
	slices.Sort(keys)
	out := make([]dap.Variable, 0, len(keys))
	for _, k := range keys {
		raw, _ := m.Get(k)
		v := avm.DecodeStateValue(raw)
		value, ref := s.convertAvmValue(v)
		out = append(out, dap.Variable{Name: renderKeyName(k), Value: value, VariablesReference: ref})
	}
	return out
}

// renderKeyName presents a ByteMap key (an arbitrary byte string) the way a
// user would expect to read a state key: ASCII if printable, else hex.
func renderKeyName(key string) string {
	b := []byte(key)
	r := avm.Render(b)
	if r.HasASCII {
		return r.ASCII
	}
	return r.Hex
}

// byteExpansionVariables implements S6: hex/base64/ascii(if printable)/
// address(if 32 bytes)/length, plus one indexed child per byte.
func byteExpansionVariables(b []byte) []dap.Variable {
	r := avm.Render(b)
	out := []dap.Variable{
		{Name: "hex", Value: r.Hex},
		{Name: "base64", Value: r.Base64},
		{Name: "length", Value: fmt.Sprintf("%d", r.Length)},
	}
	if r.HasASCII {
		out = append(out, dap.Variable{Name: "ascii", Value: r.ASCII})
	}
	if r.HasAddress {
		out = append(out, dap.Variable{Name: "address", Value: r.Address})
	}
	for i, byt := range b {
		out = append(out, dap.Variable{Name: fmt.Sprintf("%d", i), Value: fmt.Sprintf("%d", byt)})
	}
	return out
}
