package dap

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/algorand/avm-replay-dap/avm"
)

var stackExprRe = regexp.MustCompile(`^stack\[(-?[0-9]+)\]$`)
var scratchExprRe = regexp.MustCompile(`^scratch\[([0-9]+)\]$`)

// evaluateExpr implements the two hover expression grammars from spec.md
// §4.6, plus a "config ..." console command (typed into the debug
// console, not a hover) that lists or adjusts an adapter-internal knob the
// same way delve's own "config" REPL command works. Per §7 (OutOfRange), a
// malformed or out-of-range index is never an adapter-level error: it
// resolves to a human-readable string in the response body, and the
// evaluate call itself still succeeds.
func (s *Server) evaluateExpr(state *avm.ReconstructedState, expr string) (value string, ref int) {
	if expr == "config" {
		return listConfig(&s.cfg), 0
	}
	if rest, ok := strings.CutPrefix(expr, "config "); ok {
		out, err := configureSet(&s.cfg, rest)
		if err != nil {
			return err.Error(), 0
		}
		return out, 0
	}
	if m := stackExprRe.FindStringSubmatch(expr); m != nil {
		n, _ := strconv.Atoi(m[1])
		idx := n
		if n < 0 {
			idx = len(state.Stack) + n
		}
		if idx < 0 || idx >= len(state.Stack) {
			return fmt.Sprintf("%s out of range", expr), 0
		}
		return s.convertAvmValue(state.Stack[idx])
	}
	if m := scratchExprRe.FindStringSubmatch(expr); m != nil {
		slot, _ := strconv.Atoi(m[1])
		if slot < 0 || slot > 255 {
			return fmt.Sprintf("%s out of range", expr), 0
		}
		v, ok := state.Scratch[uint8(slot)]
		if !ok {
			return "0", 0
		}
		return s.convertAvmValue(v)
	}
	return fmt.Sprintf("cannot evaluate %q", expr), 0
}
