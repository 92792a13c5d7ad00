package dap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/algorand/avm-replay-dap/avm"
)

// pseudoSourceName is the synthetic pretty-printed-JSON "file" a transaction
// or transaction-group stack frame is attributed to (spec.md §4.6).
const pseudoSourceName = "transaction-group-0.json"

// jsonPos is a 1-based line/column pair, as DAP requires.
type jsonPos struct {
	Line, Column int
}

// transactionJSONPath builds the sequence of object keys / array indexes
// that locate a transaction's entry (its txn-results element at the top
// level, its inner-trace element below that) within the pretty-printed
// simulate-response, given the transaction's GroupPath (a sequence of
// per-level transaction indexes, root first; see avm.Frame.GroupPath).
func transactionJSONPath(groupPath []int) []interface{} {
	if len(groupPath) == 0 {
		return nil
	}
	path := []interface{}{"txn-groups", 0, "txn-results", groupPath[0]}
	for _, idx := range groupPath[1:] {
		path = append(path, "exec-trace", "inner-trace", idx)
	}
	return path
}

// locateJSONPath finds the 1-based line/column of the opening delimiter of
// the JSON value named by path (a mix of string object-keys and int
// array-indexes), walked from the root of pretty. This is a best-effort,
// presentation-only locator for stack-frame positioning, not something any
// testable property depends on.
func locateJSONPath(pretty []byte, path []interface{}) (jsonPos, bool) {
	dec := json.NewDecoder(bytes.NewReader(pretty))
	pos, found, err := findJSONValue(dec, pretty, nil, path)
	if err != nil {
		return jsonPos{}, false
	}
	return pos, found
}

// findJSONValue reads exactly one JSON value from dec (the value at curPath)
// and returns its position if curPath equals target; otherwise, if the value
// is an object or array, it recurses into children looking for target.
func findJSONValue(dec *json.Decoder, src []byte, curPath, target []interface{}) (jsonPos, bool, error) {
	// InputOffset sits just past the previous token; skip the whitespace and
	// any ',' or ':' separator so offset names the value's first byte.
	offset := dec.InputOffset()
	for offset < int64(len(src)) && strings.IndexByte(" \t\r\n,:", src[offset]) >= 0 {
		offset++
	}
	tok, err := dec.Token()
	if err != nil {
		return jsonPos{}, false, err
	}
	delim, isDelim := tok.(json.Delim)
	if !isDelim {
		return offsetToPos(src, offset), pathEqual(curPath, target), nil
	}
	if pathEqual(curPath, target) {
		return offsetToPos(src, offset), true, nil
	}
	isArray := delim == '['
	index := 0
	for dec.More() {
		childPath := curPath
		if isArray {
			childPath = append(append([]interface{}{}, curPath...), index)
			index++
		} else {
			keyTok, err := dec.Token()
			if err != nil {
				return jsonPos{}, false, err
			}
			key, _ := keyTok.(string)
			childPath = append(append([]interface{}{}, curPath...), key)
		}
		pos, found, err := findJSONValue(dec, src, childPath, target)
		if err != nil {
			return jsonPos{}, false, err
		}
		if found {
			return pos, true, nil
		}
	}
	if _, err := dec.Token(); err != nil { // consume the closing delim
		return jsonPos{}, false, err
	}
	return jsonPos{}, false, nil
}

func pathEqual(a, b []interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// offsetToPos converts a byte offset into src into a 1-based line/column.
func offsetToPos(src []byte, offset int64) jsonPos {
	if offset > int64(len(src)) {
		offset = int64(len(src))
	}
	line, col := 1, 1
	for i := int64(0); i < offset; i++ {
		if src[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return jsonPos{Line: line, Column: col}
}

// transactionSourcePosition locates where the transaction named by
// groupPath begins in the pseudo-source, falling back to line 1 if the walk
// fails (a malformed-but-not-fatal condition: the frame is still presented,
// just without a precise position).
func transactionSourcePosition(assets *avm.TraceAssets, groupPath []int) jsonPos {
	pos, ok := locateJSONPath(assets.Pretty, transactionJSONPath(groupPath))
	if !ok {
		return jsonPos{Line: 1, Column: 1}
	}
	return pos
}

// disassembleLine renders the TEAL source line touched by PC as a coarse,
// non-authoritative disassembly annotation: the adapter never re-derives
// opcode mnemonics from bytecode (spec.md's "does not execute TEAL itself"),
// it only echoes the line the source map already attributes to that PC.
func disassembleLine(ps *avm.ProgramSource, pc uint64) string {
	loc, ok := ps.Map.PCToLoc(pc)
	if !ok {
		return fmt.Sprintf("; pc %d (no source mapping)", pc)
	}
	lines := strings.Split(ps.Text, "\n")
	if loc.Line-1 < 0 || loc.Line-1 >= len(lines) {
		return fmt.Sprintf("; pc %d", pc)
	}
	return strings.TrimSpace(lines[loc.Line-1])
}
