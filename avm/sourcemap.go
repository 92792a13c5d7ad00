package avm

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// rawSourceMapV3 is the subset of the Source Map v3 structure the adapter
// consumes: https://sourcemaps.info/spec.html, restricted here to
// PC-keyed single-file groups as produced by the TEAL assembler.
type rawSourceMapV3 struct {
	Version  int      `json:"version"`
	Sources  []string `json:"sources"`
	Mappings string   `json:"mappings"`
}

// Location is a (file, line, column) tuple; FileID is an index into the
// SourceMap's Sources list (and, in this adapter, always 0: one map per
// program, one file per map).
type Location struct {
	FileID int
	Line   int
	Column int
}

// pcLoc is one decoded VLQ group keyed by PC.
type pcLoc struct {
	pc     uint64
	fileID int
	line   int
	column int
}

// lineEntry is one (column, pc) pair recorded for a given (file, line).
type lineEntry struct {
	Column int
	PC     uint64
}

// SourceMap indexes PC<->location both ways for a single program.
type SourceMap struct {
	Sources []string

	pcToLoc map[uint64]Location
	// byFileLine[line] -> sorted list of (column, pc) for the single file
	// this map belongs to.
	byFileLine map[int][]lineEntry
}

// DecodeSourceMap parses the VLQ-encoded mappings string into PC->location
// and location->PC indexes. The mapping groups are PC-keyed (one semicolon
// separated group per PC, in increasing PC order), matching the encoding
// written by logic.GetSourceMap / logic.MakeSourceMapLine in the TEAL
// assembler: each group is (generatedColumn, sourceIndex, sourceLine,
// sourceColumn) deltas, generatedColumn always 0 here since PC, not
// assembly-text column, is the key.
func DecodeSourceMap(raw *rawSourceMapV3) (*SourceMap, error) {
	if raw == nil {
		return nil, &BadTraceError{Field: "source-map", Reason: "missing"}
	}
	if raw.Version != 3 {
		return nil, &BadTraceError{Field: "source-map.version", Reason: fmt.Sprintf("unsupported version %d", raw.Version)}
	}
	groups := splitSemicolons(raw.Mappings)

	sm := &SourceMap{
		Sources:    raw.Sources,
		pcToLoc:    make(map[uint64]Location, len(groups)),
		byFileLine: make(map[int][]lineEntry),
	}

	var fileID, line, column int
	for pc, group := range groups {
		if group == "" {
			continue
		}
		fields, err := decodeVLQGroup(group)
		if err != nil {
			return nil, fmt.Errorf("mappings group for pc %d: %w", pc, err)
		}
		// fields[0] is the generated-column delta; unused for PC-keyed maps.
		if len(fields) > 1 {
			fileID += fields[1]
		}
		if len(fields) > 2 {
			line += fields[2]
		}
		if len(fields) > 3 {
			column += fields[3]
		}
		loc := Location{FileID: fileID, Line: line, Column: column}
		sm.pcToLoc[uint64(pc)] = loc
		sm.byFileLine[line] = append(sm.byFileLine[line], lineEntry{Column: column, PC: uint64(pc)})
	}
	for line := range sm.byFileLine {
		entries := sm.byFileLine[line]
		slices.SortFunc(entries, func(a, b lineEntry) int {
			if a.Column != b.Column {
				return a.Column - b.Column
			}
			return int(a.PC) - int(b.PC)
		})
		sm.byFileLine[line] = entries
	}
	return sm, nil
}

// PCToLoc implements pc_to_loc: the mapping is total over the set of PCs
// that appear in the trace, so callers should only query PCs they observed.
func (sm *SourceMap) PCToLoc(pc uint64) (Location, bool) {
	loc, ok := sm.pcToLoc[pc]
	return loc, ok
}

// FileLineToEntries implements file_line_to_pcs: sorted (column, pc) pairs
// recorded for a given line.
func (sm *SourceMap) FileLineToEntries(line int) []lineEntry {
	return sm.byFileLine[line]
}

// LocationToPCs implements location_to_pcs: every PC whose decoded location
// is exactly (line, column).
func (sm *SourceMap) LocationToPCs(line, column int) []uint64 {
	var pcs []uint64
	for _, e := range sm.byFileLine[line] {
		if e.Column == column {
			pcs = append(pcs, e.PC)
		}
	}
	return pcs
}

// BreakpointLocation is one element of a breakpointLocationsRequest result.
type BreakpointLocation struct {
	Line   int
	Column int
}

// BreakpointLocations returns the union of (line, column) pairs recorded by
// this source map within [startLine, endLine], deduplicated and sorted
// ascending by (line, column). Implements spec.md §4.2's correction to the
// Open Question in §9: unlike the naive `[{line: args.line}]` shortcut,
// this always consults the source map.
func (sm *SourceMap) BreakpointLocations(startLine, endLine int) []BreakpointLocation {
	seen := make(map[BreakpointLocation]struct{})
	var out []BreakpointLocation
	for line := startLine; line <= endLine; line++ {
		for _, e := range sm.byFileLine[line] {
			bl := BreakpointLocation{Line: line, Column: e.Column}
			if _, dup := seen[bl]; dup {
				continue
			}
			seen[bl] = struct{}{}
			out = append(out, bl)
		}
	}
	slices.SortFunc(out, func(a, b BreakpointLocation) int {
		if a.Line != b.Line {
			return a.Line - b.Line
		}
		return a.Column - b.Column
	})
	return out
}

func splitSemicolons(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ';' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

const b64table = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var b64rev [256]int8

func init() {
	for i := range b64rev {
		b64rev[i] = -1
	}
	for i, c := range b64table {
		b64rev[c] = int8(i)
	}
}

// decodeVLQGroup decodes one comma-separated group of base64-VLQ-encoded
// signed integers, the inverse of logic.intToVLQ / logic.MakeSourceMapLine.
func decodeVLQGroup(group string) ([]int, error) {
	var fields []int
	start := 0
	for i := 0; i <= len(group); i++ {
		if i == len(group) || group[i] == ',' {
			if i > start {
				v, err := decodeVLQ(group[start:i])
				if err != nil {
					return nil, err
				}
				fields = append(fields, v)
			}
			start = i + 1
		}
	}
	return fields, nil
}

func decodeVLQ(s string) (int, error) {
	result := 0
	shift := 0
	for i := 0; i < len(s); i++ {
		digit := b64rev[s[i]]
		if digit < 0 {
			return 0, fmt.Errorf("invalid VLQ character %q", s[i])
		}
		cont := digit & 32
		digit &= 31
		result += int(digit) << shift
		if cont == 0 {
			negative := result&1 != 0
			result >>= 1
			if negative {
				return -result, nil
			}
			return result, nil
		}
		shift += 5
	}
	return 0, fmt.Errorf("truncated VLQ value %q", s)
}
