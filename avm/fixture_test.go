package avm

// Shared fixture builders for the avm package's tests. Tests construct
// TraceAssets/Frame trees directly from the raw*/Frame types rather than
// round-tripping through JSON + Load, except where the test is specifically
// about decoding (loader_test.go, sourcemap_test.go).

func testHash(fill byte) ProgramHash {
	var h ProgramHash
	for i := range h {
		h[i] = fill
	}
	return h
}

// simpleSourceMap returns a SourceMap where pc N sits on line N+1, column 1,
// of file 0 -- enough structure for breakpoint and stack-frame tests without
// hand-encoding VLQ mappings.
func simpleSourceMap(nPCs int) *SourceMap {
	sm := &SourceMap{
		Sources:    []string{"program.teal"},
		pcToLoc:    make(map[uint64]Location, nPCs),
		byFileLine: make(map[int][]lineEntry),
	}
	for pc := 0; pc < nPCs; pc++ {
		line := pc + 1
		sm.pcToLoc[uint64(pc)] = Location{FileID: 0, Line: line, Column: 1}
		sm.byFileLine[line] = append(sm.byFileLine[line], lineEntry{Column: 1, PC: uint64(pc)})
	}
	return sm
}

func newProgramSource(hash ProgramHash, filename string, nPCs int) *ProgramSource {
	return &ProgramSource{Hash: hash, Filename: filename, Text: "// generated fixture", Map: simpleSourceMap(nPCs)}
}

// opcodeEvents builds n trivial sequential-PC events, one per line.
func opcodeEvents(n int) []rawOpcodeEvent {
	out := make([]rawOpcodeEvent, n)
	for i := range out {
		out[i] = rawOpcodeEvent{PC: jsonUint64(i)}
	}
	return out
}

// singleAppCallAssets builds a TraceAssets/root/positions triple for one
// top-level transaction group with a single transaction running one AppCall
// program with the given events, e.g. for cursor/state stepping tests.
func singleAppCallAssets(hash ProgramHash, events []rawOpcodeEvent) (*TraceAssets, *Frame, []Position) {
	raw := &rawSimulateResponse{
		TxnGroups: []rawTxnGroupResult{{
			TxnResults: []rawTxnResult{{
				ExecTrace: &rawExecTrace{
					ApprovalProgramTrace: events,
					ApprovalProgramHash:  hash[:],
				},
			}},
		}},
	}
	assets := &TraceAssets{
		Sources: map[ProgramHash]*ProgramSource{hash: newProgramSource(hash, "program.teal", len(events))},
		raw:     raw,
	}
	root, positions, err := BuildExecutionTree(assets)
	if err != nil {
		panic(err)
	}
	return assets, root, positions
}
