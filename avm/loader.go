package avm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/algorand/avm-replay-dap/internal/iohelp"
	"github.com/algorand/avm-replay-dap/pkg/logflags"
)

// Load reads the simulation response at simPath and the sources descriptor
// at sourcesPath through r, and returns the immutable TraceAssets root.
// Implements C1 (trace loader) per spec.md §4.1.
func Load(r iohelp.Reader, simPath, sourcesPath string) (*TraceAssets, error) {
	logger := logflags.TraceLogger()

	simBytes, err := r.ReadFile(simPath)
	if err != nil {
		return nil, &IoError{Path: simPath, Err: err}
	}
	sourcesBytes, err := r.ReadFile(sourcesPath)
	if err != nil {
		return nil, &IoError{Path: sourcesPath, Err: err}
	}

	var raw rawSimulateResponse
	if err := json.Unmarshal(simBytes, &raw); err != nil {
		return nil, &BadTraceError{Field: "<root>", Reason: err.Error()}
	}

	var descriptor rawSourcesDescriptor
	if err := json.Unmarshal(sourcesBytes, &descriptor); err != nil {
		return nil, &BadTraceError{Field: "txn-group-sources", Reason: err.Error()}
	}

	sources := make(map[ProgramHash]*ProgramSource, len(descriptor.Sources))
	for _, entry := range descriptor.Sources {
		if len(entry.Hash) != 32 {
			return nil, &BadTraceError{Field: "txn-group-sources.hash", Reason: fmt.Sprintf("expected 32 bytes, got %d", len(entry.Hash))}
		}
		var hash ProgramHash
		copy(hash[:], entry.Hash)

		rawMap := entry.SourceMap
		if rawMap == nil && entry.SourceMapPath != "" {
			dir := filepath.Dir(sourcesPath)
			mapBytes, err := r.ReadFile(filepath.Join(dir, entry.SourceMapPath))
			if err != nil {
				return nil, &IoError{Path: entry.SourceMapPath, Err: err}
			}
			rawMap = &rawSourceMapV3{}
			if err := json.Unmarshal(mapBytes, rawMap); err != nil {
				return nil, &BadTraceError{Field: "source-map", Reason: err.Error()}
			}
		}
		sm, err := DecodeSourceMap(rawMap)
		if err != nil {
			return nil, err
		}

		dir := filepath.Dir(sourcesPath)
		text, err := r.ReadFile(filepath.Join(dir, entry.Filename))
		if err != nil {
			return nil, &IoError{Path: entry.Filename, Err: err}
		}

		sources[hash] = &ProgramSource{
			Hash:     hash,
			Filename: entry.Filename,
			Text:     string(text),
			Map:      sm,
		}
		logger.WithField("file", entry.Filename).Debug("loaded program source")
	}

	if err := verifyAllProgramsHaveSource(raw, sources); err != nil {
		return nil, err
	}

	pretty, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return nil, &BadTraceError{Field: "<root>", Reason: err.Error()}
	}

	return &TraceAssets{Sources: sources, Pretty: bytes.ReplaceAll(pretty, []byte("\r\n"), []byte("\n")), raw: &raw}, nil
}

// verifyAllProgramsHaveSource walks every exec-trace in the response,
// recursing into inner-trace, and checks the invariant from spec.md §3:
// "every program executed anywhere in the simulation has a matching entry
// in the source map; otherwise load fails".
func verifyAllProgramsHaveSource(raw rawSimulateResponse, sources map[ProgramHash]*ProgramSource) error {
	var walk func(t *rawExecTrace) error
	walk = func(t *rawExecTrace) error {
		if t == nil {
			return nil
		}
		check := func(hash []byte, used bool) error {
			if !used {
				return nil
			}
			if len(hash) != 32 {
				return &BadTraceError{Field: "exec-trace.*-hash", Reason: "missing program hash for executed program"}
			}
			var h ProgramHash
			copy(h[:], hash)
			if _, ok := sources[h]; !ok {
				return &MissingSourceError{Hash: h}
			}
			return nil
		}
		if err := check(t.ApprovalProgramHash, len(t.ApprovalProgramTrace) > 0); err != nil {
			return err
		}
		if err := check(t.ClearStateProgramHash, len(t.ClearStateProgramTrace) > 0); err != nil {
			return err
		}
		if err := check(t.LogicSigHash, len(t.LogicSigTrace) > 0); err != nil {
			return err
		}
		for i := range t.InnerTrace {
			if err := walk(&t.InnerTrace[i]); err != nil {
				return err
			}
		}
		return nil
	}
	for _, g := range raw.TxnGroups {
		for _, r := range g.TxnResults {
			if err := walk(r.ExecTrace); err != nil {
				return err
			}
		}
	}
	return nil
}
