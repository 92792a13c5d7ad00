package avm

// Breakpoint is a user-requested stop location, keyed by source file.
// Column is optional: when absent, the breakpoint matches any column on
// Line (spec.md leaves the no-column case unspecified; this adapter treats
// an absent column as "any column on this line" rather than requiring a
// literal column-0 entry, matching how most DAP clients send line-only
// breakpoints from a gutter click).
type Breakpoint struct {
	ID       int
	File     string
	Line     int
	Column   int
	HasCol   bool
	Verified bool
}

// BreakpointTable holds a session's breakpoints, verified or not, keyed by
// file, and resolves (frame, event) positions against the verified ones
// during Continue / ReverseContinue.
type BreakpointTable struct {
	assets  *TraceAssets
	byFile  map[string][]*Breakpoint
	nextID  int
}

// NewBreakpointTable builds an empty table bound to assets' source maps.
func NewBreakpointTable(assets *TraceAssets) *BreakpointTable {
	return &BreakpointTable{assets: assets, byFile: make(map[string][]*Breakpoint), nextID: 1}
}

// programSourceFor returns the ProgramSource whose filename matches file,
// or nil. Breakpoints are filed by file path, but verification needs a
// source map, which lives per program hash; in practice one file belongs to
// exactly one program in a given trace, so the first match wins.
func (t *BreakpointTable) programSourceFor(file string) *ProgramSource {
	for _, ps := range t.assets.Sources {
		if ps.Filename == file {
			return ps
		}
	}
	return nil
}

// ProgramSourceForPath exposes programSourceFor to callers outside the
// package, such as the DAP layer's breakpointLocations handler.
func (t *BreakpointTable) ProgramSourceForPath(file string) *ProgramSource {
	return t.programSourceFor(file)
}

// SetFile replaces the breakpoint set for file with bps (ids are assigned
// here so repeated setBreakpoints calls for the same file get fresh ids,
// matching DAP's "this call fully replaces this file's breakpoints"
// contract), verifying each against the file's source map. Returns the new
// breakpoints in request order, so callers can report verified/line back
// to the client positionally.
func (t *BreakpointTable) SetFile(file string, requests []struct {
	Line   int
	Column int
	HasCol bool
}) []*Breakpoint {
	ps := t.programSourceFor(file)
	out := make([]*Breakpoint, len(requests))
	for i, r := range requests {
		bp := &Breakpoint{ID: t.nextID, File: file, Line: r.Line, Column: r.Column, HasCol: r.HasCol}
		t.nextID++
		if ps != nil {
			if r.HasCol {
				bp.Verified = len(ps.Map.LocationToPCs(r.Line, r.Column)) > 0
			} else {
				bp.Verified = len(ps.Map.FileLineToEntries(r.Line)) > 0
			}
		}
		out[i] = bp
	}
	t.byFile[file] = out
	return out
}

// Matches reports whether pos's source location is hit by any verified
// breakpoint, per spec.md §4.5's "Breakpoint match" rule.
func (t *BreakpointTable) Matches(pos Position) bool {
	if !pos.Frame.HasProgram() {
		return false
	}
	ps, ok := t.assets.Sources[pos.Frame.Program]
	if !ok {
		return false
	}
	bps := t.byFile[ps.Filename]
	if len(bps) == 0 {
		return false
	}
	loc, ok := ps.Map.PCToLoc(pos.Frame.Events[pos.Index].PC)
	if !ok {
		return false
	}
	for _, bp := range bps {
		if !bp.Verified {
			continue
		}
		if bp.Line != loc.Line {
			continue
		}
		if bp.HasCol && bp.Column != loc.Column {
			continue
		}
		return true
	}
	return false
}
