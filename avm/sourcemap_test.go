package avm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeVLQ is the inverse of decodeVLQ, used only to build mappings strings
// for tests without hand-typing base64.
func encodeVLQ(v int) string {
	uv := v << 1
	if v < 0 {
		uv = (-v << 1) | 1
	}
	var out strings.Builder
	for {
		digit := uv & 31
		uv >>= 5
		if uv > 0 {
			digit |= 32
		}
		out.WriteByte(b64table[digit])
		if uv == 0 {
			break
		}
	}
	return out.String()
}

func encodeGroup(fileDelta, lineDelta, colDelta int) string {
	return strings.Join([]string{encodeVLQ(0), encodeVLQ(fileDelta), encodeVLQ(lineDelta), encodeVLQ(colDelta)}, ",")
}

// buildMappings returns a mappings string with one group per entry in locs,
// in increasing PC order (PC == index). Line and column are cumulative
// deltas per the VLQ mapping format, so this converts the caller's absolute
// per-pc (line, column) pairs into the deltas the format expects.
func buildMappings(locs [][2]int) string {
	groups := make([]string, len(locs))
	prevLine, prevCol := 0, 0
	for i, loc := range locs {
		line, col := loc[0], loc[1]
		groups[i] = encodeGroup(0, line-prevLine, col-prevCol)
		prevLine, prevCol = line, col
	}
	return strings.Join(groups, ";")
}

func TestDecodeSourceMapRejectsWrongVersion(t *testing.T) {
	_, err := DecodeSourceMap(&rawSourceMapV3{Version: 2})
	require.Error(t, err)
	var bte *BadTraceError
	require.ErrorAs(t, err, &bte)
}

func TestDecodeSourceMapRejectsNil(t *testing.T) {
	_, err := DecodeSourceMap(nil)
	require.Error(t, err)
}

func TestDecodeSourceMapPCToLoc(t *testing.T) {
	mappings := buildMappings([][2]int{{0, 0}, {0, 0}, {2, 4}})
	sm, err := DecodeSourceMap(&rawSourceMapV3{Version: 3, Sources: []string{"p.teal"}, Mappings: mappings})
	require.NoError(t, err)

	loc, ok := sm.PCToLoc(0)
	require.True(t, ok)
	assert.Equal(t, Location{FileID: 0, Line: 0, Column: 0}, loc)

	loc, ok = sm.PCToLoc(2)
	require.True(t, ok)
	assert.Equal(t, Location{FileID: 0, Line: 2, Column: 4}, loc)

	_, ok = sm.PCToLoc(99)
	assert.False(t, ok)
}

func TestSourceMapLocationToPCsAndFileLineToEntries(t *testing.T) {
	mappings := buildMappings([][2]int{{0, 1}, {1, 2}, {2, 2}})
	sm, err := DecodeSourceMap(&rawSourceMapV3{Version: 3, Sources: []string{"p.teal"}, Mappings: mappings})
	require.NoError(t, err)

	entries := sm.FileLineToEntries(0)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Column)

	pcs := sm.LocationToPCs(2, 2)
	require.Len(t, pcs, 1)
	assert.Equal(t, uint64(2), pcs[0])
}

func TestBreakpointLocationsDeduplicatesAndSorts(t *testing.T) {
	// Two PCs land on the same (line, column); one more on a later line.
	mappings := buildMappings([][2]int{{0, 3}, {0, 3}, {2, 1}})
	sm, err := DecodeSourceMap(&rawSourceMapV3{Version: 3, Sources: []string{"p.teal"}, Mappings: mappings})
	require.NoError(t, err)

	locs := sm.BreakpointLocations(0, 2)
	require.Len(t, locs, 2)
	assert.Equal(t, BreakpointLocation{Line: 0, Column: 3}, locs[0])
	assert.Equal(t, BreakpointLocation{Line: 2, Column: 1}, locs[1])
}
