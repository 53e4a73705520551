package chunker

import "strings"

// Attribution locates one segment within the consolidated buffer and resolves
// the pages it overlaps.
type Attribution struct {
	Start       int   // byte offset of the segment in the buffer, -1 when not found
	End         int   // half-open end offset, -1 when not found
	PageNumbers []int // ascending page numbers the segment overlaps, nil when not found
}

// Attribute searches for segment at or after cursor and returns its
// attribution together with the cursor for the next segment. Segments arrive
// in buffer order, so the first occurrence at or after the cursor is
// authoritative even when identical text recurs later in the document.
//
// The returned cursor is Start+1, not End: consecutive segments share overlap
// characters, and advancing past the match end would make the next segment
// unfindable whenever overlap > 0.
//
// A segment that cannot be found yields an empty attribution and leaves the
// cursor unchanged; downstream page fields degrade rather than failing the
// chunking pass.
func Attribute(buffer, segment string, markers []PageMarker, cursor int) (Attribution, int) {
	if cursor < 0 || cursor > len(buffer) {
		cursor = 0
	}
	idx := strings.Index(buffer[cursor:], segment)
	if idx < 0 {
		return Attribution{Start: -1, End: -1}, cursor
	}

	start := cursor + idx
	end := start + len(segment)
	var pages []int
	for _, m := range markers {
		if start < m.End && end > m.Start {
			pages = append(pages, m.PageNumber)
		}
	}
	return Attribution{Start: start, End: end, PageNumbers: pages}, start + 1
}
