package chunker

import (
	"errors"
	"fmt"
	"strings"
)

// separators is the ordered preference list for recursive splitting, coarsest
// first. The empty string is the base case: a character-level cut that always
// succeeds.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// ErrBadOverlap is returned when overlap does not satisfy 0 <= overlap < size.
var ErrBadOverlap = errors.New("chunker: overlap must be smaller than chunk size")

// Params controls one splitting pass.
type Params struct {
	Size    int // target segment size in characters
	Overlap int // approximate shared characters between consecutive segments
}

func (p Params) validate() error {
	if p.Size <= 0 {
		return fmt.Errorf("chunker: chunk size must be positive, got %d", p.Size)
	}
	if p.Overlap < 0 || p.Overlap >= p.Size {
		return fmt.Errorf("%w: size=%d overlap=%d", ErrBadOverlap, p.Size, p.Overlap)
	}
	return nil
}

// Split breaks text into ordered, non-empty segments of at most p.Size
// characters with roughly p.Overlap characters shared between neighbors.
// Segments can exceed p.Size only when a single indivisible piece forces it,
// which the character-level base case prevents in practice.
func Split(text string, p Params) ([]string, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return splitRecursive(text, separators, p), nil
}

// splitRecursive splits on the coarsest separator present in text, packs the
// resulting pieces up to the size limit, and recurses with finer separators
// into any piece that is still too large on its own.
func splitRecursive(text string, seps []string, p Params) []string {
	sep := seps[len(seps)-1]
	var finer []string
	for i, s := range seps {
		if s == "" {
			sep = s
			break
		}
		if strings.Contains(text, s) {
			sep = s
			finer = seps[i+1:]
			break
		}
	}

	pieces := splitKeepingSeparator(text, sep)

	var segments []string
	var pending []string // consecutive pieces small enough to pack
	for _, piece := range pieces {
		if len(piece) < p.Size {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			segments = append(segments, packPieces(pending, p)...)
			pending = nil
		}
		if len(finer) == 0 {
			segments = append(segments, piece)
		} else {
			segments = append(segments, splitRecursive(piece, finer, p)...)
		}
	}
	if len(pending) > 0 {
		segments = append(segments, packPieces(pending, p)...)
	}
	return segments
}

// splitKeepingSeparator splits text on sep, keeping each separator as the
// prefix of the piece that follows it so that concatenating pieces
// reconstructs the input. An empty sep yields one piece per character.
func splitKeepingSeparator(text, sep string) []string {
	if sep == "" {
		pieces := make([]string, 0, len(text))
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}

	parts := strings.Split(text, sep)
	pieces := make([]string, 0, len(parts))
	if parts[0] != "" {
		pieces = append(pieces, parts[0])
	}
	for _, part := range parts[1:] {
		pieces = append(pieces, sep+part)
	}
	return pieces
}

// packPieces greedily joins consecutive pieces into segments of at most
// p.Size characters. When a segment closes, enough trailing pieces are
// carried into the next segment to approximate p.Overlap characters of
// shared text.
func packPieces(pieces []string, p Params) []string {
	var segments []string
	var window []string
	total := 0

	flush := func() {
		seg := strings.TrimSpace(strings.Join(window, ""))
		if seg != "" {
			segments = append(segments, seg)
		}
	}

	for _, piece := range pieces {
		n := len(piece)
		if total+n > p.Size && len(window) > 0 {
			flush()
			// Back off the front of the window until the retained tail fits
			// within the overlap budget and leaves room for the next piece.
			for total > p.Overlap || (total+n > p.Size && total > 0) {
				total -= len(window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += n
	}
	flush()
	return segments
}
