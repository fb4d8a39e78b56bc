package golimma

import (
	"io"

	"github.com/csimplestring/go-csv/detector"
)

// Delimiters that an expression table or sample sheet may plausibly use. The
// detector will happily propose letters or digits for tiny files, so its
// candidates are filtered against this list.
var knownDelimiters = map[byte]struct{}{
	',':  {},
	'\t': {},
	';':  {},
	'|':  {},
	' ':  {},
}

// DetermineDelimiter returns the single most likely rune that would delimit the
// values in the reader, assuming a CSV-like file.
func DetermineDelimiter(r io.Reader) rune {
	d := detector.New()
	delimiters := d.DetectDelimiter(r, '"')

	for _, candidate := range delimiters {
		if len(candidate) < 1 {
			continue
		}
		if _, ok := knownDelimiters[candidate[0]]; ok {
			return rune(candidate[0])
		}
	}

	return ','
}
