package exprtable

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/golimma"
	"github.com/carbocation/pfx"
)

var missingTokens = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"#N/A": {},
	"NaN":  {},
	"nan":  {},
	"null": {},
	"NULL": {},
}

// ReadFile reads an expression table from a local path or, when client is
// non-nil, a gs:// path. Compressed inputs are detected by their magic bytes
// and the delimiter is guessed from the content. Paths ending in .xls are read
// as Excel workbooks.
func ReadFile(ctx context.Context, path string, client *storage.Client) (*Table, error) {
	if strings.HasSuffix(strings.ToLower(path), ".xls") && !golimma.IsGoogleStoragePath(path) {
		return ReadXLS(golimma.ExpandHome(path))
	}

	rc, err := golimma.Open(ctx, path, client)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r, _, err := golimma.MaybeDecompress(rc)
	if err != nil {
		return nil, pfx.Err(err)
	}

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, pfx.Err(err)
	}

	delim := golimma.DetermineDelimiter(bytes.NewReader(b))

	t, err := Read(bytes.NewReader(b), delim)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return t, nil
}

// Read parses a delimited expression table with a header row.
func Read(r io.Reader, delim rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.Comment = '#'
	// encoding/csv trims whitespace delimiters too, which would swallow empty
	// cells in tab separated files.
	cr.TrimLeadingSpace = delim != '\t' && delim != ' '

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}

	if len(records) < 1 {
		return nil, fmt.Errorf("expression table is empty")
	}

	return FromRecords(records[0], records[1:])
}

// FromRecords converts a header and string rows into a Table. The first
// column of every row is the gene identifier.
func FromRecords(header []string, rows [][]string) (*Table, error) {
	if len(header) < 2 {
		return nil, fmt.Errorf("expression table header has %d columns; need a gene column and at least one sample", len(header))
	}

	samples := make([]string, 0, len(header)-1)
	for _, v := range header[1:] {
		samples = append(samples, strings.TrimSpace(v))
	}

	genes := make([]string, 0, len(rows))
	values := make([]float64, 0, len(rows)*len(samples))
	for i, row := range rows {
		if len(row) > len(header) {
			return nil, fmt.Errorf("line %d has %d columns, but the header has %d", i+2, len(row), len(header))
		}
		genes = append(genes, strings.TrimSpace(row[0]))

		for j := 1; j < len(header); j++ {
			// Spreadsheets drop trailing empty cells
			if j >= len(row) {
				values = append(values, math.NaN())
				continue
			}

			v, err := ParseValue(row[j])
			if err != nil {
				return nil, fmt.Errorf("line %d, sample %q: %w", i+2, samples[j-1], err)
			}
			values = append(values, v)
		}
	}

	return New(genes, samples, values)
}

// ParseValue converts one cell to a float64. Missing-value markers become NaN.
func ParseValue(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	if _, missing := missingTokens[cell]; missing {
		return math.NaN(), nil
	}

	return strconv.ParseFloat(cell, 64)
}
