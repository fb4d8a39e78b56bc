package design

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/carbocation/golimma"
	"github.com/carbocation/pfx"
	"gonum.org/v1/gonum/mat"
)

// ParseGroups expands a compact group specification into one label per
// sample. Entries are comma separated; an entry of the form label*n repeats
// the label n times, so "V_group*5,D_group*5" yields ten labels.
func ParseGroups(spec string) ([]string, error) {
	out := make([]string, 0)

	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		star := strings.LastIndex(entry, "*")
		if star < 0 {
			out = append(out, entry)
			continue
		}

		label := strings.TrimSpace(entry[:star])
		n, err := strconv.Atoi(strings.TrimSpace(entry[star+1:]))
		if err != nil || n < 1 || label == "" {
			return nil, fmt.Errorf("could not parse group entry %q; expected label or label*count", entry)
		}
		for i := 0; i < n; i++ {
			out = append(out, label)
		}
	}

	if len(out) < 1 {
		return nil, fmt.Errorf("group specification %q contains no labels", spec)
	}

	return out, nil
}

// ReadSampleSheet reads a delimited file whose first column is a sample ID and
// whose second column is that sample's group. A header row is expected.
func ReadSampleSheet(path string) (samples, groups []string, err error) {
	records, err := readDelimited(path)
	if err != nil {
		return nil, nil, err
	}

	if len(records) < 2 {
		return nil, nil, fmt.Errorf("%s: sample sheet has no samples", path)
	}

	for i, rec := range records[1:] {
		if len(rec) < 2 {
			return nil, nil, fmt.Errorf("%s: line %d has %d columns; need sample and group", path, i+2, len(rec))
		}
		samples = append(samples, strings.TrimSpace(rec[0]))
		groups = append(groups, strings.TrimSpace(rec[1]))
	}

	return samples, groups, nil
}

// Read loads an arbitrary numeric design. The first column holds sample IDs and
// each remaining header names a coefficient.
func Read(path string) (*Matrix, error) {
	records, err := readDelimited(path)
	if err != nil {
		return nil, err
	}

	if len(records) < 2 || len(records[0]) < 2 {
		return nil, fmt.Errorf("%s: design needs a header, a sample column, at least one coefficient and one sample", path)
	}

	header := records[0]
	columns := make([]string, 0, len(header)-1)
	for _, v := range header[1:] {
		columns = append(columns, strings.TrimSpace(v))
	}

	samples := make([]string, 0, len(records)-1)
	x := mat.NewDense(len(records)-1, len(columns), nil)
	for i, rec := range records[1:] {
		samples = append(samples, strings.TrimSpace(rec[0]))
		for j := range columns {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[j+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("%s: line %d column %s: %w", path, i+2, columns[j], err)
			}
			x.Set(i, j, v)
		}
	}

	return &Matrix{Samples: samples, Columns: columns, X: x}, nil
}

func readDelimited(path string) ([][]string, error) {
	b, err := os.ReadFile(golimma.ExpandHome(path))
	if err != nil {
		return nil, pfx.Err(err)
	}

	cr := csv.NewReader(bytes.NewReader(b))
	cr.Comma = golimma.DetermineDelimiter(bytes.NewReader(b))
	cr.Comment = '#'

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return records, nil
}
