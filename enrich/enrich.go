// Package enrich tests whether a gene set is over-represented among the
// differentially expressed genes.
package enrich

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/golimma"
	"github.com/carbocation/pfx"
	fet "github.com/glycerine/golang-fisher-exact"
)

// Result is the 2x2 table
//
//	                in set   not in set
//	significant      N11        N12
//	not significant  N21        N22
//
// together with Fisher's exact test on it.
type Result struct {
	N11, N12, N21, N22 int

	OddsRatio float64
	LeftP     float64
	RightP    float64
	TwoSidedP float64
}

func (r Result) String() string {
	return fmt.Sprintf("%d of %d significant genes are in the set (set size %d of %d tested). Odds ratio %.3g, Fisher exact P=%.3g",
		r.N11, r.N11+r.N12, r.N11+r.N21, r.N11+r.N12+r.N21+r.N22, r.OddsRatio, r.TwoSidedP)
}

// Overlap counts significant genes inside and outside of the set. Genes in
// significant or set that are not part of the universe are ignored.
func Overlap(significant, universe, set []string) Result {
	inUniverse := toSet(universe)
	inSet := toSet(set)

	sig := make(map[string]struct{})
	for _, g := range significant {
		if _, ok := inUniverse[g]; ok {
			sig[g] = struct{}{}
		}
	}

	var res Result
	for g := range inUniverse {
		_, s := sig[g]
		_, m := inSet[g]
		switch {
		case s && m:
			res.N11++
		case s:
			res.N12++
		case m:
			res.N21++
		default:
			res.N22++
		}
	}

	res.OddsRatio = float64(res.N11*res.N22) / float64(res.N12*res.N21)
	_, res.LeftP, res.RightP, res.TwoSidedP = fet.FisherExactTest(res.N11, res.N12, res.N21, res.N22)

	return res
}

// ReadGeneSet reads one gene per line from the first column of a delimited
// file, which may be compressed or live in Google Storage. Lines starting with
// # are skipped and duplicates are dropped.
func ReadGeneSet(ctx context.Context, path string, client *storage.Client) ([]string, error) {
	f, err := golimma.Open(ctx, path, client)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	r, _, err := golimma.MaybeDecompress(f)
	if err != nil {
		return nil, pfx.Err(err)
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, pfx.Err(err)
	}

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.Comma = golimma.DetermineDelimiter(bytes.NewReader(raw))
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	lines, err := cr.ReadAll()
	if err != nil {
		return nil, pfx.Err(err)
	}

	seen := make(map[string]struct{})
	genes := make([]string, 0, len(lines))
	for _, cols := range lines {
		if len(cols) < 1 {
			continue
		}
		// Mixed delimiters defeat detection, so fall back to whitespace
		fields := strings.Fields(cols[0])
		if len(fields) < 1 {
			continue
		}
		g := fields[0]
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		genes = append(genes, g)
	}

	return genes, nil
}

func toSet(x []string) map[string]struct{} {
	out := make(map[string]struct{}, len(x))
	for _, v := range x {
		out[v] = struct{}{}
	}

	return out
}
