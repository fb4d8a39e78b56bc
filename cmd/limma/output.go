package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"log"
	"math"
	"os"
	"strconv"

	"github.com/carbocation/golimma"
	"github.com/carbocation/golimma/enrich"
	"github.com/carbocation/golimma/limma"
	"github.com/carbocation/golimma/plot"
	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
)

// bufferedOutput wraps wc in a writer of BufferSize. finish flushes the
// buffer and closes wc, reporting the first error from either.
func bufferedOutput(wc io.WriteCloser) (w *bufio.Writer, finish func() error) {
	w = bufio.NewWriterSize(wc, BufferSize)

	return w, func() error {
		if err := w.Flush(); err != nil {
			wc.Close()
			return pfx.Err(err)
		}
		return pfx.Err(wc.Close())
	}
}

// tableRow is a TopTableRow without the confidence interval columns.
type tableRow struct {
	ID        string  `csv:"ID"`
	LogFC     float64 `csv:"logFC"`
	AveExpr   float64 `csv:"AveExpr"`
	T         float64 `csv:"t"`
	PValue    float64 `csv:"P.Value"`
	AdjPValue float64 `csv:"adj.P.Val"`
	B         float64 `csv:"B"`
}

func newWriter(w io.Writer, delim rune) *gocsv.SafeCSVWriter {
	cw := csv.NewWriter(w)
	cw.Comma = delim
	return gocsv.NewSafeCSVWriter(cw)
}

// WriteTopTable writes one row per gene with a header.
func WriteTopTable(w io.Writer, delim rune, rows []limma.TopTableRow, withCI bool) error {
	if withCI {
		return gocsv.MarshalCSV(rows, newWriter(w, delim))
	}

	out := make([]tableRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, tableRow{
			ID:        r.ID,
			LogFC:     r.LogFC,
			AveExpr:   r.AveExpr,
			T:         r.T,
			PValue:    r.PValue,
			AdjPValue: r.AdjPValue,
			B:         r.B,
		})
	}

	return gocsv.MarshalCSV(out, newWriter(w, delim))
}

// WriteTopTableF writes the multi-coefficient table. Its columns depend on the
// coefficients, so it cannot be described by struct tags.
func WriteTopTableF(w io.Writer, delim rune, fit *limma.Fit, coefs []int, rows []limma.TopTableFRow) error {
	cw := csv.NewWriter(w)
	cw.Comma = delim

	header := []string{"ID"}
	for _, j := range coefs {
		header = append(header, fit.CoefNames[j])
	}
	header = append(header, "AveExpr", "F", "P.Value", "adj.P.Val")
	if err := cw.Write(header); err != nil {
		return pfx.Err(err)
	}

	for _, r := range rows {
		line := []string{r.ID}
		for _, v := range r.Coefs {
			line = append(line, formatFloat(v))
		}
		line = append(line, formatFloat(r.AveExpr), formatFloat(r.F), formatFloat(r.PValue), formatFloat(r.AdjPValue))
		if err := cw.Write(line); err != nil {
			return pfx.Err(err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func makeFigures(rows []limma.TopTableRow, alpha float64, volcanoPath, maPath string, hist bool) error {
	if hist {
		p := make([]float64, 0, len(rows))
		for _, r := range rows {
			p = append(p, r.PValue)
		}
		if err := plot.PValueHistogram(p, os.Stderr); err != nil {
			return err
		}
	}

	figures := []struct {
		path string
		draw func([]limma.TopTableRow, float64, io.Writer) error
	}{
		{volcanoPath, plot.Volcano},
		{maPath, plot.MA},
	}

	for _, fig := range figures {
		if fig.path == "" {
			continue
		}

		f, err := os.Create(golimma.ExpandHome(fig.path))
		if err != nil {
			return pfx.Err(err)
		}
		if err := fig.draw(rows, alpha, f); err != nil {
			f.Close()
			return pfx.Err(err)
		}
		if err := f.Close(); err != nil {
			return pfx.Err(err)
		}
		log.Println("Wrote", fig.path)
	}

	return nil
}

// testGeneSet counts genes passing alpha (and the lfc cutoff, if any) as
// significant; every gene in the table is the universe.
func testGeneSet(ctx context.Context, path string, rows []limma.TopTableRow, alpha, lfc float64) (enrich.Result, error) {
	set, err := enrich.ReadGeneSet(ctx, path, client)
	if err != nil {
		return enrich.Result{}, err
	}

	universe := make([]string, 0, len(rows))
	significant := make([]string, 0)
	for _, r := range rows {
		universe = append(universe, r.ID)
		if r.AdjPValue <= alpha && math.Abs(r.LogFC) >= lfc {
			significant = append(significant, r.ID)
		}
	}
	log.Println(len(significant), "of", len(universe), "genes are significant at adj.P.Val <=", alpha)

	return enrich.Overlap(significant, universe, set), nil
}
