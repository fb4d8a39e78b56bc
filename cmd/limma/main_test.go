package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/carbocation/golimma/contrast"
	"github.com/carbocation/golimma/limma"
	"github.com/google/go-cmp/cmp"
)

// writeExpression writes a small two group table shaped like the reference
// input: gene ID, then five V_group and five D_group samples.
func writeExpression(t *testing.T) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("Gene,V1,V2,V3,V4,V5,D1,D2,D3,D4,D5\n")
	for i := 0; i < 12; i++ {
		shift := 0.0
		if i%4 == 0 {
			shift = 3
		}
		fmt.Fprintf(&b, "G%d", i)
		for j := 0; j < 10; j++ {
			v := 5 + float64(i)*0.1 + float64((i*7+j*3)%5)*0.2
			if j >= 5 {
				v += shift
			}
			fmt.Fprintf(&b, ",%g", v)
		}
		b.WriteString("\n")
	}

	path := filepath.Join(t.TempDir(), "expr.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}

	return path
}

func runReference(t *testing.T, in input, formulas ...string) *limma.Fit {
	t.Helper()

	in.BQ.Context = context.Background()
	table, d, err := in.load(nil)
	if err != nil {
		t.Fatal(err)
	}

	fit, err := limma.LmFit(table, d)
	if err != nil {
		t.Fatal(err)
	}
	cm, err := contrast.Make(d.Columns, formulas...)
	if err != nil {
		t.Fatal(err)
	}
	if fit, err = limma.ContrastsFit(fit, cm); err != nil {
		t.Fatal(err)
	}
	if fit, err = limma.EBayes(fit, limma.DefaultEBayesOptions()); err != nil {
		t.Fatal(err)
	}

	return fit
}

func TestReferencePipeline(t *testing.T) {
	in := input{
		Expression: writeExpression(t),
		Groups:     "V_group*5,D_group*5",
		Levels:     "V_group,D_group",
	}
	fit := runReference(t, in, "D_group - V_group")

	coefs, err := parseCoefs("0", fit)
	if err != nil {
		t.Fatal(err)
	}
	rows, err := limma.TopTable(fit, limma.TopTableOptions{Coef: coefs, AdjustMethod: limma.AdjustBH, SortBy: limma.SortByB, PValue: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 12 {
		t.Fatalf("expected a row per gene, got %d", len(rows))
	}

	var buf bytes.Buffer
	if err := WriteTopTable(&buf, '\t', rows, false); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if diff := cmp.Diff("ID\tlogFC\tAveExpr\tt\tP.Value\tadj.P.Val\tB", lines[0]); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	if len(lines) != 13 {
		t.Errorf("expected 13 lines, got %d", len(lines))
	}

	// The shifted genes lead
	for _, r := range rows[:3] {
		if r.LogFC < 2 {
			t.Errorf("%s ranks near the top with logFC %v", r.ID, r.LogFC)
		}
	}
}

func TestWriteTopTableWithCI(t *testing.T) {
	rows := []limma.TopTableRow{{ID: "G1", LogFC: 1.5, CILeft: 1, CIRight: 2, AveExpr: 7, T: 4, PValue: 0.001, AdjPValue: 0.01, B: 2}}

	var buf bytes.Buffer
	if err := WriteTopTable(&buf, ',', rows, true); err != nil {
		t.Fatal(err)
	}

	want := "ID,logFC,CI.L,CI.R,AveExpr,t,P.Value,adj.P.Val,B\nG1,1.5,1,2,7,4,0.001,0.01,2\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteTopTableF(t *testing.T) {
	in := input{
		Expression: writeExpression(t),
		Groups:     "A*3,B*3,C*4",
	}
	fit := runReference(t, in, "B - A", "C - A")

	coefs, err := parseCoefs("B - A, 1", fit)
	if err != nil {
		t.Fatal(err)
	}
	rows, err := limma.TopTableF(fit, limma.TopTableOptions{Coef: coefs, AdjustMethod: limma.AdjustBH, SortBy: limma.SortByF, PValue: 1})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteTopTableF(&buf, '\t', fit, coefs, rows); err != nil {
		t.Fatal(err)
	}
	header := strings.SplitN(buf.String(), "\n", 2)[0]
	if diff := cmp.Diff("ID\tB - A\tC - A\tAveExpr\tF\tP.Value\tadj.P.Val", header); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCoefs(t *testing.T) {
	in := input{
		Expression: writeExpression(t),
		Groups:     "V_group*5,D_group*5",
	}
	fit := runReference(t, in, "D_group - V_group")

	for _, bad := range []string{"1", "-1", "nope", ""} {
		if _, err := parseCoefs(bad, fit); !errors.Is(err, limma.ErrCoefOutOfRange) {
			t.Errorf("%q: expected ErrCoefOutOfRange, got %v", bad, err)
		}
	}

	got, err := parseCoefs("D_group - V_group", fit)
	if err != nil || len(got) != 1 || got[0] != 0 {
		t.Errorf("lookup by name gave %v, %v", got, err)
	}
}

func TestLoadGroupCountMismatch(t *testing.T) {
	in := input{
		Expression: writeExpression(t),
		Groups:     "V_group*5,D_group*4",
	}
	in.BQ.Context = context.Background()

	if _, _, err := in.load(nil); err == nil {
		t.Errorf("expected an error when group labels do not cover every sample")
	}
}

func TestLoadSampleSheet(t *testing.T) {
	dir := t.TempDir()
	sheet := filepath.Join(dir, "samples.tsv")
	body := "sample\tgroup\nD1\tD_group\nD2\tD_group\nV1\tV_group\nV2\tV_group\nV3\tV_group\n"
	if err := os.WriteFile(sheet, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	in := input{
		Expression:  writeExpression(t),
		SampleSheet: sheet,
		Levels:      "V_group,D_group",
	}
	in.BQ.Context = context.Background()

	table, d, err := in.load(nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"D1", "D2", "V1", "V2", "V3"}, table.Samples); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}
	if d.X.At(0, 1) != 1 || d.X.At(4, 0) != 1 {
		t.Errorf("unexpected design\n%s", d)
	}
}

func TestLoadThreeGeneTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.csv")
	body := "Gene,V1,V2,V3,D1,D2,D3\nA,1.0,1.1,0.9,2.0,2.1,NA\nB,5.0,5.2,4.9,5.1,5.0,5.3\nC,3.3,NA,3.1,2.0,2.2,2.1\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	in := input{
		Expression: path,
		Groups:     "V_group*3,D_group*3",
		Levels:     "V_group,D_group",
	}
	in.BQ.Context = context.Background()

	table, d, err := in.load(nil)
	if err != nil {
		t.Fatal(err)
	}
	if table.NGenes() != 3 || d.NCoefs() != 2 {
		t.Errorf("Expected 3 genes and 2 coefficients, got %d and %d", table.NGenes(), d.NCoefs())
	}
}

func TestParseDelimiter(t *testing.T) {
	for in, want := range map[string]rune{"tab": '\t', "comma": ',', ",": ','} {
		got, err := parseDelimiter(in)
		if err != nil || got != want {
			t.Errorf("%q: got %q (%v), expected %q", in, got, err, want)
		}
	}

	if _, err := parseDelimiter("pipe"); err == nil {
		t.Errorf("expected an error for an unsupported delimiter")
	}
}

type shortWriter struct {
	closed bool
}

func (s *shortWriter) Write(p []byte) (int, error) {
	return 0, errNoSpace
}

func (s *shortWriter) Close() error {
	s.closed = true
	return nil
}

var errNoSpace = errors.New("no space left on device")

func TestBufferedOutputReportsFlushErrors(t *testing.T) {
	sw := &shortWriter{}
	w, finish := bufferedOutput(sw)

	// Small writes stay in the buffer, so the failure only surfaces on flush
	if _, err := w.WriteString("ID\tlogFC\n"); err != nil {
		t.Fatal(err)
	}
	if err := finish(); !errors.Is(err, errNoSpace) {
		t.Errorf("Expected the write error from finish, got %v", err)
	}
	if !sw.closed {
		t.Error("Expected the output to be closed after a failed flush")
	}
}

func TestBufferedOutputWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.tsv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}

	w, finish := bufferedOutput(f)
	if _, err := w.WriteString("ID\tlogFC\nG0\t3\n"); err != nil {
		t.Fatal(err)
	}
	if err := finish(); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "ID\tlogFC\nG0\t3\n" {
		t.Errorf("Unexpected file contents %q", got)
	}
}
