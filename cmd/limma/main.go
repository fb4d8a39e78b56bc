// limma fits a linear model to every gene of an expression table, moderates
// the statistics with empirical Bayes, and prints a ranked table of
// differentially expressed genes.
//
// The reference two group analysis is:
//
//	limma -expression Harmine_iTSA.csv -groups V_group*5,D_group*5 \
//	  -levels V_group,D_group -contrast "D_group - V_group" -coef 0
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/golimma"
	_ "github.com/carbocation/golimma/compileinfoprint"
	"github.com/carbocation/golimma/contrast"
	"github.com/carbocation/golimma/limma"
)

var (
	BufferSize = 4096 * 8
	STDOUT     = bufio.NewWriterSize(os.Stdout, BufferSize)
)

// Safe for concurrent use by multiple goroutines
var client *storage.Client

type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, "; ")
}

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	defer STDOUT.Flush()

	var (
		in         input
		contrasts  stringList
		coefs      string
		number     int
		sortBy     string
		adjust     string
		pCutoff    float64
		lfc        float64
		confint    float64
		proportion float64
		outPath    string
		outDelim   string
		volcano    string
		ma         string
		geneSet    string
		hist       bool
	)

	flag.StringVar(&in.Expression, "expression", "", "Expression table: a delimited file (optionally compressed, or .xls), a gs:// path, or 'bq' to read the long-format table named by -bq-table. First column is the gene ID, one column per sample.")
	flag.StringVar(&in.BQ.Project, "bq-project", "", "Google Cloud project that hosts the BigQuery dataset (only with -expression bq)")
	flag.StringVar(&in.BQ.Database, "bq-dataset", "", "BigQuery dataset holding -bq-table (only with -expression bq)")
	flag.StringVar(&in.BQTable, "bq-table", "", "BigQuery table with gene_id, sample_id and value columns (only with -expression bq)")
	flag.StringVar(&in.Groups, "groups", "", "Group label of every sample, in table order. Comma separated; label*n repeats a label, e.g. V_group*5,D_group*5")
	flag.StringVar(&in.SampleSheet, "samplesheet", "", "Alternative to -groups: delimited file with a header, sample ID in column 1 and group in column 2. Only the listed samples are analyzed, in that order.")
	flag.StringVar(&in.Levels, "levels", "", "Optional. Comma separated group levels, which fixes the order of design columns. Defaults to the sorted distinct groups.")
	flag.StringVar(&in.Design, "design", "", "Alternative to -groups: delimited numeric design file with sample IDs in column 1 and one column per coefficient.")
	flag.Var(&contrasts, "contrast", "Contrast among the design columns, e.g. 'D_group - V_group' or 'DvsV = D_group - V_group'. May be repeated. If absent, the design coefficients are reported directly.")
	flag.StringVar(&coefs, "coef", "0", "Comma separated coefficients (0-based index or name) to report. More than one gives an F-test table.")
	flag.IntVar(&number, "number", 0, "Maximum number of genes to print. 0 prints every gene.")
	flag.StringVar(&sortBy, "sort", "B", "Sort order: B, P, t, logFC, AveExpr, F or none")
	flag.StringVar(&adjust, "adjust", "BH", "Multiple testing adjustment: BH, BY, holm, hochberg, bonferroni or none")
	flag.Float64Var(&pCutoff, "p", 1, "Only print genes with an adjusted p-value at or below this value")
	flag.Float64Var(&lfc, "lfc", 0, "Only print genes with an absolute log fold change at or above this value")
	flag.Float64Var(&confint, "confint", 0, "If nonzero, add confidence intervals for logFC at this level, e.g. 0.95")
	flag.Float64Var(&proportion, "proportion", 0.01, "Assumed proportion of differentially expressed genes, used for the B-statistic")
	flag.StringVar(&outPath, "out", "", "Optional. File to write the table to. Defaults to STDOUT.")
	flag.StringVar(&outDelim, "out-delim", "tab", "Output delimiter: tab or comma")
	flag.StringVar(&volcano, "volcano", "", "Optional. PNG file for a volcano plot")
	flag.StringVar(&ma, "ma", "", "Optional. PNG file for an MA plot")
	flag.StringVar(&geneSet, "geneset", "", "Optional. File with one gene per line; tests it for over-representation among significant genes")
	flag.BoolVar(&hist, "hist", false, "Print a histogram of p-values to STDERR?")
	flag.Parse()

	if in.Expression == "" || (in.Groups == "" && in.SampleSheet == "" && in.Design == "") {
		flag.PrintDefaults()
		os.Exit(1)
	}

	adjustMethod, err := limma.ParseAdjustMethod(adjust)
	if err != nil {
		log.Fatalln(err)
	}
	sortOrder, err := limma.ParseSortBy(sortBy)
	if err != nil {
		log.Fatalln(err)
	}
	delim, err := parseDelimiter(outDelim)
	if err != nil {
		log.Fatalln(err)
	}

	ctx := context.Background()
	if in.needsStorage(geneSet) {
		client, err = storage.NewClient(ctx)
		if err != nil {
			log.Fatalln(err)
		}
	}
	in.BQ.Context = ctx

	table, d, err := in.load(client)
	if err != nil {
		log.Fatalln(err)
	}
	log.Println("Analyzing", table.NGenes(), "genes in", table.NSamples(), "samples")
	log.Printf("Design:\n%s", d)

	fit, err := limma.LmFit(table, d)
	if err != nil {
		log.Fatalln(err)
	}

	if len(contrasts) > 0 {
		cm, err := contrast.Make(d.Columns, contrasts...)
		if err != nil {
			log.Fatalln(err)
		}
		log.Printf("Contrasts:\n%s", cm)

		fit, err = limma.ContrastsFit(fit, cm)
		if err != nil {
			log.Fatalln(err)
		}
	}

	opts := limma.DefaultEBayesOptions()
	opts.Proportion = proportion
	fit, err = limma.EBayes(fit, opts)
	if err != nil {
		log.Fatalln(err)
	}
	log.Printf("Prior df %.3g, prior variance %.3g\n", fit.Moderated.DFPrior, fit.Moderated.S2Prior)

	coefIdx, err := parseCoefs(coefs, fit)
	if err != nil {
		log.Fatalln(err)
	}

	ttOpts := limma.TopTableOptions{
		Coef:         coefIdx,
		Number:       number,
		AdjustMethod: adjustMethod,
		SortBy:       sortOrder,
		PValue:       pCutoff,
		LFC:          lfc,
		Confint:      confint,
	}

	w, finish := STDOUT, STDOUT.Flush
	if outPath != "" {
		f, err := os.Create(golimma.ExpandHome(outPath))
		if err != nil {
			log.Fatalln(err)
		}
		w, finish = bufferedOutput(f)
	}

	if len(coefIdx) > 1 {
		rows, err := limma.TopTableF(fit, ttOpts)
		if err != nil {
			log.Fatalln(err)
		}
		if err := WriteTopTableF(w, delim, fit, coefIdx, rows); err != nil {
			log.Fatalln(err)
		}
		if err := finish(); err != nil {
			log.Fatalln(err)
		}
		log.Println("Wrote", len(rows), "genes")

		if volcano != "" || ma != "" || geneSet != "" {
			log.Println("Plots and gene set tests need a single -coef; skipping them")
		}
		summarizeDecisions(fit, adjustMethod)
		return
	}

	rows, err := limma.TopTable(fit, ttOpts)
	if err != nil {
		log.Fatalln(err)
	}
	if err := WriteTopTable(w, delim, rows, confint > 0); err != nil {
		log.Fatalln(err)
	}
	if err := finish(); err != nil {
		log.Fatalln(err)
	}
	log.Println("Wrote", len(rows), "genes")

	summarizeDecisions(fit, adjustMethod)

	if volcano == "" && ma == "" && geneSet == "" && !hist {
		return
	}

	// Plots and enrichment use every gene regardless of the printing cutoffs
	all, err := limma.TopTable(fit, limma.TopTableOptions{Coef: coefIdx, AdjustMethod: adjustMethod, SortBy: limma.SortByNone, PValue: 1})
	if err != nil {
		log.Fatalln(err)
	}

	alpha := 0.05
	if pCutoff < 1 {
		alpha = pCutoff
	}

	if err := makeFigures(all, alpha, volcano, ma, hist); err != nil {
		log.Fatalln(err)
	}

	if geneSet != "" {
		res, err := testGeneSet(ctx, geneSet, all, alpha, lfc)
		if err != nil {
			log.Fatalln(err)
		}
		log.Println(res)
	}
}

func summarizeDecisions(fit *limma.Fit, adjustMethod limma.AdjustMethod) {
	opts := limma.DefaultDecideOptions()
	opts.AdjustMethod = adjustMethod

	decision, err := limma.DecideTests(fit, opts)
	if err != nil {
		log.Println(err)
		return
	}

	for _, s := range decision.Summary() {
		log.Println(s)
	}
}

func parseDelimiter(name string) (rune, error) {
	switch strings.ToLower(name) {
	case "tab", "\\t", "\t":
		return '\t', nil
	case "comma", ",":
		return ',', nil
	}

	return 0, fmt.Errorf("unknown output delimiter %q; use tab or comma", name)
}
