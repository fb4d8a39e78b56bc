package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/storage"
	"github.com/carbocation/golimma"
	"github.com/carbocation/golimma/design"
	"github.com/carbocation/golimma/exprtable"
	"github.com/carbocation/golimma/limma"
	"github.com/carbocation/pfx"
)

type input struct {
	Expression  string
	BQ          exprtable.WrappedBigQuery
	BQTable     string
	Groups      string
	SampleSheet string
	Levels      string
	Design      string
}

func (in input) fromBigQuery() bool {
	return strings.EqualFold(in.Expression, "bq")
}

func (in input) needsStorage(extra ...string) bool {
	for _, path := range append([]string{in.Expression}, extra...) {
		if golimma.IsGoogleStoragePath(path) {
			return true
		}
	}

	return false
}

// load reads the expression table and builds a design whose rows line up with
// the table's columns.
func (in input) load(client *storage.Client) (*exprtable.Table, *design.Matrix, error) {
	table, err := in.readTable(client)
	if err != nil {
		return nil, nil, err
	}

	if summaries, err := table.Summarize(); err != nil {
		log.Println("Could not summarize the expression table:", err)
	} else {
		for _, s := range summaries {
			log.Println(s)
		}
	}

	var levels []string
	if in.Levels != "" {
		for _, v := range strings.Split(in.Levels, ",") {
			levels = append(levels, strings.TrimSpace(v))
		}
	}

	switch {
	case in.Design != "":
		d, err := design.Read(in.Design)
		if err != nil {
			return nil, nil, err
		}
		if table, err = table.Subset(d.Samples); err != nil {
			return nil, nil, err
		}
		return table, d, nil

	case in.SampleSheet != "":
		samples, groups, err := design.ReadSampleSheet(in.SampleSheet)
		if err != nil {
			return nil, nil, err
		}
		if table, err = table.Subset(samples); err != nil {
			return nil, nil, err
		}
		d, err := design.FromGroups(samples, groups, levels)
		if err != nil {
			return nil, nil, err
		}
		return table, d, nil
	}

	labels, err := design.ParseGroups(in.Groups)
	if err != nil {
		return nil, nil, err
	}
	if len(labels) != table.NSamples() {
		return nil, nil, fmt.Errorf("%d group labels were given for %d samples %v", len(labels), table.NSamples(), table.Samples)
	}
	d, err := design.FromGroups(table.Samples, labels, levels)
	if err != nil {
		return nil, nil, err
	}

	return table, d, nil
}

func (in input) readTable(client *storage.Client) (*exprtable.Table, error) {
	if !in.fromBigQuery() {
		log.Println("Reading", in.Expression)
		return exprtable.ReadFile(in.BQ.Context, in.Expression, client)
	}

	if in.BQ.Project == "" || in.BQ.Database == "" || in.BQTable == "" {
		return nil, fmt.Errorf("-expression bq requires -bq-project, -bq-dataset and -bq-table")
	}

	ctx := in.BQ.Context
	if ctx == nil {
		ctx = context.Background()
	}

	bqClient, err := bigquery.NewClient(ctx, in.BQ.Project)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer bqClient.Close()

	wbq := in.BQ
	wbq.Context = ctx
	wbq.Client = bqClient

	log.Printf("Reading %s.%s.%s from BigQuery\n", wbq.Project, wbq.Database, in.BQTable)
	return exprtable.ReadBigQuery(&wbq, in.BQTable)
}

// parseCoefs resolves a comma separated list of 0-based indices or
// coefficient names.
func parseCoefs(list string, fit *limma.Fit) ([]int, error) {
	out := make([]int, 0)
	for _, v := range strings.Split(list, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}

		if idx, err := strconv.Atoi(v); err == nil {
			if idx < 0 || idx >= fit.NCoefs() {
				return nil, fmt.Errorf("%w: %d; coefficients are %v", limma.ErrCoefOutOfRange, idx, fit.CoefNames)
			}
			out = append(out, idx)
			continue
		}

		idx := fit.CoefIndex(v)
		if idx < 0 {
			return nil, fmt.Errorf("%w: no coefficient named %q; coefficients are %v", limma.ErrCoefOutOfRange, v, fit.CoefNames)
		}
		out = append(out, idx)
	}

	if len(out) < 1 {
		return nil, fmt.Errorf("%w: no coefficient requested", limma.ErrCoefOutOfRange)
	}

	return out, nil
}
