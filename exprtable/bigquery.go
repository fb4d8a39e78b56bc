package exprtable

import (
	"context"
	"fmt"
	"math"

	"cloud.google.com/go/bigquery"
	"github.com/carbocation/pfx"
	"google.golang.org/api/iterator"
)

type WrappedBigQuery struct {
	Context  context.Context
	Client   *bigquery.Client
	Project  string
	Database string
}

// LongRecord is one measurement in a long-format expression table.
type LongRecord struct {
	GeneID   string               `bigquery:"gene_id"`
	SampleID string               `bigquery:"sample_id"`
	Value    bigquery.NullFloat64 `bigquery:"value"`
}

// ReadBigQuery pulls a long-format (gene_id, sample_id, value) table from
// BigQuery and pivots it into a Table. Genes and samples keep the order in
// which they are first seen; the query orders by gene_id then sample_id so
// that repeated runs agree.
func ReadBigQuery(wbq *WrappedBigQuery, table string) (*Table, error) {
	query := wbq.Client.Query(fmt.Sprintf(`SELECT gene_id, sample_id, value
FROM %s.%s
ORDER BY gene_id, sample_id`, wbq.Database, table))

	itr, err := query.Read(wbq.Context)
	if err != nil {
		return nil, pfx.Err(err)
	}

	records := make([]LongRecord, 0)
	for {
		var values LongRecord
		err := itr.Next(&values)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, pfx.Err(err)
		}
		records = append(records, values)
	}

	return FromLong(records)
}

// FromLong pivots long-format records into a Table. Gene/sample combinations
// that never appear are missing (NaN). Duplicate combinations are an error.
func FromLong(records []LongRecord) (*Table, error) {
	geneIdx := make(map[string]int)
	sampleIdx := make(map[string]int)
	genes := make([]string, 0)
	samples := make([]string, 0)

	for _, rec := range records {
		if _, exists := geneIdx[rec.GeneID]; !exists {
			geneIdx[rec.GeneID] = len(genes)
			genes = append(genes, rec.GeneID)
		}
		if _, exists := sampleIdx[rec.SampleID]; !exists {
			sampleIdx[rec.SampleID] = len(samples)
			samples = append(samples, rec.SampleID)
		}
	}

	values := make([]float64, len(genes)*len(samples))
	seen := make([]bool, len(values))
	for i := range values {
		values[i] = math.NaN()
	}

	for _, rec := range records {
		cell := geneIdx[rec.GeneID]*len(samples) + sampleIdx[rec.SampleID]
		if seen[cell] {
			return nil, fmt.Errorf("gene %s, sample %s appears more than once", rec.GeneID, rec.SampleID)
		}
		seen[cell] = true

		if rec.Value.Valid {
			values[cell] = rec.Value.Float64
		}
	}

	return New(genes, samples, values)
}
