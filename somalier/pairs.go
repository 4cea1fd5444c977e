// Package somalier runs "somalier relate" and reads its tab-separated reports.
package somalier

import (
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/tsv"
)

// Stats are the relatedness measures somalier reports for a pair of samples.
// Fields suffixed A and B describe one side of the pair.
type Stats struct {
	Relatedness         float64 `json:"relatedness"`
	IBS0                int     `json:"ibs0"`
	IBS2                int     `json:"ibs2"`
	HomConcordance      float64 `json:"hom_concordance"`
	HetsA               int     `json:"hets_a"`
	HetsB               int     `json:"hets_b"`
	HetsAB              int     `json:"hets_ab"`
	SharedHets          int     `json:"shared_hets"`
	HomAltsA            int     `json:"hom_alts_a"`
	HomAltsB            int     `json:"hom_alts_b"`
	SharedHomAlts       int     `json:"shared_hom_alts"`
	N                   int     `json:"n"`
	XIBS0               int     `json:"x_ibs0"`
	XIBS2               int     `json:"x_ibs2"`
	ExpectedRelatedness float64 `json:"expected_relatedness"`
}

// Pair is one row of somalier.pairs.tsv.
type Pair struct {
	SampleA, SampleB string
	Stats
}

// Swap exchanges the two samples along with every per-sample measure.
func (p *Pair) Swap() {
	p.SampleA, p.SampleB = p.SampleB, p.SampleA
	p.HetsA, p.HetsB = p.HetsB, p.HetsA
	p.HomAltsA, p.HomAltsB = p.HomAltsB, p.HomAltsA
}

// pairRow mirrors the column order of somalier.pairs.tsv.
type pairRow struct {
	SampleA             string
	SampleB             string
	Relatedness         float64
	IBS0                int
	IBS2                int
	HomConcordance      float64
	HetsA               int
	HetsB               int
	HetsAB              int
	SharedHets          int
	HomAltsA            int
	HomAltsB            int
	SharedHomAlts       int
	N                   int
	XIBS0               int
	XIBS2               int
	ExpectedRelatedness float64
}

// ReadPairs reads a somalier.pairs.tsv. The '#' header line is skipped. Rows
// that do not parse are reported as errors.Unavailable, since they mean the
// engine produced something unexpected.
func ReadPairs(r io.Reader) ([]Pair, error) {
	tr := tsv.NewReader(r)
	tr.Comment = '#'
	tr.RequireParseAllColumns = true
	pairs := make([]Pair, 0)
	for {
		var row pairRow
		if err := tr.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(errors.Unavailable, err, "read somalier pairs")
		}
		pairs = append(pairs, Pair{
			SampleA: row.SampleA,
			SampleB: row.SampleB,
			Stats: Stats{
				Relatedness:         row.Relatedness,
				IBS0:                row.IBS0,
				IBS2:                row.IBS2,
				HomConcordance:      row.HomConcordance,
				HetsA:               row.HetsA,
				HetsB:               row.HetsB,
				HetsAB:              row.HetsAB,
				SharedHets:          row.SharedHets,
				HomAltsA:            row.HomAltsA,
				HomAltsB:            row.HomAltsB,
				SharedHomAlts:       row.SharedHomAlts,
				N:                   row.N,
				XIBS0:               row.XIBS0,
				XIBS2:               row.XIBS2,
				ExpectedRelatedness: row.ExpectedRelatedness,
			},
		})
	}
	return pairs, nil
}
