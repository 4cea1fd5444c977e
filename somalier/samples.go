package somalier

import (
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/tsv"
)

// Sample is one row of somalier.samples.tsv. Pedigree columns are kept as
// text; somalier writes -9 for unknown.
type Sample struct {
	FamilyID            string
	SampleID            string
	PaternalID          string
	MaternalID          string
	Sex                 string
	Phenotype           string
	OriginalPedigreeSex string
	GTDepthMean         float64
	GTDepthSD           float64
	DepthMean           float64
	DepthSD             float64
	ABMean              float64
	ABStd               float64
	NHomRef             int
	NHet                int
	NHomAlt             int
	NUnknown            int
	PMiddlingAB         float64
	XDepthMean          float64
	XN                  int
	XHomRef             int
	XHet                int
	XHomAlt             int
	YDepthMean          float64
	YN                  int
}

// ReadSamples reads a somalier.samples.tsv.
func ReadSamples(r io.Reader) ([]Sample, error) {
	tr := tsv.NewReader(r)
	tr.Comment = '#'
	tr.RequireParseAllColumns = true
	samples := make([]Sample, 0)
	for {
		var s Sample
		if err := tr.Read(&s); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(errors.Unavailable, err, "read somalier samples")
		}
		samples = append(samples, s)
	}
	return samples, nil
}
