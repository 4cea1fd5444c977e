package somalier

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/tsv"
)

// Columns holding sample ids in each report. Column 0 of the samples report
// is the family id, which somalier sets to the sample id when there is no
// pedigree; it is left alone.
var (
	PairsIDColumns   = []int{0, 1}
	SamplesIDColumns = []int{1}
)

// CorrectIDs rewrites the sample ids in the given columns of a somalier
// report using ids, typically mapping run-local sample ids back to reads file
// URLs. The first line is the header and is copied unchanged. An id missing
// from ids is an errors.Unavailable error.
func CorrectIDs(report []byte, ids map[string]string, columns []int) ([]byte, error) {
	r := csv.NewReader(bytes.NewReader(report))
	r.Comma = '\t'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var buf bytes.Buffer
	w := tsv.NewWriter(&buf)
	for line := 0; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.E(errors.Unavailable, err, "read somalier report")
		}
		if line > 0 {
			for _, c := range columns {
				if c >= len(row) {
					return nil, errors.E(errors.Unavailable, fmt.Sprintf("somalier report line %d has no column %d", line+1, c))
				}
				display, ok := ids[row[c]]
				if !ok {
					return nil, errors.E(errors.Unavailable, fmt.Sprintf("somalier report line %d has unknown sample id %q in column %d", line+1, row[c], c))
				}
				row[c] = display
			}
		}
		for _, field := range row {
			w.WriteString(field)
		}
		if err := w.EndLine(); err != nil {
			return nil, err
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
