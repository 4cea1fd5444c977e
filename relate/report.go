package relate

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/grailbio/holmes/fingerprint"
	"github.com/grailbio/holmes/somalier"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const checkLegend = `  ER = expected related
  UR = unexpected related
  UU = unexpected unrelated
`

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	return t
}

// WriteCheckReport writes a summary of aggs, one row per query in URL order,
// followed by the unexpected results of each query that has any.
func WriteCheckReport(w io.Writer, aggs map[string]*Aggregate) error {
	queries := make([]string, 0, len(aggs))
	for q := range aggs {
		queries = append(queries, q)
	}
	sort.Strings(queries)

	t := newTable(w)
	t.AppendHeader(table.Row{"Index URL", "ER (self + others)", "UR", "UU"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	for _, q := range queries {
		a := aggs[q]
		self := "1"
		if a.Self == nil {
			self = "0 !"
		}
		t.AppendRow(table.Row{
			q,
			fmt.Sprintf("%s + %d", self, len(a.ExpectedRelated)),
			flagged(len(a.UnexpectedRelated)),
			flagged(len(a.UnexpectedUnrelated)),
		})
	}
	t.Render()
	if _, err := io.WriteString(w, checkLegend); err != nil {
		return err
	}

	for _, q := range queries {
		a := aggs[q]
		if len(a.UnexpectedRelated)+len(a.UnexpectedUnrelated) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "\n%s\n", q); err != nil {
			return err
		}
		d := newTable(w)
		d.AppendHeader(table.Row{"", "File", "Relatedness", "N", "Regex"})
		for _, rs := range [][]Result{a.UnexpectedRelated, a.UnexpectedUnrelated} {
			for _, r := range rs {
				d.AppendRow(table.Row{abbrev(r.Kind), r.File, fmt.Sprintf("%.3f", r.Relatedness), r.N, r.Regex})
			}
		}
		d.Render()
	}
	return nil
}

func flagged(n int) string {
	if n == 0 {
		return "0"
	}
	return fmt.Sprintf("%d x", n)
}

func abbrev(k Kind) string {
	switch k {
	case ExpectedRelated:
		return "ER"
	case UnexpectedRelated:
		return "UR"
	case UnexpectedUnrelated:
		return "UU"
	}
	return k.String()
}

// WriteListReport writes one row per fingerprint, with created dates
// rendered in loc.
func WriteListReport(w io.Writer, fps []fingerprint.Fingerprint, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"URL", "Created", "Subject", "Library"})
	for _, fp := range fps {
		var created string
		if !fp.Created.IsZero() {
			created = fp.Created.In(loc).Format(fingerprint.CreatedLayout)
		}
		t.AppendRow(table.Row{fp.URL, created, fp.Subject, fp.Library})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d fingerprints", len(fps))})
	t.Render()
	return nil
}

// WriteControlReport writes the pairs that involve index, one row per other
// sample sorted by name. Pairs must already carry display names. A sample is
// marked related when it passes both thresholds of opts.
func WriteControlReport(w io.Writer, index string, pairs []somalier.Pair, opts Opts) error {
	var rows []somalier.Pair
	for _, p := range pairs {
		switch index {
		case p.SampleA:
		case p.SampleB:
			p.Swap()
		default:
			continue
		}
		rows = append(rows, p)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SampleB < rows[j].SampleB })

	t := newTable(w)
	t.SetTitle(index)
	t.AppendHeader(table.Row{"Control", "Relatedness", "N", "IBS0", "IBS2", ""})
	for _, p := range rows {
		var mark string
		if p.Relatedness >= opts.RelatednessThreshold && p.N >= opts.MinimumN {
			mark = "related"
		}
		t.AppendRow(table.Row{p.SampleB, fmt.Sprintf("%.3f", p.Relatedness), p.N, p.IBS0, p.IBS2, mark})
	}
	t.Render()
	return nil
}
