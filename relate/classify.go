package relate

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/holmes/somalier"
)

// Opts control Classify.
type Opts struct {
	// RelatednessThreshold is the relatedness at or above which a pair is
	// considered related.
	RelatednessThreshold float64
	// MinimumN is the number of informative sites needed before a pair is
	// reported as related.
	MinimumN int
	// ExpectRelated matches display names that should be related. With capture
	// groups, two names are expected to be related when all groups agree;
	// without, when the pattern matches both. Nil expects nothing.
	ExpectRelated *regexp.Regexp
	// AllowQueryPairs classifies query/query pairs. Normally they are skipped,
	// because each query is also a candidate somewhere in the plan and the
	// pair is reported from there.
	AllowQueryPairs bool
}

// Classify classifies the pairs involving a query. queries and candidates map
// sample ids to display names. The result has an entry, possibly empty, for
// every query; within an entry, results follow the order of pairs.
//
// A pair whose query is on the B side is swapped first. A pair between a query
// and a candidate with the same display name is Self. Otherwise:
//
//	expected  related  outcome
//	yes       yes      ExpectedRelated
//	yes       no       UnexpectedUnrelated
//	no        yes      UnexpectedRelated
//	no        no       nothing
//
// where related means the relatedness reaches the threshold. Related
// outcomes also need MinimumN sites; UnexpectedUnrelated does not.
func Classify(pairs []somalier.Pair, queries, candidates map[string]string, opts Opts) (Shard, error) {
	shard := make(Shard, len(queries))
	for _, display := range queries {
		if _, ok := shard[display]; !ok {
			shard[display] = []Result{}
		}
	}
	for _, p := range pairs {
		_, aIsQuery := queries[p.SampleA]
		_, bIsQuery := queries[p.SampleB]
		switch {
		case !aIsQuery && !bIsQuery:
			continue
		case aIsQuery && bIsQuery:
			if !opts.AllowQueryPairs {
				log.Debug.Printf("skipping query pair %s %s", queries[p.SampleA], queries[p.SampleB])
				continue
			}
			// Both directions are reported when query pairs are allowed.
			if err := classify(shard, p, queries, candidates, opts); err != nil {
				return nil, err
			}
			p.Swap()
		case bIsQuery:
			log.Debug.Printf("swapped %s %s", p.SampleA, p.SampleB)
			p.Swap()
		}
		if err := classify(shard, p, queries, candidates, opts); err != nil {
			return nil, err
		}
	}
	return shard, nil
}

// classify handles a pair whose A side is a query.
func classify(shard Shard, p somalier.Pair, queries, others map[string]string, opts Opts) error {
	query := queries[p.SampleA]
	other, ok := others[p.SampleB]
	if !ok {
		if other, ok = queries[p.SampleB]; !ok || !opts.AllowQueryPairs {
			return errors.E(errors.Unavailable, fmt.Sprintf("somalier reported unknown sample %q against %s", p.SampleB, query))
		}
	}
	if query == other {
		shard[query] = append(shard[query], Result{Kind: Self, File: other, Regex: "{}", Stats: p.Stats})
		return nil
	}
	expected, audit := expectRelated(opts.ExpectRelated, query, other)
	related := p.Relatedness >= opts.RelatednessThreshold
	enough := p.N >= opts.MinimumN
	var kind Kind
	switch {
	case expected && !related:
		kind = UnexpectedUnrelated
	case expected && related && enough:
		kind = ExpectedRelated
	case !expected && related && enough:
		kind = UnexpectedRelated
	default:
		log.Debug.Printf("fall through %s %s relatedness %.3f n %d", query, other, p.Relatedness, p.N)
		return nil
	}
	log.Debug.Printf("%s %s %s relatedness %.3f n %d", kind, query, other, p.Relatedness, p.N)
	shard[query] = append(shard[query], Result{Kind: kind, File: other, Regex: audit, Stats: p.Stats})
	return nil
}

// expectRelated reports whether re says a and b are related, along with the
// capture groups for the audit trail.
func expectRelated(re *regexp.Regexp, a, b string) (bool, string) {
	if re == nil {
		return false, "{}"
	}
	ma := re.FindStringSubmatch(a)
	mb := re.FindStringSubmatch(b)
	audit := map[string][]string{}
	if ma != nil {
		audit["index"] = ma[1:]
	}
	if mb != nil {
		audit["sample"] = mb[1:]
	}
	js, err := json.Marshal(audit)
	if err != nil {
		log.Panicf("marshal %v: %v", audit, err)
	}
	if ma == nil || mb == nil || len(ma) != len(mb) {
		return false, string(js)
	}
	for i := 1; i < len(ma); i++ {
		if ma[i] != mb[i] {
			return false, string(js)
		}
	}
	return true, string(js)
}
