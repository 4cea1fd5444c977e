package relate

import (
	"github.com/grailbio/base/errors"
)

// Merge combines worker shards into one aggregate per query. Every query
// named in any shard gets an aggregate, with empty lists when nothing was
// found. A query seen as Self more than once means the same fingerprint was
// compared in two batches, and is an errors.Precondition error.
//
// The result does not depend on the order of shards, other than the order of
// entries within each list.
func Merge(shards ...Shard) (map[string]*Aggregate, error) {
	merged := map[string]*Aggregate{}
	for _, shard := range shards {
		for query, results := range shard {
			agg, ok := merged[query]
			if !ok {
				agg = &Aggregate{
					ExpectedRelated:     []Result{},
					UnexpectedRelated:   []Result{},
					UnexpectedUnrelated: []Result{},
				}
				merged[query] = agg
			}
			for i := range results {
				r := results[i]
				switch r.Kind {
				case Self:
					if agg.Self != nil {
						return nil, errors.E(errors.Precondition, "query", query, "was compared with itself more than once")
					}
					agg.Self = &r
				case ExpectedRelated:
					agg.ExpectedRelated = append(agg.ExpectedRelated, r)
				case UnexpectedRelated:
					agg.UnexpectedRelated = append(agg.UnexpectedRelated, r)
				case UnexpectedUnrelated:
					agg.UnexpectedUnrelated = append(agg.UnexpectedUnrelated, r)
				default:
					return nil, errors.E(errors.Invalid, "query", query, "has result of unknown kind", r.Kind.String())
				}
			}
		}
	}
	return merged, nil
}
