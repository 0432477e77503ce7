package aggregation

import (
	"context"

	"github.com/geonyeop123/premium-spread-sub000/internal/work"
)

// MultiTarget runs one logical aggregation over several independent keys,
// e.g. the same ticker rollup for both exchanges.
//
// Targets run in order. The first Failure is returned immediately and the
// remaining targets do not run. Any Success makes the whole run a Success;
// otherwise the result is Skipped("no_data").
type MultiTarget struct {
	Targets []work.Runner
}

// Run implements work.Runner.
func (m *MultiTarget) Run(ctx context.Context) work.Result {
	succeeded := false
	for _, target := range m.Targets {
		res := work.Guard(ctx, target.Run)
		switch res.Kind {
		case work.KindFailure:
			return res
		case work.KindSuccess:
			succeeded = true
		}
	}
	if succeeded {
		return work.Succeeded()
	}
	return work.Skip(work.ReasonNoData)
}
