package engine

import (
	"slices"
	"time"

	"github.com/roach88/timeagnostic/internal/ir"
)

// Align merges independently timestamped histories into one composite.
//
// Every snapshot time of every entity becomes a moment. At each moment an
// entity contributes its newest state at or before that time: a missing
// state means "unchanged since the previous one", never "deleted" (a
// deletion is an explicit empty state). Entities whose first known state
// is later than the moment contribute nothing. Now is the union of the
// present graphs.
//
// Align is pure and deterministic; it never modifies the histories.
func Align(histories ir.Histories) *ir.Composite {
	entities := histories.Entities()

	var times []time.Time
	var nows []*ir.Graph
	for _, e := range entities {
		h := histories[e]
		if h == nil {
			continue
		}
		for _, s := range h.States {
			times = append(times, s.Time)
		}
		nows = append(nows, h.Now)
	}
	slices.SortFunc(times, func(a, b time.Time) int { return a.Compare(b) })
	times = slices.CompactFunc(times, func(a, b time.Time) bool { return a.Equal(b) })

	moments := make([]ir.Moment, 0, len(times))
	for _, t := range times {
		var graphs []*ir.Graph
		for _, e := range entities {
			h := histories[e]
			if h == nil {
				continue
			}
			if st, ok := h.Latest(t); ok {
				graphs = append(graphs, st.Graph)
			}
		}
		moments = append(moments, ir.Moment{Time: t.UTC(), Graph: ir.Union(graphs...)})
	}

	return &ir.Composite{Moments: moments, Now: ir.Union(nows...)}
}
