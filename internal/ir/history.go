package ir

import (
	"slices"
	"time"
)

// NowLabel is the label of the present-time state.
const NowLabel = "now"

// TimeLabel renders t as a result label: UTC, RFC 3339 with nanoseconds.
func TimeLabel(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Delta is one atomic change: the quads removed and the quads added.
type Delta struct {
	Inserted []Quad `json:"inserted"`
	Deleted  []Quad `json:"deleted"`
}

// Inverted returns the delta with its two sets swapped.
func (d Delta) Inverted() Delta {
	return Delta{Inserted: d.Deleted, Deleted: d.Inserted}
}

// IsEmpty reports whether the delta changes nothing.
func (d Delta) IsEmpty() bool {
	return len(d.Inserted) == 0 && len(d.Deleted) == 0
}

// Snapshot is one provenance record describing a change to an entity.
//
// Delta is nil when the record carries no update query, which is normal
// only for the entity's creation snapshot.
type Snapshot struct {
	ID               string    `json:"id" validate:"required"`
	ForEntity        string    `json:"for_entity" validate:"required"`
	GeneratedAt      time.Time `json:"generated_at" validate:"required"`
	ResponsibleAgent string    `json:"responsible_agent,omitempty"`
	PrimarySource    string    `json:"primary_source,omitempty"`
	DerivedFrom      []string  `json:"derived_from,omitempty"`
	RawDelta         string    `json:"raw_delta,omitempty"`
	Delta            *Delta    `json:"-"`
}

// State is an entity's graph at one snapshot time.
type State struct {
	Time     time.Time
	Graph    *Graph
	Snapshot *Snapshot
}

// EntityHistory holds the reconstructed states of one entity.
//
// States are ascending by time. When a snapshot other than the oldest has
// no delta, the states before it cannot be derived: PreHistoryUnknown is
// set and States starts at KnownSince. An entity with present data but no
// provenance has no states, PreHistoryUnknown set and a zero KnownSince.
type EntityHistory struct {
	Entity            string
	States            []State
	Now               *Graph
	PreHistoryUnknown bool
	KnownSince        time.Time
}

// IsEmpty reports whether the history has neither states nor present data.
func (h *EntityHistory) IsEmpty() bool {
	return len(h.States) == 0 && (h.Now == nil || h.Now.Len() == 0)
}

// Latest returns the newest state at or before t.
func (h *EntityHistory) Latest(t time.Time) (State, bool) {
	idx, found := slices.BinarySearchFunc(h.States, t, func(s State, t time.Time) int {
		return s.Time.Compare(t)
	})
	if found {
		return h.States[idx], true
	}
	if idx == 0 {
		return State{}, false
	}
	return h.States[idx-1], true
}

// Histories maps entity IRIs to their reconstructed histories.
type Histories map[string]*EntityHistory

// Entities returns the entity IRIs in sorted order.
func (hs Histories) Entities() []string {
	out := make([]string, 0, len(hs))
	for e := range hs {
		out = append(out, e)
	}
	slices.Sort(out)
	return out
}

// Merge adds the histories of other that hs does not hold yet.
func (hs Histories) Merge(other Histories) {
	for e, h := range other {
		if _, ok := hs[e]; !ok {
			hs[e] = h
		}
	}
}

// Moment is the composite state of all relevant entities at one time.
type Moment struct {
	Time  time.Time
	Graph *Graph
}

// Composite is the aligned view of several entity histories.
// Moments are ascending by time.
type Composite struct {
	Moments []Moment
	Now     *Graph
}

// Labels returns the time labels in ascending order followed by "now".
func (c *Composite) Labels() []string {
	out := make([]string, 0, len(c.Moments)+1)
	for _, m := range c.Moments {
		out = append(out, TimeLabel(m.Time))
	}
	return append(out, NowLabel)
}

// Graph returns the graph carried by label.
func (c *Composite) Graph(label string) (*Graph, bool) {
	if label == NowLabel {
		return c.Now, c.Now != nil
	}
	for _, m := range c.Moments {
		if TimeLabel(m.Time) == label {
			return m.Graph, true
		}
	}
	return nil, false
}

// PointInTime is an entity's state at an arbitrary instant.
//
// Snapshot is the newest snapshot at or before Time; it is nil when Time
// precedes every snapshot. Graph is nil when PreHistoryUnknown is set.
// Before and After are only filled when hooks were requested.
type PointInTime struct {
	Entity            string
	Time              time.Time
	Graph             *Graph
	Snapshot          *Snapshot
	Undone            int
	PreHistoryUnknown bool
	Before            []State
	After             []State
}
