package prov

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/timeagnostic/internal/ir"
	"github.com/roach88/timeagnostic/internal/source"
)

// InvalidSnapshotError reports a snapshot record that lacks required
// fields or holds unusable values.
type InvalidSnapshotError struct {
	Snapshot string
	Reason   string
	Err      error
}

func (e *InvalidSnapshotError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid snapshot %s: %s: %v", e.Snapshot, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid snapshot %s: %s", e.Snapshot, e.Reason)
}

func (e *InvalidSnapshotError) Unwrap() error {
	return e.Err
}

// DuplicateTimeError reports two snapshots of one entity generated at the
// same instant, which makes the history ambiguous.
type DuplicateTimeError struct {
	Entity string
	Time   time.Time
	First  string
	Second string
}

func (e *DuplicateTimeError) Error() string {
	return fmt.Sprintf("entity %s has two snapshots at %s (%s, %s)",
		e.Entity, ir.TimeLabel(e.Time), e.First, e.Second)
}

// IsDuplicateTime returns true if the error is a DuplicateTimeError.
func IsDuplicateTime(err error) bool {
	var de *DuplicateTimeError
	return errors.As(err, &de)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func snapshotValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Snapshots returns the provenance snapshots of entity in ascending time
// order. Update queries are returned raw; decoding them is up to the caller.
func Snapshots(ctx context.Context, st source.GraphStore, entity string) ([]ir.Snapshot, error) {
	links, err := st.Match(ctx, ir.Quad{Predicate: SpecializationOf, Object: ir.IRI(entity)})
	if err != nil {
		return nil, fmt.Errorf("list snapshots of %s: %w", entity, err)
	}

	seen := make(map[string]bool, len(links))
	var out []ir.Snapshot
	for _, l := range links {
		if !l.Subject.IsIRI() || seen[l.Subject.Value] {
			continue
		}
		seen[l.Subject.Value] = true

		props, err := st.Match(ctx, ir.Quad{Subject: l.Subject})
		if err != nil {
			return nil, fmt.Errorf("read snapshot %s: %w", l.Subject.Value, err)
		}
		snap, err := FromQuads(entity, l.Subject.Value, props)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}

	return Sort(entity, out)
}

// FromQuads builds a snapshot record from the quads describing it.
func FromQuads(entity, id string, quads []ir.Quad) (ir.Snapshot, error) {
	snap := ir.Snapshot{ID: id, ForEntity: entity}
	for _, q := range quads {
		switch q.Predicate {
		case GeneratedAtTime:
			t, err := ParseTime(q.Object.Value)
			if err != nil {
				return ir.Snapshot{}, &InvalidSnapshotError{Snapshot: id, Reason: "unparseable generation time", Err: err}
			}
			snap.GeneratedAt = t
		case WasAttributedTo:
			snap.ResponsibleAgent = q.Object.Value
		case HadPrimarySource:
			snap.PrimarySource = q.Object.Value
		case WasDerivedFrom:
			snap.DerivedFrom = append(snap.DerivedFrom, q.Object.Value)
		case HasUpdateQuery:
			snap.RawDelta = q.Object.Value
		}
	}
	slices.Sort(snap.DerivedFrom)

	if err := snapshotValidator().Struct(snap); err != nil {
		return ir.Snapshot{}, &InvalidSnapshotError{Snapshot: id, Reason: "missing required field", Err: err}
	}
	return snap, nil
}

// Sort orders snapshots by generation time and rejects duplicate times.
func Sort(entity string, snaps []ir.Snapshot) ([]ir.Snapshot, error) {
	slices.SortFunc(snaps, func(a, b ir.Snapshot) int {
		return a.GeneratedAt.Compare(b.GeneratedAt)
	})
	for i := 1; i < len(snaps); i++ {
		if snaps[i].GeneratedAt.Equal(snaps[i-1].GeneratedAt) {
			return nil, &DuplicateTimeError{
				Entity: entity,
				Time:   snaps[i].GeneratedAt,
				First:  snaps[i-1].ID,
				Second: snaps[i].ID,
			}
		}
	}
	return snaps, nil
}

// timeLayouts are the xsd:dateTime spellings found in provenance data.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime parses an xsd:dateTime lexical form. Values without a zone
// are read as UTC.
func ParseTime(v string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as xsd:dateTime", v)
}
