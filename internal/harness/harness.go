package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/timeagnostic/internal/engine"
	"github.com/roach88/timeagnostic/internal/ir"
	"github.com/roach88/timeagnostic/internal/source"
	"github.com/roach88/timeagnostic/internal/sparql"
	"github.com/roach88/timeagnostic/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and run ID.
type Harness struct {
	reconstructor *engine.Reconstructor
	engine        *engine.Engine
	logger        *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh in-memory store for isolation.
//
// Execution flow:
// 1. Record the histories on one snapshot clock
// 2. Load the extra files
// 3. Run the query across time
// 4. Check the expect clause and the assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	res, err := h.engine.Execute(ctx, scenario.Query)
	if err != nil {
		code := engine.CodeOf(err)
		if code == "" {
			return nil, fmt.Errorf("failed to execute query: %w", err)
		}
		result.ErrorCode = string(code)
	} else {
		h.collect(res, result)
	}

	h.logger.Info("scenario executed",
		"scenario", scenario.Name,
		"labels", len(result.Labels),
		"error_code", result.ErrorCode,
	)

	checkExpect(result, scenario.Expect)
	actx := &AssertionContext{
		Reconstructor: h.reconstructor,
		Ctx:           ctx,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(s *Scenario) (*Harness, error) {
	epoch, step, err := s.clock()
	if err != nil {
		return nil, err
	}
	clock := testutil.NewSnapshotClock(epoch, step)

	histories := make([]*testutil.History, 0, len(s.Histories))
	for i, spec := range s.Histories {
		hist, err := record(spec, clock)
		if err != nil {
			return nil, fmt.Errorf("histories[%d]: %w", i, err)
		}
		histories = append(histories, hist)
	}
	st := testutil.Dataset(histories...)
	for _, p := range s.Files {
		quads, err := source.LoadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", p, err)
		}
		st.Add(quads...)
	}

	// Suppress logs in tests
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := engine.NewReconstructor(st, st, engine.WithReconstructorLogger(logger))
	eng := engine.New(rec, sparql.New(),
		engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(s.RunID)),
		engine.WithLogger(logger),
	)
	return &Harness{
		reconstructor: rec,
		engine:        eng,
		logger:        logger,
	}, nil
}

// record replays spec on clock. Steps are checked by LoadScenario, so
// statements parse.
func record(spec HistorySpec, clock *testutil.SnapshotClock) (*testutil.History, error) {
	h := testutil.NewHistory(spec.Entity, clock)
	if spec.Agent != "" {
		h.WithAgent(spec.Agent)
	}
	for i, step := range spec.Steps {
		created, err := parseStatements(step.Create)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		deleted, err := parseStatements(step.Delete)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		inserted, err := parseStatements(step.Insert)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		switch {
		case i == 0:
			h.Create(created...)
		case step.Remove:
			h.Delete()
		default:
			h.Update(ir.Delta{Deleted: deleted, Inserted: inserted})
		}
	}
	return h, nil
}

func (h *Harness) collect(res *engine.Result, result *Result) {
	result.RunID = res.RunID
	result.Labels = append(result.Labels, res.Labels...)
	result.Entities = append(result.Entities, res.Entities...)
	result.Warnings = append(result.Warnings, res.Warnings...)
	for _, label := range res.Labels {
		rows := make([]Row, 0, len(res.Snapshots[label]))
		for _, t := range res.Snapshots[label] {
			rows = append(rows, newRow(res.Vars, t))
		}
		result.Snapshots[label] = rows
	}
	result.composite = res.Composite
}

// checkExpect validates the overall outcome against the expect clause.
func checkExpect(result *Result, expect *ExpectClause) {
	if expect == nil {
		if result.ErrorCode != "" {
			result.AddError(fmt.Sprintf("query failed with %s", result.ErrorCode))
		}
		return
	}
	if expect.Error != result.ErrorCode {
		result.AddError(fmt.Sprintf("expected error %q, got %q", expect.Error, result.ErrorCode))
		return
	}
	if expect.Labels != nil && !slices.Equal(expect.Labels, result.Labels) {
		result.AddError(fmt.Sprintf("expected labels %v, got %v", expect.Labels, result.Labels))
	}
	if expect.Warnings != nil && *expect.Warnings != len(result.Warnings) {
		result.AddError(fmt.Sprintf("expected %d warnings, got %d: %v", *expect.Warnings, len(result.Warnings), result.Warnings))
	}
}
