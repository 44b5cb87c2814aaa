package harness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/morph/internal/adapter"
	"github.com/roach88/morph/internal/change"
	"github.com/roach88/morph/internal/ir"
	"github.com/roach88/morph/internal/journal"
	"github.com/roach88/morph/internal/observe"
	"github.com/roach88/morph/internal/store"
	"github.com/roach88/morph/internal/testutil"
)

type config struct {
	logger *slog.Logger

	// RunDir only.
	filter    string
	goldenDir string
	update    bool
}

// Option configures Run and RunDir.
type Option func(*config)

// WithLogger sets the logger for sessions and journal writes made during
// a run. Default: a logger that discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithFilter makes RunDir skip scenario files whose base name does not
// match the glob pattern.
func WithFilter(pattern string) Option {
	return func(c *config) {
		c.filter = pattern
	}
}

// WithGolden makes RunDir compare every passing scenario with
// dir/{name}.golden. With update set the golden files are rewritten
// instead.
func WithGolden(dir string, update bool) Option {
	return func(c *config) {
		c.goldenDir = dir
		c.update = update
	}
}

func newConfig(opts []Option) *config {
	cfg := &config{logger: testutil.DiscardLogger()}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Run executes a scenario and returns the result.
//
// Failed checks are reported in Result.Errors with Pass=false. An error is
// returned only when the run itself cannot proceed, e.g. the journal store
// cannot be opened.
func Run(s *Scenario, opts ...Option) (*Result, error) {
	cfg := newConfig(opts)

	result := NewResult()
	base, err := ir.FromAny(s.Initial)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: initial: %w", s.Name, err)
	}

	// Single session over all steps.
	root := ir.ToAny(base)
	raw, err := observe.Observe(&root, func(r *any) error {
		for i, step := range s.Steps {
			if err := applyStep(r, step); err != nil {
				return fmt.Errorf("steps[%d]: %w", i, err)
			}
		}
		return nil
	}, observe.WithLogger(cfg.logger))
	if err != nil {
		result.AddError("%v", err)
		return result, nil
	}

	rendered, err := adapter.Render(adapter.JSON{}, raw)
	if err != nil {
		return nil, err
	}
	result.Tree = rendered
	if result.Change, err = adapter.ChangeToIR(rendered); err != nil {
		return nil, err
	}
	if result.Final, err = adapter.EncodeIR(root); err != nil {
		return nil, err
	}

	checkApplyLaws(result, base, raw)

	if err := journalSteps(s, base, result, cfg); err != nil {
		return nil, err
	}

	if s.Expect != nil {
		checkExpect(result, s.Expect)
	}
	if s.Schema != nil {
		if err := checkSchema(result, s, base); err != nil {
			return nil, err
		}
	}
	for _, err := range EvaluateAssertions(s.Assertions, result) {
		result.AddError("%v", err)
	}

	result.Pass = len(result.Errors) == 0
	return result, nil
}

// checkApplyLaws applies the change to the initial value in every
// representation and compares the outcome with the final value.
func checkApplyLaws(result *Result, base ir.IRValue, raw *change.Change) {
	if got, err := adapter.ApplyIR(ir.Clone(base), result.Tree); err != nil {
		result.AddError("apply law (ir): %v", err)
	} else if !ir.Equal(got, result.Final) {
		result.AddError("apply law (ir): got %s", render(got))
	}

	doc, err := adapter.NodeApplier{}.Apply(adapter.NodeFromIR(base), result.Tree)
	if err != nil {
		result.AddError("apply law (yaml): %v", err)
	} else if got, err := adapter.NodeToIR(doc.(*yaml.Node)); err != nil {
		result.AddError("apply law (yaml): %v", err)
	} else if !ir.Equal(got, result.Final) {
		result.AddError("apply law (yaml): got %s", render(got))
	}

	goRoot := ir.ToAny(base)
	if err := observe.Apply(&goRoot, raw); err != nil {
		result.AddError("apply law (go): %v", err)
	} else if got, err := adapter.EncodeIR(goRoot); err != nil {
		result.AddError("apply law (go): %v", err)
	} else if !ir.Equal(got, result.Final) {
		result.AddError("apply law (go): got %s", render(got))
	}
}

// journalSteps records each step as its own session into an in-memory
// journal, fills the trace, and checks that both replay and the squashed
// journal reproduce the final value.
func journalSteps(s *Scenario, base ir.IRValue, result *Result, cfg *config) error {
	ctx := context.Background()
	st, err := store.Open(":memory:")
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer st.Close()

	root := ir.ToAny(base)
	rec, err := journal.Open(ctx, st, s.Name, &root,
		journal.WithLogger(cfg.logger),
		journal.WithSequencer(testutil.NewDeterministicClock()),
		journal.WithObserveOptions(observe.WithIDGenerator(testutil.NewSequenceGenerator("step"))),
	)
	if err != nil {
		return err
	}

	for i, step := range s.Steps {
		res, err := rec.Record(ctx, func(r *any) error {
			return applyStep(r, step)
		})
		if err != nil {
			result.AddError("journal steps[%d]: %v", i, err)
			return nil
		}
		event := TraceEvent{
			Step:      i,
			Op:        step.Op,
			Path:      step.Path,
			SessionID: res.Record.SessionID,
			Seq:       res.Record.Seq,
			Change:    ir.IRNull{},
		}
		if res.Changed {
			if event.Change, err = adapter.ChangeToIR(res.Record.Change); err != nil {
				return err
			}
		}
		result.Trace = append(result.Trace, event)
	}

	replayed, err := st.Replay(ctx, s.Name)
	if err != nil {
		result.AddError("journal replay: %v", err)
	} else if !ir.Equal(replayed, result.Final) {
		result.AddError("journal replay: got %s", render(replayed))
	}

	squashed, err := st.Squash(ctx, s.Name)
	if err != nil {
		result.AddError("journal squash: %v", err)
		return nil
	}
	if got, err := adapter.ApplyIR(ir.Clone(base), squashed); err != nil {
		result.AddError("journal squash: %v", err)
	} else if !ir.Equal(got, result.Final) {
		result.AddError("journal squash: got %s", render(got))
	}
	return nil
}

func checkExpect(result *Result, exp *Expect) {
	if exp.Unchanged {
		if result.Tree != nil {
			result.AddError("expected no change, got %s", render(result.Change))
		}
		return
	}
	if len(exp.Leaves) == 0 {
		return
	}

	leaves := result.Tree.Leaves()
	if len(leaves) != len(exp.Leaves) {
		result.AddError("expected %d leaves, got %d: %s", len(exp.Leaves), len(leaves), render(result.Change))
		return
	}
	for i, want := range exp.Leaves {
		got := leaves[i]
		if got.Kind.String() != want.Op || got.Path.String() != canonicalPath(want.Path) {
			result.AddError("leaf %d: expected %s %q, got %s %q", i, want.Op, want.Path, got.Kind, got.Path)
			continue
		}
		wantValue, err := ir.FromAny(want.Value)
		if err != nil {
			result.AddError("leaf %d: expected value: %v", i, err)
			continue
		}
		gotValue, _ := got.Value.(ir.IRValue)
		if !ir.Equal(wantValue, gotValue) {
			result.AddError("leaf %d: expected value %s, got %s", i, render(wantValue), render(gotValue))
		}
	}
}

func checkSchema(result *Result, s *Scenario, base ir.IRValue) error {
	src, err := os.ReadFile(filepath.Join(s.dir, s.Schema.File))
	if err != nil {
		return fmt.Errorf("scenario %q: schema: %w", s.Name, err)
	}
	schema, err := adapter.NewCUE().CompileSchema(string(src), s.Schema.Definition)
	if err != nil {
		return fmt.Errorf("scenario %q: schema: %w", s.Name, err)
	}

	_, err = schema.Check(base, result.Tree)
	wantErr := s.Expect != nil && s.Expect.SchemaError
	switch {
	case err != nil && !wantErr:
		result.AddError("schema: %v", err)
	case err == nil && wantErr:
		result.AddError("schema: expected a violation")
	}
	return nil
}

// render formats a value for error messages.
func render(v ir.IRValue) string {
	if v == nil {
		return "<nil>"
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
