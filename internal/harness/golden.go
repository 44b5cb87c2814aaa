package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/morph/internal/ir"
)

// snapshot builds the canonical form of a result for golden comparison.
// Only deterministic fields are included.
func snapshot(scenarioName string, result *Result) ir.IRObject {
	trace := make(ir.IRArray, len(result.Trace))
	for i, event := range result.Trace {
		change := event.Change
		if change == nil {
			change = ir.IRNull{}
		}
		trace[i] = ir.IRObject{
			"step":       ir.IRInt(event.Step),
			"op":         ir.IRString(event.Op),
			"path":       ir.IRString(event.Path),
			"session_id": ir.IRString(event.SessionID),
			"seq":        ir.IRInt(event.Seq),
			"change":     change,
		}
	}

	obj := ir.IRObject{
		"scenario_name": ir.IRString(scenarioName),
		"change":        result.Change,
		"trace":         trace,
	}
	if result.Final != nil {
		obj["final"] = result.Final
	} else {
		obj["final"] = ir.IRNull{}
	}
	if obj["change"] == nil {
		obj["change"] = ir.IRNull{}
	}
	return obj
}

// MarshalSnapshot returns the golden file content for a result.
func MarshalSnapshot(scenarioName string, result *Result) ([]byte, error) {
	return ir.MarshalCanonical(snapshot(scenarioName, result))
}

// RunWithGolden executes a scenario and compares its change, final value
// and trace against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
