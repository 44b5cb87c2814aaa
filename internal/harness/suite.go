package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Total     int              `json:"total"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Scenarios []ScenarioResult `json:"scenarios"`
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name,omitempty"` // empty when the file did not load
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// Failures returns the scenarios that did not pass.
func (r *SuiteResult) Failures() []ScenarioResult {
	var out []ScenarioResult
	for _, s := range r.Scenarios {
		if !s.Pass {
			out = append(out, s)
		}
	}
	return out
}

// FindScenarios returns the .yaml and .yml files under dir, sorted.
func FindScenarios(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find scenarios in %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// RunDir loads and runs every scenario under dir. A scenario that fails
// to load counts as failed; the rest still run.
func RunDir(dir string, opts ...Option) (*SuiteResult, error) {
	cfg := newConfig(opts)
	if cfg.filter != "" {
		if _, err := filepath.Match(cfg.filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", cfg.filter, err)
		}
	}

	paths, err := FindScenarios(dir)
	if err != nil {
		return nil, err
	}

	result := &SuiteResult{Scenarios: []ScenarioResult{}}
	for _, path := range paths {
		if cfg.filter != "" {
			if ok, _ := filepath.Match(cfg.filter, filepath.Base(path)); !ok {
				continue
			}
		}

		sr := runFile(path, cfg, opts)
		result.Total++
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, sr)
	}
	return result, nil
}

func runFile(path string, cfg *config, opts []Option) ScenarioResult {
	sr := ScenarioResult{Path: path}

	scenario, err := LoadScenario(path)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return sr
	}
	sr.Name = scenario.Name

	result, err := Run(scenario, opts...)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("scenario execution failed: %v", err)}
		return sr
	}
	if !result.Pass {
		sr.Errors = result.Errors
		return sr
	}

	if cfg.goldenDir != "" {
		if err := checkGolden(cfg, scenario.Name, result); err != nil {
			sr.Errors = []string{err.Error()}
			return sr
		}
	}
	sr.Pass = true
	return sr
}

// checkGolden compares or rewrites {goldenDir}/{name}.golden.
func checkGolden(cfg *config, name string, result *Result) error {
	data, err := MarshalSnapshot(name, result)
	if err != nil {
		return fmt.Errorf("golden: %w", err)
	}
	path := filepath.Join(cfg.goldenDir, name+".golden")

	if cfg.update {
		if err := os.MkdirAll(cfg.goldenDir, 0o755); err != nil {
			return fmt.Errorf("golden: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("golden: %w", err)
		}
		return nil
	}

	want, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("golden file not found: %s (run with --update to create)", path)
	}
	if err != nil {
		return fmt.Errorf("golden: %w", err)
	}
	if !bytes.Equal(want, data) {
		return fmt.Errorf("golden mismatch: %s\n  want: %s\n  got:  %s", path, want, data)
	}
	return nil
}
