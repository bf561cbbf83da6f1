// Package suite runs YAML conformance files against the interpreter. A file
// lists cases, each a program with its stdin and the expected stdout or
// diagnostic.
package suite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lemonberrylabs/cfpl/pkg/cfpl"
	"github.com/lemonberrylabs/cfpl/pkg/runtime"
	"github.com/lemonberrylabs/cfpl/pkg/types"
)

// DefaultMaxSteps bounds every case so a broken loop fails instead of hanging.
const DefaultMaxSteps = 1_000_000

// Suite is one conformance file.
type Suite struct {
	Name     string `yaml:"name"`
	MaxSteps int    `yaml:"maxSteps"`
	Cases    []Case `yaml:"cases"`
}

// Case is a single program and its expected outcome.
type Case struct {
	Name   string         `yaml:"name"`
	Source string         `yaml:"source"`
	Stdin  string         `yaml:"stdin"`
	Stdout string         `yaml:"stdout"`
	Error  *ExpectedError `yaml:"error"`
}

// ExpectedError describes the diagnostic a failing case must produce.
type ExpectedError struct {
	Stage    string `yaml:"stage"`
	Contains string `yaml:"contains"`
}

// Result is the outcome of one case.
type Result struct {
	Name   string
	Passed bool
	Reason string
}

// Report collects the results of a suite run.
type Report struct {
	Suite   string
	Results []Result
}

// Failed returns the failing results.
func (r Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if !res.Passed {
			failed = append(failed, res)
		}
	}
	return failed
}

// Load decodes a suite file.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite: %w", err)
	}

	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing suite %s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = path
	}
	for i, c := range s.Cases {
		if c.Name == "" {
			return nil, fmt.Errorf("suite %s: case %d has no name", path, i+1)
		}
		if c.Error != nil && c.Error.Stage != "" && !validStage(c.Error.Stage) {
			return nil, fmt.Errorf("suite %s: case %q: unknown stage %q", path, c.Name, c.Error.Stage)
		}
	}
	return &s, nil
}

// Run executes every case in order. It stops early only when ctx is done.
func Run(ctx context.Context, s *Suite) (Report, error) {
	report := Report{Suite: s.Name}
	maxSteps := s.MaxSteps
	if maxSteps == 0 {
		maxSteps = DefaultMaxSteps
	}

	for _, c := range s.Cases {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Results = append(report.Results, runCase(ctx, c, maxSteps))
	}
	return report, nil
}

func runCase(ctx context.Context, c Case, maxSteps int) Result {
	var out strings.Builder
	err := cfpl.Execute(ctx, c.Source, runtime.Options{
		Stdin:    strings.NewReader(c.Stdin),
		Stdout:   &out,
		MaxSteps: maxSteps,
	})

	res := Result{Name: c.Name}
	if out.String() != c.Stdout {
		res.Reason = fmt.Sprintf("stdout = %q, want %q", out.String(), c.Stdout)
		return res
	}

	if c.Error == nil {
		if err != nil {
			res.Reason = "unexpected error: " + cfpl.Format(err)
			return res
		}
		res.Passed = true
		return res
	}

	if err == nil {
		res.Reason = "expected an error, program succeeded"
		return res
	}
	var cerr *types.Error
	if c.Error.Stage != "" && (!errors.As(err, &cerr) || string(cerr.Stage) != c.Error.Stage) {
		res.Reason = fmt.Sprintf("got %s, want stage %s", cfpl.Format(err), c.Error.Stage)
		return res
	}
	if !strings.Contains(err.Error(), c.Error.Contains) {
		res.Reason = fmt.Sprintf("error %q does not contain %q", err.Error(), c.Error.Contains)
		return res
	}
	res.Passed = true
	return res
}

func validStage(stage string) bool {
	switch types.Stage(stage) {
	case types.StageLexer, types.StageParser, types.StageInterpreter:
		return true
	}
	return false
}
