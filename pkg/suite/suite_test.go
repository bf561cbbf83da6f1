package suite

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBasicsSuitePasses(t *testing.T) {
	s, err := Load(filepath.Join("testdata", "basics.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "basics" || len(s.Cases) != 8 {
		t.Fatalf("suite = %s with %d cases", s.Name, len(s.Cases))
	}

	report, err := Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Results) != len(s.Cases) {
		t.Fatalf("got %d results", len(report.Results))
	}
	for _, res := range report.Failed() {
		t.Errorf("%s: %s", res.Name, res.Reason)
	}
}

func TestFailingCasesReportReason(t *testing.T) {
	s := &Suite{
		Name:     "failing",
		MaxSteps: 100,
		Cases: []Case{
			{Name: "wrong stdout", Source: "START\nOUTPUT: 1\nSTOP\n", Stdout: "2"},
			{Name: "unexpected error", Source: "START\nOUTPUT: 1 / 0\nSTOP\n"},
			{Name: "missing error", Source: "START\nSTOP\n", Error: &ExpectedError{Stage: "Parser-Error"}},
			{Name: "wrong stage", Source: "START\nOUTPUT: 1 / 0\nSTOP\n", Error: &ExpectedError{Stage: "Parser-Error"}},
			{Name: "wrong message", Source: "START\nOUTPUT: 1 / 0\nSTOP\n", Error: &ExpectedError{Contains: "overflow"}},
			{Name: "step limit", Source: "START\nWHILE (\"TRUE\")\nSTART\nSTOP\nSTOP\n"},
		},
	}

	report, err := Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantReasons := []string{
		`stdout = "1", want "2"`,
		"unexpected error: [Interpreter-Error] Division by zero.",
		"expected an error",
		"want stage Parser-Error",
		`does not contain "overflow"`,
		"maximum step limit of 100",
	}
	failed := report.Failed()
	if len(failed) != len(wantReasons) {
		t.Fatalf("got %d failures, want %d", len(failed), len(wantReasons))
	}
	for i, res := range failed {
		if !strings.Contains(res.Reason, wantReasons[i]) {
			t.Errorf("%s: reason %q does not contain %q", res.Name, res.Reason, wantReasons[i])
		}
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &Suite{Cases: []Case{{Name: "a", Source: "START\nSTOP\n"}}}
	report, err := Run(ctx, s)
	if err == nil {
		t.Fatal("expected context error")
	}
	if len(report.Results) != 0 {
		t.Errorf("got %d results, want 0", len(report.Results))
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad yaml", "cases: [", "parsing suite"},
		{"unnamed case", "cases:\n  - source: x\n", "has no name"},
		{"unknown stage", "cases:\n  - name: a\n    error:\n      stage: Runtime-Error\n", "unknown stage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "suite.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}
