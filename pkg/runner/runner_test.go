package runner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lemonberrylabs/cfpl/pkg/store"
	"github.com/lemonberrylabs/cfpl/pkg/types"
)

const (
	parent       = "projects/p/locations/l"
	infiniteLoop = "START\nWHILE (\"TRUE\")\nSTART\nSTOP\nSTOP\n"
)

func startRun(t *testing.T, s *store.Store, r *Runner, source, stdin string) *store.Run {
	t.Helper()
	p, err := s.CreateProgram(parent, "prog", source, "")
	if err != nil {
		t.Fatalf("create program: %v", err)
	}
	run, err := s.CreateRun(p.Name, stdin)
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	r.Start(run)
	return run
}

func TestRunSucceeds(t *testing.T) {
	s := store.New()
	r := New(s, Options{})

	run := startRun(t, s, r, "VAR a, b AS INT\nSTART\nINPUT: a, b\nOUTPUT: a * b\nSTOP\n", "6 7\n")
	r.Wait()

	got, err := s.GetRun(run.Name)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != store.RunSucceeded {
		t.Fatalf("state = %s, error = %+v", got.State, got.Error)
	}
	if got.Stdout != "42" {
		t.Errorf("stdout = %q, want 42", got.Stdout)
	}
	if r.Active() != 0 {
		t.Errorf("active = %d, want 0", r.Active())
	}
}

func TestRunFailsWithStage(t *testing.T) {
	s := store.New()
	r := New(s, Options{})

	run := startRun(t, s, r, "START\nOUTPUT: \"a\"\nOUTPUT: 1 / 0\nSTOP\n", "")
	r.Wait()

	got, _ := s.GetRun(run.Name)
	if got.State != store.RunFailed {
		t.Fatalf("state = %s", got.State)
	}
	if got.Stdout != "a" {
		t.Errorf("stdout = %q, want a", got.Stdout)
	}
	if got.Error.Stage != string(types.StageInterpreter) {
		t.Errorf("stage = %q", got.Error.Stage)
	}
	if !strings.Contains(got.Error.Payload, "Division by zero.") {
		t.Errorf("payload = %q", got.Error.Payload)
	}
}

func TestRunTimeout(t *testing.T) {
	s := store.New()
	r := New(s, Options{Timeout: 50 * time.Millisecond})

	run := startRun(t, s, r, infiniteLoop, "")
	r.Wait()

	got, _ := s.GetRun(run.Name)
	if got.State != store.RunFailed {
		t.Fatalf("state = %s", got.State)
	}
	if got.Error.Stage != "" {
		t.Errorf("stage = %q, want empty", got.Error.Stage)
	}
	if !strings.Contains(got.Error.Payload, "timeout") {
		t.Errorf("payload = %q", got.Error.Payload)
	}
}

func TestRunCancel(t *testing.T) {
	s := store.New()
	r := New(s, Options{})

	run := startRun(t, s, r, infiniteLoop, "")
	if err := r.Cancel(run.Name); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	r.Wait()

	got, _ := s.GetRun(run.Name)
	if got.State != store.RunCancelled {
		t.Errorf("state = %s, want CANCELLED", got.State)
	}

	if err := r.Cancel(run.Name); !errors.Is(err, store.ErrFailedPrecondition) {
		t.Errorf("second cancel: got %v, want ErrFailedPrecondition", err)
	}
	if err := r.Cancel(parent + "/programs/prog/runs/run-99"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("cancel unknown: got %v, want ErrNotFound", err)
	}
}

func TestRunSync(t *testing.T) {
	r := New(store.New(), Options{MaxSteps: 1000})

	out, err := r.Run(context.Background(), "VAR c AS CHAR\nSTART\nINPUT: c\nOUTPUT: c & c\nSTOP\n", "q\n")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "qq" {
		t.Errorf("stdout = %q, want qq", out)
	}

	_, err = r.Run(context.Background(), infiniteLoop, "")
	var cerr *types.Error
	if !errors.As(err, &cerr) || !strings.Contains(cerr.Message, "maximum step limit") {
		t.Errorf("got %v, want step limit error", err)
	}
}

func TestRunSyncTimeout(t *testing.T) {
	r := New(store.New(), Options{Timeout: 20 * time.Millisecond})

	_, err := r.Run(context.Background(), infiniteLoop, "")
	if err == nil || !strings.Contains(err.Error(), "timeout") {
		t.Errorf("got %v, want timeout error", err)
	}
}
