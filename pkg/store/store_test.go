package store

import (
	"errors"
	"testing"

	"github.com/lemonberrylabs/cfpl/pkg/types"
)

const parent = "projects/p/locations/l"

func TestProgramLifecycle(t *testing.T) {
	s := New()

	p, err := s.CreateProgram(parent, "hello", "START\nSTOP\n", "first")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Name != parent+"/programs/hello" {
		t.Errorf("name = %q", p.Name)
	}
	if p.State != ProgramActive {
		t.Errorf("state = %s", p.State)
	}

	if _, err := s.CreateProgram(parent, "hello", "START\nSTOP\n", ""); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate create: got %v, want ErrAlreadyExists", err)
	}

	updated, err := s.UpdateProgram(p.Name, "START\nOUTPUT: 1\nSTOP\n", "")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.RevisionID == p.RevisionID {
		t.Error("revision did not change on source update")
	}
	if updated.Description != "first" {
		t.Errorf("description = %q, want it kept", updated.Description)
	}

	same, err := s.UpdateProgram(p.Name, "", "second")
	if err != nil {
		t.Fatalf("update description: %v", err)
	}
	if same.RevisionID != updated.RevisionID {
		t.Error("revision changed on description-only update")
	}

	if err := s.DeleteProgram(p.Name); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetProgram(p.Name); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete: got %v, want ErrNotFound", err)
	}
	if err := s.DeleteProgram(p.Name); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: got %v, want ErrNotFound", err)
	}
}

func TestListProgramsFiltersByParent(t *testing.T) {
	s := New()
	for _, id := range []string{"b", "a"} {
		if _, err := s.CreateProgram(parent, id, "START\nSTOP\n", ""); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.CreateProgram("projects/other/locations/l", "c", "START\nSTOP\n", ""); err != nil {
		t.Fatal(err)
	}

	list := s.ListPrograms(parent)
	if len(list) != 2 {
		t.Fatalf("got %d programs, want 2", len(list))
	}
	if list[0].Name != parent+"/programs/a" || list[1].Name != parent+"/programs/b" {
		t.Errorf("order = %s, %s", list[0].Name, list[1].Name)
	}
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	s := New()
	p, _ := s.CreateProgram(parent, "x", "START\nSTOP\n", "")
	p.Source = "changed"

	got, _ := s.GetProgram(p.Name)
	if got.Source != "START\nSTOP\n" {
		t.Errorf("stored source was mutated: %q", got.Source)
	}
}

func TestRunLifecycle(t *testing.T) {
	s := New()
	p, _ := s.CreateProgram(parent, "x", "START\nSTOP\n", "")

	if _, err := s.CreateRun(parent+"/programs/missing", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("run of missing program: got %v, want ErrNotFound", err)
	}

	r, err := s.CreateRun(p.Name, "1 2\n")
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	if r.State != RunActive || r.Stdin != "1 2\n" || r.Source != p.Source {
		t.Errorf("run = %+v", r)
	}
	if r.ProgramRevisionID != p.RevisionID {
		t.Errorf("revision = %s, want %s", r.ProgramRevisionID, p.RevisionID)
	}

	if err := s.CompleteRun(r.Name, "out"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, _ := s.GetRun(r.Name)
	if got.State != RunSucceeded || got.Stdout != "out" || got.EndTime.IsZero() {
		t.Errorf("run = %+v", got)
	}

	if err := s.CancelRun(r.Name); !errors.Is(err, ErrFailedPrecondition) {
		t.Errorf("cancel finished run: got %v, want ErrFailedPrecondition", err)
	}
}

func TestFailRunRecordsStage(t *testing.T) {
	s := New()
	p, _ := s.CreateProgram(parent, "x", "START\nSTOP\n", "")
	r, _ := s.CreateRun(p.Name, "")

	runErr := types.NewRuntimeError(types.Pos{Line: 2, Column: 3}, "SLASH", "/", "Division by zero.")
	if err := s.FailRun(r.Name, "partial", runErr); err != nil {
		t.Fatalf("fail: %v", err)
	}

	got, _ := s.GetRun(r.Name)
	if got.State != RunFailed {
		t.Errorf("state = %s", got.State)
	}
	if got.Stdout != "partial" {
		t.Errorf("stdout = %q", got.Stdout)
	}
	if got.Error == nil || got.Error.Stage != string(types.StageInterpreter) {
		t.Fatalf("error = %+v", got.Error)
	}
	if got.Error.Payload != runErr.Error() {
		t.Errorf("payload = %q", got.Error.Payload)
	}
}

func TestCancelledRunIgnoresCompletion(t *testing.T) {
	s := New()
	p, _ := s.CreateProgram(parent, "x", "START\nSTOP\n", "")
	r, _ := s.CreateRun(p.Name, "")

	if err := s.CancelRun(r.Name); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := s.CompleteRun(r.Name, "late"); !errors.Is(err, ErrFailedPrecondition) {
		t.Errorf("complete after cancel: got %v, want ErrFailedPrecondition", err)
	}

	got, _ := s.GetRun(r.Name)
	if got.State != RunCancelled || got.Stdout != "" {
		t.Errorf("run = %+v", got)
	}
}

func TestListRunsInCreationOrder(t *testing.T) {
	s := New()
	p, _ := s.CreateProgram(parent, "x", "START\nSTOP\n", "")
	for i := 0; i < 12; i++ {
		if _, err := s.CreateRun(p.Name, ""); err != nil {
			t.Fatal(err)
		}
	}

	runs := s.ListRuns(p.Name)
	if len(runs) != 12 {
		t.Fatalf("got %d runs, want 12", len(runs))
	}
	if runs[1].Name != p.Name+"/runs/run-2" || runs[11].Name != p.Name+"/runs/run-12" {
		t.Errorf("order: %s ... %s", runs[1].Name, runs[11].Name)
	}
}
