// Package store provides in-memory storage for hosted CFPL programs and
// their runs.
package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lemonberrylabs/cfpl/pkg/types"
)

// Sentinel errors wrapped by store operations.
var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrFailedPrecondition = errors.New("failed precondition")
)

// ProgramState represents the state of a stored program.
type ProgramState string

const (
	ProgramActive ProgramState = "ACTIVE"
)

// RunState represents the state of a program run.
type RunState string

const (
	RunActive    RunState = "ACTIVE"
	RunSucceeded RunState = "SUCCEEDED"
	RunFailed    RunState = "FAILED"
	RunCancelled RunState = "CANCELLED"
)

// Program is a deployed CFPL source file.
type Program struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	State       ProgramState `json:"state"`
	RevisionID  string       `json:"revisionId"`
	CreateTime  time.Time    `json:"createTime"`
	UpdateTime  time.Time    `json:"updateTime"`
	Source      string       `json:"sourceContents"`
}

// Run is one execution of a program.
type Run struct {
	Name              string    `json:"name"`
	State             RunState  `json:"state"`
	Stdin             string    `json:"stdin,omitempty"`
	Stdout            string    `json:"stdout,omitempty"`
	Error             *RunError `json:"error,omitempty"`
	StartTime         time.Time `json:"startTime"`
	EndTime           time.Time `json:"endTime,omitempty"`
	ProgramRevisionID string    `json:"programRevisionId"`

	// Source is the program text at ProgramRevisionID.
	Source string `json:"-"`

	seq int64
}

// RunError describes why a run failed.
type RunError struct {
	// Stage is the CFPL error stage, empty for host failures such as timeouts.
	Stage   string `json:"stage,omitempty"`
	Payload string `json:"payload"`
}

// Store is a thread-safe in-memory storage for programs and runs. Returned
// records are copies; mutate them through Store methods.
type Store struct {
	mu       sync.RWMutex
	programs map[string]*Program
	runs     map[string]*Run

	// Counters for generating unique IDs
	runCounter int64
	revCounter int64
}

// New creates a new empty store.
func New() *Store {
	return &Store{
		programs: make(map[string]*Program),
		runs:     make(map[string]*Run),
	}
}

// ProgramName builds the full resource name of a program.
func ProgramName(parent, programID string) string {
	return fmt.Sprintf("%s/programs/%s", parent, programID)
}

// CreateProgram stores a new program under parent.
func (s *Store) CreateProgram(parent, programID, source, description string) (*Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := ProgramName(parent, programID)
	if _, exists := s.programs[name]; exists {
		return nil, fmt.Errorf("program '%s': %w", name, ErrAlreadyExists)
	}

	s.revCounter++
	now := time.Now()
	p := &Program{
		Name:        name,
		Description: description,
		State:       ProgramActive,
		RevisionID:  fmt.Sprintf("%06d-000", s.revCounter),
		CreateTime:  now,
		UpdateTime:  now,
		Source:      source,
	}
	s.programs[name] = p
	cp := *p
	return &cp, nil
}

// GetProgram retrieves a program by its full name.
func (s *Store) GetProgram(name string) (*Program, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.programs[name]
	if !ok {
		return nil, fmt.Errorf("program '%s': %w", name, ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

// ListPrograms returns all programs under a parent, ordered by name.
func (s *Store) ListPrograms(parent string) []*Program {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Program
	prefix := parent + "/programs/"
	for name, p := range s.programs {
		if strings.HasPrefix(name, prefix) && len(name) > len(prefix) {
			cp := *p
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// UpdateProgram replaces a program's source and, when non-empty, its
// description. An empty source keeps the current one.
func (s *Store) UpdateProgram(name, source, description string) (*Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.programs[name]
	if !ok {
		return nil, fmt.Errorf("program '%s': %w", name, ErrNotFound)
	}

	if source != "" {
		s.revCounter++
		p.Source = source
		p.RevisionID = fmt.Sprintf("%06d-000", s.revCounter)
	}
	if description != "" {
		p.Description = description
	}
	p.UpdateTime = time.Now()

	cp := *p
	return &cp, nil
}

// DeleteProgram removes a program. Its runs are kept.
func (s *Store) DeleteProgram(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.programs[name]; !ok {
		return fmt.Errorf("program '%s': %w", name, ErrNotFound)
	}
	delete(s.programs, name)
	return nil
}

// CreateRun records a new ACTIVE run of the current program revision.
func (s *Store) CreateRun(programName, stdin string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.programs[programName]
	if !ok {
		return nil, fmt.Errorf("program '%s': %w", programName, ErrNotFound)
	}

	s.runCounter++
	r := &Run{
		Name:              fmt.Sprintf("%s/runs/run-%d", programName, s.runCounter),
		State:             RunActive,
		Stdin:             stdin,
		StartTime:         time.Now(),
		ProgramRevisionID: p.RevisionID,
		Source:            p.Source,
		seq:               s.runCounter,
	}
	s.runs[r.Name] = r
	cp := *r
	return &cp, nil
}

// GetRun retrieves a run by name.
func (s *Store) GetRun(name string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[name]
	if !ok {
		return nil, fmt.Errorf("run '%s': %w", name, ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

// ListRuns returns all runs of a program in creation order.
func (s *Store) ListRuns(programName string) []*Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Run
	prefix := programName + "/runs/"
	for name, r := range s.runs {
		if strings.HasPrefix(name, prefix) && len(name) > len(prefix) {
			cp := *r
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].seq < result[j].seq })
	return result
}

// CompleteRun marks an active run as succeeded.
func (s *Store) CompleteRun(name, stdout string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.activeRun(name)
	if err != nil {
		return err
	}
	r.State = RunSucceeded
	r.Stdout = stdout
	r.EndTime = time.Now()
	return nil
}

// FailRun marks an active run as failed. The stdout written before the
// failure is kept. CFPL diagnostics record their stage.
func (s *Store) FailRun(name, stdout string, runErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.activeRun(name)
	if err != nil {
		return err
	}
	r.State = RunFailed
	r.Stdout = stdout
	r.EndTime = time.Now()

	re := &RunError{Payload: runErr.Error()}
	var cerr *types.Error
	if errors.As(runErr, &cerr) {
		re.Stage = string(cerr.Stage)
	}
	r.Error = re
	return nil
}

// CancelRun marks an active run as cancelled.
func (s *Store) CancelRun(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.activeRun(name)
	if err != nil {
		return err
	}
	r.State = RunCancelled
	r.EndTime = time.Now()
	return nil
}

// activeRun returns the stored run if it is still ACTIVE. Callers hold mu.
func (s *Store) activeRun(name string) (*Run, error) {
	r, ok := s.runs[name]
	if !ok {
		return nil, fmt.Errorf("run '%s': %w", name, ErrNotFound)
	}
	if r.State != RunActive {
		return nil, fmt.Errorf("run '%s' is not active (state: %s): %w", name, r.State, ErrFailedPrecondition)
	}
	return r, nil
}
