// Package api implements the REST API for hosting CFPL programs: deploying
// programs, starting runs against them and one-shot evaluation.
package api

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/lemonberrylabs/cfpl/pkg/cfpl"
	"github.com/lemonberrylabs/cfpl/pkg/runner"
	"github.com/lemonberrylabs/cfpl/pkg/store"
	"github.com/lemonberrylabs/cfpl/pkg/types"
)

// Config tunes the HTTP layer.
type Config struct {
	// RequestLog enables fiber's access log middleware.
	RequestLog bool
	// BodyLimit caps request bodies in bytes; 0 keeps fiber's default.
	BodyLimit int
}

// Server is the REST API server.
type Server struct {
	app    *fiber.App
	store  *store.Store
	runner *runner.Runner
}

// New creates a new API server.
func New(s *store.Store, r *runner.Runner, cfg Config) *Server {
	srv := &Server{
		store:  s,
		runner: r,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		BodyLimit:             cfg.BodyLimit,
	})
	app.Use(recover.New())
	if cfg.RequestLog {
		app.Use(logger.New())
	}

	// Programs
	app.Post("/v1/projects/:project/locations/:location/programs", srv.createProgram)
	app.Get("/v1/projects/:project/locations/:location/programs/:program", srv.getProgram)
	app.Get("/v1/projects/:project/locations/:location/programs", srv.listPrograms)
	app.Patch("/v1/projects/:project/locations/:location/programs/:program", srv.updateProgram)
	app.Delete("/v1/projects/:project/locations/:location/programs/:program", srv.deleteProgram)

	// Runs
	app.Post("/v1/projects/:project/locations/:location/programs/:program/runs", srv.createRun)
	app.Get("/v1/projects/:project/locations/:location/programs/:program/runs/:run", srv.getRun)
	app.Get("/v1/projects/:project/locations/:location/programs/:program/runs", srv.listRuns)
	app.Post("/v1/projects/:project/locations/:location/programs/:program/runs/:run\\:cancel", srv.cancelRun)

	// One-shot
	app.Post("/v1/run", srv.run)
	app.Post("/v1/tokens", srv.tokens)

	srv.app = app
	return srv
}

// Listen starts the HTTP server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

// --- Program Handlers ---

type programRequest struct {
	SourceContents string `json:"sourceContents"`
	Description    string `json:"description"`
}

func (s *Server) createProgram(c *fiber.Ctx) error {
	programID := c.Query("programId")
	if !validProgramID(programID) {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT",
			fmt.Sprintf("invalid programId %q", programID))
	}

	var req programRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}
	if req.SourceContents == "" {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", "sourceContents is required")
	}
	if _, err := cfpl.Check(req.SourceContents); err != nil {
		return diagnosticError(c, err)
	}

	p, err := s.store.CreateProgram(buildParent(c), programID, req.SourceContents, req.Description)
	if err != nil {
		return storeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(programToJSON(p))
}

func (s *Server) getProgram(c *fiber.Ctx) error {
	p, err := s.store.GetProgram(buildProgramName(c))
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(programToJSON(p))
}

func (s *Server) listPrograms(c *fiber.Ctx) error {
	programs := s.store.ListPrograms(buildParent(c))

	items := make([]fiber.Map, len(programs))
	for i, p := range programs {
		items[i] = programToJSON(p)
	}
	return c.JSON(fiber.Map{
		"programs": items,
	})
}

func (s *Server) updateProgram(c *fiber.Ctx) error {
	var req programRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}
	if req.SourceContents != "" {
		if _, err := cfpl.Check(req.SourceContents); err != nil {
			return diagnosticError(c, err)
		}
	}

	p, err := s.store.UpdateProgram(buildProgramName(c), req.SourceContents, req.Description)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(programToJSON(p))
}

func (s *Server) deleteProgram(c *fiber.Ctx) error {
	if err := s.store.DeleteProgram(buildProgramName(c)); err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{
		"name": buildProgramName(c),
		"done": true,
	})
}

// --- Run Handlers ---

type runRequest struct {
	Stdin string `json:"stdin"`
}

func (s *Server) createRun(c *fiber.Ctx) error {
	var req runRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}

	run, err := s.store.CreateRun(buildProgramName(c), req.Stdin)
	if err != nil {
		return storeError(c, err)
	}
	s.runner.Start(run)

	return c.Status(fiber.StatusOK).JSON(runToJSON(run))
}

func (s *Server) getRun(c *fiber.Ctx) error {
	run, err := s.store.GetRun(buildRunName(c))
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(runToJSON(run))
}

func (s *Server) listRuns(c *fiber.Ctx) error {
	runs := s.store.ListRuns(buildProgramName(c))

	items := make([]fiber.Map, len(runs))
	for i, run := range runs {
		items[i] = runToJSON(run)
	}
	return c.JSON(fiber.Map{
		"runs": items,
	})
}

func (s *Server) cancelRun(c *fiber.Ctx) error {
	name := buildRunName(c)
	if err := s.runner.Cancel(name); err != nil {
		return storeError(c, err)
	}

	run, err := s.store.GetRun(name)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(runToJSON(run))
}

// --- One-shot Handlers ---

type sourceRequest struct {
	Source string `json:"source"`
	Stdin  string `json:"stdin"`
}

func (s *Server) run(c *fiber.Ctx) error {
	var req sourceRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}

	stdout, err := s.runner.Run(c.UserContext(), req.Source, req.Stdin)
	resp := fiber.Map{"stdout": stdout}
	if err != nil {
		resp["error"] = errorToJSON(err)
	}
	return c.JSON(resp)
}

func (s *Server) tokens(c *fiber.Ctx) error {
	var req sourceRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}

	tokens, err := cfpl.Tokens(req.Source)
	if err != nil {
		return diagnosticError(c, err)
	}

	items := make([]fiber.Map, len(tokens))
	for i, tok := range tokens {
		items[i] = fiber.Map{
			"type":   tok.Type.String(),
			"lexeme": tok.Lexeme,
			"line":   tok.Pos.Line,
			"column": tok.Pos.Column,
		}
	}
	return c.JSON(fiber.Map{
		"tokens": items,
	})
}

// --- Directory Loading ---

var validID = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

func validProgramID(id string) bool {
	return validID.MatchString(id) && len(id) <= 128
}

// LoadDir deploys every .cfpl file in dir as a program. The file name
// (sans extension, lowercased) becomes the program ID. Files that do not
// parse are skipped with a warning.
func (s *Server) LoadDir(dir, project, location string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading programs directory: %w", err)
	}

	parent := fmt.Sprintf("projects/%s/locations/%s", project, location)
	loaded := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if ext != ".cfpl" {
			continue
		}

		base := strings.TrimSuffix(name, ext)
		programID := strings.ToLower(base)
		if programID != base {
			log.Printf("Warning: lowercased program ID %q (from file %q)", programID, name)
		}
		if !validProgramID(programID) {
			log.Printf("Warning: skipping file %q, invalid program ID %q", name, programID)
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Printf("Warning: could not read %q: %v", name, err)
			continue
		}
		if _, err := cfpl.Check(string(data)); err != nil {
			log.Printf("Warning: could not parse %q: %s", name, cfpl.Format(err))
			continue
		}

		if _, err := s.store.CreateProgram(parent, programID, string(data), ""); err != nil {
			log.Printf("Warning: could not deploy %q: %v", name, err)
			continue
		}
		loaded++
		log.Printf("Loaded program %q from %s", programID, name)
	}

	log.Printf("Loaded %d program(s) from %s", loaded, dir)
	return nil
}

// --- Helpers ---

func buildParent(c *fiber.Ctx) string {
	return fmt.Sprintf("projects/%s/locations/%s", c.Params("project"), c.Params("location"))
}

func buildProgramName(c *fiber.Ctx) string {
	return store.ProgramName(buildParent(c), c.Params("program"))
}

func buildRunName(c *fiber.Ctx) string {
	return fmt.Sprintf("%s/runs/%s", buildProgramName(c), c.Params("run"))
}

func apiError(c *fiber.Ctx, code int, status, message string) error {
	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": message,
			"status":  status,
		},
	})
}

// storeError maps store sentinel errors to HTTP statuses.
func storeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apiError(c, fiber.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, store.ErrAlreadyExists):
		return apiError(c, fiber.StatusConflict, "ALREADY_EXISTS", err.Error())
	case errors.Is(err, store.ErrFailedPrecondition):
		return apiError(c, fiber.StatusBadRequest, "FAILED_PRECONDITION", err.Error())
	default:
		return apiError(c, fiber.StatusInternalServerError, "INTERNAL", err.Error())
	}
}

// diagnosticError reports a program that does not lex or parse.
func diagnosticError(c *fiber.Ctx, err error) error {
	resp := errorToJSON(err)
	resp["code"] = fiber.StatusBadRequest
	resp["status"] = "INVALID_ARGUMENT"
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": resp,
	})
}

func errorToJSON(err error) fiber.Map {
	m := fiber.Map{"message": err.Error()}
	var cerr *types.Error
	if errors.As(err, &cerr) {
		m["stage"] = string(cerr.Stage)
		m["line"] = cerr.Pos.Line
		m["column"] = cerr.Pos.Column
	}
	return m
}

func programToJSON(p *store.Program) fiber.Map {
	return fiber.Map{
		"name":           p.Name,
		"description":    p.Description,
		"state":          p.State,
		"revisionId":     p.RevisionID,
		"createTime":     p.CreateTime.Format(time.RFC3339),
		"updateTime":     p.UpdateTime.Format(time.RFC3339),
		"sourceContents": p.Source,
	}
}

func runToJSON(run *store.Run) fiber.Map {
	result := fiber.Map{
		"name":              run.Name,
		"state":             run.State,
		"startTime":         run.StartTime.Format(time.RFC3339),
		"programRevisionId": run.ProgramRevisionID,
		"stdout":            run.Stdout,
	}

	if run.Stdin != "" {
		result["stdin"] = run.Stdin
	}
	if run.Error != nil {
		result["error"] = fiber.Map{
			"payload": run.Error.Payload,
			"stage":   run.Error.Stage,
		}
	}
	if !run.EndTime.IsZero() {
		result["endTime"] = run.EndTime.Format(time.RFC3339)
	}

	return result
}
