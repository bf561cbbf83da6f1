// Package web provides the embedded web UI for browsing hosted programs and
// their runs.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lemonberrylabs/cfpl/pkg/store"
)

//go:embed templates/*.html
var templateFS embed.FS

// Handler serves the web UI pages.
type Handler struct {
	store    *store.Store
	project  string
	location string
	funcMap  template.FuncMap
}

// pageData wraps all page-specific data with common fields.
type pageData struct {
	NavActive string
	Project   string
	Location  string
	Data      interface{}
}

// New creates a new web UI handler.
func New(s *store.Store, project, location string) *Handler {
	return &Handler{
		store:    s,
		project:  project,
		location: location,
		funcMap: template.FuncMap{
			"shortName":  shortName,
			"timeAgo":    timeAgo,
			"formatTime": formatTime,
			"duration":   duration,
			"stateClass": stateClass,
			"stateIcon":  stateIcon,
			"truncate":   truncate,
			"countLines": countLines,
		},
	}
}

func (h *Handler) render(c *fiber.Ctx, page string, navActive string, data interface{}) error {
	// Each page is parsed with the layout alone so "content" blocks of
	// different pages never collide.
	tmpl, err := template.New("").Funcs(h.funcMap).ParseFS(templateFS, "templates/layout.html", "templates/"+page)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("template error: %v", err))
	}

	pd := pageData{
		NavActive: navActive,
		Project:   h.project,
		Location:  h.location,
		Data:      data,
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, page, pd); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("template error: %v", err))
	}

	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.Send(buf.Bytes())
}

// Register adds web UI routes to the Fiber app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/ui", h.dashboard)
	app.Get("/ui/programs", h.programList)
	app.Get("/ui/programs/:id", h.programDetail)
	app.Get("/ui/programs/:id/runs/:run", h.runDetail)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/ui")
	})
}

// --- Page Data Types ---

type dashboardContent struct {
	Programs       []*store.Program
	RecentRuns     []*runView
	ActiveCount    int
	SucceededCount int
	FailedCount    int
	CancelledCount int
}

type runView struct {
	*store.Run
	ProgramID string
	RunID     string
}

type programView struct {
	*store.Program
	ID          string
	RunCount    int
	ActiveCount int
}

type programDetailContent struct {
	Program *store.Program
	ID      string
	Runs    []*runView
}

type runDetailContent struct {
	Run       *store.Run
	ProgramID string
	RunID     string
}

type notFoundContent struct {
	Message string
}

// --- Page Handlers ---

func (h *Handler) parent() string {
	return fmt.Sprintf("projects/%s/locations/%s", h.project, h.location)
}

func (h *Handler) dashboard(c *fiber.Ctx) error {
	programs := h.store.ListPrograms(h.parent())
	sort.Slice(programs, func(i, j int) bool {
		return programs[i].UpdateTime.After(programs[j].UpdateTime)
	})

	content := dashboardContent{Programs: programs}
	var all []*runView
	for _, p := range programs {
		for _, r := range h.store.ListRuns(p.Name) {
			all = append(all, newRunView(r))
			switch r.State {
			case store.RunActive:
				content.ActiveCount++
			case store.RunSucceeded:
				content.SucceededCount++
			case store.RunFailed:
				content.FailedCount++
			case store.RunCancelled:
				content.CancelledCount++
			}
		}
	}

	sortRuns(all)
	if len(all) > 10 {
		all = all[:10]
	}
	content.RecentRuns = all

	return h.render(c, "dashboard.html", "dashboard", content)
}

func (h *Handler) programList(c *fiber.Ctx) error {
	programs := h.store.ListPrograms(h.parent())

	views := make([]*programView, 0, len(programs))
	for _, p := range programs {
		runs := h.store.ListRuns(p.Name)
		active := 0
		for _, r := range runs {
			if r.State == store.RunActive {
				active++
			}
		}
		views = append(views, &programView{
			Program:     p,
			ID:          shortName(p.Name),
			RunCount:    len(runs),
			ActiveCount: active,
		})
	}

	return h.render(c, "program_list.html", "programs", views)
}

func (h *Handler) programDetail(c *fiber.Ctx) error {
	id := c.Params("id")
	p, err := h.store.GetProgram(store.ProgramName(h.parent(), id))
	if err != nil {
		c.Status(fiber.StatusNotFound)
		return h.render(c, "not_found.html", "", notFoundContent{
			Message: fmt.Sprintf("Program '%s' not found", id),
		})
	}

	var runs []*runView
	for _, r := range h.store.ListRuns(p.Name) {
		runs = append(runs, newRunView(r))
	}
	sortRuns(runs)

	return h.render(c, "program_detail.html", "programs", programDetailContent{
		Program: p,
		ID:      id,
		Runs:    runs,
	})
}

func (h *Handler) runDetail(c *fiber.Ctx) error {
	id := c.Params("id")
	runID := c.Params("run")
	name := fmt.Sprintf("%s/runs/%s", store.ProgramName(h.parent(), id), runID)

	r, err := h.store.GetRun(name)
	if err != nil {
		c.Status(fiber.StatusNotFound)
		return h.render(c, "not_found.html", "", notFoundContent{
			Message: fmt.Sprintf("Run '%s' not found", runID),
		})
	}

	return h.render(c, "run_detail.html", "programs", runDetailContent{
		Run:       r,
		ProgramID: id,
		RunID:     runID,
	})
}

func newRunView(r *store.Run) *runView {
	return &runView{
		Run:       r,
		ProgramID: programID(r.Name),
		RunID:     shortName(r.Name),
	}
}

func sortRuns(runs []*runView) {
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartTime.After(runs[j].StartTime)
	})
}

// --- Template Helpers ---

func shortName(fullName string) string {
	return fullName[strings.LastIndex(fullName, "/")+1:]
}

func programID(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		if p == "programs" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return name
}

func timeAgo(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d.Minutes()), "minute")
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hour")
	default:
		return plural(int(d.Hours()/24), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func duration(start, end time.Time) string {
	if end.IsZero() {
		return fmt.Sprintf("%s (running)", formatDuration(time.Since(start)))
	}
	return formatDuration(end.Sub(start))
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", m, s)
}

func stateClass(state store.RunState) string {
	switch state {
	case store.RunActive:
		return "state-active"
	case store.RunSucceeded:
		return "state-succeeded"
	case store.RunFailed:
		return "state-failed"
	case store.RunCancelled:
		return "state-cancelled"
	default:
		return ""
	}
}

func stateIcon(state store.RunState) template.HTML {
	switch state {
	case store.RunActive:
		return "&#9654;"
	case store.RunSucceeded:
		return "&#10003;"
	case store.RunFailed:
		return "&#10007;"
	case store.RunCancelled:
		return "&#9632;"
	default:
		return "&#8226;"
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(s, "\n"), "\n") + 1
}
