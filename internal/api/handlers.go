package api

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/baxromumarov/job-collector/internal/model"
	"github.com/baxromumarov/job-collector/internal/observability"
)

const downloadName = "linkedin_jobs.csv"

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"stamp": formatStamp,
}).ParseFS(templateFS, "templates/index.html"))

type indexPage struct {
	Title         string
	Query         string
	Rows          []model.JobRecord
	Total         int
	LastUpdated   time.Time
	IntervalHours float64
	Countdown     int
	State         string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.LoadAll(r.Context())
	if err != nil {
		slog.Error("dashboard load failed", "error", err)
		http.Error(w, "failed to load jobs", http.StatusInternalServerError)
		return
	}

	query := r.URL.Query().Get("q")
	page := indexPage{
		Title: s.title,
		Query: query,
		Rows:  filterRecords(newestFirst(records), query),
		Total: len(records),
	}
	if n := len(records); n > 0 {
		page.LastUpdated = records[n-1].CollectedAt
	}
	if s.schedule != nil {
		page.IntervalHours = s.schedule.Interval().Hours()
		page.Countdown = secondsUntil(s.schedule.NextRun(), s.now())
		page.State = s.schedule.State().String()
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, page); err != nil {
		slog.Error("dashboard render failed", "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.store.Export(r.Context(), &buf); err != nil {
		slog.Error("download failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to export jobs: "+err.Error())
		return
	}
	slog.Info("download requested", "bytes", buf.Len())
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+downloadName+`"`)
	w.Write(buf.Bytes())
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.LoadAll(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch jobs: "+err.Error())
		return
	}
	jobs := filterRecords(newestFirst(records), r.URL.Query().Get("q"))
	if jobs == nil {
		jobs = []model.JobRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(jobs),
		"total": len(records),
		"jobs":  jobs,
	})
}

type scheduleStatus struct {
	State           string     `json:"state"`
	NextRun         *time.Time `json:"next_run,omitempty"`
	LastTrigger     *time.Time `json:"last_trigger,omitempty"`
	IntervalSeconds float64    `json:"interval_seconds"`
	SkippedTicks    int        `json:"skipped_ticks"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	payload := map[string]interface{}{
		"stats": observability.Snapshot(),
	}
	if s.schedule != nil {
		status := scheduleStatus{
			State:           s.schedule.State().String(),
			IntervalSeconds: s.schedule.Interval().Seconds(),
			SkippedTicks:    s.schedule.Skipped(),
		}
		if next := s.schedule.NextRun(); !next.IsZero() {
			status.NextRun = &next
		}
		if last := s.schedule.LastTrigger(); !last.IsZero() {
			status.LastTrigger = &last
		}
		payload["scheduler"] = status
	}
	respondJSON(w, http.StatusOK, payload)
}

func secondsUntil(next, now time.Time) int {
	if next.IsZero() {
		return 0
	}
	d := int(next.Sub(now).Seconds())
	if d < 0 {
		return 0
	}
	return d
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.UTC().Format("02 Jan 2006 · 15:04 UTC")
}
