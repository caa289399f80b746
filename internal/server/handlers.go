package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/spigell/nls-advisor/internal/analysis"
	"github.com/spigell/nls-advisor/internal/extract"
	"github.com/spigell/nls-advisor/internal/taxonomy"
)

// multipart overhead allowed on top of the file itself.
const formOverhead = 1 << 20

func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+formOverhead)

	if err := r.ParseMultipartForm(formOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, fmt.Errorf("%w: limit is %d bytes", errTooLarge, s.cfg.MaxUploadBytes), nil)
			return
		}
		writeError(w, fmt.Errorf("%w: parse multipart form: %v", errInvalidArgument, err), nil)
		return
	}

	subject := strings.TrimSpace(r.FormValue("subject"))
	if subject == "" {
		writeError(w, fmt.Errorf("%w: subject is required", errInvalidArgument), map[string]any{"subjects": s.profiles.Names()})
		return
	}

	tier := s.defaultTier
	if raw := strings.TrimSpace(r.FormValue("tier")); raw != "" {
		parsed, err := taxonomy.ParseTier(raw)
		if err != nil {
			writeError(w, err, map[string]any{"tiers": s.table.Tiers()})
			return
		}
		tier = parsed
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, fmt.Errorf("%w: file is required", errInvalidArgument), nil)
		return
	}
	defer file.Close()

	if !extract.Supported(header.Filename) {
		writeError(w, fmt.Errorf("%w: only .docx, .pdf, .txt and .md lessons are accepted", errUnsupportedMedia),
			map[string]any{"filename": header.Filename})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, fmt.Errorf("%w: read upload: %v", errInvalidArgument, err), nil)
		return
	}

	res := extract.Extract(header.Filename, data)
	s.metrics.observeExtraction(string(res.Status))
	if !res.OK() {
		msg := fmt.Sprintf("extraction finished with status %s", res.Status)
		if res.Err != nil {
			msg = res.Err.Error()
		}
		writeError(w, fmt.Errorf("%w: %s", errUnreadable, msg), map[string]any{
			"status":   res.Status,
			"mime":     res.MIME,
			"filename": header.Filename,
		})
		return
	}

	report, err := s.analyzer.Run(r.Context(), analysis.Document{
		Name:    header.Filename,
		Subject: subject,
		Tier:    tier,
		Text:    res.Text,
	})
	if err != nil {
		var short *analysis.InsufficientInputError
		switch {
		case errors.As(err, &short):
			s.metrics.observeAnalysis("insufficient_input")
			writeError(w, err, map[string]any{
				"length": short.Length,
				"min":    short.Min,
				"hint":   "scanned PDFs have no text layer; upload a .docx or a text PDF",
			})
		case errors.Is(err, taxonomy.ErrUnknownSubject):
			writeError(w, err, map[string]any{"subjects": s.profiles.Names()})
		case errors.Is(err, taxonomy.ErrUnknownTier):
			writeError(w, err, nil)
		default:
			s.logger.Error("analysis failed", zap.String("document", header.Filename), zap.Error(err))
			writeError(w, err, nil)
		}
		return
	}

	s.metrics.observeAnalysis(string(report.Outcome))
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) subjectsHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"subjects": s.profiles.All()})
}

type competencyList struct {
	Tier         taxonomy.Tier              `json:"tier"`
	Domains      map[string]string          `json:"domains"`
	Competencies []taxonomy.CompetencyEntry `json:"competencies"`
}

func (s *Server) competenciesHandler(w http.ResponseWriter, r *http.Request) {
	tier := s.defaultTier
	if raw := strings.TrimSpace(r.URL.Query().Get("tier")); raw != "" {
		parsed, err := taxonomy.ParseTier(raw)
		if err != nil {
			writeError(w, err, map[string]any{"tiers": s.table.Tiers()})
			return
		}
		tier = parsed
	}

	entries := s.table.Entries(tier)
	domains := make(map[string]string)
	for _, entry := range entries {
		domains[entry.Domain] = s.table.Domain(entry.Domain)
	}

	writeJSON(w, http.StatusOK, competencyList{Tier: tier, Domains: domains, Competencies: entries})
}

func (s *Server) competencyHandler(w http.ResponseWriter, r *http.Request) {
	tier, err := taxonomy.ParseTier(chi.URLParam(r, "tier"))
	if err != nil {
		writeError(w, err, map[string]any{"tiers": s.table.Tiers()})
		return
	}

	code := chi.URLParam(r, "code")
	entry, err := s.table.Lookup(tier, code)
	if err != nil {
		writeError(w, err, map[string]any{
			"code":        code,
			"tier":        tier,
			"requirement": taxonomy.NotFoundRequirement,
		})
		return
	}

	writeJSON(w, http.StatusOK, entry)
}
