package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/smtindex/smtindex/internal/utils"
	"github.com/smtindex/smtindex/pkg/catalog"
	"github.com/smtindex/smtindex/pkg/output"
)

const defaultChangesLimit = 50

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	matches := filterTemplates(s.Catalog.Templates, q.Get("status"), q.Get("q"), q.Get("fuzzy") == "true")

	out := make([]output.TemplateSummary, 0, len(matches))
	for _, t := range matches {
		out = append(out, output.Summarize(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	i, ok := s.byID[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: "Template not found: " + id})
		return
	}
	writeJSON(w, http.StatusOK, s.Catalog.Templates[i])
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Catalog)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, output.ComputeStats(s.Catalog))
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: "No history database configured"})
		return
	}

	limit := defaultChangesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	changes, err := s.DB.ListRecentChanges(r.Context(), limit)
	if err != nil {
		utils.Log.Errorf("Listing changes: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, changes)
}

// filterTemplates applies the status filter and then the query. A plain
// query is a case-insensitive substring test over name, description,
// number and id, keeping catalog order; a fuzzy query ranks by match score.
func filterTemplates(templates []catalog.TemplateRecord, status, query string, useFuzzy bool) []catalog.TemplateRecord {
	var out []catalog.TemplateRecord
	for _, t := range templates {
		if status != "" && !strings.EqualFold(string(t.Status), status) {
			continue
		}
		out = append(out, t)
	}

	if query == "" {
		return out
	}

	if useFuzzy {
		searchStrings := make([]string, len(out))
		for i, t := range out {
			searchStrings[i] = t.Name + " " + t.ID
		}
		var ranked []catalog.TemplateRecord
		for _, m := range fuzzy.Find(query, searchStrings) {
			ranked = append(ranked, out[m.Index])
		}
		return ranked
	}

	q := strings.ToLower(query)
	var filtered []catalog.TemplateRecord
	for _, t := range out {
		if strings.Contains(strings.ToLower(t.Name), q) ||
			(t.Description != nil && strings.Contains(strings.ToLower(*t.Description), q)) ||
			(t.IDTANumber != nil && strings.Contains(*t.IDTANumber, q)) ||
			strings.Contains(strings.ToLower(t.ID), q) {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.Log.Debugf("Writing response: %v", err)
	}
}
