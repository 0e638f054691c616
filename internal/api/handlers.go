package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/getlens/lens/pkg/models"
)

// paging extracts page/perPage from the query string. Out-of-range
// values are clamped by the query engine, not here.
func paging(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("perPage"))
	return page, perPage
}

// intParam parses an optional integer query parameter.
func intParam(r *http.Request, name string) *int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

// floatParam parses an optional float query parameter.
func floatParam(r *http.Request, name string) *float64 {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}

// int64Param parses an optional int64 query parameter.
func int64Param(r *http.Request, name string) *int64 {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// idParam parses the {id} URL parameter.
func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (s *Server) listRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := models.RequestFilter{
		Method:      q.Get("method"),
		URL:         q.Get("url"),
		Status:      intParam(r, "status"),
		StatusMin:   intParam(r, "statusMin"),
		StatusMax:   intParam(r, "statusMax"),
		DurationMin: floatParam(r, "durationMin"),
		DurationMax: floatParam(r, "durationMax"),
	}

	page, perPage := paging(r)
	s.respondJSON(w, http.StatusOK, s.engine.Queries().Requests(r.Context(), f, page, perPage))
}

func (s *Server) listQueries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := models.QueryFilter{
		Method:      q.Get("method"),
		Model:       q.Get("model"),
		Connection:  q.Get("connection"),
		DurationMin: floatParam(r, "durationMin"),
		DurationMax: floatParam(r, "durationMax"),
		RequestID:   int64Param(r, "requestId"),
	}

	page, perPage := paging(r)
	s.respondJSON(w, http.StatusOK, s.engine.Queries().Queries(r.Context(), f, page, perPage))
}

func (s *Server) groupedQueries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	groups := s.engine.Queries().GroupedQueries(r.Context(), q.Get("sortBy"), limit)
	s.respondJSON(w, http.StatusOK, map[string]any{
		"data":  groups,
		"total": len(groups),
	})
}

func (s *Server) explainQuery(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid query id")
		return
	}

	result, err := s.engine.Queries().Explain(r.Context(), id)
	switch {
	case errors.Is(err, models.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "query not found")
	case errors.Is(err, models.ErrNotExplainable):
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		s.respondError(w, http.StatusInternalServerError, err.Error())
	default:
		s.respondJSON(w, http.StatusOK, result)
	}
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	f := models.EventFilter{Name: r.URL.Query().Get("name")}

	page, perPage := paging(r)
	s.respondJSON(w, http.StatusOK, s.engine.Queries().Events(r.Context(), f, page, perPage))
}

func (s *Server) listEmails(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := models.EmailFilter{
		From:        q.Get("from"),
		To:          q.Get("to"),
		Subject:     q.Get("subject"),
		Mailer:      q.Get("mailer"),
		Status:      q.Get("status"),
		ExcludeBody: q.Get("includeBody") != "true",
	}

	page, perPage := paging(r)
	s.respondJSON(w, http.StatusOK, s.engine.Queries().Emails(r.Context(), f, page, perPage))
}

func (s *Server) listLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := models.LogFilter{
		Level:     q.Get("level"),
		RequestID: q.Get("requestId"),
		Search:    q.Get("search"),
		Data:      parseDataFilters(q["data"]),
	}

	page, perPage := paging(r)
	s.respondJSON(w, http.StatusOK, s.engine.Queries().Logs(r.Context(), f, page, perPage))
}

// parseDataFilters decodes repeated data=field:operator:value parameters
// into structured log predicates. Malformed entries are dropped.
func parseDataFilters(raw []string) []models.DataFilter {
	var filters []models.DataFilter
	for _, entry := range raw {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 || parts[0] == "" {
			continue
		}
		switch parts[1] {
		case models.OpEquals, models.OpContains, models.OpStartsWith:
		default:
			continue
		}
		filters = append(filters, models.DataFilter{Field: parts[0], Operator: parts[1], Value: parts[2]})
	}
	return filters
}

func (s *Server) listTraces(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := models.TraceFilter{
		Method:    q.Get("method"),
		URL:       q.Get("url"),
		StatusMin: intParam(r, "statusMin"),
		StatusMax: intParam(r, "statusMax"),
	}

	page, perPage := paging(r)
	s.respondJSON(w, http.StatusOK, s.engine.Queries().Traces(r.Context(), f, page, perPage))
}

func (s *Server) getTrace(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid trace id")
		return
	}

	trace, err := s.engine.Queries().Trace(r.Context(), id)
	switch {
	case errors.Is(err, models.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "trace not found")
	case err != nil:
		s.respondError(w, http.StatusInternalServerError, err.Error())
	default:
		s.respondJSON(w, http.StatusOK, trace)
	}
}

func (s *Server) getOverview(w http.ResponseWriter, r *http.Request) {
	rng := models.ParseRange(r.URL.Query().Get("range"))
	s.respondJSON(w, http.StatusOK, s.engine.Queries().Overview(r.Context(), rng))
}

func (s *Server) getChart(w http.ResponseWriter, r *http.Request) {
	rng := models.ParseRange(r.URL.Query().Get("range"))
	series := s.engine.Queries().ChartSeries(r.Context(), rng)
	s.respondJSON(w, http.StatusOK, map[string]any{
		"range": rng,
		"data":  series,
	})
}

func (s *Server) listSavedFilters(w http.ResponseWriter, r *http.Request) {
	filters, err := s.engine.SavedFilters(r.Context(), r.URL.Query().Get("section"))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if filters == nil {
		filters = []models.SavedFilter{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"data":  filters,
		"total": len(filters),
	})
}

func (s *Server) createSavedFilter(w http.ResponseWriter, r *http.Request) {
	var f models.SavedFilter
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid filter payload")
		return
	}
	if f.Name == "" || f.Section == "" {
		s.respondError(w, http.StatusBadRequest, "name and section are required")
		return
	}

	created, err := s.engine.SaveFilter(r.Context(), &f)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, created)
}

func (s *Server) deleteSavedFilter(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid filter id")
		return
	}

	deleted, err := s.engine.DeleteSavedFilter(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		s.respondError(w, http.StatusNotFound, "filter not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sizes, err := s.engine.Store().TableSizes(r.Context())
	if err != nil {
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"tables": sizes,
	})
}

// respondJSON writes a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Debug().Err(err).Msg("encoding response")
	}
}

// respondError writes an error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
