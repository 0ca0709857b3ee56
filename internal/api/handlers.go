package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/portfolio-advisor/internal/cache"
	"github.com/sells-group/portfolio-advisor/internal/export"
	"github.com/sells-group/portfolio-advisor/internal/model"
	"github.com/sells-group/portfolio-advisor/internal/ranking"
	"github.com/sells-group/portfolio-advisor/internal/registry"
)

// ClientSummary is one row of GET /v1/clients.
type ClientSummary struct {
	ClientName  string     `json:"clientName"`
	Sentiment   int        `json:"sentiment"`
	SignalCount int        `json:"signalCount"`
	Signals     []string   `json:"signals"`
	CapturedAt  *time.Time `json:"capturedAt,omitempty"`
}

// RankRequest is the body of POST /v1/rank.
type RankRequest struct {
	Catalog  json.RawMessage `json:"catalog"`
	Insights json.RawMessage `json:"insights"`
	Signal   string          `json:"signal"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListOfferings(w http.ResponseWriter, r *http.Request) {
	offerings, err := s.catalog.ListOfferings(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, offerings)
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	sets, err := s.insights.ListInsightSets(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	out := make([]ClientSummary, len(sets))
	for i, set := range sets {
		out[i] = ClientSummary{
			ClientName:  set.ClientName,
			Sentiment:   set.Sentiment,
			SignalCount: len(set.Signals),
			Signals:     set.SignalNames(),
			CapturedAt:  set.CapturedAt,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleRecommendations ranks the stored catalog for one client. The signal
// query parameter filters by evidence; top=true returns only the best match,
// or 204 when nothing matches.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	client, err := url.PathUnescape(chi.URLParam(r, "client"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid client name")
		return
	}
	signal := r.URL.Query().Get("signal")
	top := false
	if raw := r.URL.Query().Get("top"); raw != "" {
		top, err = strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "top must be true or false")
			return
		}
	}

	insights, err := s.insights.GetInsightSet(r.Context(), client)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	catalog, err := s.catalog.ListOfferings(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	res, err := s.rank(r, catalog, insights, signal)
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	if top {
		best := ranking.TopRecommendation(res.Matches)
		if best == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, best)
		return
	}
	writeJSON(w, http.StatusOK, export.NewReport(insights.ClientName, signal, res))
}

// handleRank ranks a catalog and insight set supplied in the body without
// touching the repositories. Both documents are schema-checked.
func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	var req RankRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Catalog) == 0 || len(req.Insights) == 0 {
		writeError(w, http.StatusBadRequest, "catalog and insights are required")
		return
	}

	catalog, err := registry.DecodeCatalog(req.Catalog, registry.FormatJSON)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	sets, err := registry.DecodeInsights(req.Insights, registry.FormatJSON)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if len(sets) != 1 {
		writeError(w, http.StatusBadRequest, "insights must describe exactly one client")
		return
	}

	res, err := s.rank(r, catalog, sets[0], req.Signal)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// rank runs a ranking pass, through the cache when one is configured, and
// applies the signal filter. Skipped offerings are reported unfiltered.
func (s *Server) rank(r *http.Request, catalog []model.Offering, insights model.ClientInsightSet, signal string) (ranking.Result, error) {
	compute := func() ranking.Result {
		res := s.ranker.Rank(catalog, insights)
		res.Matches = ranking.FilterBySignal(res.Matches, signal)
		return res
	}
	if s.cache == nil {
		return compute(), nil
	}
	key, err := cache.Key(catalog, insights, signal)
	if err != nil {
		return ranking.Result{}, err
	}
	return s.cache.Rank(r.Context(), key, compute), nil
}
