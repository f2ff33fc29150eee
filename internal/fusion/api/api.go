// Package api is the read-only query surface of the fusion service:
// current fused state and current opportunities, safe to poll
// frequently.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nvoloshin/betfuse/internal/fusion/ingest"
	"github.com/nvoloshin/betfuse/internal/fusion/resolve"
	"github.com/nvoloshin/betfuse/internal/fusion/store"
	"github.com/nvoloshin/betfuse/internal/opportunity"
	"github.com/nvoloshin/betfuse/internal/pkg/enums"
	"github.com/nvoloshin/betfuse/internal/pkg/models"
)

type Server struct {
	store    *store.Store
	engine   *opportunity.Engine
	resolver *resolve.Resolver
	health   *ingest.SourceHealth
}

func NewServer(st *store.Store, engine *opportunity.Engine, resolver *resolve.Resolver, health *ingest.SourceHealth) *Server {
	return &Server{store: st, engine: engine, resolver: resolver, health: health}
}

// Register mounts the query endpoints on a router.
func (s *Server) Register(r *mux.Router) {
	r.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	r.HandleFunc("/opportunities", s.handleOpportunities).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("pong"))
	}).Methods(http.MethodGet)
}

// handleState returns fused states: all of them, one sport's
// (?sport=football), or a single match (?team1=...&team2=...&sport=...).
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	q := r.URL.Query()

	if team1, team2 := q.Get("team1"), q.Get("team2"); team1 != "" && team2 != "" {
		key, _ := s.resolver.Resolve(q.Get("sport"), team1, team2)
		state, ok := s.store.Snapshot(key, now)
		if !ok {
			http.Error(w, "match not tracked", http.StatusNotFound)
			return
		}
		writeJSON(w, state)
		return
	}

	states := s.store.All(now)
	if sport := q.Get("sport"); sport != "" {
		want, ok := enums.ParseSport(sport)
		if !ok {
			http.Error(w, "unknown sport", http.StatusBadRequest)
			return
		}
		filtered := states[:0]
		for _, state := range states {
			if state.Key.Sport == want {
				filtered = append(filtered, state)
			}
		}
		states = filtered
	}
	if states == nil {
		states = []models.FusedMatchState{}
	}
	writeJSON(w, states)
}

func (s *Server) handleOpportunities(w http.ResponseWriter, _ *http.Request) {
	opps := s.engine.Latest()
	if opps == nil {
		opps = []models.Opportunity{}
	}
	writeJSON(w, opps)
}

type healthResponse struct {
	MatchesTracked int                   `json:"matches_tracked"`
	AliasCacheSize int                   `json:"alias_cache_size"`
	Sources        []ingest.SourceStatus `json:"sources"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, healthResponse{
		MatchesTracked: s.store.Len(),
		AliasCacheSize: s.resolver.CacheLen(),
		Sources:        s.health.Statuses(time.Now()),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
