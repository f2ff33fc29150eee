package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/nvoloshin/betfuse/internal/fusion/ingest"
	"github.com/nvoloshin/betfuse/internal/fusion/resolve"
	"github.com/nvoloshin/betfuse/internal/fusion/store"
	"github.com/nvoloshin/betfuse/internal/opportunity"
	"github.com/nvoloshin/betfuse/internal/pkg/config"
	"github.com/nvoloshin/betfuse/internal/pkg/enums"
	"github.com/nvoloshin/betfuse/internal/pkg/models"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	st := store.New(2 * time.Minute)
	resolver := resolve.New(config.ResolverConfig{
		MinTeamTokens:      1,
		AliasCacheCapacity: 16,
		AliasCacheTTL:      config.Duration(time.Hour),
	}, st)
	engine := opportunity.New(config.OpportunityConfig{
		MinEdgePercent: 5, MaxOddsAge: config.Duration(20 * time.Second),
		AnomalyPercent: 10, AnomalyMinBooks: 2, MinConfidence: 0.3,
	}, st)

	r := mux.NewRouter()
	NewServer(st, engine, resolver, ingest.NewSourceHealth(time.Minute)).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, st
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestStateEndpoint(t *testing.T) {
	srv, st := newTestServer(t)
	now := time.Now()

	football := models.NewMatchKey(enums.Football, "hades", "heist")
	tennis := models.NewMatchKey(enums.Tennis, "player one", "player two")
	st.ApplyScore(football, "scorefeed", &models.DetailedScore{
		Football: &models.FootballScore{Goals1: 1, Minute: 70},
	}, true, now)
	st.ApplyScore(tennis, "scorefeed", &models.DetailedScore{
		Tennis: &models.TennisScore{Sets1: 1, BestOf: 3},
	}, true, now)

	var all []models.FusedMatchState
	if code := getJSON(t, srv.URL+"/state", &all); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(all) != 2 {
		t.Fatalf("states = %d, want 2", len(all))
	}

	var onlyFootball []models.FusedMatchState
	getJSON(t, srv.URL+"/state?sport=football", &onlyFootball)
	if len(onlyFootball) != 1 || onlyFootball[0].Key != football {
		t.Fatalf("sport filter returned %+v", onlyFootball)
	}

	var single models.FusedMatchState
	getJSON(t, srv.URL+"/state?sport=football&team1=Heist&team2=Hades", &single)
	if single.Key != football {
		t.Fatalf("lookup key = %s, want %s", single.Key, football)
	}

	if code := getJSON(t, srv.URL+"/state?sport=football&team1=Nobody&team2=Here", nil); code != http.StatusNotFound {
		t.Fatalf("missing match status = %d, want 404", code)
	}
}

func TestStateEndpoint_UnknownSportRejected(t *testing.T) {
	srv, st := newTestServer(t)
	st.ApplyScore(models.NewMatchKey(enums.Football, "hades", "heist"), "scorefeed",
		&models.DetailedScore{Football: &models.FootballScore{Goals1: 1}}, true, time.Now())

	if code := getJSON(t, srv.URL+"/state?sport=underwater-chess", nil); code != http.StatusBadRequest {
		t.Fatalf("unknown sport status = %d, want 400", code)
	}
}

func TestOpportunitiesEndpointEmpty(t *testing.T) {
	srv, _ := newTestServer(t)

	var opps []models.Opportunity
	if code := getJSON(t, srv.URL+"/opportunities", &opps); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if opps == nil || len(opps) != 0 {
		t.Fatalf("want empty array, got %v", opps)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, st := newTestServer(t)
	st.ApplyScore(models.NewMatchKey(enums.Football, "a team", "b side"), "scorefeed",
		&models.DetailedScore{Football: &models.FootballScore{Goals1: 1}}, true, time.Now())

	var health healthResponse
	if code := getJSON(t, srv.URL+"/health", &health); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if health.MatchesTracked != 1 {
		t.Errorf("matches_tracked = %d, want 1", health.MatchesTracked)
	}
}
