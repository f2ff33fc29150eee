package autobet

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter exposes the decision engine over HTTP: settlement intake
// for the reconciliation path and read-only decision queries.
func NewRouter(e *Engine) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/settlements", handleSettlement(e)).Methods(http.MethodPost)
	r.HandleFunc("/decisions", handleDecisions(e)).Methods(http.MethodGet)
	r.HandleFunc("/decisions/{id}", handleDecision(e)).Methods(http.MethodGet)
	r.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("pong"))
	}).Methods(http.MethodGet)
	return r
}

type settlementRequest struct {
	DecisionID string `json:"decision_id"`
	Outcome    string `json:"outcome"` // won | lost | canceled
}

func handleSettlement(e *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req settlementRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		var outcome SettleOutcome
		switch req.Outcome {
		case "won":
			outcome = SettleWon
		case "lost":
			outcome = SettleLost
		case "canceled", "void":
			outcome = SettleCanceled
		default:
			http.Error(w, "unknown outcome", http.StatusBadRequest)
			return
		}
		if req.DecisionID == "" {
			http.Error(w, "decision_id required", http.StatusBadRequest)
			return
		}

		// Settle is idempotent: replays from the reconciliation path
		// are accepted and do nothing.
		e.Settle(r.Context(), req.DecisionID, outcome)
		slog.Info("Settlement received", "decision_id", req.DecisionID, "outcome", req.Outcome)
		w.WriteHeader(http.StatusAccepted)
	}
}

func handleDecisions(e *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, e.Decisions())
	}
}

func handleDecision(e *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := e.Decision(mux.Vars(r)["id"])
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, d)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
