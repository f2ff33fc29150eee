package ingest

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nvoloshin/betfuse/internal/pkg/models"
)

const maxBodyBytes = 1 << 20

// Register mounts the intake endpoints on a router. Producers POST
// observations (single or batch) and heartbeats; the response is always
// 202, malformed payloads included, so a broken producer cannot tell
// itself apart from a healthy one and start hammering retries.
func (p *Pipeline) Register(r *mux.Router) {
	r.HandleFunc("/observations", p.handleObservations).Methods(http.MethodPost)
	r.HandleFunc("/heartbeat", p.handleHeartbeat).Methods(http.MethodPost)
	r.HandleFunc("/ws", p.handleWebsocket).Methods(http.MethodGet)
}

func (p *Pipeline) handleObservations(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	for _, obs := range decodeObservations(body) {
		p.Apply(obs)
	}
	w.WriteHeader(http.StatusAccepted)
}

func (p *Pipeline) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var hb models.Heartbeat
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&hb); err == nil {
		p.Beat(hb)
	}
	w.WriteHeader(http.StatusAccepted)
}

// decodeObservations accepts either a single observation object or an
// array of them. Anything unparseable decodes to nothing.
func decodeObservations(body []byte) []models.RawObservation {
	var batch []models.RawObservation
	if err := json.Unmarshal(body, &batch); err == nil {
		return batch
	}
	var single models.RawObservation
	if err := json.Unmarshal(body, &single); err == nil {
		return []models.RawObservation{single}
	}
	slog.Debug("Unparseable observation payload", "bytes", len(body))
	return nil
}
