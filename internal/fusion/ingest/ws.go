package ingest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nvoloshin/betfuse/internal/pkg/models"
)

const (
	wsReadLimit    = 1 << 20
	wsPongWait     = 60 * time.Second
	wsPingInterval = 25 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Producers are internal scrapers; origin checks add nothing here.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsEnvelope is one websocket frame from a producer: an observation or
// a heartbeat, distinguished by the kind field.
type wsEnvelope struct {
	Kind        string                 `json:"kind"` // "observation" (default) or "heartbeat"
	Observation *models.RawObservation `json:"observation,omitempty"`
	Heartbeat   *models.Heartbeat      `json:"heartbeat,omitempty"`
}

// handleWebsocket upgrades a producer connection and consumes frames
// until it closes. Each connection gets its own reader goroutine; the
// shared pipeline behind it is concurrency safe.
func (p *Pipeline) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	slog.Info("Feed connection opened", "remote", r.RemoteAddr)

	done := make(chan struct{})
	go p.pingLoop(conn, done)
	defer func() {
		close(done)
		conn.Close()
		slog.Info("Feed connection closed", "remote", r.RemoteAddr)
	}()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("Websocket read error", "error", err, "remote", r.RemoteAddr)
			}
			return
		}
		p.consumeFrame(frame)
	}
}

// consumeFrame decodes one frame. Bare observations without an envelope
// are accepted too since most producers send those.
func (p *Pipeline) consumeFrame(frame []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(frame, &env); err == nil {
		switch {
		case env.Kind == "heartbeat" && env.Heartbeat != nil:
			p.Beat(*env.Heartbeat)
			return
		case env.Observation != nil:
			p.Apply(*env.Observation)
			return
		}
	}
	for _, obs := range decodeObservations(frame) {
		p.Apply(obs)
	}
}

func (p *Pipeline) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
