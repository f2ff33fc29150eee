package ingest

import (
	"sort"
	"sync"
	"time"
)

// SourceStatus is one source's liveness view for the health endpoint.
type SourceStatus struct {
	Source        string    `json:"source"`
	LastObserved  time.Time `json:"last_observed,omitempty"`
	LastHeartbeat time.Time `json:"last_heartbeat,omitempty"`
	Alive         bool      `json:"alive"`
}

// SourceHealth tracks per-source activity. Observability only;
// correctness never depends on it.
type SourceHealth struct {
	window time.Duration

	mu        sync.Mutex
	observed  map[string]time.Time
	heartbeat map[string]time.Time
}

func NewSourceHealth(window time.Duration) *SourceHealth {
	return &SourceHealth{
		window:    window,
		observed:  make(map[string]time.Time),
		heartbeat: make(map[string]time.Time),
	}
}

// Seen records that a source delivered a valid observation.
func (h *SourceHealth) Seen(source string, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if at.After(h.observed[source]) {
		h.observed[source] = at
	}
}

// Beat records an explicit heartbeat.
func (h *SourceHealth) Beat(source string, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if at.After(h.heartbeat[source]) {
		h.heartbeat[source] = at
	}
}

// Statuses returns the known sources sorted into a stable snapshot. A
// source is alive when anything arrived within the window.
func (h *SourceHealth) Statuses(now time.Time) []SourceStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := make(map[string]struct{}, len(h.observed)+len(h.heartbeat))
	for s := range h.observed {
		names[s] = struct{}{}
	}
	for s := range h.heartbeat {
		names[s] = struct{}{}
	}

	out := make([]SourceStatus, 0, len(names))
	for s := range names {
		status := SourceStatus{
			Source:        s,
			LastObserved:  h.observed[s],
			LastHeartbeat: h.heartbeat[s],
		}
		last := status.LastObserved
		if status.LastHeartbeat.After(last) {
			last = status.LastHeartbeat
		}
		status.Alive = now.Sub(last) <= h.window
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}
