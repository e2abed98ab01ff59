package stats

import (
	"encoding/json"
	"net/http"
	"strconv"

	"ServiceMeshDemo/internal/calllog"
)

// BucketCounter reports how many clients the rate limiter tracks.
type BucketCounter interface {
	Buckets() int
}

// Handlers serves the read-only introspection endpoints.
type Handlers struct {
	Stats       *Collector
	CallLogPath string
	Limiter     BucketCounter
}

const (
	defaultCallsLimit = 50
	maxCallsLimit     = 200
)

// ServeStats answers GET /api/stats.
func (h *Handlers) ServeStats(w http.ResponseWriter, r *http.Request) {
	success, failure, uptime := h.Stats.Snapshot()

	var buckets int
	if h.Limiter != nil {
		buckets = h.Limiter.Buckets()
	}

	writeJSON(w, map[string]interface{}{
		"upstream_success":   success,
		"upstream_failure":   failure,
		"uptime_seconds":     int64(uptime.Seconds()),
		"rate_limit_buckets": buckets,
	})
}

// ServeCalls answers GET /api/calls with the most recent call records.
func (h *Handlers) ServeCalls(w http.ResponseWriter, r *http.Request) {
	limit := defaultCallsLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = min(n, maxCallsLimit)
		}
	}

	if h.CallLogPath == "" {
		writeJSON(w, map[string]interface{}{"enabled": false, "entries": []calllog.Entry{}})
		return
	}

	entries, err := calllog.ReadLastEntries(h.CallLogPath, limit)
	if err != nil {
		http.Error(w, "failed to read call log", http.StatusInternalServerError)
		return
	}

	type entryDTO struct {
		Timestamp  string `json:"timestamp"`
		RequestID  string `json:"request_id"`
		Outcome    string `json:"outcome"`
		StatusCode int    `json:"status_code"`
		LatencyMS  int64  `json:"latency_ms"`
		Detail     string `json:"detail,omitempty"`
	}

	dtos := make([]entryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = entryDTO{
			Timestamp:  e.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
			RequestID:  e.RequestID,
			Outcome:    e.Outcome,
			StatusCode: e.StatusCode,
			LatencyMS:  e.LatencyMS,
			Detail:     e.Detail,
		}
	}

	writeJSON(w, map[string]interface{}{"enabled": true, "entries": dtos})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
