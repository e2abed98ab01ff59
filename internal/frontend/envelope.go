package frontend

import (
	"encoding/json"
	"net/http"
	"time"
)

// ErrBackendUnavailable is the fixed error text of a failed /api/data call.
const ErrBackendUnavailable = "Backend service unavailable"

// timestamp marshals as UTC ISO 8601 with millisecond precision.
type timestamp time.Time

func (t timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format("2006-01-02T15:04:05.000Z07:00"))
}

type healthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp timestamp `json:"timestamp"`
}

type dataResponse struct {
	Success         bool            `json:"success"`
	FrontendMessage string          `json:"frontend_message"`
	BackendData     json.RawMessage `json:"backend_data"`
	Timestamp       timestamp       `json:"timestamp"`
	RequestID       string          `json:"request_id"`
}

type errorResponse struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error"`
	Details   string    `json:"details"`
	Timestamp timestamp `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
