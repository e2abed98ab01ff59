package calllog

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

/*
CALL LOG DESIGN

append only JSON lines, one per backend call made by /api/data.

hash chaining.
 Every entry carries the hash of the previous one
 Deletion, modification or reordering breaks the chain

fail open.
 A write failure is dropped; the request it describes still completes
*/

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

type Entry struct {
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
	Outcome    string    `json:"outcome"`
	StatusCode int       `json:"status_code"`
	LatencyMS  int64     `json:"latency_ms"`
	Detail     string    `json:"detail,omitempty"`
	PrevHash   string    `json:"prev_hash"`
	Hash       string    `json:"hash"`
}

// Record is what a caller knows about a finished backend call.
type Record struct {
	RequestID  string
	Outcome    string
	StatusCode int
	Latency    time.Duration
	Detail     string
}

type Logger struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	lastHash string
}

// NewLogger opens (or creates) an append only call log and resumes the
// hash chain from its last entry.
func NewLogger(path string) (*Logger, error) {
	last, err := ReadLastEntries(path, 1)
	if err != nil {
		return nil, eris.Wrapf(err, "reading existing call log %s", path)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, eris.Wrapf(err, "opening call log %s", path)
	}

	l := &Logger{file: f, path: path}
	if len(last) == 1 {
		l.lastHash = last[0].Hash
	}
	return l, nil
}

// Path is the file the logger appends to. Empty for a nil logger.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Close closes the underlying file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	return l.file.Close()
}

// Log appends rec. A nil Logger discards it.
func (l *Logger) Log(rec Record) {
	if l == nil {
		return
	}

	defer func() {
		_ = recover()
	}()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Entry{
		Timestamp:  time.Now().UTC(),
		RequestID:  rec.RequestID,
		Outcome:    rec.Outcome,
		StatusCode: rec.StatusCode,
		LatencyMS:  rec.Latency.Milliseconds(),
		Detail:     rec.Detail,
		PrevHash:   l.lastHash,
	}

	entry.Hash = computeHash(entry)

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return
	}

	l.lastHash = entry.Hash
}

// computeHash length-prefixes every field so bytes cannot slide from one
// field into its neighbour without changing the digest.
func computeHash(e Entry) string {
	h := sha256.New()

	for _, field := range []string{
		e.Timestamp.Format(time.RFC3339Nano),
		e.RequestID,
		e.Outcome,
		strconv.Itoa(e.StatusCode),
		strconv.FormatInt(e.LatencyMS, 10),
		e.Detail,
		e.PrevHash,
	} {
		var size [8]byte
		binary.BigEndian.PutUint64(size[:], uint64(len(field)))
		h.Write(size[:])
		h.Write([]byte(field))
	}

	return hex.EncodeToString(h.Sum(nil))
}
