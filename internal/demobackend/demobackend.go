package demobackend

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	ServiceName = "backend-service"
	Version     = "1.0.0"

	DefaultFailureRate = 0.1
	DefaultMinDelay    = 100 * time.Millisecond
	DefaultMaxDelay    = 500 * time.Millisecond
	DefaultIterations  = 1000

	// maxIterations keeps /api/load from pinning a core indefinitely.
	maxIterations = 100_000_000
)

// Options tune the simulated behaviour. Zero values select the defaults,
// except FailureRate, which is used as given.
type Options struct {
	Instance    string
	FailureRate float64
	MinDelay    time.Duration
	MaxDelay    time.Duration

	// Rand and Sleep are replaceable for tests.
	Rand  *rand.Rand
	Sleep func(context.Context, time.Duration)
}

// Service is the upstream the frontend calls.
type Service struct {
	opts   Options
	logger *zap.SugaredLogger

	mu  sync.Mutex // guards opts.Rand
	now func() time.Time
}

func New(opts Options, logger *zap.SugaredLogger) *Service {
	if opts.Instance == "" {
		opts.Instance = InstanceID()
	}
	if opts.MinDelay == 0 && opts.MaxDelay == 0 {
		opts.MinDelay, opts.MaxDelay = DefaultMinDelay, DefaultMaxDelay
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return &Service{opts: opts, logger: logger, now: time.Now}
}

// InstanceID is HOSTNAME, the OS hostname, or a random UUID, in that order.
func InstanceID() string {
	if h := os.Getenv("HOSTNAME"); h != "" {
		return h
	}
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return uuid.NewString()
}

func (s *Service) Instance() string { return s.opts.Instance }

func (s *Service) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/message", s.handleMessage).Methods(http.MethodGet)
	r.HandleFunc("/api/load", s.handleLoad).Methods(http.MethodGet)
	r.HandleFunc("/api/chain", s.handleChain).Methods(http.MethodGet)
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Use(cors)
	return r
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID, X-Source")
		next.ServeHTTP(w, r)
	})
}

func (s *Service) utcNow() string {
	return s.now().UTC().Format("2006-01-02T15:04:05.000000")
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   ServiceName,
		"version":   Version,
		"instance":  s.opts.Instance,
		"timestamp": s.utcNow(),
	})
}

func (s *Service) handleMessage(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	delay := s.opts.MinDelay + time.Duration(s.opts.Rand.Float64()*float64(s.opts.MaxDelay-s.opts.MinDelay))
	fail := s.opts.Rand.Float64() < s.opts.FailureRate
	s.mu.Unlock()

	s.opts.Sleep(r.Context(), delay)

	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = "req-" + strconv.FormatInt(s.now().Unix(), 10)
	}
	source := r.Header.Get("X-Source")
	if source == "" {
		source = "unknown"
	}

	if fail {
		s.logger.Warnw("simulated failure", "request_id", requestID, "source", source)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":      "Random service failure for demo purposes",
			"service":    ServiceName,
			"instance":   s.opts.Instance,
			"request_id": requestID,
		})
		return
	}

	processingMS := math.Round(float64(delay.Microseconds())/10) / 100

	s.logger.Infow("request processed",
		"request_id", requestID,
		"source", source,
		"processing_time", delay,
	)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":            fmt.Sprintf("Hello from %s!", ServiceName),
		"version":            Version,
		"instance":           s.opts.Instance,
		"processing_time_ms": processingMS,
		"request_id":         requestID,
		"source":             source,
		"timestamp":          s.utcNow(),
		"metadata": map[string]string{
			"hostname":   s.opts.Instance,
			"go_version": runtime.Version(),
			"framework":  "net/http",
		},
	})
}

func (s *Service) handleLoad(w http.ResponseWriter, r *http.Request) {
	iterations := DefaultIterations
	if v := r.URL.Query().Get("iterations"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > maxIterations {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error": fmt.Sprintf("iterations must be an integer between 0 and %d", maxIterations),
			})
			return
		}
		iterations = n
	}

	start := time.Now()
	var result uint64
	for i := 0; i < iterations; i++ {
		result += uint64(i) * uint64(i)
	}
	elapsed := time.Since(start)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":            ServiceName,
		"instance":           s.opts.Instance,
		"iterations":         iterations,
		"result":             result,
		"processing_time_ms": math.Round(float64(elapsed.Microseconds())/10) / 100,
		"timestamp":          s.utcNow(),
	})
}

func (s *Service) handleChain(w http.ResponseWriter, r *http.Request) {
	next := r.URL.Query().Get("next")
	if next == "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message":        "This is the end of the chain",
			"service":        ServiceName,
			"instance":       s.opts.Instance,
			"chain_position": "terminal",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":        fmt.Sprintf("Chain call from %s", ServiceName),
		"service":        ServiceName,
		"instance":       s.opts.Instance,
		"next_service":   next,
		"chain_position": "intermediate",
	})
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
