package frontend

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ServiceMeshDemo/internal/calllog"
	"ServiceMeshDemo/internal/config"
	"ServiceMeshDemo/internal/middleware"
	"ServiceMeshDemo/internal/ratelimit"
	"ServiceMeshDemo/internal/stats"
	"ServiceMeshDemo/internal/upstream"
)

/*
REQUEST FLOW (outer to inner):

1. Recover        :   a panicking handler answers 500
2. Request ID     :   X-Request-ID or a generated req-<millis>
3. Access log     :   one line per request
4. Router         :   /health, /api/data, /, introspection, static files
5. Rate limit     :   /api/data only, per client IP, when enabled
*/

// ServiceName is reported by /health.
const ServiceName = "frontend"

const shutdownGrace = 10 * time.Second

//go:embed web/index.html
var indexHTML []byte

type Server struct {
	cfg      *config.Config
	logger   *zap.SugaredLogger
	client   *upstream.Client
	stats    *stats.Collector
	calls    *calllog.Logger
	limiter  *ratelimit.Limiter
	registry *prometheus.Registry
	now      func() time.Time
}

// New wires the frontend. calls may be nil to run without a call log.
func New(cfg *config.Config, logger *zap.SugaredLogger, calls *calllog.Logger) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		client:   upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Source, cfg.Upstream.Timeout),
		stats:    stats.NewCollector(registry),
		calls:    calls,
		registry: registry,
		now:      time.Now,
	}

	if cfg.RateLimit.On() {
		s.limiter = ratelimit.NewLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSecond)
	}

	return s
}

// Handler returns the full middleware chain around the router.
func (s *Server) Handler() http.Handler {
	introspection := &stats.Handlers{
		Stats:       s.stats,
		CallLogPath: s.calls.Path(),
	}
	if s.limiter != nil {
		introspection.Limiter = s.limiter
	}

	var data http.Handler = http.HandlerFunc(s.handleData)
	if s.limiter != nil {
		data = s.limiter.Middleware(data)
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/api/data", data).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", introspection.ServeStats).Methods(http.MethodGet)
	r.HandleFunc("/api/calls", introspection.ServeCalls).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet, http.MethodHead)
	r.PathPrefix("/").
		Handler(staticHandler(s.cfg.Server.PublicDir)).
		Methods(http.MethodGet, http.MethodHead)

	return middleware.Recover(s.logger)(
		middleware.RequestID(
			middleware.AccessLog(s.logger)(r),
		),
	)
}

// Run serves on the configured address until ctx is cancelled, then
// drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	writeTimeout := 10 * time.Second
	if floor := s.cfg.Upstream.Timeout + 5*time.Second; floor > writeTimeout {
		writeTimeout = floor
	}

	server := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Infow("frontend listening", "addr", server.Addr, "backend_url", s.cfg.Upstream.BaseURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "frontend server")
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		s.logger.Infow("shutting down")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Service:   ServiceName,
		Timestamp: timestamp(s.now()),
	})
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	requestID, ok := middleware.RequestIDFrom(r.Context())
	if !ok {
		requestID = middleware.NewRequestID(s.now())
	}

	s.logger.Infow("calling backend",
		"url", s.client.BaseURL()+upstream.MessagePath,
		"request_id", requestID,
	)

	// Only the client timeout bounds the call; a departed browser does not cancel it.
	ctx := context.WithoutCancel(r.Context())

	start := s.now()
	body, err := s.client.FetchMessage(ctx, requestID)
	latency := s.now().Sub(start)

	if err != nil {
		var statusCode int
		var ue *upstream.UnavailableError
		if errors.As(err, &ue) {
			statusCode = ue.StatusCode
		}

		s.logger.Errorw("backend call failed", "request_id", requestID, zap.Error(err))
		s.stats.Observe(false, latency)
		s.calls.Log(calllog.Record{
			RequestID:  requestID,
			Outcome:    calllog.OutcomeFailure,
			StatusCode: statusCode,
			Latency:    latency,
			Detail:     err.Error(),
		})

		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Success:   false,
			Error:     ErrBackendUnavailable,
			Details:   err.Error(),
			Timestamp: timestamp(s.now()),
		})
		return
	}

	s.stats.Observe(true, latency)
	s.calls.Log(calllog.Record{
		RequestID:  requestID,
		Outcome:    calllog.OutcomeSuccess,
		StatusCode: http.StatusOK,
		Latency:    latency,
	})

	writeJSON(w, http.StatusOK, dataResponse{
		Success:         true,
		FrontendMessage: s.cfg.Server.Message,
		BackendData:     body,
		Timestamp:       timestamp(s.now()),
		RequestID:       requestID,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(indexHTML)
}
