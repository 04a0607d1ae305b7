// Package api exposes the exchange over HTTP. Request and response
// bodies use the binary envelope from pkg/gbuf; errors are status codes
// with empty bodies.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"cosmossdk.io/log"

	"github.com/openalpha/hourex/api/websocket"
	"github.com/openalpha/hourex/exchange/engine"
	"github.com/openalpha/hourex/exchange/events"
	"github.com/openalpha/hourex/metrics"
)

// AdminToken authorizes the collateral endpoint.
const AdminToken = "password123"

// maxBodyBytes caps request bodies well above the largest legal bulk
// batch.
const maxBodyBytes = 1 << 20

// Config holds server configuration.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the HTTP front end over one engine.
type Server struct {
	config *Config
	logger log.Logger
	engine *engine.Engine
	hub    *websocket.Hub
	stats  *metrics.Collector

	httpServer *http.Server
}

// NewServer creates an API server.
func NewServer(cfg *Config, logger log.Logger, eng *engine.Engine, bus *events.Bus) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Server{
		config: cfg,
		logger: logger.With("module", "api"),
		engine: eng,
		hub:    websocket.NewHub(bus, logger),
		stats:  metrics.GetCollector(),
	}
}

// routes builds the request mux with metrics instrumentation.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())

	mux.HandleFunc("/register", s.handleRegister)
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/user/password", s.handleChangePassword)
	mux.HandleFunc("/dna-submit", s.handleDNASubmit)
	mux.HandleFunc("/dna-login", s.handleDNALogin)

	mux.HandleFunc("/v2/orders", s.handleOrders)
	mux.HandleFunc("/v2/orders/", s.handleOrderByID)
	mux.HandleFunc("/v2/my-orders", s.handleMyOrders)
	mux.HandleFunc("/v2/my-trades", s.handleMyTrades)
	mux.HandleFunc("/v2/trades", s.handleTrades)
	mux.HandleFunc("/balance", s.handleBalance)
	mux.HandleFunc("/collateral/", s.handleCollateral)
	mux.HandleFunc("/v2/bulk-operations", s.handleBulkOperations)

	mux.HandleFunc("/v2/stream/trades", s.handleStreamTrades)
	mux.HandleFunc("/v2/stream/order-book", s.handleStreamOrderBook)
	mux.HandleFunc("/v2/stream/execution-reports", s.handleStreamExecReports)

	// Legacy flat-listing endpoints.
	mux.HandleFunc("/orders", s.handleV1Orders)
	mux.HandleFunc("/trades", s.handleV1Trades)

	return s.instrument(mux)
}

// Start runs the server until Stop is called or listening fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("starting API server", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("stopping API server")
	return s.httpServer.Shutdown(ctx)
}

// statusRecorder captures the response status for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument wraps the mux with request metrics. Stream endpoints hijack
// the connection, so they bypass the recorder.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocketUpgrade(r) {
			next.ServeHTTP(w, r)
			return
		}
		timer := metrics.NewTimer()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.stats.RecordAPIRequest(r.Method, r.URL.Path, strconv.Itoa(rec.status), timer.ElapsedMs())
	})
}

func websocketUpgrade(r *http.Request) bool {
	return r.Header.Get("Upgrade") == "websocket"
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
