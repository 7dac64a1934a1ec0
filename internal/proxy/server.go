package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/raaihank/iron-mask/internal/config"
	"github.com/raaihank/iron-mask/internal/logger"
	"github.com/raaihank/iron-mask/internal/metrics"
	"github.com/raaihank/iron-mask/internal/privacy"
	"github.com/raaihank/iron-mask/internal/relay"
	"github.com/raaihank/iron-mask/internal/security"
	"github.com/raaihank/iron-mask/internal/web"
	"github.com/raaihank/iron-mask/internal/websocket"
	"go.uber.org/zap"
)

// Deps are the components the server routes requests to
type Deps struct {
	Detector *privacy.Detector
	Relay    *relay.Relay
	Metrics  *metrics.Registry
	Version  string
}

// Server represents the masking proxy's HTTP front end
type Server struct {
	config    *config.Config
	logger    *logger.Logger
	detector  *privacy.Detector
	relay     *relay.Relay
	metrics   *metrics.Registry
	limiter   *security.RateLimiter
	wsHub     *websocket.Hub
	router    *mux.Router
	server    *http.Server
	version   string
	startTime time.Time

	// background workers stop when ctx is canceled by Stop
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new proxy server instance
func New(cfg *config.Config, log *logger.Logger, deps Deps) (*Server, error) {
	if deps.Detector == nil {
		return nil, errors.New("privacy detector is required")
	}
	if deps.Relay == nil {
		return nil, errors.New("relay is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewRegistry()
	}

	server := &Server{
		config:    cfg,
		logger:    log.WithComponent("proxy"),
		detector:  deps.Detector,
		relay:     deps.Relay,
		metrics:   deps.Metrics,
		limiter:   security.NewRateLimiter(cfg.Security.RateLimit),
		router:    mux.NewRouter(),
		version:   deps.Version,
		startTime: time.Now(),
	}
	server.ctx, server.cancel = context.WithCancel(context.Background())

	if cfg.WebSocket.Enabled {
		server.wsHub = websocket.NewHub(cfg.WebSocket, log.WithComponent("websocket"))
		server.wsHub.OnClientCount(func(active int) {
			server.metrics.WebSocketClients.Set(float64(active))
		})
	}

	server.setupRoutes()

	server.server = &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return server, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.metricsMiddleware)

	// Liveness and introspection
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)

	if s.config.Metrics.Enabled {
		s.router.Handle(s.config.Metrics.Path, s.metrics.Handler()).Methods(http.MethodGet)
	}

	if s.wsHub != nil {
		s.router.HandleFunc(s.config.WebSocket.Path, s.wsHub.HandleWebSocket).Methods(http.MethodGet)
		s.router.Handle("/dashboard", s.wsHub.RequireAuth(web.DashboardHandler(s.config.WebSocket.Path))).Methods(http.MethodGet)
	}

	// Masking endpoints
	masking := s.router.NewRoute().Subrouter()
	masking.Use(s.rateLimitMiddleware)
	masking.Use(s.bodyLimitMiddleware)
	masking.HandleFunc("/mask", s.handleMask).Methods(http.MethodPost)
	masking.HandleFunc("/mask/json", s.handleMaskJSON).Methods(http.MethodPost)
}

// Handler returns the routed handler, for embedding and tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and background workers. It blocks until the
// server stops; http.ErrServerClosed means Stop was called.
func (s *Server) Start() error {
	s.logger.Info("Starting iron-mask proxy server",
		zap.String("addr", s.server.Addr),
		zap.String("target", s.config.Target.URL),
		zap.Strings("detectors", s.detector.GetEnabledRules()),
	)

	if s.wsHub != nil {
		go s.wsHub.Run(s.ctx)
	}
	if s.limiter.Enabled() {
		s.limiter.StartCleanupRoutine(s.ctx)
	}

	if err := s.server.ListenAndServe(); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping iron-mask proxy server")
	s.cancel()
	return s.server.Shutdown(ctx)
}

// GetWebSocketHub returns the WebSocket hub, nil when disabled
func (s *Server) GetWebSocketHub() *websocket.Hub {
	return s.wsHub
}
