package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/furnace-core/internal/audit"
	"github.com/nerrad567/furnace-core/internal/infrastructure/config"
	"github.com/nerrad567/furnace-core/internal/infrastructure/logging"
	"github.com/nerrad567/furnace-core/internal/ingest"
	"github.com/nerrad567/furnace-core/internal/sensorgroup"
	"github.com/nerrad567/furnace-core/internal/session"
	"github.com/nerrad567/furnace-core/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is any component with an active health check.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// IngestStatus reports ingestion counters. *ingest.Client satisfies it.
type IngestStatus interface {
	Stats() ingest.Stats
}

// WriterStatus reports writer counters. *telemetry.Writer satisfies it.
type WriterStatus interface {
	Stats() telemetry.WriterStats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Logger    *logging.Logger
	Groups    sensorgroup.Repository
	Sessions  session.Repository
	PartNames session.PartNameRepository
	Registry  *session.Registry
	Logs      telemetry.Repository

	// Optional.
	Audit  audit.Repository
	DB     HealthChecker
	MQTT   HealthChecker
	Ingest IngestStatus
	Writer WriterStatus

	Version string
}

// Server is the HTTP API server.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	groups    sensorgroup.Repository
	sessions  session.Repository
	partNames session.PartNameRepository
	registry  *session.Registry
	logs      telemetry.Repository
	audit     audit.Repository
	db        HealthChecker
	mqtt      HealthChecker
	ingest    IngestStatus
	writer    WriterStatus
	version   string
	now       func() time.Time
	server    *http.Server

	auditCh     chan *audit.Entry
	auditCancel context.CancelFunc
	auditDone   chan struct{}
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Groups == nil || deps.Sessions == nil || deps.PartNames == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("session registry is required")
	}
	if deps.Logs == nil {
		return nil, fmt.Errorf("telemetry repository is required")
	}

	s := &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		groups:    deps.Groups,
		sessions:  deps.Sessions,
		partNames: deps.PartNames,
		registry:  deps.Registry,
		logs:      deps.Logs,
		audit:     deps.Audit,
		db:        deps.DB,
		mqtt:      deps.MQTT,
		ingest:    deps.Ingest,
		writer:    deps.Writer,
		version:   deps.Version,
		now:       time.Now,
	}
	if deps.Audit != nil {
		s.auditCh = make(chan *audit.Entry, auditChanSize)
	}
	return s, nil
}

// SetIngest attaches the ingestion client after construction; the client
// is created once reference data is synchronised.
func (s *Server) SetIngest(status IngestStatus) {
	s.ingest = status
}

// Start begins listening for HTTP connections in a background goroutine.
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	if s.auditCh != nil {
		auditCtx, cancel := context.WithCancel(context.Background())
		s.auditCancel = cancel
		s.auditDone = make(chan struct{})
		go func() {
			defer close(s.auditDone)
			s.drainAuditLog(auditCtx)
		}()
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)

	// Flush the history only once no handler can enqueue more.
	if s.auditCancel != nil {
		s.auditCancel()
		<-s.auditDone
	}

	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
