package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DebugServer runs the metrics and health listener alongside tracking runs.
type DebugServer struct {
	server *http.Server
	logger *zap.Logger
}

// NewDebugServer creates the debug listener on addr.
func NewDebugServer(addr string, handler http.Handler, logger *zap.Logger) *DebugServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DebugServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start serves in a background goroutine until Shutdown is called.
func (s *DebugServer) Start() {
	s.logger.Info("starting debug listener", zap.String("addr", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("debug listener failed", zap.Error(err))
		}
	}()
}

// Shutdown drains the listener.
func (s *DebugServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
