// Package api serves the task dispatcher over HTTP.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AgentShepherd/dataworks/internal/dispatch"
)

// RouteRegistrar mounts additional routes, such as the audit API.
type RouteRegistrar interface {
	RegisterRoutes(router gin.IRouter)
}

// Options configures a Server.
type Options struct {
	Dispatcher   *dispatch.Dispatcher
	Version      string
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	// Stale reports whether the config file changed since startup.
	Stale  func() bool
	Routes []RouteRegistrar
}

// Server is the HTTP front end of a Dispatcher.
type Server struct {
	opts   Options
	d      *dispatch.Dispatcher
	engine *gin.Engine
}

// New builds the router. It panics if opts.Dispatcher is nil.
func New(opts Options) *Server {
	if opts.Dispatcher == nil {
		panic("api: nil dispatcher")
	}
	if opts.Stale == nil {
		opts.Stale = func() bool { return false }
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{opts: opts, d: opts.Dispatcher, engine: gin.New()}
	r := s.engine
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware())
	r.Use(SecurityHeadersMiddleware())
	r.Use(BodySizeLimitMiddleware(opts.MaxBodyBytes))

	r.GET("/health", s.handleHealth)
	r.POST("/run", s.handleRun)
	r.GET("/read", s.handleRead)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/filter-csv", s.handleFilterCSV)
		v1.GET("/operations", s.handleOperations)
	}

	for _, rr := range opts.Routes {
		rr.RegisterRoutes(r)
	}

	r.NoRoute(func(c *gin.Context) {
		Error(c, http.StatusNotFound, "not found")
	})
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then drains
// in-flight requests for up to 30 seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.opts.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		httpLog.Info("Listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		httpLog.Warn("Shutdown: %v", err)
		return err
	}
	return nil
}
