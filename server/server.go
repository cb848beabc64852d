// Package server exposes the controller and transcript editor over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voicenote/editor"
	"voicenote/intake"
	"voicenote/log"
	"voicenote/metrics"
	"voicenote/session"
)

type Config struct {
	Addr    string
	SaveDir string
	// MaxUploadSize caps the multipart body; intake applies its own limit
	// to the file itself.
	MaxUploadSize int64
}

type Server struct {
	config     Config
	ctrl       *session.Controller
	editor     *editor.Buffer
	metrics    *metrics.Metrics
	router     *gin.Engine
	httpServer *http.Server
}

func New(cfg Config, ctrl *session.Controller, ed *editor.Buffer, m *metrics.Metrics) *Server {
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = intake.MaxSize
	}
	s := &Server{config: cfg, ctrl: ctrl, editor: ed, metrics: m}

	router := gin.New()
	router.Use(RequestID())
	router.Use(RequestLogging())
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
		})
	})
	if m != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	{
		api.GET("/status", s.status)
		api.POST("/transcribe", s.transcribe)
		api.POST("/reset", s.reset)
		api.GET("/transcript", s.getTranscript)
		api.PUT("/transcript", s.putTranscript)
		api.GET("/transcript/download", s.download)
		api.POST("/transcript/copy", s.copy)
		api.POST("/transcript/save", s.save)
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Router returns the gin engine, for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", s.config.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server forced to shutdown: %v", err)
		return err
	}
	return nil
}
