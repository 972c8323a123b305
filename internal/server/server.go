// Package server exposes the updater over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"sigs.k8s.io/controller-runtime/pkg/healthz"

	"github.com/yuriy-kovalchuk/yk-dyn-ip/internal/config"
	"github.com/yuriy-kovalchuk/yk-dyn-ip/internal/updater"
)

const (
	shutdownTimeout = 15 * time.Second
	authRealm       = "dyn-ip requires auth"
)

// Server serves the record API, the admin page and the legacy update routes.
type Server struct {
	cfg     *config.ServerConfig
	updater *updater.Updater
	engine  *gin.Engine
	admin   []byte
	log     logr.Logger
}

// New builds the gin engine for u. Basic auth guards /api and the legacy
// update routes when cfg carries both a username and a password.
func New(log logr.Logger, cfg *config.ServerConfig, u *updater.Updater) *Server {
	gin.SetMode(cfg.GinMode)

	s := &Server{
		cfg:     cfg,
		updater: u,
		engine:  gin.New(),
		admin:   []byte(strings.ReplaceAll(adminPage, "<!--DOMAIN-->", u.DNS.DomainName())),
		log:     log,
	}
	s.engine.Use(requestID(), requestLogger(log), gin.Recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	health := &healthz.Handler{Checks: map[string]healthz.Checker{"ping": healthz.Ping}}
	for _, prefix := range []string{"/healthz", "/readyz"} {
		s.engine.GET(prefix, gin.WrapH(http.StripPrefix(prefix, health)))
	}

	s.engine.GET("/", s.callerIP)

	var guarded []gin.HandlerFunc
	if s.cfg.HasCredentials() {
		guarded = append(guarded, gin.BasicAuthForRealm(gin.Accounts{s.cfg.Username: s.cfg.Password}, authRealm))
	}

	api := s.engine.Group("/api", guarded...)
	api.GET("/admin", s.adminIndex)
	api.GET("/domains", s.listDomains)
	api.POST("/domains", s.createDomain)
	api.PATCH("/domains/:id", s.updateWithPeerAddress)
	api.PATCH("/domains/:id/:ip", s.updateUserSupplied)
	api.DELETE("/domains/:id", s.deleteDomain)

	legacy := s.engine.Group("/", guarded...)
	legacy.GET("/update.php", s.legacyUpdate)
	legacy.PATCH("/", s.legacyUpdate)
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on the configured address until ctx is cancelled, then shuts
// the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		s.log.Info("starting web server", "address", s.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("web server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down web server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down web server: %w", err)
	}
	s.log.Info("web server stopped")
	return nil
}
