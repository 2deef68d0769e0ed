// Package server wires the HTTP stack of the preference exchange service.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/prefsync/internal/profile"
	"github.com/hrygo/prefsync/internal/version"
	"github.com/hrygo/prefsync/server/auth"
	"github.com/hrygo/prefsync/server/router/exchange"
	"github.com/hrygo/prefsync/store"
)

// Server is the HTTP server of the preference exchange.
type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
}

// NewServer creates a server around the given store and registers the
// exchange routes for the configured protocol variant.
func NewServer(_ context.Context, p *profile.Profile, st *store.Store) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())

	s := &Server{
		Profile:    p,
		Store:      st,
		echoServer: e,
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})

	handler := exchange.NewHandler(p, st, auth.NewStoreAuthenticator(st), slog.Default())
	handler.Register(e)

	return s, nil
}

// Start runs the listener until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	slog.Info("server started",
		slog.String("address", address),
		slog.String("protocol", s.Profile.Protocol),
		slog.String("version", version.GetCurrentVersion(s.Profile.Mode)))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.echoServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shut down server gracefully", slog.String("error", err.Error()))
		}
	}()

	if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "failed to start server")
	}
	return nil
}

// Shutdown stops the listener if it is still up and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	if err := s.echoServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("failed to shut down server", slog.String("error", err.Error()))
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", slog.String("error", err.Error()))
	}
	slog.Info("server shutdown complete")
}
