package api

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/viper"
	"github.com/tifye/kousaten/sim"
	"github.com/tifye/kousaten/stream"
)

type ServerDependencies struct {
	Service *Service
	Hub     *stream.Hub
	// BuildModel rebuilds the model for POST /init with a fresh config.
	BuildModel       func(cfg sim.Config) (*sim.Model, error)
	SessionStore     sessions.Store
	NewSessionCookie func(s *sessions.Session) (*http.Cookie, error)
}

func NewServer(logger *log.Logger, config *viper.Viper, deps *ServerDependencies) *http.Server {
	e := echo.New()
	e.Use(middleware.CORS())
	e.Use(session.Middleware(deps.SessionStore))

	server := &http.Server{
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       25 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		ErrorLog:          logger.StandardLog(),
		MaxHeaderBytes:    1024,
	}

	registerRoutes(e, logger, config, deps)

	return server
}
