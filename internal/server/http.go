package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/chef-identity/internal/config"
	"github.com/elskow/chef-identity/internal/httpx"
	"github.com/elskow/chef-identity/internal/session"
)

// HTTPServer serves the cookie-session and admin APIs.
type HTTPServer struct {
	config *config.AppConfig
	log    *zap.Logger
	engine *gin.Engine
	server *http.Server
}

type HTTPParams struct {
	fx.In

	Config *config.AppConfig
	Logger *zap.Logger
	Gate   *session.Gate
	Routes []httpx.Routes `group:"routes"`
}

func NewHTTPServer(p HTTPParams) *HTTPServer {
	if p.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		httpx.RequestID(),
		httpx.Logger(p.Logger),
		gin.Recovery(),
	)
	if len(p.Config.HTTP.AllowedOrigins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins:     p.Config.HTTP.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", p.Config.Auth.DeviceHeader, httpx.RequestIDHeader},
			ExposeHeaders:    []string{httpx.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/", p.Gate.Middleware())
	for _, r := range p.Routes {
		r.Register(api)
	}

	addr := net.JoinHostPort(p.Config.HTTP.Host, strconv.Itoa(p.Config.HTTP.Port))
	return &HTTPServer{
		config: p.Config,
		log:    p.Logger,
		engine: engine,
		server: &http.Server{
			Addr:         addr,
			Handler:      engine,
			ReadTimeout:  p.Config.HTTP.ReadTimeout,
			WriteTimeout: p.Config.HTTP.WriteTimeout,
			IdleTimeout:  p.Config.HTTP.IdleTimeout,
		},
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

func (s *HTTPServer) Start() error {
	s.log.Info("Starting HTTP server", zap.String("address", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve http: %w", err)
	}
	return nil
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
