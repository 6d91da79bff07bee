package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elskow/chef-identity/internal/config"
	"github.com/elskow/chef-identity/internal/httpx"
	"github.com/elskow/chef-identity/internal/principal"
	"github.com/elskow/chef-identity/internal/provider"
	"github.com/elskow/chef-identity/internal/session"
)

type noBlocks struct{}

func (noBlocks) IsBlocked(context.Context, int64, string) (bool, error) { return false, nil }

type pingRoutes struct{}

func (pingRoutes) Register(r gin.IRouter) {
	r.GET("/api/v1/ping", func(c *gin.Context) {
		caller, err := principal.FromContext(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"user": 0})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": caller.UserID})
	})
}

func newTestHTTPServer(t *testing.T) (*HTTPServer, *session.Service, *session.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zap.NewNop()
	store := session.NewMemoryStore()
	sessions := session.NewService(log, session.NewInMemoryRepository(), store)
	gate := session.NewGate(log, sessions, store, noBlocks{}, "SESSION")

	srv := NewHTTPServer(HTTPParams{
		Config: &config.AppConfig{
			Environment: EnvTesting,
			HTTP:        config.HTTPConfig{AllowedOrigins: []string{"http://localhost:3000"}},
			Auth:        config.AuthConfig{DeviceHeader: "X-Device-Id"},
		},
		Logger: log,
		Gate:   gate,
		Routes: []httpx.Routes{pingRoutes{}},
	})
	return srv, sessions, store
}

func TestHTTPServer_Routes(t *testing.T) {
	srv, sessions, store := newTestHTTPServer(t)
	ctx := context.Background()

	store.Put("LIVE", session.Data{UserID: 7})
	require.NoError(t, sessions.Bind(ctx, "LIVE", 7, "D1", provider.Local))
	store.Put("ORPHAN", session.Data{UserID: 8})

	tests := []struct {
		name       string
		path       string
		cookie     string
		wantStatus int
		wantBody   string
	}{
		{name: "health", path: "/healthz", wantStatus: http.StatusOK, wantBody: `{"status":"ok"}`},
		{name: "anonymous", path: "/api/v1/ping", wantStatus: http.StatusOK, wantBody: `{"user":0}`},
		{name: "live session", path: "/api/v1/ping", cookie: "LIVE", wantStatus: http.StatusOK, wantBody: `{"user":7}`},
		{name: "session without binding", path: "/api/v1/ping", cookie: "ORPHAN", wantStatus: http.StatusUnauthorized},
		{name: "unknown route", path: "/api/v1/missing", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "SESSION", Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.NotEmpty(t, w.Header().Get(httpx.RequestIDHeader))
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestHTTPServer_CORS(t *testing.T) {
	srv, _, _ := newTestHTTPServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/ping", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}
