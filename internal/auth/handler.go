package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/elskow/chef-identity/internal/config"
	"github.com/elskow/chef-identity/internal/denylist"
	"github.com/elskow/chef-identity/internal/httpx"
	"github.com/elskow/chef-identity/internal/principal"
	"github.com/elskow/chef-identity/internal/user"
)

type Handler struct {
	service *Service
	log     *zap.Logger
	limiter *httpx.RateLimiter
	config  *config.AppConfig
}

func NewHandler(service *Service, log *zap.Logger, limiter *httpx.RateLimiter, config *config.AppConfig) *Handler {
	return &Handler{
		service: service,
		log:     log,
		limiter: limiter,
		config:  config,
	}
}

type signUpRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Nickname string `json:"nickname"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type revokeRequest struct {
	Token  string `json:"token"`
	Reason string `json:"reason"`
}

type accountResponse struct {
	ID                int64      `json:"id"`
	Email             *string    `json:"email"`
	EmailVerified     bool       `json:"emailVerified"`
	Name              *string    `json:"name"`
	Nickname          *string    `json:"nickname"`
	ProfileImageURL   *string    `json:"profileImageUrl"`
	ThumbnailImageURL *string    `json:"thumbnailImageUrl"`
	LastLoginAt       *time.Time `json:"lastLoginAt"`
	CreatedAt         time.Time  `json:"createdAt"`
}

func newAccountResponse(a *user.Account) accountResponse {
	return accountResponse{
		ID:                a.ID,
		Email:             a.Email,
		EmailVerified:     a.EmailVerified,
		Name:              a.Name,
		Nickname:          a.Nickname,
		ProfileImageURL:   a.ProfileImageURL,
		ThumbnailImageURL: a.ThumbnailImageURL,
		LastLoginAt:       a.LastLoginAt,
		CreatedAt:         a.CreatedAt,
	}
}

func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/api/v1/auth")
	g.POST("/signup", h.limiter.Middleware(), h.SignUp)
	g.POST("/login", h.limiter.Middleware(), h.Login)
	g.POST("/logout", h.Logout)
	g.POST("/token", h.limiter.Middleware(), h.Token)
	g.POST("/token/revoke", h.RevokeToken)
	g.GET("/me", RequireAuth(h.service), h.Me)
}

func (h *Handler) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Abort(c, http.StatusBadRequest, "invalid_request", "Malformed request body")
		return
	}

	account, err := h.service.SignUp(c.Request.Context(), req.Email, req.Password, req.Nickname)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newAccountResponse(account))
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Abort(c, http.StatusBadRequest, "invalid_request", "Malformed request body")
		return
	}

	result, err := h.service.LoginLocal(c.Request.Context(), req.Email, req.Password, h.client(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.config.Auth.SessionCookie, result.SessionID, int(h.config.Session.TTL.Seconds()),
		"/", "", h.config.IsProduction(), true)
	c.JSON(http.StatusOK, gin.H{
		"user":     newAccountResponse(result.Account),
		"deviceId": result.DeviceID,
	})
}

func (h *Handler) Logout(c *gin.Context) {
	sessionID, _ := c.Cookie(h.config.Auth.SessionCookie)
	if err := h.service.Logout(c.Request.Context(), sessionID); err != nil {
		h.writeError(c, err)
		return
	}
	c.SetCookie(h.config.Auth.SessionCookie, "", -1, "/", "", h.config.IsProduction(), true)
	c.Status(http.StatusNoContent)
}

func (h *Handler) Token(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Abort(c, http.StatusBadRequest, "invalid_request", "Malformed request body")
		return
	}

	result, err := h.service.IssueToken(c.Request.Context(), req.Email, req.Password, h.client(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accessToken": result.Token,
		"tokenType":   "Bearer",
		"expiresAt":   result.ExpiresAt,
	})
}

// RevokeToken revokes the token in the body, or the bearer token of the
// request when the body names none.
func (h *Handler) RevokeToken(c *gin.Context) {
	var req revokeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.Abort(c, http.StatusBadRequest, "invalid_request", "Malformed request body")
			return
		}
	}
	token := req.Token
	if token == "" {
		token = bearerToken(c.GetHeader("Authorization"))
	}
	reason := req.Reason
	if reason == "" {
		reason = "LOGOUT"
	}

	if err := h.service.RevokeToken(c.Request.Context(), token, reason); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Me(c *gin.Context) {
	account, err := h.service.Me(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAccountResponse(account))
}

func (h *Handler) client(c *gin.Context) Client {
	return Client{
		DeviceID:  c.GetHeader(h.config.Auth.DeviceHeader),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// writeError maps service errors to generic responses. Details stay in
// the log.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		httpx.Abort(c, http.StatusBadRequest, "invalid_request", strings.TrimPrefix(err.Error(), ErrInvalidInput.Error()+": "))
	case errors.Is(err, ErrEmailTaken):
		httpx.Abort(c, http.StatusConflict, "email_taken", "Email already registered")
	case errors.Is(err, ErrInvalidCredentials):
		httpx.Abort(c, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials")
	case errors.Is(err, ErrInvalidToken), errors.Is(err, denylist.ErrTokenRevoked):
		httpx.Abort(c, http.StatusUnauthorized, "invalid_token", "Invalid token")
	case errors.Is(err, principal.ErrNoPrincipal):
		httpx.Abort(c, http.StatusUnauthorized, "unauthenticated", "Authentication required")
	case errors.Is(err, ErrAccountLocked):
		httpx.Abort(c, http.StatusTooManyRequests, "account_locked", "Too many failed attempts, try again later")
	case errors.Is(err, ErrDeviceBlocked), errors.Is(err, ErrAccountSuspended):
		httpx.Abort(c, http.StatusForbidden, "forbidden", "Access denied")
	case errors.Is(err, user.ErrUserNotFound):
		httpx.Abort(c, http.StatusNotFound, "not_found", "User not found")
	default:
		h.log.Error("auth request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", httpx.GetRequestID(c)),
			zap.Error(err))
		httpx.Abort(c, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
