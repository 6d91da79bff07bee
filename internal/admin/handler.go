package admin

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/elskow/chef-identity/internal/auth"
	"github.com/elskow/chef-identity/internal/config"
	"github.com/elskow/chef-identity/internal/device"
	"github.com/elskow/chef-identity/internal/httpx"
	"github.com/elskow/chef-identity/internal/ledger"
	"github.com/elskow/chef-identity/internal/pagination"
	"github.com/elskow/chef-identity/internal/provider"
	"github.com/elskow/chef-identity/internal/session"
	"github.com/elskow/chef-identity/internal/user"
)

const APIKeyHeader = "X-Admin-Key"

var errBadParam = errors.New("invalid parameter")

type Handler struct {
	facade *Facade
	log    *zap.Logger
	config *config.AppConfig
}

func NewHandler(facade *Facade, log *zap.Logger, config *config.AppConfig) *Handler {
	return &Handler{facade: facade, log: log, config: config}
}

type userQuery struct {
	Q           string `form:"q"`
	Email       string `form:"email"`
	Nickname    string `form:"nickname"`
	Provider    string `form:"provider"`
	Suspended   string `form:"suspended"`
	CreatedFrom string `form:"createdFrom"`
	CreatedTo   string `form:"createdTo"`
}

type attemptQuery struct {
	Success   string `form:"success"`
	Provider  string `form:"provider"`
	UserID    string `form:"userId"`
	DeviceID  string `form:"deviceId"`
	IP        string `form:"ip"`
	ErrorCode string `form:"errorCode"`
	From      string `form:"from"`
	To        string `form:"to"`
	Top       int    `form:"top"`
}

type suspendRequest struct {
	Reason string     `json:"reason"`
	Until  *time.Time `json:"until"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type revokeAllRequest struct {
	DeviceID string `json:"deviceId"`
	Reason   string `json:"reason"`
}

type revokeTokenRequest struct {
	Token  string `json:"token" binding:"required"`
	Reason string `json:"reason"`
}

func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/api/v1/admin", h.requireKey())

	g.GET("/users", h.ListUsers)
	g.GET("/users/:id", h.GetUser)
	g.PATCH("/users/:id", h.UpdateUser)
	g.POST("/users/:id/suspend", h.SuspendUser)
	g.POST("/users/:id/unsuspend", h.UnsuspendUser)
	g.GET("/users/:id/devices", h.ListDevices)
	g.POST("/users/:id/devices/:deviceId/block", h.BlockDevice)
	g.POST("/users/:id/devices/:deviceId/unblock", h.UnblockDevice)
	g.GET("/users/:id/sessions", h.ListSessions)
	g.POST("/users/:id/sessions/revoke", h.RevokeAllSessions)
	g.GET("/users/:id/login-attempts", h.RecentAttempts)

	g.GET("/sessions/:sessionId", h.GetSession)
	g.POST("/sessions/:sessionId/revoke", h.RevokeSession)

	g.GET("/login-attempts", h.SearchAttempts)
	g.GET("/login-attempts/stats", h.Stats)
	g.GET("/login-attempts/:id", h.GetAttempt)

	g.POST("/tokens/revoke", h.RevokeToken)
}

// requireKey checks the admin key header. Without a configured key the
// surface is open outside production and closed in production.
func (h *Handler) requireKey() gin.HandlerFunc {
	key := []byte(h.config.Admin.APIKey)
	return func(c *gin.Context) {
		if len(key) == 0 {
			if h.config.IsProduction() {
				httpx.Abort(c, http.StatusForbidden, "forbidden", "Admin API disabled")
				return
			}
			c.Next()
			return
		}
		if subtle.ConstantTimeCompare([]byte(c.GetHeader(APIKeyHeader)), key) != 1 {
			httpx.Abort(c, http.StatusUnauthorized, "unauthenticated", "Invalid admin key")
			return
		}
		c.Next()
	}
}

func (h *Handler) ListUsers(c *gin.Context) {
	var q userQuery
	var page pagination.Request
	if err := c.ShouldBindQuery(&q); err != nil {
		h.writeError(c, errBadParam)
		return
	}
	if err := c.ShouldBindQuery(&page); err != nil {
		h.writeError(c, errBadParam)
		return
	}
	filter, err := q.filter()
	if err != nil {
		h.writeError(c, err)
		return
	}

	result, err := h.facade.ListUsers(c.Request.Context(), filter, page)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetUser(c *gin.Context) {
	id, ok := h.userID(c)
	if !ok {
		return
	}
	detail, err := h.facade.GetUser(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := h.userID(c)
	if !ok {
		return
	}
	var update user.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		h.writeError(c, errBadParam)
		return
	}
	account, err := h.facade.UpdateUser(c.Request.Context(), id, update)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *Handler) SuspendUser(c *gin.Context) {
	id, ok := h.userID(c)
	if !ok {
		return
	}
	var req suspendRequest
	if !h.bindOptional(c, &req) {
		return
	}
	result, err := h.facade.SuspendUser(c.Request.Context(), id, req.Reason, req.Until)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) UnsuspendUser(c *gin.Context) {
	id, ok := h.userID(c)
	if !ok {
		return
	}
	account, err := h.facade.UnsuspendUser(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *Handler) ListDevices(c *gin.Context) {
	id, ok := h.userID(c)
	if !ok {
		return
	}
	devices, err := h.facade.ListDevices(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, devices)
}

func (h *Handler) BlockDevice(c *gin.Context) {
	id, ok := h.userID(c)
	if !ok {
		return
	}
	var req reasonRequest
	if !h.bindOptional(c, &req) {
		return
	}
	result, err := h.facade.BlockDevice(c.Request.Context(), id, c.Param("deviceId"), req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) UnblockDevice(c *gin.Context) {
	id, ok := h.userID(c)
	if !ok {
		return
	}
	d, err := h.facade.UnblockDevice(c.Request.Context(), id, c.Param("deviceId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) ListSessions(c *gin.Context) {
	id, ok := h.userID(c)
	if !ok {
		return
	}
	filter := session.ListFilter{ActiveOnly: c.Query("activeOnly") == "true"}
	if d := c.Query("deviceId"); d != "" {
		filter.DeviceID = device.NormalizeID(d)
	}
	sessions, err := h.facade.ListSessions(c.Request.Context(), id, filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *Handler) RevokeAllSessions(c *gin.Context) {
	id, ok := h.userID(c)
	if !ok {
		return
	}
	var req revokeAllRequest
	if !h.bindOptional(c, &req) {
		return
	}
	n, err := h.facade.RevokeAllSessions(c.Request.Context(), id, req.DeviceID, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revokedSessions": n})
}

func (h *Handler) RecentAttempts(c *gin.Context) {
	id, ok := h.userID(c)
	if !ok {
		return
	}
	size, _ := strconv.Atoi(c.Query("size"))
	attempts, err := h.facade.RecentAttempts(c.Request.Context(), id, size)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, attempts)
}

func (h *Handler) GetSession(c *gin.Context) {
	binding, err := h.facade.GetSession(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, binding)
}

func (h *Handler) RevokeSession(c *gin.Context) {
	var req reasonRequest
	if !h.bindOptional(c, &req) {
		return
	}
	binding, err := h.facade.RevokeSession(c.Request.Context(), c.Param("sessionId"), req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, binding)
}

func (h *Handler) SearchAttempts(c *gin.Context) {
	var q attemptQuery
	var page pagination.Request
	if err := c.ShouldBindQuery(&q); err != nil {
		h.writeError(c, errBadParam)
		return
	}
	if err := c.ShouldBindQuery(&page); err != nil {
		h.writeError(c, errBadParam)
		return
	}
	filter, err := q.filter()
	if err != nil {
		h.writeError(c, err)
		return
	}
	result, err := h.facade.SearchAttempts(c.Request.Context(), filter, page)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Stats(c *gin.Context) {
	var q attemptQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.writeError(c, errBadParam)
		return
	}
	filter, err := q.filter()
	if err != nil {
		h.writeError(c, err)
		return
	}
	stats, err := h.facade.Stats(c.Request.Context(), ledger.StatsQuery{
		Provider: filter.Provider,
		UserID:   filter.UserID,
		DeviceID: filter.DeviceID,
		IP:       filter.IP,
		From:     filter.From,
		To:       filter.To,
		TopLimit: q.Top,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetAttempt(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.writeError(c, errBadParam)
		return
	}
	attempt, err := h.facade.GetAttempt(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, attempt)
}

func (h *Handler) RevokeToken(c *gin.Context) {
	var req revokeTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, errBadParam)
		return
	}
	if err := h.facade.RevokeToken(c.Request.Context(), req.Token, req.Reason); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) userID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(c, errBadParam)
		return 0, false
	}
	return id, true
}

// bindOptional decodes a JSON body when one is present.
func (h *Handler) bindOptional(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		h.writeError(c, errBadParam)
		return false
	}
	return true
}

// writeError includes the error text; admin callers are trusted operators.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, user.ErrUserNotFound),
		errors.Is(err, session.ErrBindingNotFound),
		errors.Is(err, ledger.ErrAttemptNotFound):
		httpx.Abort(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, errBadParam),
		errors.Is(err, user.ErrInvalidSuspension),
		errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, auth.ErrInvalidToken):
		httpx.Abort(c, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		h.log.Error("admin request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", httpx.GetRequestID(c)),
			zap.Error(err))
		httpx.Abort(c, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func (q userQuery) filter() (user.Filter, error) {
	f := user.Filter{Query: q.Q, Email: q.Email, Nickname: q.Nickname}
	var err error
	if q.Provider != "" {
		p, ok := provider.Parse(q.Provider)
		if !ok {
			return f, errBadParam
		}
		f.Provider = p
	}
	if f.Suspended, err = parseBool(q.Suspended); err != nil {
		return f, err
	}
	if f.CreatedFrom, err = parseTime(q.CreatedFrom); err != nil {
		return f, err
	}
	if f.CreatedTo, err = parseTime(q.CreatedTo); err != nil {
		return f, err
	}
	return f, nil
}

func (q attemptQuery) filter() (ledger.Filter, error) {
	f := ledger.Filter{DeviceID: q.DeviceID, IP: q.IP, ErrorCode: q.ErrorCode}
	var err error
	if q.Provider != "" {
		p, ok := provider.Parse(q.Provider)
		if !ok {
			return f, errBadParam
		}
		f.Provider = p
	}
	if q.UserID != "" {
		id, err := strconv.ParseInt(q.UserID, 10, 64)
		if err != nil {
			return f, errBadParam
		}
		f.UserID = &id
	}
	if f.Success, err = parseBool(q.Success); err != nil {
		return f, err
	}
	if f.From, err = parseTime(q.From); err != nil {
		return f, err
	}
	if f.To, err = parseTime(q.To); err != nil {
		return f, err
	}
	return f, nil
}

func parseBool(s string) (*bool, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, errBadParam
	}
	return &v, nil
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, errBadParam
	}
	return &t, nil
}
