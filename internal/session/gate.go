package session

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/elskow/chef-identity/internal/principal"
)

// Decision is the outcome of evaluating a request's session.
type Decision int

const (
	Pass Decision = iota
	RejectRevoked
	RejectBlockedDevice
)

func (d Decision) String() string {
	switch d {
	case Pass:
		return "pass"
	case RejectRevoked:
		return "revoked"
	case RejectBlockedDevice:
		return "blocked_device"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

type DeviceChecker interface {
	IsBlocked(ctx context.Context, userID int64, deviceID string) (bool, error)
}

// Gate enforces session revocation and device blocks on every request that
// carries a session cookie.
type Gate struct {
	log        *zap.Logger
	sessions   *Service
	store      Store
	devices    DeviceChecker
	cookieName string
}

func NewGate(log *zap.Logger, sessions *Service, store Store, devices DeviceChecker, cookieName string) *Gate {
	return &Gate{
		log:        log,
		sessions:   sessions,
		store:      store,
		devices:    devices,
		cookieName: cookieName,
	}
}

func (g *Gate) CookieName() string {
	return g.cookieName
}

// Evaluate decides whether the request behind sessionID may proceed.
// Requests without a live store entry pass through untouched.
func (g *Gate) Evaluate(ctx context.Context, sessionID string) (Decision, *Binding, error) {
	if sessionID == "" {
		return Pass, nil, nil
	}
	if _, ok, err := g.store.Get(ctx, sessionID); err != nil {
		return Pass, nil, fmt.Errorf("load session: %w", err)
	} else if !ok {
		return Pass, nil, nil
	}

	binding, ok, err := g.sessions.FindActive(ctx, sessionID)
	if err != nil {
		return Pass, nil, err
	}
	if !ok {
		g.drop(ctx, sessionID)
		return RejectRevoked, nil, nil
	}

	blocked, err := g.devices.IsBlocked(ctx, binding.UserID, binding.DeviceID)
	if err != nil {
		return Pass, nil, err
	}
	if blocked {
		g.drop(ctx, sessionID)
		return RejectBlockedDevice, binding, nil
	}

	if err := g.sessions.Touch(ctx, sessionID); err != nil {
		g.log.Warn("failed to touch session", zap.String("session_id", sessionID), zap.Error(err))
	}
	return Pass, binding, nil
}

func (g *Gate) drop(ctx context.Context, sessionID string) {
	if err := g.store.DeleteByID(ctx, sessionID); err != nil {
		g.log.Warn("failed to delete session from store",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
}

// Middleware runs Evaluate on the session cookie and stores the principal
// of a live session in the request context.
func (g *Gate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, _ := c.Cookie(g.cookieName)

		decision, binding, err := g.Evaluate(c.Request.Context(), sessionID)
		if err != nil {
			g.log.Error("session gate failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}

		switch decision {
		case RejectRevoked:
			g.clearCookie(c)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session_revoked", "message": "Session revoked"})
			return
		case RejectBlockedDevice:
			g.clearCookie(c)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "device_blocked", "message": "Blocked device"})
			return
		}

		if binding != nil {
			ctx := principal.NewContext(c.Request.Context(), principal.Principal{
				UserID:    binding.UserID,
				DeviceID:  binding.DeviceID,
				Provider:  binding.Provider,
				SessionID: binding.SessionID,
			})
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

func (g *Gate) clearCookie(c *gin.Context) {
	c.SetCookie(g.cookieName, "", -1, "/", "", false, true)
}
