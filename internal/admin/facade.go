package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/chef-identity/internal/auth"
	"github.com/elskow/chef-identity/internal/device"
	"github.com/elskow/chef-identity/internal/ledger"
	"github.com/elskow/chef-identity/internal/pagination"
	"github.com/elskow/chef-identity/internal/provider"
	"github.com/elskow/chef-identity/internal/session"
	"github.com/elskow/chef-identity/internal/user"
)

const (
	detailAttemptLimit = 50

	ReasonAdminRevoke   = "ADMIN_REVOKE"
	ReasonDeviceBlocked = "DEVICE_BLOCKED"
	ReasonSuspended     = "USER_SUSPENDED"
)

type UserSummary struct {
	user.Account
	Providers          []provider.Provider `json:"providers"`
	DeviceCount        int64               `json:"deviceCount"`
	ActiveSessionCount int64               `json:"activeSessionCount"`
}

type UserDetail struct {
	Account        *user.Account         `json:"account"`
	Identities     []user.Identity       `json:"identities"`
	Devices        []device.Device       `json:"devices"`
	Sessions       []session.Binding     `json:"sessions"`
	RecentAttempts []ledger.LoginAttempt `json:"recentAttempts"`
}

type BlockResult struct {
	Device          *device.Device `json:"device"`
	RevokedSessions int            `json:"revokedSessions"`
}

type SuspendResult struct {
	Account         *user.Account `json:"account"`
	RevokedSessions int           `json:"revokedSessions"`
}

type Params struct {
	fx.In

	Logger   *zap.Logger
	Users    *user.Service
	Devices  *device.Registry
	Sessions *session.Service
	Ledger   *ledger.Service
	Auth     *auth.Service
}

// Facade composes the operator queries and commands. Every command is
// idempotent at the record level.
type Facade struct {
	log      *zap.Logger
	users    *user.Service
	devices  *device.Registry
	sessions *session.Service
	ledger   *ledger.Service
	auth     *auth.Service
}

func NewFacade(p Params) *Facade {
	return &Facade{
		log:      p.Logger,
		users:    p.Users,
		devices:  p.Devices,
		sessions: p.Sessions,
		ledger:   p.Ledger,
		auth:     p.Auth,
	}
}

func (f *Facade) ListUsers(ctx context.Context, filter user.Filter, page pagination.Request) (pagination.Result[UserSummary], error) {
	accounts, err := f.users.List(ctx, filter, page)
	if err != nil {
		return pagination.Result[UserSummary]{}, err
	}

	ids := make([]int64, len(accounts.Items))
	for i, a := range accounts.Items {
		ids[i] = a.ID
	}
	providers, err := f.users.ProvidersByUsers(ctx, ids)
	if err != nil {
		return pagination.Result[UserSummary]{}, fmt.Errorf("load providers: %w", err)
	}
	devices, err := f.devices.CountByUsers(ctx, ids)
	if err != nil {
		return pagination.Result[UserSummary]{}, fmt.Errorf("count devices: %w", err)
	}
	sessions, err := f.sessions.CountActiveByUsers(ctx, ids)
	if err != nil {
		return pagination.Result[UserSummary]{}, fmt.Errorf("count sessions: %w", err)
	}

	return pagination.Map(accounts, func(a user.Account) UserSummary {
		p := providers[a.ID]
		if p == nil {
			p = []provider.Provider{}
		}
		return UserSummary{
			Account:            a,
			Providers:          p,
			DeviceCount:        devices[a.ID],
			ActiveSessionCount: sessions[a.ID],
		}
	}), nil
}

func (f *Facade) GetUser(ctx context.Context, userID int64) (*UserDetail, error) {
	account, err := f.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	identities, err := f.users.Identities(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load identities: %w", err)
	}
	devices, err := f.devices.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load devices: %w", err)
	}
	sessions, err := f.sessions.List(ctx, userID, session.ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	attempts, err := f.ledger.RecentByUser(ctx, userID, detailAttemptLimit)
	if err != nil {
		return nil, err
	}

	return &UserDetail{
		Account:        account,
		Identities:     nonNil(identities),
		Devices:        nonNil(devices),
		Sessions:       nonNil(sessions),
		RecentAttempts: nonNil(attempts),
	}, nil
}

func (f *Facade) ListDevices(ctx context.Context, userID int64) ([]device.Device, error) {
	if _, err := f.users.Get(ctx, userID); err != nil {
		return nil, err
	}
	devices, err := f.devices.List(ctx, userID)
	return nonNil(devices), err
}

func (f *Facade) ListSessions(ctx context.Context, userID int64, filter session.ListFilter) ([]session.Binding, error) {
	if _, err := f.users.Get(ctx, userID); err != nil {
		return nil, err
	}
	sessions, err := f.sessions.List(ctx, userID, filter)
	return nonNil(sessions), err
}

func (f *Facade) GetSession(ctx context.Context, sessionID string) (*session.Binding, error) {
	return f.sessions.Get(ctx, sessionID)
}

func (f *Facade) SearchAttempts(ctx context.Context, filter ledger.Filter, page pagination.Request) (pagination.Result[ledger.LoginAttempt], error) {
	return f.ledger.Search(ctx, filter, page)
}

func (f *Facade) GetAttempt(ctx context.Context, id int64) (*ledger.LoginAttempt, error) {
	return f.ledger.Get(ctx, id)
}

func (f *Facade) RecentAttempts(ctx context.Context, userID int64, size int) ([]ledger.LoginAttempt, error) {
	attempts, err := f.ledger.RecentByUser(ctx, userID, size)
	return nonNil(attempts), err
}

func (f *Facade) Stats(ctx context.Context, q ledger.StatsQuery) (*ledger.Stats, error) {
	return f.ledger.Stats(ctx, q)
}

// SuspendUser suspends the account and ends all of its sessions.
func (f *Facade) SuspendUser(ctx context.Context, userID int64, reason string, until *time.Time) (*SuspendResult, error) {
	account, err := f.users.Suspend(ctx, userID, reason, until)
	if err != nil {
		return nil, err
	}
	n, err := f.sessions.ForceLogout(ctx, userID, "", ReasonSuspended)
	if err != nil {
		return nil, err
	}
	f.log.Info("user suspended",
		zap.Int64("user_id", userID),
		zap.Timep("until", until),
		zap.Int("revoked_sessions", n))
	return &SuspendResult{Account: account, RevokedSessions: n}, nil
}

func (f *Facade) UnsuspendUser(ctx context.Context, userID int64) (*user.Account, error) {
	return f.users.Unsuspend(ctx, userID)
}

func (f *Facade) UpdateUser(ctx context.Context, userID int64, update user.ProfileUpdate) (*user.Account, error) {
	return f.users.UpdateProfile(ctx, userID, update)
}

// BlockDevice blocks the device and terminates its live sessions right
// away instead of waiting for the session gate to catch them.
func (f *Facade) BlockDevice(ctx context.Context, userID int64, deviceID, reason string) (*BlockResult, error) {
	if _, err := f.users.Get(ctx, userID); err != nil {
		return nil, err
	}
	d, err := f.devices.Block(ctx, userID, deviceID, reason)
	if err != nil {
		return nil, err
	}
	n, err := f.sessions.ForceLogout(ctx, userID, d.DeviceID, ReasonDeviceBlocked)
	if err != nil {
		return nil, err
	}
	return &BlockResult{Device: d, RevokedSessions: n}, nil
}

func (f *Facade) UnblockDevice(ctx context.Context, userID int64, deviceID string) (*device.Device, error) {
	if _, err := f.users.Get(ctx, userID); err != nil {
		return nil, err
	}
	return f.devices.Unblock(ctx, userID, deviceID)
}

// RevokeSession revokes one binding and deletes its store entry.
func (f *Facade) RevokeSession(ctx context.Context, sessionID, reason string) (*session.Binding, error) {
	if _, err := f.sessions.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	if err := f.sessions.Terminate(ctx, sessionID, reasonOr(reason, ReasonAdminRevoke)); err != nil {
		return nil, err
	}
	return f.sessions.Get(ctx, sessionID)
}

// RevokeAllSessions ends every active session of the user, or only those
// on deviceID when it is set.
func (f *Facade) RevokeAllSessions(ctx context.Context, userID int64, deviceID, reason string) (int, error) {
	if _, err := f.users.Get(ctx, userID); err != nil {
		return 0, err
	}
	if deviceID = strings.TrimSpace(deviceID); deviceID != "" {
		deviceID = device.NormalizeID(deviceID)
	}
	return f.sessions.ForceLogout(ctx, userID, deviceID, reasonOr(reason, ReasonAdminRevoke))
}

func (f *Facade) RevokeToken(ctx context.Context, token, reason string) error {
	return f.auth.RevokeToken(ctx, token, reasonOr(reason, ReasonAdminRevoke))
}

func reasonOr(reason, fallback string) string {
	if reason = strings.TrimSpace(reason); reason != "" {
		return reason
	}
	return fallback
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
