package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/elskow/chef-identity/internal/config"
	"github.com/elskow/chef-identity/internal/pagination"
	"github.com/elskow/chef-identity/internal/strutil"
)

const (
	unknownProviderKey = "UNKNOWN"
	noErrorCodeKey     = "NONE"
	defaultStatsWindow = 7 * 24 * time.Hour
	defaultTopLimit    = 20
)

// Service appends login attempts and answers the admin audit queries.
type Service struct {
	config config.LedgerConfig
	log    *zap.Logger
	repo   Repository
	now    func() time.Time
}

func NewService(cfg *config.LedgerConfig, log *zap.Logger, repo Repository) *Service {
	c := *cfg
	if c.StatsWindow <= 0 {
		c.StatsWindow = defaultStatsWindow
	}
	if c.TopLimit <= 0 {
		c.TopLimit = defaultTopLimit
	}
	return &Service{config: c, log: log, repo: repo, now: time.Now}
}

// Record stores one attempt. Oversized text fields are truncated.
func (s *Service) Record(ctx context.Context, a Attempt) (int64, error) {
	attempt := &LoginAttempt{
		Success:        a.Success,
		Provider:       a.Provider,
		UserID:         a.UserID,
		ProviderUserID: clean(a.ProviderUserID, maxIdentityLength),
		DeviceID:       clean(a.DeviceID, maxDeviceIDLength),
		IP:             clean(a.IP, maxIPLength),
		UserAgent:      clean(a.UserAgent, maxUserAgentLength),
		ErrorCode:      clean(a.ErrorCode, maxErrorCodeLength),
		ErrorMessage:   clean(a.ErrorMessage, maxMessageLength),
		CreatedAt:      s.now(),
	}
	if err := s.repo.Create(ctx, attempt); err != nil {
		return 0, fmt.Errorf("record login attempt: %w", err)
	}
	return attempt.ID, nil
}

// RecordQuietly records an attempt and only logs a failure. Login outcomes
// never depend on the audit write.
func (s *Service) RecordQuietly(ctx context.Context, a Attempt) {
	if _, err := s.Record(ctx, a); err != nil {
		s.log.Warn("failed to record login attempt",
			zap.String("provider", a.Provider.String()),
			zap.Bool("success", a.Success),
			zap.Error(err))
	}
}

func (s *Service) Search(ctx context.Context, filter Filter, page pagination.Request) (pagination.Result[LoginAttempt], error) {
	page = page.Normalize()
	attempts, total, err := s.repo.Search(ctx, filter, page)
	if err != nil {
		return pagination.Result[LoginAttempt]{}, fmt.Errorf("search login attempts: %w", err)
	}
	return pagination.NewResult(attempts, page, total), nil
}

func (s *Service) Get(ctx context.Context, id int64) (*LoginAttempt, error) {
	return s.repo.FindByID(ctx, id)
}

// RecentByUser returns the newest attempts of one user.
func (s *Service) RecentByUser(ctx context.Context, userID int64, size int) ([]LoginAttempt, error) {
	size = pagination.Clamp(size, pagination.DefaultSize, pagination.MaxSize)
	attempts, _, err := s.repo.Search(ctx, Filter{UserID: &userID}, pagination.Request{Size: size})
	if err != nil {
		return nil, fmt.Errorf("recent login attempts: %w", err)
	}
	return attempts, nil
}

// Stats aggregates attempts in [From, To]. Failures without an error code
// are counted under NONE and attempts without a provider under UNKNOWN.
// The top-N lists skip attempts that have no IP or device id.
func (s *Service) Stats(ctx context.Context, q StatsQuery) (*Stats, error) {
	to := s.now()
	if q.To != nil {
		to = *q.To
	}
	from := to.Add(-s.config.StatsWindow)
	if q.From != nil {
		from = *q.From
	}
	limit := pagination.Clamp(q.TopLimit, s.config.TopLimit, pagination.MaxSize)

	base := Filter{
		Provider: q.Provider,
		UserID:   q.UserID,
		DeviceID: q.DeviceID,
		IP:       q.IP,
		From:     &from,
		To:       &to,
	}
	succeeded, failed := true, false
	successFilter, failureFilter := base, base
	successFilter.Success = &succeeded
	failureFilter.Success = &failed

	stats := &Stats{From: from, To: to}
	var err error
	if stats.Total, err = s.repo.Count(ctx, base); err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}
	if stats.Success, err = s.repo.Count(ctx, successFilter); err != nil {
		return nil, fmt.Errorf("count successes: %w", err)
	}
	stats.Failure = stats.Total - stats.Success

	groups := []struct {
		filter   Filter
		grouping Grouping
		dest     *[]KeyCount
	}{
		{base, Grouping{Column: columnProvider, NullKey: unknownProviderKey}, &stats.ByProvider},
		{failureFilter, Grouping{Column: columnErrorCode, NullKey: noErrorCodeKey}, &stats.FailureByErrorCode},
		{failureFilter, Grouping{Column: columnIP, SkipNulls: true, Limit: limit}, &stats.TopFailedIPs},
		{failureFilter, Grouping{Column: columnDeviceID, SkipNulls: true, Limit: limit}, &stats.TopFailedDeviceIDs},
	}
	for _, g := range groups {
		rows, err := s.repo.GroupCount(ctx, g.filter, g.grouping)
		if err != nil {
			return nil, fmt.Errorf("group by %s: %w", g.grouping.Column, err)
		}
		if rows == nil {
			rows = []KeyCount{}
		}
		*g.dest = rows
	}
	return stats, nil
}

func clean(s string, max int) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	s = strutil.Truncate(s, max)
	return &s
}
