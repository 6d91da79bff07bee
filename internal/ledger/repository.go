package ledger

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/elskow/chef-identity/internal/pagination"
)

var ErrAttemptNotFound = errors.New("login attempt not found")

type Repository interface {
	Create(ctx context.Context, attempt *LoginAttempt) error
	FindByID(ctx context.Context, id int64) (*LoginAttempt, error)
	// Search returns a newest-first page and the total match count.
	Search(ctx context.Context, filter Filter, page pagination.Request) ([]LoginAttempt, int64, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	// GroupCount counts matches per distinct column value, largest first
	// with ties ordered by key.
	GroupCount(ctx context.Context, filter Filter, grouping Grouping) ([]KeyCount, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, attempt *LoginAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *repository) FindByID(ctx context.Context, id int64) (*LoginAttempt, error) {
	var attempt LoginAttempt
	if err := r.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	return &attempt, nil
}

func (r *repository) Search(ctx context.Context, filter Filter, page pagination.Request) ([]LoginAttempt, int64, error) {
	query := filter.apply(r.db.WithContext(ctx).Model(&LoginAttempt{}))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var attempts []LoginAttempt
	err := query.
		Order("created_at DESC, id DESC").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&attempts).Error
	if err != nil {
		return nil, 0, err
	}
	return attempts, total, nil
}

func (r *repository) Count(ctx context.Context, filter Filter) (int64, error) {
	var total int64
	err := filter.apply(r.db.WithContext(ctx).Model(&LoginAttempt{})).Count(&total).Error
	return total, err
}

func (r *repository) GroupCount(ctx context.Context, filter Filter, grouping Grouping) ([]KeyCount, error) {
	switch grouping.Column {
	case columnProvider, columnErrorCode, columnIP, columnDeviceID:
	default:
		return nil, fmt.Errorf("unsupported grouping column %q", grouping.Column)
	}

	query := filter.apply(r.db.WithContext(ctx).Model(&LoginAttempt{}))
	if grouping.SkipNulls {
		query = query.
			Select(grouping.Column + " AS group_key, COUNT(*) AS cnt").
			Where(grouping.Column + " IS NOT NULL AND " + grouping.Column + " <> ''").
			Group(grouping.Column)
	} else {
		expr := "COALESCE(NULLIF(" + grouping.Column + ", ''), ?)"
		query = query.
			Select(expr+" AS group_key, COUNT(*) AS cnt", grouping.NullKey).
			Group("1")
	}
	query = query.Order("cnt DESC, group_key ASC")
	if grouping.Limit > 0 {
		query = query.Limit(grouping.Limit)
	}

	var rows []KeyCount
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
