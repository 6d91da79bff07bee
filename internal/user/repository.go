package user

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/elskow/chef-identity/internal/database"
	"github.com/elskow/chef-identity/internal/pagination"
	"github.com/elskow/chef-identity/internal/provider"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrEmailTaken       = errors.New("email already registered")
	ErrIdentityNotFound = errors.New("identity not found")
)

type Repository interface {
	// Transaction runs fn against a repository bound to a single transaction.
	Transaction(ctx context.Context, fn func(tx Repository) error) error

	// Create inserts the account, returning ErrEmailTaken when the email
	// is already registered.
	Create(ctx context.Context, account *Account) error
	FindByID(ctx context.Context, id int64) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	LookupIDByEmail(ctx context.Context, email string) (int64, bool, error)
	// Update loads the account FOR UPDATE, applies fn and saves it.
	Update(ctx context.Context, id int64, fn func(*Account) error) (*Account, error)
	List(ctx context.Context, filter Filter, page pagination.Request, now time.Time) ([]Account, int64, error)

	FindIdentity(ctx context.Context, p provider.Provider, providerUserID string) (*Identity, error)
	// CreateIdentity reports false when the (provider, providerUserID) pair
	// already exists.
	CreateIdentity(ctx context.Context, identity *Identity) (bool, error)
	ListIdentities(ctx context.Context, userID int64) ([]Identity, error)
	ProvidersByUsers(ctx context.Context, userIDs []int64) (map[int64][]provider.Provider, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&repository{db: tx})
	})
}

func (r *repository) Create(ctx context.Context, account *Account) error {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(account)
	if result.Error != nil {
		if database.IsUniqueViolation(result.Error) {
			return ErrEmailTaken
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEmailTaken
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id int64) (*Account, error) {
	var account Account
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	var account Account
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *repository) LookupIDByEmail(ctx context.Context, email string) (int64, bool, error) {
	account, err := r.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return account.ID, true, nil
}

func (r *repository) Update(ctx context.Context, id int64, fn func(*Account) error) (*Account, error) {
	var account Account
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&account, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if err := fn(&account); err != nil {
			return err
		}
		return tx.Save(&account).Error
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) List(ctx context.Context, filter Filter, page pagination.Request, now time.Time) ([]Account, int64, error) {
	query := filter.apply(r.db.WithContext(ctx).Model(&Account{}), now)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var accounts []Account
	err := query.
		Order("user_accounts.id DESC").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&accounts).Error
	if err != nil {
		return nil, 0, err
	}
	return accounts, total, nil
}

func (r *repository) FindIdentity(ctx context.Context, p provider.Provider, providerUserID string) (*Identity, error) {
	var identity Identity
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("provider = ? AND provider_user_id = ?", p, providerUserID).
		First(&identity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	return &identity, nil
}

func (r *repository) CreateIdentity(ctx context.Context, identity *Identity) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_user_id"}},
			DoNothing: true,
		}).
		Create(identity)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ListIdentities(ctx context.Context, userID int64) ([]Identity, error) {
	var identities []Identity
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&identities).Error
	return identities, err
}

func (r *repository) ProvidersByUsers(ctx context.Context, userIDs []int64) (map[int64][]provider.Provider, error) {
	out := make(map[int64][]provider.Provider, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		UserID   int64
		Provider provider.Provider
	}
	err := r.db.WithContext(ctx).
		Model(&Identity{}).
		Distinct("user_id", "provider").
		Where("user_id IN ?", userIDs).
		Order("user_id, provider").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.UserID] = append(out[row.UserID], row.Provider)
	}
	return out, nil
}
