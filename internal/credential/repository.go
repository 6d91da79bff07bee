package credential

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/elskow/chef-identity/internal/database"
)

var (
	ErrCredentialNotFound = errors.New("credential not found")
	ErrCredentialExists   = errors.New("credential already exists")
)

type Repository interface {
	Create(ctx context.Context, credential *Credential) error
	FindByUserID(ctx context.Context, userID int64) (*Credential, error)
	// UpdateLocked loads the credential FOR UPDATE, applies fn and saves it
	// in a single transaction.
	UpdateLocked(ctx context.Context, userID int64, fn func(*Credential) error) (*Credential, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, credential *Credential) error {
	if err := r.db.WithContext(ctx).Create(credential).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return ErrCredentialExists
		}
		return err
	}
	return nil
}

func (r *repository) FindByUserID(ctx context.Context, userID int64) (*Credential, error) {
	var credential Credential
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&credential).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}
	return &credential, nil
}

func (r *repository) UpdateLocked(ctx context.Context, userID int64, fn func(*Credential) error) (*Credential, error) {
	var credential Credential
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&credential).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCredentialNotFound
			}
			return err
		}
		if err := fn(&credential); err != nil {
			return err
		}
		return tx.Save(&credential).Error
	})
	if err != nil {
		return nil, err
	}
	return &credential, nil
}
