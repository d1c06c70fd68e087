package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/suteetoe/thing-service/internal/model"
	"github.com/suteetoe/thing-service/prometheus"
	"gorm.io/gorm"
)

// UserRepository persists accounts
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Find(ctx context.Context, id uint) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// GormUserRepository is the gorm implementation of UserRepository
type GormUserRepository struct {
	db      *gorm.DB
	metrics *prometheus.Metrics
}

// NewGormUserRepository creates a user repository on db. metrics may be nil.
func NewGormUserRepository(db *gorm.DB, metrics *prometheus.Metrics) *GormUserRepository {
	return &GormUserRepository{db: db, metrics: metrics}
}

// Create inserts user, rejecting an email that is already registered
func (r *GormUserRepository) Create(ctx context.Context, user *model.User) error {
	user.Email = model.NormalizeEmail(user.Email)

	var count int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if count > 0 {
		return r.emailTaken()
	}

	defer r.metrics.TrackDBOperation("insert")(time.Now())
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return r.emailTaken()
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Find returns the user with id or ErrNotFound
func (r *GormUserRepository) Find(ctx context.Context, id uint) (*model.User, error) {
	defer r.metrics.TrackDBOperation("query")(time.Now())

	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user %d: %w", id, err)
	}
	return &user, nil
}

// FindByEmail looks the address up case-insensitively
func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	defer r.metrics.TrackDBOperation("query")(time.Now())

	var user model.User
	err := r.db.WithContext(ctx).Where("email = ?", model.NormalizeEmail(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return &user, nil
}

func (r *GormUserRepository) emailTaken() error {
	r.metrics.RecordValidationFailure("user")
	errs := model.NewValidationErrors()
	errs.Add("email", takenMessage)
	return errs
}
