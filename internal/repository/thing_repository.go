package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/suteetoe/thing-service/internal/model"
	"github.com/suteetoe/thing-service/pkg/logger"
	"github.com/suteetoe/thing-service/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNotFound is returned when no record has the requested id
var ErrNotFound = errors.New("record not found")

const takenMessage = "has already been taken"

// ThingRepository persists Things
type ThingRepository interface {
	All(ctx context.Context) ([]model.Thing, error)
	Find(ctx context.Context, id uint) (*model.Thing, error)
	FindByName(ctx context.Context, name string) (*model.Thing, error)
	Create(ctx context.Context, thing *model.Thing) error
	// Update assigns attrs and saves. On a validation error the returned Thing
	// carries the rejected values so a form can be re-rendered.
	Update(ctx context.Context, id uint, attrs model.ThingAttributes) (*model.Thing, error)
	Delete(ctx context.Context, id uint) error
	Count(ctx context.Context) (int64, error)
}

// GormThingRepository is the gorm implementation of ThingRepository
type GormThingRepository struct {
	db      *gorm.DB
	metrics *prometheus.Metrics
	now     func() time.Time
}

// NewGormThingRepository creates a repository on db. metrics may be nil.
func NewGormThingRepository(db *gorm.DB, metrics *prometheus.Metrics) *GormThingRepository {
	return &GormThingRepository{db: db, metrics: metrics, now: time.Now}
}

// All returns every Thing ordered by id
func (r *GormThingRepository) All(ctx context.Context) ([]model.Thing, error) {
	defer r.metrics.TrackDBOperation("query")(time.Now())

	things := []model.Thing{}
	if err := r.db.WithContext(ctx).Order("id").Find(&things).Error; err != nil {
		return nil, fmt.Errorf("failed to list things: %w", err)
	}
	return things, nil
}

// Find returns the Thing with id or ErrNotFound
func (r *GormThingRepository) Find(ctx context.Context, id uint) (*model.Thing, error) {
	defer r.metrics.TrackDBOperation("query")(time.Now())

	var thing model.Thing
	if err := r.db.WithContext(ctx).First(&thing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find thing %d: %w", id, err)
	}
	return &thing, nil
}

// FindByName returns the Thing with exactly name or ErrNotFound
func (r *GormThingRepository) FindByName(ctx context.Context, name string) (*model.Thing, error) {
	defer r.metrics.TrackDBOperation("query")(time.Now())

	var thing model.Thing
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&thing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find thing %q: %w", name, err)
	}
	return &thing, nil
}

// Create validates and inserts thing
func (r *GormThingRepository) Create(ctx context.Context, thing *model.Thing) error {
	log := logger.FromContext(ctx)

	if err := r.validate(ctx, thing); err != nil {
		return err
	}

	defer r.metrics.TrackDBOperation("insert")(time.Now())
	thing.CreatedAt = r.now()
	thing.UpdatedAt = thing.CreatedAt
	if err := r.db.WithContext(ctx).Create(thing).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// lost a race with a concurrent insert of the same name
			log.Warn("Unique index rejected thing name", zap.String("name", thing.Name))
			return r.rejected(nameTaken())
		}
		return fmt.Errorf("failed to create thing: %w", err)
	}

	r.metrics.RecordThingOperation("create")
	return nil
}

// Update assigns attrs to the Thing with id and saves it
func (r *GormThingRepository) Update(ctx context.Context, id uint, attrs model.ThingAttributes) (*model.Thing, error) {
	log := logger.FromContext(ctx)

	thing, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	thing.Assign(attrs)
	if err := r.validate(ctx, thing); err != nil {
		return thing, err
	}

	defer r.metrics.TrackDBOperation("update")(time.Now())
	thing.UpdatedAt = r.now()
	err = r.db.WithContext(ctx).Model(&model.Thing{ID: thing.ID}).Updates(map[string]interface{}{
		"name":        thing.Name,
		"description": thing.Description,
		"updated_at":  thing.UpdatedAt,
	}).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			log.Warn("Unique index rejected thing name", zap.String("name", thing.Name))
			return thing, r.rejected(nameTaken())
		}
		return nil, fmt.Errorf("failed to update thing %d: %w", id, err)
	}

	r.metrics.RecordThingOperation("update")
	return thing, nil
}

// Delete removes the Thing with id
func (r *GormThingRepository) Delete(ctx context.Context, id uint) error {
	defer r.metrics.TrackDBOperation("delete")(time.Now())

	result := r.db.WithContext(ctx).Delete(&model.Thing{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete thing %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	r.metrics.RecordThingOperation("delete")
	return nil
}

// Count returns the number of Things
func (r *GormThingRepository) Count(ctx context.Context) (int64, error) {
	defer r.metrics.TrackDBOperation("query")(time.Now())

	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Thing{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count things: %w", err)
	}
	return count, nil
}

// validate runs the model rules plus the uniqueness check on name
func (r *GormThingRepository) validate(ctx context.Context, thing *model.Thing) error {
	errs := model.NewValidationErrors()
	if err := thing.Validate(); err != nil {
		verrs, ok := model.AsValidationErrors(err)
		if !ok {
			return err
		}
		errs = verrs
	}

	if len(errs.On("name")) == 0 {
		query := r.db.WithContext(ctx).Model(&model.Thing{}).Where("name = ?", thing.Name)
		if thing.Persisted() {
			query = query.Where("id <> ?", thing.ID)
		}
		var count int64
		if err := query.Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check thing name: %w", err)
		}
		if count > 0 {
			errs.Add("name", takenMessage)
		}
	}

	if errs.Any() {
		return r.rejected(errs)
	}
	return nil
}

func (r *GormThingRepository) rejected(errs *model.ValidationErrors) error {
	r.metrics.RecordValidationFailure("thing")
	return errs
}

func nameTaken() *model.ValidationErrors {
	errs := model.NewValidationErrors()
	errs.Add("name", takenMessage)
	return errs
}
