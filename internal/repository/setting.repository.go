package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/referral-ledger/internal/model"
	"github.com/nimasrn/referral-ledger/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrSettingNotFound is returned when a key has never been persisted.
var ErrSettingNotFound = errors.New("setting not found")

type SettingRepository struct {
	*pg.DB
}

func NewSettingRepository(db *pg.DB) *SettingRepository {
	return &SettingRepository{
		db,
	}
}

func (r *SettingRepository) Get(ctx context.Context, key string) (*model.Setting, error) {
	var entity SettingEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("key = ?", key).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettingNotFound
		}
		return nil, err
	}

	return toSettingModel(&entity), nil
}

// Upsert inserts the key or updates its value and description in place.
func (r *SettingRepository) Upsert(ctx context.Context, setting *model.Setting) error {
	entity := toSettingEntity(setting)

	return r.Write(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "description"}),
		}).
		Create(entity).
		Error
}

func (r *SettingRepository) List(ctx context.Context) ([]*model.Setting, error) {
	var entities []*SettingEntity
	err := r.Read(ctx).WithContext(ctx).
		Order("key ASC").
		Find(&entities).
		Error

	if err != nil {
		return nil, err
	}

	return toSettingModels(entities), nil
}
