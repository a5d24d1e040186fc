package repository

import (
	"github.com/nimasrn/referral-ledger/internal/model"
)

type SettingEntity struct {
	Key         string `db:"key"         gorm:"primaryKey;column:key"`
	Value       string `db:"value"       gorm:"column:value;not null"`
	Description string `db:"description" gorm:"column:description"`
}

func (SettingEntity) TableName() string {
	return "settings"
}

func toSettingEntity(m *model.Setting) *SettingEntity {
	if m == nil {
		return nil
	}
	return &SettingEntity{
		Key:         m.Key,
		Value:       m.Value,
		Description: m.Description,
	}
}

func toSettingModel(e *SettingEntity) *model.Setting {
	if e == nil {
		return nil
	}
	return &model.Setting{
		Key:         e.Key,
		Value:       e.Value,
		Description: e.Description,
	}
}

func toSettingModels(entities []*SettingEntity) []*model.Setting {
	if entities == nil {
		return nil
	}
	models := make([]*model.Setting, len(entities))
	for i, e := range entities {
		models[i] = toSettingModel(e)
	}
	return models
}
