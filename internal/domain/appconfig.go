package domain

import "time"

// AppConfig rows back the middle tier of the configuration hierarchy:
// environment variables > app_config table > compiled-in defaults.
type AppConfig struct {
	Key       string    `gorm:"column:key;primaryKey" json:"key"`
	Value     string    `gorm:"column:value;not null;default:''" json:"value"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (AppConfig) TableName() string { return "app_config" }
