package model

import (
	"time"

	"gorm.io/gorm"
)

type Medicine struct {
	ID           int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	SKU          string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"sku"`
	Name         string         `gorm:"type:varchar(255);not null" json:"name"`
	Manufacturer string         `gorm:"type:varchar(255)" json:"manufacturer"`
	Price        float64        `gorm:"type:numeric(12,2);not null" json:"price"`
	Quantity     int64          `gorm:"not null;default:0" json:"quantity"`
	ExpiryDate   *time.Time     `gorm:"type:date" json:"expiry_date,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}
