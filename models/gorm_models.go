package models

import (
	"gorm.io/gorm"
)

// GormAccount is the persisted account record. The token is the opaque
// credential clients present on connect.
type GormAccount struct {
	gorm.Model
	PlayerID    string `gorm:"uniqueIndex;not null"`
	DisplayName string `gorm:"not null"`
	Token       string `gorm:"uniqueIndex;not null"`
	Wins        int    `gorm:"default:0"`
	Losses      int    `gorm:"default:0"`
}
