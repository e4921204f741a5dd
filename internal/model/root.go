package model

import "gorm.io/gorm"

type RootStatus string

const (
	RootStatusActive RootStatus = "ACTIVE"
	RootStatusPaused RootStatus = "PAUSED"
	RootStatusFailed RootStatus = "FAILED"
)

// Root is a watched directory persisted across daemon restarts.
type Root struct {
	gorm.Model
	Path      string     `gorm:"not null;uniqueIndex" json:"path"`
	Recursive bool       `gorm:"not null" json:"recursive"`
	Status    RootStatus `gorm:"not null;default:'ACTIVE'" json:"status"`
}
