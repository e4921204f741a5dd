package model

import (
	"time"

	"gorm.io/gorm"
)

// History is one emitted event as recorded by the daemon.
type History struct {
	gorm.Model
	BatchID   string    `gorm:"not null;index" json:"batch_id"`
	Seq       int       `gorm:"not null" json:"seq"`
	Kind      string    `gorm:"not null;index" json:"kind"`
	Path      string    `gorm:"not null" json:"path"`
	FromPath  string    `json:"from_path,omitempty"`
	Tracker   uint64    `json:"tracker,omitempty"`
	Info      string    `json:"info,omitempty"`
	Ongoing   bool      `json:"ongoing"`
	EventTime time.Time `gorm:"not null" json:"event_time"`
	EmittedAt time.Time `gorm:"not null;index" json:"emitted_at"`
}
