package model

import "time"

type RootSnapshot struct {
	RootID    uint       `json:"root_id"`
	Path      string     `json:"path"`
	Recursive bool       `json:"recursive"`
	Status    RootStatus `json:"status"`
	StartedAt time.Time  `json:"started_at"`
}

type EngineSnapshot struct {
	Backend      string     `json:"backend"`
	StartedAt    time.Time  `json:"started_at"`
	Batches      int        `json:"batches"`
	Events       int        `json:"events"`
	Errors       int        `json:"errors"`
	PendingPaths int        `json:"pending_paths"`
	LastFlush    *time.Time `json:"last_flush"`
	LastError    string     `json:"last_error,omitempty"`
}
