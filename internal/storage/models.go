package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Run is the journal entry written after every successful pipeline run.
type Run struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	CreatedAt      time.Time `json:"created_at"`
	MotivationType string    `json:"motivation_type"`
	Mood           string    `json:"mood"`
	EnergyLevel    string    `json:"energy_level"`
	StressLevel    string    `json:"stress_level"`
	StrategyCount  int       `json:"strategy_count"`
	MessageCount   int       `json:"message_count"`
	Effectiveness  int       `json:"effectiveness"`
	Techniques     string    `json:"techniques"` // JSON array stored as text
}
