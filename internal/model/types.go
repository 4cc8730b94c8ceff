package model

import "time"

type AlertLevel string

const (
	LevelSafe    AlertLevel = "Safe"
	LevelWarning AlertLevel = "Warning"
	LevelDanger  AlertLevel = "Danger"
)

// Rank gives the total order Safe < Warning < Danger.
func (l AlertLevel) Rank() int {
	switch l {
	case LevelWarning:
		return 1
	case LevelDanger:
		return 2
	default:
		return 0
	}
}

// HardwareBinding links an identity (email) to its sensor feed and the
// contact number recorded at registration. HardwareID is empty until the
// user assigns one; no monitoring is possible in that state.
type HardwareBinding struct {
	Identity     string `json:"identity"`
	HardwareID   string `json:"hardware_id,omitempty"`
	MobileNumber string `json:"mobile_number,omitempty"`
	IsAdmin      bool   `json:"is_admin,omitempty"`
	IsActive     bool   `json:"is_active,omitempty"`
}

type ThresholdConfig struct {
	Warning float64 `json:"warning"`
	Danger  float64 `json:"danger"`
}

// LiveReading is one scalar push from a hardware feed, in parts-per-million.
type LiveReading struct {
	HardwareID string    `json:"hardware_id"`
	PPM        float64   `json:"ppm"`
	ReceivedAt time.Time `json:"received_at"`
}

// AlertRecord is the canonical persisted alert schema. Records are
// append-only and never carry a Safe level.
type AlertRecord struct {
	ID           string     `json:"id"`
	UserEmail    string     `json:"user_email"`
	MobileNumber string     `json:"mobile_number,omitempty"`
	Level        AlertLevel `json:"level"`
	PPM          float64    `json:"ppm"`
	Datetime     time.Time  `json:"datetime"`
	Color        string     `json:"color"`
}
