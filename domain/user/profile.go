// Package user holds the profile and settings records synced by the engine.
package user

import "time"

// Profile is the user profile row, upserted by user id and kept in the
// sensitive storage partition locally.
type Profile struct {
	UserID      string    `json:"userId" validate:"required"`
	DisplayName string    `json:"displayName"`
	BirthYear   int       `json:"birthYear,omitempty"`
	HeightCM    *float64  `json:"heightCm,omitempty"`
	WeightKG    *float64  `json:"weightKg,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Settings is the user settings row, upserted by user id
type Settings struct {
	UserID        string            `json:"userId" validate:"required"`
	Units         string            `json:"units"` // metric or imperial
	Notifications bool              `json:"notifications"`
	Preferences   map[string]string `json:"preferences,omitempty"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}
