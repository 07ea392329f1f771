package models

import (
	"time"

	"github.com/google/uuid"
)

// Event types reported by the player client.
const (
	EventPlay         = "play"
	EventPause        = "pause"
	EventSkip         = "skip"
	EventRepeat       = "repeat"
	EventVolumeChange = "volume_change"
)

// SessionEvent is one client-reported interaction during a listening session.
type SessionEvent struct {
	Type      string     `json:"type"`
	Timestamp time.Time  `json:"timestamp"`
	SongID    *uuid.UUID `json:"song_id,omitempty"`
	Duration  *float64   `json:"duration,omitempty"` // seconds
	Volume    *float64   `json:"volume,omitempty"`   // 0-1
}

// AggregatedData is the categorical bucket snapshot captured at session end.
// Bucket values are free-form labels matched case-insensitively by the
// feature aggregator; unrecognized values fall back to neutral defaults.
type AggregatedData struct {
	SongCategoryMode    string `json:"song_category_mode"`
	SkipRateBucket      string `json:"skip_rate_bucket"`
	RepeatBucket        string `json:"repeat_bucket"`
	DurationRatioBucket string `json:"duration_ratio_bucket"`
	SessionLengthBucket string `json:"session_length_bucket"`
	VolumeLevelBucket   string `json:"volume_level_bucket"`
	SongDiversityBucket string `json:"song_diversity_bucket"`
	ListeningTimeOfDay  string `json:"listening_time_of_day"`
}

// Session is one continuous listening interaction window for a user,
// bounded by start and end/auto-end. Events, aggregated data and the
// prediction are written exactly once, at the end-transition.
type Session struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	SongID          *uuid.UUID      `json:"song_id,omitempty"`
	StartedAt       time.Time       `json:"started_at"`
	LastEventAt     time.Time       `json:"last_event_at"`
	EndedAt         *time.Time      `json:"ended_at,omitempty"`
	IsActive        bool            `json:"is_active"`
	AutoEnded       bool            `json:"auto_ended"`
	Events          []SessionEvent  `json:"events"`
	AggregatedData  *AggregatedData `json:"aggregated_data,omitempty"`
	Prediction      *Prediction     `json:"prediction,omitempty"`
	LogoutEmailSent bool            `json:"-"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
