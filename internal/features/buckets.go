package features

import (
	"time"

	"github.com/mtrack/backend/internal/models"
)

// Canonical bucket labels, matching the vocabulary the aggregator recognizes.
// The sweeper uses these when synthesizing aggregated data for sessions that
// ended without a client-submitted snapshot.
const (
	BucketLengthUnder10  = "Less than 10 min"
	BucketLength10to30   = "10-30 min"
	BucketLength30to60   = "30-60 min"
	BucketLengthOverHour = "More than 1 hour"

	BucketMorning   = "Morning (5am-11am)"
	BucketAfternoon = "Afternoon (11am-3pm)"
	BucketEvening   = "Evening (3pm-8pm)"
	BucketNight     = "Night (8pm-12am)"
	BucketMidnight  = "Midnight (12am-5am)"
)

// SessionLengthBucket buckets an elapsed wall-clock duration.
func SessionLengthBucket(elapsed time.Duration) string {
	switch {
	case elapsed < 10*time.Minute:
		return BucketLengthUnder10
	case elapsed < 30*time.Minute:
		return BucketLength10to30
	case elapsed <= time.Hour:
		return BucketLength30to60
	default:
		return BucketLengthOverHour
	}
}

// TimeOfDayBucket buckets a point in time by local hour.
func TimeOfDayBucket(t time.Time) string {
	switch h := t.Hour(); {
	case h >= 5 && h < 11:
		return BucketMorning
	case h >= 11 && h < 15:
		return BucketAfternoon
	case h >= 15 && h < 20:
		return BucketEvening
	case h >= 20:
		return BucketNight
	default:
		return BucketMidnight
	}
}

// Synthesize builds an aggregated-data snapshot for a session that is being
// force-ended without client input. Every field the session never reported
// takes its neutral default; session length and time of day are computed
// from the session's own timestamps.
func Synthesize(startedAt, endedAt time.Time) models.AggregatedData {
	return models.AggregatedData{
		SongCategoryMode:    "Unknown",
		SkipRateBucket:      "Never",
		RepeatBucket:        "None",
		DurationRatioBucket: "Around 50%",
		SessionLengthBucket: SessionLengthBucket(endedAt.Sub(startedAt)),
		VolumeLevelBucket:   "Medium",
		SongDiversityBucket: "One category",
		ListeningTimeOfDay:  TimeOfDayBucket(endedAt),
	}
}
