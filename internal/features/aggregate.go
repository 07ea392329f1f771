// Package features maps the categorical bucket snapshot captured at session
// end into the ordinal feature vector consumed by the classifier. The mapping
// is deterministic and total: unrecognized or empty bucket values resolve to
// neutral defaults, never to an error.
package features

import (
	"strings"

	"github.com/mtrack/backend/internal/models"
)

// Neutral defaults for unrecognized bucket values (mid-scale, or floor for
// count-like buckets).
const (
	defaultSkipScore      = 0
	defaultRepeatScore    = 0
	defaultDurationScore  = 2
	defaultLengthScore    = 2
	defaultVolumeScore    = 2
	defaultDiversityScore = 1
)

// Vector is the numeric feature tuple plus the echoed categorical fields.
// The classifier consumes both.
type Vector struct {
	SkipScore      int `json:"skip_score"`
	RepeatScore    int `json:"repeat_score"`
	DurationScore  int `json:"duration_score"`
	LengthScore    int `json:"length_score"`
	VolumeScore    int `json:"volume_score"`
	DiversityScore int `json:"diversity_score"`
	MoodPolarity   int `json:"mood_polarity"` // -1 sad, 0 calm/neutral, +1 happy/energetic
	NightFlag      int `json:"night_flag"`
	Engagement     int `json:"engagement"`

	Buckets models.AggregatedData `json:"buckets"`
}

// Aggregate converts a bucket snapshot into a feature vector.
//
// Engagement = duration + repeat + diversity + mood - skip. The formula is
// fixed for output compatibility with the trained classifier; no other
// weighting is sanctioned.
func Aggregate(data models.AggregatedData) Vector {
	v := Vector{
		SkipScore:      SkipScore(data.SkipRateBucket),
		RepeatScore:    RepeatScore(data.RepeatBucket),
		DurationScore:  DurationScore(data.DurationRatioBucket),
		LengthScore:    SessionLengthScore(data.SessionLengthBucket),
		VolumeScore:    VolumeScore(data.VolumeLevelBucket),
		DiversityScore: DiversityScore(data.SongDiversityBucket),
		MoodPolarity:   MoodPolarity(data.SongCategoryMode),
		NightFlag:      NightFlag(data.ListeningTimeOfDay),
		Buckets:        data,
	}
	v.Engagement = v.DurationScore + v.RepeatScore + v.DiversityScore + v.MoodPolarity - v.SkipScore
	return v
}

// SkipScore maps the skip-rate bucket to 0..3.
func SkipScore(bucket string) int {
	b := strings.ToLower(bucket)
	switch {
	case strings.Contains(b, "never"):
		return 0
	case strings.Contains(b, "1-2"):
		return 1
	case strings.Contains(b, "3-5"):
		return 2
	case strings.Contains(b, "more than 5"):
		return 3
	}
	return defaultSkipScore
}

// RepeatScore maps the repeat bucket to 0..3.
func RepeatScore(bucket string) int {
	b := strings.ToLower(bucket)
	switch {
	case strings.Contains(b, "none"):
		return 0
	case strings.Contains(b, "1-2"):
		return 1
	case strings.Contains(b, "3-5"):
		return 2
	case strings.Contains(b, "more than 5"):
		return 3
	}
	return defaultRepeatScore
}

// DurationScore maps the duration-ratio bucket to 1..4.
func DurationScore(bucket string) int {
	b := strings.ToLower(bucket)
	switch {
	case strings.Contains(b, "less than 25"):
		return 1
	case strings.Contains(b, "50"):
		return 2
	case strings.Contains(b, "75"):
		return 3
	case strings.Contains(b, "full"):
		return 4
	}
	return defaultDurationScore
}

// SessionLengthScore maps the session-length bucket to 1..4.
func SessionLengthScore(bucket string) int {
	b := strings.ToLower(bucket)
	switch {
	case strings.Contains(b, "less than 10"):
		return 1
	case strings.Contains(b, "10-30"):
		return 2
	case strings.Contains(b, "30-60"):
		return 3
	case strings.Contains(b, "more than 1 hour"):
		return 4
	}
	return defaultLengthScore
}

// VolumeScore maps the volume bucket to 1..3.
func VolumeScore(bucket string) int {
	b := strings.ToLower(bucket)
	switch {
	case strings.Contains(b, "low"):
		return 1
	case strings.Contains(b, "medium"):
		return 2
	case strings.Contains(b, "high"):
		return 3
	}
	return defaultVolumeScore
}

// DiversityScore maps the song-diversity bucket to 1..3.
func DiversityScore(bucket string) int {
	b := strings.ToLower(bucket)
	switch {
	case strings.Contains(b, "one category"):
		return 1
	case strings.Contains(b, "2-3"):
		return 2
	case strings.Contains(b, "more than 3"):
		return 3
	}
	return defaultDiversityScore
}

// MoodPolarity maps the dominant song category to {-1, 0, +1}.
func MoodPolarity(category string) int {
	c := strings.ToLower(category)
	switch {
	case strings.Contains(c, "sad"):
		return -1
	case strings.Contains(c, "happy"), strings.Contains(c, "energetic"):
		return 1
	case strings.Contains(c, "calm"), strings.Contains(c, "relax"):
		return 0
	}
	return 0
}

// NightFlag is 1 if the time-of-day bucket mentions night or midnight.
func NightFlag(timeOfDay string) int {
	t := strings.ToLower(timeOfDay)
	if strings.Contains(t, "night") || strings.Contains(t, "midnight") {
		return 1
	}
	return 0
}
