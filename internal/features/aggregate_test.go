package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mtrack/backend/internal/models"
)

func TestAggregateEngagementScore(t *testing.T) {
	v := Aggregate(models.AggregatedData{
		SongCategoryMode:    "happy",
		SkipRateBucket:      "never",
		RepeatBucket:        "1-2 times",
		DurationRatioBucket: "about 75%",
		SessionLengthBucket: "10-30 min",
		VolumeLevelBucket:   "Medium",
		SongDiversityBucket: "2-3 categories",
		ListeningTimeOfDay:  "Evening (3pm-8pm)",
	})

	// 3 + 1 + 2 + 1 - 0
	assert.Equal(t, 7, v.Engagement)
	assert.Equal(t, 0, v.SkipScore)
	assert.Equal(t, 1, v.RepeatScore)
	assert.Equal(t, 3, v.DurationScore)
	assert.Equal(t, 2, v.DiversityScore)
	assert.Equal(t, 1, v.MoodPolarity)
	assert.Equal(t, 0, v.NightFlag)
}

func TestAggregateIsDeterministic(t *testing.T) {
	data := models.AggregatedData{
		SongCategoryMode:    "Sad",
		SkipRateBucket:      "More than 5 times",
		RepeatBucket:        "3-5 times",
		DurationRatioBucket: "Less than 25%",
		SessionLengthBucket: "More than 1 hour",
		VolumeLevelBucket:   "High",
		SongDiversityBucket: "More than 3 categories",
		ListeningTimeOfDay:  "Midnight (12am-5am)",
	}
	assert.Equal(t, Aggregate(data), Aggregate(data))
}

func TestBucketMatchingIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, 3, SkipScore("MORE THAN 5 TIMES"))
	assert.Equal(t, 4, DurationScore("Full Song"))
	assert.Equal(t, -1, MoodPolarity("SAD"))
}

func TestUnrecognizedBucketsUseNeutralDefaults(t *testing.T) {
	v := Aggregate(models.AggregatedData{})

	assert.Equal(t, 0, v.SkipScore)
	assert.Equal(t, 0, v.RepeatScore)
	assert.Equal(t, 2, v.DurationScore)
	assert.Equal(t, 2, v.LengthScore)
	assert.Equal(t, 2, v.VolumeScore)
	assert.Equal(t, 1, v.DiversityScore)
	assert.Equal(t, 0, v.MoodPolarity)
	assert.Equal(t, 0, v.NightFlag)
	// 2 + 0 + 1 + 0 - 0
	assert.Equal(t, 3, v.Engagement)
}

func TestNightFlag(t *testing.T) {
	assert.Equal(t, 1, NightFlag("Night (8pm-12am)"))
	assert.Equal(t, 1, NightFlag("Midnight (12am-5am)"))
	assert.Equal(t, 0, NightFlag("Morning (5am-11am)"))
	assert.Equal(t, 0, NightFlag(""))
}

func TestSessionLengthBucket(t *testing.T) {
	assert.Equal(t, BucketLengthUnder10, SessionLengthBucket(5*time.Minute))
	assert.Equal(t, BucketLength10to30, SessionLengthBucket(12*time.Minute))
	assert.Equal(t, BucketLength30to60, SessionLengthBucket(45*time.Minute))
	assert.Equal(t, BucketLengthOverHour, SessionLengthBucket(2*time.Hour))
}

func TestTimeOfDayBucket(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, BucketMidnight, TimeOfDayBucket(day.Add(2*time.Hour)))
	assert.Equal(t, BucketMorning, TimeOfDayBucket(day.Add(8*time.Hour)))
	assert.Equal(t, BucketAfternoon, TimeOfDayBucket(day.Add(13*time.Hour)))
	assert.Equal(t, BucketEvening, TimeOfDayBucket(day.Add(17*time.Hour)))
	assert.Equal(t, BucketNight, TimeOfDayBucket(day.Add(22*time.Hour)))
}

func TestSynthesizeUsesSessionTimestamps(t *testing.T) {
	start := time.Date(2025, 6, 1, 21, 0, 0, 0, time.UTC)
	end := start.Add(40 * time.Minute)

	data := Synthesize(start, end)
	assert.Equal(t, BucketLength30to60, data.SessionLengthBucket)
	assert.Equal(t, BucketNight, data.ListeningTimeOfDay)
	assert.Equal(t, "Never", data.SkipRateBucket)
	assert.Equal(t, "Medium", data.VolumeLevelBucket)
}
