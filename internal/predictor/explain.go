package predictor

import "github.com/mtrack/backend/internal/features"

// Explain evaluates fixed rules over the pre-classification feature values
// and returns human-readable insight strings. The rules do not look at the
// classifier output, so explanations remain available in fallback mode.
func Explain(v features.Vector) []string {
	var out []string

	if v.SkipScore >= 2 {
		out = append(out, "Frequent song skipping suggests restlessness or difficulty settling on music.")
	}
	if v.MoodPolarity < 0 && v.NightFlag == 1 {
		out = append(out, "Late-night listening dominated by sad music is associated with low mood.")
	} else if v.MoodPolarity < 0 {
		out = append(out, "Your listening leaned toward sad music this session.")
	}
	if v.RepeatScore >= 2 {
		out = append(out, "Repeating the same songs many times can indicate rumination.")
	}
	if v.DiversityScore <= 1 {
		out = append(out, "Listening stayed within a single category, which can reflect a narrowed mood.")
	}
	if v.Engagement >= 5 {
		out = append(out, "Overall engagement with music was high this session.")
	} else if v.Engagement < 0 {
		out = append(out, "Overall engagement with music was unusually low this session.")
	}

	if len(out) == 0 {
		out = append(out, "No notable risk signals were detected in this session.")
	}
	return out
}
