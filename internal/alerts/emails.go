package alerts

import (
	"fmt"
	"strings"

	"github.com/mtrack/backend/internal/models"
)

// BuildAlertEmail renders the subject and bodies for a high-risk alert.
func BuildAlertEmail(emailType string, p *models.Prediction) (subject, html, text string) {
	switch emailType {
	case models.EmailTypeDepressionAlert:
		subject = "M_Track Mood Alert - Elevated Depression Detected"
		return subject,
			alertHTML("Elevated Depression Detected", p, depressionRecommendations),
			alertText("Elevated Depression Detected", p, depressionRecommendations)
	default:
		subject = "M_Track Mood Alert - Elevated Stress Detected"
		return subject,
			alertHTML("Elevated Stress Detected", p, stressRecommendations),
			alertText("Elevated Stress Detected", p, stressRecommendations)
	}
}

// BuildSummaryEmail renders the session-summary email sent on logout.
func BuildSummaryEmail(p *models.Prediction) (subject, html, text string) {
	subject = "M_Track - Your Latest Session Summary"

	var b strings.Builder
	b.WriteString("<html><body style=\"font-family: Arial, sans-serif\">")
	b.WriteString("<h2>Your Latest Listening Session</h2>")
	fmt.Fprintf(&b, "<p>Stress Level: <strong>%s</strong><br/>Depression Level: <strong>%s</strong></p>", p.StressLevel, p.DepressionLevel)
	b.WriteString("<h3>Session Insights</h3><ul>")
	for _, e := range topExplanations(p) {
		fmt.Fprintf(&b, "<li>%s</li>", e)
	}
	b.WriteString("</ul>")
	b.WriteString("<p>This is an automated summary from M_Track.</p>")
	b.WriteString("</body></html>")

	var t strings.Builder
	t.WriteString("Your Latest Listening Session\n\n")
	fmt.Fprintf(&t, "Stress Level: %s\nDepression Level: %s\n\nSession Insights:\n", p.StressLevel, p.DepressionLevel)
	for _, e := range topExplanations(p) {
		fmt.Fprintf(&t, "- %s\n", e)
	}
	return subject, b.String(), t.String()
}

// BuildWelcomeEmail renders the registration welcome email.
func BuildWelcomeEmail(email string) (subject, html, text string) {
	subject = "Welcome to M_Track"
	name := email
	if i := strings.IndexByte(email, '@'); i > 0 {
		name = email[:i]
	}
	html = fmt.Sprintf(
		"<html><body style=\"font-family: Arial, sans-serif\"><h2>Welcome to M_Track, %s</h2>"+
			"<p>M_Track analyzes your music listening behavior to surface early signs of stress and depression.</p>"+
			"<p>Start a listening session and we'll take care of the rest.</p></body></html>", name)
	text = fmt.Sprintf("Welcome to M_Track, %s\n\nM_Track analyzes your music listening behavior to surface early signs of stress and depression.\n", name)
	return subject, html, text
}

var stressRecommendations = []string{
	"Consider listening to calming or relaxing music",
	"Take a short break from music and practice deep breathing",
	"Try engaging in light physical activity",
	"Consider speaking with a healthcare professional if stress persists",
}

var depressionRecommendations = []string{
	"Consider listening to uplifting or energetic music",
	"Engage in activities you enjoy",
	"Connect with friends or family",
	"Consider professional mental health support",
}

func topExplanations(p *models.Prediction) []string {
	if len(p.Explanations) > 5 {
		return p.Explanations[:5]
	}
	return p.Explanations
}

func alertHTML(headline string, p *models.Prediction, recommendations []string) string {
	var b strings.Builder
	b.WriteString("<html><body style=\"font-family: Arial, sans-serif\">")
	fmt.Fprintf(&b, "<h2>Important: %s</h2>", headline)
	fmt.Fprintf(&b, "<p>Stress Level: <strong>%s</strong><br/>Depression Level: <strong>%s</strong></p>", p.StressLevel, p.DepressionLevel)
	b.WriteString("<h3>Session Insights</h3><ul>")
	for _, e := range topExplanations(p) {
		fmt.Fprintf(&b, "<li>%s</li>", e)
	}
	b.WriteString("</ul><h3>Recommendations</h3><ul>")
	for _, r := range recommendations {
		fmt.Fprintf(&b, "<li>%s</li>", r)
	}
	b.WriteString("</ul>")
	b.WriteString("<p>M_Track is a tool to help you understand your listening patterns. If you're experiencing ongoing stress or depression, please seek professional help.</p>")
	b.WriteString("</body></html>")
	return b.String()
}

func alertText(headline string, p *models.Prediction, recommendations []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "IMPORTANT: %s\n\n", headline)
	fmt.Fprintf(&b, "Stress Level: %s\nDepression Level: %s\n\nSession Insights:\n", p.StressLevel, p.DepressionLevel)
	for _, e := range topExplanations(p) {
		fmt.Fprintf(&b, "- %s\n", e)
	}
	b.WriteString("\nRecommendations:\n")
	for _, r := range recommendations {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	return b.String()
}
