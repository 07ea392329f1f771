package mailer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromAddress(t *testing.T) {
	s := Settings{User: "bot@mtrack.app"}
	assert.Equal(t, "M_Track <bot@mtrack.app>", s.FromAddress())

	s = Settings{User: "bot@mtrack.app", From: "alerts@mtrack.app"}
	assert.Equal(t, "M_Track <alerts@mtrack.app>", s.FromAddress())

	s = Settings{From: "Custom Name <alerts@mtrack.app>"}
	assert.Equal(t, "Custom Name <alerts@mtrack.app>", s.FromAddress())
}

func TestBuildMessageMultipart(t *testing.T) {
	msg := string(buildMessage("M_Track <a@b.c>", "to@d.e", "Hello", "<p>html</p>", "plain"))

	assert.True(t, strings.HasPrefix(msg, "From: M_Track <a@b.c>\r\n"))
	assert.Contains(t, msg, "To: to@d.e\r\n")
	assert.Contains(t, msg, "Subject: Hello\r\n")
	assert.Contains(t, msg, "multipart/alternative")
	assert.Contains(t, msg, "text/plain; charset=utf-8\r\n\r\nplain")
	assert.Contains(t, msg, "text/html; charset=utf-8\r\n\r\n<p>html</p>")
	// Plain part must precede the HTML part so clients prefer HTML.
	assert.Less(t, strings.Index(msg, "plain"), strings.Index(msg, "<p>html</p>"))
}

func TestBuildMessageTextOptional(t *testing.T) {
	msg := string(buildMessage("a@b.c", "to@d.e", "S", "<p>x</p>", ""))
	assert.NotContains(t, msg, "text/plain")
	assert.Contains(t, msg, "text/html")
}

func TestSendDisabled(t *testing.T) {
	m := New(nil)
	err := m.Send(Settings{Enabled: false}, "to@d.e", "s", "<p>x</p>", "x")
	assert.Error(t, err)
}
