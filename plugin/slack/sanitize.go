package slack

import (
	"html"
	"regexp"
	"strings"
)

// Slack wraps mentions, channel refs, and links in angle brackets, e.g.
// <@U123>, <#C123|general>, <https://a.b|a.b>.
var markupRe = regexp.MustCompile(`<[^>]*>`)

// Sanitize strips Slack message markup and HTML entity escapes so the
// assistant sees plain user text.
func Sanitize(text string) string {
	text = html.UnescapeString(text)
	text = markupRe.ReplaceAllString(text, "")
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}
