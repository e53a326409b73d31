// Package utils holds text helpers shared by the API and notification layers.
package utils

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// HTMLSanitizer strips or cleans user supplied markup.
type HTMLSanitizer struct {
	strict *bluemonday.Policy
	policy *bluemonday.Policy
}

// NewHTMLSanitizer builds a sanitizer with a strip-everything policy for chat
// content and a UGC policy for rendered e-mail bodies.
func NewHTMLSanitizer() *HTMLSanitizer {
	ugc := bluemonday.UGCPolicy()
	ugc.AllowAttrs("class").Globally()
	ugc.RequireNoFollowOnLinks(false)
	return &HTMLSanitizer{
		strict: bluemonday.StrictPolicy(),
		policy: ugc,
	}
}

// Strip removes every tag, drops script/style bodies and trims whitespace.
// The result is plain text: the entities the policy escapes are decoded again,
// so callers must escape it before embedding it in HTML.
func (s *HTMLSanitizer) Strip(input string) string {
	return strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(input)))
}

// Sanitize keeps safe formatting markup and removes everything else.
func (s *HTMLSanitizer) Sanitize(input string) string {
	return s.policy.Sanitize(input)
}

var defaultSanitizer = NewHTMLSanitizer()

// StripHTML strips all markup using the shared sanitizer.
func StripHTML(input string) string {
	return defaultSanitizer.Strip(input)
}

var htmlTagPattern = regexp.MustCompile(`(?i)<(p|div|span|b|i|u|strong|em|br|h[1-6]|ul|ol|li|table|tr|td|th|a|blockquote|img|pre|code)\b[^>]*>`)

// IsHTML reports whether input contains common HTML elements.
func IsHTML(input string) bool {
	return htmlTagPattern.MatchString(input)
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Linkify, extension.Strikethrough))

// MarkdownToHTML renders markdown and sanitizes the output.
func MarkdownToHTML(input string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(input), &buf); err != nil {
		return defaultSanitizer.Sanitize(input)
	}
	return defaultSanitizer.Sanitize(buf.String())
}
