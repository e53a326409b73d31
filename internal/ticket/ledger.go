package ticket

import (
	"strings"
	"unicode/utf8"

	"github.com/gigconnect/gigconnect/internal/models"
)

// cleanContent strips markup and trims.
func (s *Service) cleanContent(raw string) string {
	return strings.TrimSpace(s.sanitizer.Strip(raw))
}

// validateContent enforces the 1..MaxMessageLength rule on cleaned text.
// Empty content is accepted when allowEmpty is set.
func validateContent(content string, allowEmpty bool) error {
	n := utf8.RuneCountInString(content)
	if n == 0 && !allowEmpty {
		return invalidField("content", "must not be empty")
	}
	if n > models.MaxMessageLength {
		return invalidField("content", "must be at most 1000 characters")
	}
	return nil
}

// truncate cuts s to at most limit runes.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// searchMessages returns messages whose content contains query, ignoring
// case. An empty query returns every message.
func searchMessages(messages []models.Message, query string) []models.Message {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]models.Message, 0, len(messages))
	for _, m := range messages {
		if query == "" || strings.Contains(strings.ToLower(m.Content), query) {
			out = append(out, m)
		}
	}
	return out
}

// markRead flips read on messages the reader did not send and reports how
// many changed.
func markRead(t *models.Ticket, readerID string) int {
	changed := 0
	for i := range t.Messages {
		m := &t.Messages[i]
		if m.SenderID != readerID && !m.Read {
			m.Read = true
			changed++
		}
	}
	return changed
}
