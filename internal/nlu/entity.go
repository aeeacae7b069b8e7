package nlu

import (
	"regexp"
	"strings"

	"github.com/supportstack/conversation-core/internal/model"
)

// entityPatterns map entity types to the regular expressions that extract
// them. Patterns capture the value in group 1 when trimming is needed.
var entityPatterns = []struct {
	entityType string
	re         *regexp.Regexp
	group      int
}{
	{"order_id", regexp.MustCompile(`#(\d{4,12})\b`), 1},
	{"order_id", regexp.MustCompile(`(?i)\border\s+(?:number\s+|no\.?\s+|id\s+)?(\d{4,12})\b`), 1},
	{"invoice_id", regexp.MustCompile(`(?i)\binvoice\s+(?:number\s+|no\.?\s+)?([A-Z0-9-]{4,20})\b`), 1},
	{"email", regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`), 0},
	{"phone", regexp.MustCompile(`\+\d{7,15}\b`), 0},
	{"amount", regexp.MustCompile(`(?i)[$€£]\s?(\d+(?:[.,]\d{2})?)`), 1},
}

// extractEntities pulls typed spans out of the text. At most one entity per
// type is returned; the first match wins.
func extractEntities(text string) []model.Entity {
	var entities []model.Entity
	seen := make(map[string]bool)

	for _, p := range entityPatterns {
		if seen[p.entityType] {
			continue
		}
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		value := m[p.group]
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		entities = append(entities, model.Entity{Type: p.entityType, Value: value})
		seen[p.entityType] = true
	}
	return entities
}

var bareNumberRe = regexp.MustCompile(`\b(\d{4,12})\b`)

// BareNumber returns the first standalone number in the text, if any. It
// lets a clarifying answer like "it's 12345" fill a pending numeric slot
// without the user repeating the word "order".
func BareNumber(text string) (string, bool) {
	m := bareNumberRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}
