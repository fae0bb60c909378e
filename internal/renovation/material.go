package renovation

import (
	"net/url"
	"strings"
)

// DefaultSearchTemplate is the shopping search used for material links. The
// query is substituted for %s after URL encoding.
const DefaultSearchTemplate = "https://www.google.com/search?tbm=shop&q=%s"

// MaterialSuggestion is one visible material or fixture in the after-image.
type MaterialSuggestion struct {
	Item  string `json:"item"`
	Query string `json:"query"`
}

// NewMaterialSuggestion trims both fields; an empty query is derived from the item.
func NewMaterialSuggestion(item, query string) MaterialSuggestion {
	item = strings.Join(strings.Fields(item), " ")
	query = strings.Join(strings.Fields(query), " ")
	if query == "" {
		query = item
	}
	return MaterialSuggestion{Item: item, Query: query}
}

// Valid reports whether the suggestion has something to show and search for.
func (m MaterialSuggestion) Valid() bool {
	return strings.TrimSpace(m.Item) != "" && strings.TrimSpace(m.Query) != ""
}

// SearchURL builds the outbound shopping link, joining query words with '+'.
func (m MaterialSuggestion) SearchURL(template string) string {
	return SearchURL(template, m.Query)
}

// SearchURL substitutes the escaped query into template.
func SearchURL(template, query string) string {
	if strings.TrimSpace(template) == "" || !strings.Contains(template, "%s") {
		template = DefaultSearchTemplate
	}
	words := strings.Fields(query)
	escaped := make([]string, 0, len(words))
	for _, w := range words {
		escaped = append(escaped, url.QueryEscape(w))
	}
	return strings.Replace(template, "%s", strings.Join(escaped, "+"), 1)
}
