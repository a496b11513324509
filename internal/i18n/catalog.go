// Package i18n provides locale-aware formatting of the human-readable
// messages attached to command failures. Message templates are looked up by a
// stable template id; callers never embed free English text in failures.
package i18n

import (
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/language"
)

// DefaultLocale is used when a request carries no usable locale.
const DefaultLocale = "en-US"

// Catalog holds the message templates for a single locale.
type Catalog struct {
	locale   string
	tag      language.Tag
	messages map[string]string

	mu       sync.Mutex
	compiled map[string]*template.Template
}

// Locale returns the catalog's BCP 47 locale string.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the template with the given id using args. Unknown template
// ids fall back to the id itself so a missing translation never breaks a
// failure path.
func (c *Catalog) Format(id string, args map[string]string) string {
	text, ok := c.messages[id]
	if !ok {
		return id
	}
	if !strings.Contains(text, "{{") {
		return text
	}

	tmpl, err := c.template(id, text)
	if err != nil {
		return text
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, args); err != nil {
		return text
	}
	return sb.String()
}

func (c *Catalog) template(id, text string) (*template.Template, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.compiled == nil {
		c.compiled = make(map[string]*template.Template)
	}
	if tmpl, ok := c.compiled[id]; ok {
		return tmpl, nil
	}

	tmpl, err := template.New(id).Parse(text)
	if err != nil {
		return nil, err
	}
	c.compiled[id] = tmpl
	return tmpl, nil
}

var (
	catalogs = []*Catalog{enUSCatalog}
	matcher  language.Matcher
)

func init() {
	tags := make([]language.Tag, len(catalogs))
	for i, c := range catalogs {
		c.tag = language.MustParse(c.locale)
		tags[i] = c.tag
	}
	matcher = language.NewMatcher(tags)
}

// GetCatalog returns the catalog best matching the given locale, falling back
// to en-US for unknown or empty locales. The locale may be a single BCP 47
// tag or a full Accept-Language list.
func GetCatalog(locale string) *Catalog {
	if locale == "" {
		return enUSCatalog
	}
	tags, _, err := language.ParseAcceptLanguage(locale)
	if err != nil || len(tags) == 0 {
		return enUSCatalog
	}
	_, index, conf := matcher.Match(tags...)
	if conf == language.No {
		return enUSCatalog
	}
	return catalogs[index]
}
