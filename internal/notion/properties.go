package notion

import (
	"strings"
	"time"

	"github.com/jomei/notionapi"
)

// ZoteroURIProperty is the source-side name of the property that carries the
// Zotero item URI. It is exposed in parsed maps under ZoteroURIKey.
const (
	ZoteroURIProperty = "Zotero URI"
	ZoteroURIKey      = "zotero_uri"
)

// ParseProperties projects a page's heterogeneous property shapes into a
// normalized value map. Title and rich-text runs are joined to plain
// strings; empty and unsupported properties are omitted.
func ParseProperties(props notionapi.Properties) ValueMap {
	parsed := make(ValueMap, len(props))

	for name, prop := range props {
		value, ok := parseProperty(prop)
		if !ok {
			continue
		}
		if name == ZoteroURIProperty {
			parsed[ZoteroURIKey] = value
			continue
		}
		parsed[strings.TrimSpace(name)] = value
	}

	return parsed
}

func parseProperty(prop notionapi.Property) (Value, bool) {
	switch p := prop.(type) {
	case *notionapi.TitleProperty:
		if text := joinRichText(p.Title); text != "" {
			return String(text), true
		}

	case *notionapi.RichTextProperty:
		if text := joinRichText(p.RichText); text != "" {
			return String(text), true
		}

	case *notionapi.URLProperty:
		if p.URL != "" {
			return String(p.URL), true
		}

	case *notionapi.SelectProperty:
		if p.Select.Name != "" {
			return String(p.Select.Name), true
		}

	case *notionapi.MultiSelectProperty:
		names := make([]string, 0, len(p.MultiSelect))
		for _, opt := range p.MultiSelect {
			names = append(names, opt.Name)
		}
		return List(names), true

	case *notionapi.NumberProperty:
		return Number(p.Number), true

	case *notionapi.CheckboxProperty:
		return Bool(p.Checkbox), true

	case *notionapi.DateProperty:
		if p.Date != nil && p.Date.Start != nil {
			return String(formatDate(time.Time(*p.Date.Start))), true
		}
	}

	return Value{}, false
}

// formatDate keeps date-only starts in their date-only form instead of
// fabricating a midnight timestamp.
func formatDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}

func joinRichText(runs []notionapi.RichText) string {
	var sb strings.Builder
	for _, rt := range runs {
		sb.WriteString(rt.PlainText)
	}
	return sb.String()
}
