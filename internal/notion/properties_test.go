package notion

import (
	"testing"
	"time"

	"github.com/jomei/notionapi"
)

func runs(s string) []notionapi.RichText {
	return []notionapi.RichText{{PlainText: s}}
}

func TestParseProperties(t *testing.T) {
	date := notionapi.Date(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	dateOnly := notionapi.Date(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))

	props := notionapi.Properties{
		"Name":        &notionapi.TitleProperty{Title: runs("A Paper")},
		"Abstract":    &notionapi.RichTextProperty{RichText: runs("some text")},
		"Zotero URI":  &notionapi.URLProperty{URL: "https://www.zotero.org/groups/1/items/AAAA1111"},
		"Relevant?":   &notionapi.SelectProperty{Select: notionapi.Option{Name: "Yes"}},
		"Tags":        &notionapi.MultiSelectProperty{MultiSelect: []notionapi.Option{{Name: "A"}, {Name: "B"}}},
		"Rating":      &notionapi.NumberProperty{Number: 4.5},
		"Read":        &notionapi.CheckboxProperty{Checkbox: true},
		"Added":       &notionapi.DateProperty{Date: &notionapi.DateObject{Start: &date}},
		"Published":   &notionapi.DateProperty{Date: &notionapi.DateObject{Start: &dateOnly}},
		"Empty":       &notionapi.RichTextProperty{},
		" Padded ":    &notionapi.SelectProperty{Select: notionapi.Option{Name: "v"}},
		"Unsupported": &notionapi.EmailProperty{Email: "x@example.com"},
	}

	parsed := ParseProperties(props)

	if got := parsed.StringOr("Name", ""); got != "A Paper" {
		t.Errorf("Name = %q", got)
	}
	if got := parsed.StringOr("Abstract", ""); got != "some text" {
		t.Errorf("Abstract = %q", got)
	}

	// The URI property is exposed under the reserved key.
	if got := parsed.StringOr(ZoteroURIKey, ""); got != "https://www.zotero.org/groups/1/items/AAAA1111" {
		t.Errorf("zotero_uri = %q", got)
	}
	if _, ok := parsed.Get(ZoteroURIProperty); ok {
		t.Error("source name of the URI property must not appear")
	}

	if got := parsed.StringOr("Relevant?", ""); got != "Yes" {
		t.Errorf("Relevant? = %q", got)
	}
	if got := parsed.ListOr("Tags", nil); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("Tags = %v", got)
	}

	if v, ok := parsed.Get("Rating"); !ok || v.Kind != KindNumber || v.Num != 4.5 {
		t.Errorf("Rating = %+v, present %v", v, ok)
	}
	if v, ok := parsed.Get("Read"); !ok || v.Kind != KindBool || !v.Bool {
		t.Errorf("Read = %+v, present %v", v, ok)
	}
	if got := parsed.StringOr("Added", ""); got != "2024-03-01T12:00:00Z" {
		t.Errorf("Added = %q", got)
	}
	if got := parsed.StringOr("Published", ""); got != "2024-05-01" {
		t.Errorf("Published = %q, expected the date kept date-only", got)
	}

	// Empty and unsupported properties are absent; names are trimmed.
	if _, ok := parsed.Get("Empty"); ok {
		t.Error("empty rich text must be absent")
	}
	if _, ok := parsed.Get("Unsupported"); ok {
		t.Error("unsupported property must be absent")
	}
	if got := parsed.StringOr("Padded", ""); got != "v" {
		t.Errorf("trimmed name lookup = %q", got)
	}
}

func TestParsePropertiesEmptyMultiSelect(t *testing.T) {
	props := notionapi.Properties{
		"Tags": &notionapi.MultiSelectProperty{},
	}

	parsed := ParseProperties(props)

	// An empty multi-select is still present: clearing every option must be
	// observable as an empty list rather than an absent property.
	v, ok := parsed.Get("Tags")
	if !ok || v.Kind != KindList {
		t.Fatalf("Tags = %+v, present %v", v, ok)
	}
	if len(v.List) != 0 {
		t.Errorf("Tags = %v, expected empty", v.List)
	}
}

func TestJoinRichTextConcatenatesRuns(t *testing.T) {
	props := notionapi.Properties{
		"Name": &notionapi.TitleProperty{Title: []notionapi.RichText{
			{PlainText: "part one"},
			{PlainText: " and two"},
		}},
	}

	parsed := ParseProperties(props)
	if got := parsed.StringOr("Name", ""); got != "part one and two" {
		t.Errorf("Name = %q", got)
	}
}
