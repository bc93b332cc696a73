package bootstrap

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"

	"github.com/noterosync/notero/internal/state"
	"github.com/noterosync/notero/internal/zotero"
)

const (
	testDatabaseID = "db-1"
	testGroupID    = int64(483726)
)

type fakeDatabase struct {
	pages []notionapi.Page
}

func (f *fakeDatabase) QueryAllPages(ctx context.Context, databaseID string) ([]notionapi.Page, error) {
	return f.pages, nil
}

type fakeItems struct {
	items   map[string]*zotero.Item
	created []map[string]any
}

func newFakeItems() *fakeItems {
	return &fakeItems{items: map[string]*zotero.Item{}}
}

func (f *fakeItems) GetItem(ctx context.Context, ref zotero.ItemRef) (*zotero.Item, error) {
	item, ok := f.items[ref.String()]
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, zotero.ErrNotFound)
	}
	return item, nil
}

func (f *fakeItems) CreateItem(ctx context.Context, ref zotero.ItemRef, data map[string]any) (*zotero.Item, error) {
	f.created = append(f.created, data)
	key := fmt.Sprintf("NEW%05d", len(f.created))
	item := &zotero.Item{Key: key, Version: 1, Data: data}
	f.items[zotero.ItemRef{LibraryType: ref.LibraryType, LibraryID: ref.LibraryID, ItemKey: key}.String()] = item
	return item, nil
}

func openTestDB(t *testing.T) *state.DB {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func page(id, uri, relevant string) notionapi.Page {
	props := notionapi.Properties{
		"Relevant?": &notionapi.SelectProperty{Select: notionapi.Option{Name: relevant}},
	}
	if uri != "" {
		props["Zotero URI"] = &notionapi.URLProperty{URL: uri}
	}
	return notionapi.Page{ID: notionapi.ObjectID(id), Properties: props}
}

func userItemURI(key string) string {
	return "https://www.zotero.org/users/12345/items/" + key
}

func TestSeedCreatesGroupCopy(t *testing.T) {
	db := openTestDB(t)
	items := newFakeItems()
	items.items["users/12345/AAAA1111"] = &zotero.Item{
		Key:     "AAAA1111",
		Version: 3,
		Data: map[string]any{
			"title":       "A Paper",
			"key":         "AAAA1111",
			"version":     3,
			"collections": []any{"COLX"},
			"relations":   map[string]any{},
			"dateAdded":   "2020-01-01T00:00:00Z",
		},
	}

	pages := &fakeDatabase{pages: []notionapi.Page{
		page("page-1", userItemURI("AAAA1111"), "Yes"),
	}}

	b := New(db, pages, items, nil, zerolog.Nop())
	report, err := b.Seed(context.Background(), testDatabaseID, testGroupID)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if report.Created != 1 || report.Reused != 0 {
		t.Errorf("report = %+v", report)
	}
	if len(items.created) != 1 {
		t.Fatalf("expected one created item, got %d", len(items.created))
	}

	// Library-local fields must be stripped from the copy.
	data := items.created[0]
	for _, field := range strippedFields {
		if _, ok := data[field]; ok {
			t.Errorf("field %q not stripped from copy", field)
		}
	}
	if data["title"] != "A Paper" {
		t.Errorf("copy data = %v", data)
	}

	st, err := db.GetSyncState("page-1")
	if err != nil || st == nil {
		t.Fatalf("sync state: %v, %v", st, err)
	}
	if st.ZoteroGroupID != testGroupID || st.LastZoteroVersion != 1 {
		t.Errorf("state = %+v", st)
	}
}

func TestSeedReusesSameAsRelation(t *testing.T) {
	db := openTestDB(t)
	items := newFakeItems()
	items.items["users/12345/AAAA1111"] = &zotero.Item{
		Key:     "AAAA1111",
		Version: 3,
		Data: map[string]any{
			"title": "A Paper",
			"relations": map[string]any{
				"owl:sameAs": fmt.Sprintf("http://zotero.org/groups/%d/items/GGGG2222", testGroupID),
			},
		},
	}
	items.items[fmt.Sprintf("groups/%d/GGGG2222", testGroupID)] = &zotero.Item{
		Key:     "GGGG2222",
		Version: 9,
		Data:    map[string]any{"title": "A Paper"},
	}

	pages := &fakeDatabase{pages: []notionapi.Page{
		page("page-1", userItemURI("AAAA1111"), "Highly"),
	}}

	b := New(db, pages, items, nil, zerolog.Nop())
	report, err := b.Seed(context.Background(), testDatabaseID, testGroupID)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if report.Reused != 1 || report.Created != 0 {
		t.Errorf("report = %+v", report)
	}
	if len(items.created) != 0 {
		t.Errorf("no copy should be created when the relation target is alive")
	}

	st, _ := db.GetSyncState("page-1")
	if st == nil || st.ZoteroItemKey != "GGGG2222" || st.LastZoteroVersion != 9 {
		t.Errorf("state = %+v", st)
	}
}

func TestSeedDeadRelationFallsBackToCopy(t *testing.T) {
	db := openTestDB(t)
	items := newFakeItems()
	items.items["users/12345/AAAA1111"] = &zotero.Item{
		Key:     "AAAA1111",
		Version: 3,
		Data: map[string]any{
			"title": "A Paper",
			"relations": map[string]any{
				"owl:sameAs": []any{fmt.Sprintf("http://zotero.org/groups/%d/items/DEAD0000", testGroupID)},
			},
		},
	}

	pages := &fakeDatabase{pages: []notionapi.Page{
		page("page-1", userItemURI("AAAA1111"), "Yes"),
	}}

	b := New(db, pages, items, nil, zerolog.Nop())
	report, err := b.Seed(context.Background(), testDatabaseID, testGroupID)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if report.Created != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestSeedSkipsIrrelevantAndSeeded(t *testing.T) {
	db := openTestDB(t)
	items := newFakeItems()
	items.items["users/12345/AAAA1111"] = &zotero.Item{Key: "AAAA1111", Version: 1, Data: map[string]any{}}

	// page-2 already has state; page-3 is not relevant; page-4 has no URI.
	if err := db.UpsertSyncState("page-2", "EXISTING", testGroupID, 1, nil); err != nil {
		t.Fatalf("seed state: %v", err)
	}
	pages := &fakeDatabase{pages: []notionapi.Page{
		page("page-1", userItemURI("AAAA1111"), "Yes"),
		page("page-2", userItemURI("AAAA1111"), "Yes"),
		page("page-3", userItemURI("AAAA1111"), "No"),
		page("page-4", "", "Yes"),
	}}

	b := New(db, pages, items, nil, zerolog.Nop())
	report, err := b.Seed(context.Background(), testDatabaseID, testGroupID)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if report.Created != 1 || report.Skipped != 3 {
		t.Errorf("report = %+v", report)
	}
}

func TestSnapshotRecordsBaselineWithoutWrites(t *testing.T) {
	db := openTestDB(t)
	items := newFakeItems()
	items.items["groups/483726/A5X7AKTH"] = &zotero.Item{Key: "A5X7AKTH", Version: 12, Data: map[string]any{}}

	pages := &fakeDatabase{pages: []notionapi.Page{
		page("page-1", "https://www.zotero.org/groups/483726/items/A5X7AKTH", "Yes"),
	}}

	b := New(db, pages, items, nil, zerolog.Nop())
	report, err := b.Snapshot(context.Background(), testDatabaseID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	if report.Created != 1 {
		t.Errorf("report = %+v", report)
	}
	if len(items.created) != 0 {
		t.Error("snapshot must not create items")
	}

	st, _ := db.GetSyncState("page-1")
	if st == nil || st.ZoteroItemKey != "A5X7AKTH" || st.LastZoteroVersion != 12 {
		t.Errorf("state = %+v", st)
	}
}

func TestSameAsKey(t *testing.T) {
	tests := []struct {
		name     string
		data     map[string]any
		expected string
	}{
		{
			name: "string relation",
			data: map[string]any{"relations": map[string]any{
				"owl:sameAs": "http://zotero.org/groups/483726/items/ABCD1234",
			}},
			expected: "ABCD1234",
		},
		{
			name: "list relation picks matching group",
			data: map[string]any{"relations": map[string]any{
				"owl:sameAs": []any{
					"http://zotero.org/groups/999/items/WRONG000",
					"http://zotero.org/groups/483726/items/RIGHT000",
				},
			}},
			expected: "RIGHT000",
		},
		{
			name:     "no relations",
			data:     map[string]any{},
			expected: "",
		},
		{
			name: "other group only",
			data: map[string]any{"relations": map[string]any{
				"owl:sameAs": "http://zotero.org/groups/999/items/WRONG000",
			}},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sameAsKey(tt.data, 483726); got != tt.expected {
				t.Errorf("sameAsKey = %q, expected %q", got, tt.expected)
			}
		})
	}
}
