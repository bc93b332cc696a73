package zotero

import "testing"

func TestParseItemURI(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected ItemRef
		wantErr  bool
	}{
		{
			name:     "group library",
			uri:      "https://www.zotero.org/groups/483726/items/A5X7AKTH",
			expected: ItemRef{LibraryType: "groups", LibraryID: 483726, ItemKey: "A5X7AKTH"},
		},
		{
			name:     "user library without www",
			uri:      "https://zotero.org/users/12345/items/ABCD1234",
			expected: ItemRef{LibraryType: "users", LibraryID: 12345, ItemKey: "ABCD1234"},
		},
		{
			name:     "http scheme",
			uri:      "http://zotero.org/groups/7/items/ZZZZ9999",
			expected: ItemRef{LibraryType: "groups", LibraryID: 7, ItemKey: "ZZZZ9999"},
		},
		{
			name:     "username slug maps to sentinel user library",
			uri:      "https://www.zotero.org/jdoe/items/ABCD1234",
			expected: ItemRef{LibraryType: "users", LibraryID: 0, ItemKey: "ABCD1234"},
		},
		{
			name:    "not an item uri",
			uri:     "https://www.zotero.org/groups/483726",
			wantErr: true,
		},
		{
			name:    "empty",
			uri:     "",
			wantErr: true,
		},
		{
			name:    "unrelated url",
			uri:     "https://example.com/users/1/items/ABCD1234",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ParseItemURI(tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", ref)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseItemURI(%q): %v", tt.uri, err)
			}
			if ref != tt.expected {
				t.Errorf("ParseItemURI(%q) = %+v, expected %+v", tt.uri, ref, tt.expected)
			}
		})
	}
}

func TestItemRefURIRoundTrip(t *testing.T) {
	refs := []ItemRef{
		{LibraryType: "groups", LibraryID: 483726, ItemKey: "A5X7AKTH"},
		{LibraryType: "users", LibraryID: 12345, ItemKey: "ABCD1234"},
	}

	for _, ref := range refs {
		parsed, err := ParseItemURI(ref.URI())
		if err != nil {
			t.Fatalf("parse %q: %v", ref.URI(), err)
		}
		if parsed != ref {
			t.Errorf("round trip of %+v gave %+v", ref, parsed)
		}
	}
}
