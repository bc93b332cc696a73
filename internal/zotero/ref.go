package zotero

import (
	"fmt"
	"regexp"
	"strconv"
)

// LibraryUsers and LibraryGroups are the two Zotero library types.
const (
	LibraryUsers  = "users"
	LibraryGroups = "groups"
)

// ItemRef identifies a single Zotero item within a library.
//
// A LibraryID of 0 on a "users" reference is a sentinel meaning "the library
// of the current API key"; the client resolves it lazily.
type ItemRef struct {
	LibraryType string
	LibraryID   int64
	ItemKey     string
}

var (
	// canonicalURI matches users/groups URIs with a numeric library id,
	// with or without the www prefix.
	canonicalURI = regexp.MustCompile(`https?://(?:www\.)?zotero\.org/(users|groups)/(\d+)/items/([A-Z0-9]+)`)

	// slugURI matches the username-slug form, e.g.
	// https://www.zotero.org/jdoe/items/ABCD1234. The slug maps to the
	// current key's user library.
	slugURI = regexp.MustCompile(`https?://(?:www\.)?zotero\.org/([A-Za-z][A-Za-z0-9._-]*)/items/([A-Z0-9]+)`)
)

// ParseItemURI parses a zotero.org item URI into an ItemRef.
//
// Accepted forms:
//
//	https://www.zotero.org/groups/483726/items/A5X7AKTH
//	https://zotero.org/users/12345/items/ABCD1234
//	https://www.zotero.org/jdoe/items/ABCD1234   (username slug → users/0)
func ParseItemURI(uri string) (ItemRef, error) {
	if m := canonicalURI.FindStringSubmatch(uri); m != nil {
		id, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return ItemRef{}, fmt.Errorf("parse library id %q: %w", m[2], err)
		}
		return ItemRef{LibraryType: m[1], LibraryID: id, ItemKey: m[3]}, nil
	}

	if m := slugURI.FindStringSubmatch(uri); m != nil {
		return ItemRef{LibraryType: LibraryUsers, LibraryID: 0, ItemKey: m[2]}, nil
	}

	return ItemRef{}, fmt.Errorf("unrecognized zotero item uri: %q", uri)
}

// URI returns the canonical web URI for the referenced item.
func (r ItemRef) URI() string {
	return fmt.Sprintf("https://www.zotero.org/%s/%d/items/%s", r.LibraryType, r.LibraryID, r.ItemKey)
}

// libraryPath returns the API path prefix for the reference's library.
func (r ItemRef) libraryPath() string {
	return fmt.Sprintf("/%s/%d", r.LibraryType, r.LibraryID)
}

func (r ItemRef) String() string {
	return fmt.Sprintf("%s/%d/%s", r.LibraryType, r.LibraryID, r.ItemKey)
}
