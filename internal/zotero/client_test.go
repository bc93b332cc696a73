package zotero

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New("test-key", WithBaseURL(srv.URL), WithRateLimit(1000))
}

var groupRef = ItemRef{LibraryType: LibraryGroups, LibraryID: 483726, ItemKey: "A5X7AKTH"}

func TestGetItemReadsVersionHeader(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/groups/483726/items/A5X7AKTH" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Zotero-API-Key") != "test-key" {
			t.Errorf("missing api key header")
		}
		w.Header().Set("Last-Modified-Version", "42")
		json.NewEncoder(w).Encode(map[string]any{
			"key":  "A5X7AKTH",
			"data": map[string]any{"title": "A Paper"},
		})
	}))

	item, err := client.GetItem(context.Background(), groupRef)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.Version != 42 {
		t.Errorf("version = %d, expected 42 from header", item.Version)
	}
	if item.Data["title"] != "A Paper" {
		t.Errorf("data = %v", item.Data)
	}
}

func TestGetItemNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.GetItem(context.Background(), groupRef)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPatchItemSendsVersionPrecondition(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s", r.Method)
		}
		if got := r.Header.Get("If-Unmodified-Since-Version"); got != "6" {
			t.Errorf("If-Unmodified-Since-Version = %q, expected 6", got)
		}
		w.Header().Set("Last-Modified-Version", "7")
		w.WriteHeader(http.StatusNoContent)
	}))

	version, err := client.PatchItem(context.Background(), groupRef, map[string]any{"abstractNote": "x"}, 6)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if version != 7 {
		t.Errorf("version = %d, expected 7", version)
	}
}

func TestPatchItemConflict(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Last-Modified-Version", "9")
		w.WriteHeader(http.StatusPreconditionFailed)
	}))

	_, err := client.PatchItem(context.Background(), groupRef, map[string]any{}, 6)
	conflict, ok := IsConflict(err)
	if !ok {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.CurrentVersion != 9 {
		t.Errorf("current version = %d, expected 9", conflict.CurrentVersion)
	}
}

func TestDoRetriesOnceOnRateLimit(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"key": "A5X7AKTH", "version": 1})
	}))

	if _, err := client.GetItem(context.Background(), groupRef); err != nil {
		t.Fatalf("get item: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 requests, got %d", calls)
	}
}

func TestCreateNoteUnwrapsBatch(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch []map[string]any
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			t.Fatalf("decode batch: %v", err)
		}
		if len(batch) != 1 {
			t.Fatalf("batch size = %d", len(batch))
		}
		if batch[0]["itemType"] != "note" || batch[0]["parentItem"] != "A5X7AKTH" {
			t.Errorf("batch entry = %v", batch[0])
		}
		if batch[0]["note"] != "<p>hi</p>" {
			t.Errorf("note html = %v", batch[0]["note"])
		}

		json.NewEncoder(w).Encode(map[string]any{
			"successful": map[string]any{
				"0": map[string]any{"key": "NOTE1111", "version": 1},
			},
		})
	}))

	note, err := client.CreateNote(context.Background(), groupRef, "<p>hi</p>", []Tag{{Tag: "notion"}})
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	if note.Key != "NOTE1111" {
		t.Errorf("key = %q", note.Key)
	}
}

func TestCreateNoteBatchFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"successful": map[string]any{},
			"failed":     map[string]any{"0": map[string]any{"code": 400}},
		})
	}))

	if _, err := client.CreateNote(context.Background(), groupRef, "<p>hi</p>", nil); err == nil {
		t.Error("expected error for failed batch entry")
	}
}

func TestGetCollectionsPaginates(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := r.URL.Query().Get("start")

		var page []map[string]any
		if start == "0" {
			// Full first page forces a second request.
			for i := 0; i < 100; i++ {
				page = append(page, map[string]any{
					"key":  "KEY" + string(rune('A'+i%26)),
					"data": map[string]any{"name": "Collection"},
				})
			}
		} else {
			page = append(page, map[string]any{
				"key":  "LAST",
				"data": map[string]any{"name": "Tail"},
			})
		}
		json.NewEncoder(w).Encode(page)
	}))

	collections, err := client.GetCollections(context.Background(), LibraryGroups, 483726)
	if err != nil {
		t.Fatalf("get collections: %v", err)
	}
	if len(collections) != 101 {
		t.Errorf("got %d collections, expected 101", len(collections))
	}
	if collections[100].Key != "LAST" || collections[100].Name != "Tail" {
		t.Errorf("tail = %+v", collections[100])
	}
}

func TestSentinelUserLibraryResolved(t *testing.T) {
	keyCalls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/keys/test-key":
			keyCalls++
			json.NewEncoder(w).Encode(map[string]any{"userID": 555})
		case "/users/555/items/ABCD1234":
			json.NewEncoder(w).Encode(map[string]any{"key": "ABCD1234", "version": 1})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	ref := ItemRef{LibraryType: LibraryUsers, LibraryID: 0, ItemKey: "ABCD1234"}
	if _, err := client.GetItem(context.Background(), ref); err != nil {
		t.Fatalf("get item: %v", err)
	}
	// Second call must reuse the cached user id.
	if _, err := client.GetItem(context.Background(), ref); err != nil {
		t.Fatalf("get item: %v", err)
	}
	if keyCalls != 1 {
		t.Errorf("user id resolved %d times, expected once", keyCalls)
	}
}
