// Package sync implements the property and note reverse-sync engines:
// three-way merging against stored baselines, optimistic-concurrency retry
// and collection name↔key resolution.
package sync

import "github.com/noterosync/notero/internal/zotero"

// MergeStrategy selects how a mapped field is reconciled.
type MergeStrategy int

const (
	// StrategyThreeWay merges set-valued fields against the stored baseline.
	StrategyThreeWay MergeStrategy = iota
	// StrategyScalar lets Notion win unless both sides changed.
	StrategyScalar
)

// FieldMapping maps one Notion property to a Zotero item field.
type FieldMapping struct {
	NotionName  string
	ZoteroField string
	Strategy    MergeStrategy
}

// SyncableFields is the closed set of fields that sync from Notion to
// Zotero.
var SyncableFields = []FieldMapping{
	{NotionName: "Tags", ZoteroField: "tags", Strategy: StrategyThreeWay},
	{NotionName: "Collections", ZoteroField: "collections", Strategy: StrategyThreeWay},
	{NotionName: "Abstract", ZoteroField: "abstractNote", Strategy: StrategyScalar},
	{NotionName: "Short Title", ZoteroField: "shortTitle", Strategy: StrategyScalar},
	{NotionName: "Extra", ZoteroField: "extra", Strategy: StrategyScalar},
}

// ProvenanceTag marks items managed by this service; it is always preserved
// on synced items.
const ProvenanceTag = "notion"

// RelevantProperty gates syncing: only pages whose value is one of
// RelevantValues are propagated.
const RelevantProperty = "Relevant?"

// RelevantValues are the property values that enable syncing for a page.
var RelevantValues = []string{"Yes", "Highly"}

// IsRelevant reports whether a page's relevance value enables syncing.
func IsRelevant(value string) bool {
	for _, v := range RelevantValues {
		if value == v {
			return true
		}
	}
	return false
}

// tagsToWire converts tag strings to the Zotero wire shape.
func tagsToWire(tags []string) []zotero.Tag {
	wire := make([]zotero.Tag, 0, len(tags))
	for _, t := range tags {
		wire = append(wire, zotero.Tag{Tag: t})
	}
	return wire
}

// wireTagsToList extracts tag strings from a decoded Zotero item's tags
// field.
func wireTagsToList(raw any) []string {
	entries, ok := raw.([]any)
	if !ok {
		return nil
	}
	tags := make([]string, 0, len(entries))
	for _, entry := range entries {
		if m, ok := entry.(map[string]any); ok {
			if tag, ok := m["tag"].(string); ok {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

// wireStringList extracts a list of strings from a decoded item field such
// as collections.
func wireStringList(raw any) []string {
	entries, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if s, ok := entry.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// wireString extracts a scalar string from a decoded item field.
func wireString(raw any) string {
	s, _ := raw.(string)
	return s
}
