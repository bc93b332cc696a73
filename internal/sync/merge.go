package sync

import "sort"

// ThreeWayMerge reconciles a set-valued field across two replicas and their
// common baseline. Notion's additions and removals since the baseline are
// applied on top of Zotero's current state:
//
//	added   = notion − base
//	removed = base − notion
//	result  = (zotero ∪ added) − removed ∪ preserve
//
// Ordering is stable: elements of the result that Zotero already holds keep
// Zotero's order; new elements follow in ascending lexical order.
func ThreeWayMerge(base, notionCurrent, zoteroCurrent []string, preserve ...string) []string {
	baseSet := toSet(base)
	notionSet := toSet(notionCurrent)

	result := toSet(zoteroCurrent)
	for v := range notionSet {
		if !baseSet[v] {
			result[v] = true
		}
	}
	for v := range baseSet {
		if !notionSet[v] {
			delete(result, v)
		}
	}
	for _, v := range preserve {
		result[v] = true
	}

	ordered := make([]string, 0, len(result))
	seen := make(map[string]bool, len(result))
	for _, v := range zoteroCurrent {
		if result[v] && !seen[v] {
			ordered = append(ordered, v)
			seen[v] = true
		}
	}

	var fresh []string
	for v := range result {
		if !seen[v] {
			fresh = append(fresh, v)
		}
	}
	sort.Strings(fresh)

	return append(ordered, fresh...)
}

// sameSet reports whether two slices contain the same elements, ignoring
// order and duplicates.
func sameSet(a, b []string) bool {
	as, bs := toSet(a), toSet(b)
	if len(as) != len(bs) {
		return false
	}
	for v := range as {
		if !bs[v] {
			return false
		}
	}
	return true
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, v := range items {
		set[v] = true
	}
	return set
}
