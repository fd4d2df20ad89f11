package domain

import "strings"

// ViewState is the client-local picture of an identity's inventory.
// FullList mirrors the store; FilteredList is FullList narrowed by Query.
type ViewState struct {
	FullList     []InventoryItem
	FilteredList []InventoryItem
	Query        string
}

// NewViewState builds a state in which nothing is filtered out.
func NewViewState(items []InventoryItem) ViewState {
	if items == nil {
		items = []InventoryItem{}
	}

	return ViewState{
		FullList:     items,
		FilteredList: items,
	}
}

// Search recomputes FilteredList from FullList for the given query.
// Matching is a case-insensitive substring test on the item name.
func (v ViewState) Search(query string) ViewState {
	return ViewState{
		FullList:     v.FullList,
		FilteredList: FilterItems(v.FullList, query),
		Query:        query,
	}
}

// Empty reports whether the state holds no items at all.
func (v ViewState) Empty() bool {
	return len(v.FullList) == 0
}

// FilterItems returns the subsequence of items whose name contains query, ignoring case.
func FilterItems(items []InventoryItem, query string) []InventoryItem {
	needle := strings.ToLower(query)
	filtered := make([]InventoryItem, 0, len(items))

	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Name), needle) {
			filtered = append(filtered, item)
		}
	}

	return filtered
}
