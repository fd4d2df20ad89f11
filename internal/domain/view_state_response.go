package domain

// ItemResponse is the wire representation of an inventory item.
type ItemResponse struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Quantity int        `json:"quantity"`
	OwnerID  string     `json:"ownerId"`
	Level    StockLevel `json:"level"`
}

// ViewStateResponse is the wire representation of a view state.
type ViewStateResponse struct {
	Items    []ItemResponse `json:"items"`
	Filtered []ItemResponse `json:"filtered"`
	Query    string         `json:"query,omitempty"`
}

// NewViewStateResponse converts a view state for encoding.
func NewViewStateResponse(view ViewState) ViewStateResponse {
	return ViewStateResponse{
		Items:    newItemResponses(view.FullList),
		Filtered: newItemResponses(view.FilteredList),
		Query:    view.Query,
	}
}

func newItemResponses(items []InventoryItem) []ItemResponse {
	resp := make([]ItemResponse, len(items))

	for i, item := range items {
		resp[i] = ItemResponse{
			ID:       item.ID.String(),
			Name:     item.Name,
			Quantity: item.Quantity,
			OwnerID:  item.OwnerID,
			Level:    item.Level(),
		}
	}

	return resp
}
