package order

// Filter narrows an order listing. Empty slices match everything.
type Filter struct {
	IDs         []string `json:"ids,omitempty"`
	CustomerIDs []string `json:"customerIds,omitempty"`
	Statuses    []Status `json:"statuses,omitempty"`
	Limit       int      `json:"limit,omitempty"`
	Offset      int      `json:"offset,omitempty"`
}
