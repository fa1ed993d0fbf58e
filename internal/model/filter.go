package model

// LawFilter holds criteria for querying the laws projection.
type LawFilter struct {
	SessionID   *uint64       `json:"session_id,omitempty"`
	Status      []LawStatus   `json:"status,omitempty"`
	FinalStatus []FinalStatus `json:"final_status,omitempty"`
	Category    []string      `json:"category,omitempty"`
	Author      string        `json:"author,omitempty"` // substring match
	Active      *bool         `json:"active,omitempty"`
	Search      string        `json:"search,omitempty"` // free-text over title/description/tags
	Sort        string        `json:"sort,omitempty"`   // e.g. "-updated_at"; prefix "-" = descending
	Limit       int           `json:"limit,omitempty"`
	Offset      int           `json:"offset,omitempty"`
}
