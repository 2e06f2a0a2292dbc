package audit

import "time"

// Entry is one append-only audit row. Rows are never mutated or deleted by
// the core.
type Entry struct {
	PrincipalID  int64
	Action       string
	ResourceType string
	ResourceID   string
	OldValue     any
	NewValue     any
	Origin       string
	Agent        string
}

// TimelineFilters holds the base filters for the audit timeline.
type TimelineFilters struct {
	From         time.Time
	To           time.Time
	PrincipalID  int64
	ResourceType string
	Action       string
	Page         int
	PageSize     int
}

// TimelineRow represents one row of the audit timeline.
type TimelineRow struct {
	ID           int64     `json:"id"`
	At           time.Time `json:"at"`
	PrincipalID  int64     `json:"principal_id"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	OldValues    string    `json:"old_values,omitempty"`
	NewValues    string    `json:"new_values,omitempty"`
	Origin       string    `json:"origin,omitempty"`
	Agent        string    `json:"agent,omitempty"`
}

// PagingInfo carries simple pagination metadata.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result bundles timeline rows with paging information.
type Result struct {
	Rows   []TimelineRow `json:"rows"`
	Paging PagingInfo    `json:"paging"`
}
