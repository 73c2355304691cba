package domain

// ExportFilters records the ticket selection used for an export.
type ExportFilters struct {
	GroupIDs []string `json:"group_ids"`
	Statuses []string `json:"statuses"`
	IDsCSV   *string  `json:"ids_csv"`
}

// ExportMetadata is the single persisted record describing the latest
// export. Overwritten on every successful export; no history is kept.
type ExportMetadata struct {
	Timestamp     string        `json:"timestamp"`
	Filename      string        `json:"filename"`
	SharepointURL string        `json:"sharepointUrl"`
	Rows          int           `json:"rows"`
	Filters       ExportFilters `json:"filters"`
}
