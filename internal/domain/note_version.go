package domain

// NoteVersion is one archived state of a note as served to clients.
type NoteVersion struct {
	Version      int      `json:"version"`
	Title        string   `json:"title"`
	Text         *string  `json:"text"`
	LastModified *float64 `json:"last_modified,omitempty"`
	VersionAt    *float64 `json:"version_at,omitempty"`
	ModifiedBy   string   `json:"modified_by"`
}
