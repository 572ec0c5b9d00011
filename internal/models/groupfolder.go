package models

import "time"

// Groupfolder is a shared folder tree of the host platform that metadata can be attached to
type Groupfolder struct {
	ID            int64     `json:"id"`
	MountPoint    string    `json:"mount_point"`
	SchemaVersion int64     `json:"schema_version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FileEvent is a file lifecycle notification dispatched by the host.
// GroupfolderID is nil for files outside any groupfolder.
type FileEvent struct {
	FileID              int64  `json:"file_id"`
	GroupfolderID       *int64 `json:"groupfolder_id,omitempty"`
	SourceFileID        int64  `json:"source_file_id,omitempty"`
	SourceGroupfolderID *int64 `json:"source_groupfolder_id,omitempty"`
}

// SearchResult is one metadata value matching a search query
type SearchResult struct {
	FileID        int64  `json:"file_id"`
	GroupfolderID *int64 `json:"groupfolder_id,omitempty"`
	FieldID       string `json:"field_id"`
	FieldName     string `json:"field_name"`
	Value         string `json:"value"`
}

// UsageReport is a snapshot of how much of the metadata feature set is in use
type UsageReport struct {
	ID                int64     `json:"id"`
	GlobalFields      int       `json:"global_fields"`
	GroupfolderFields int       `json:"groupfolder_fields"`
	Groupfolders      int       `json:"groupfolders"`
	FilesWithMetadata int       `json:"files_with_metadata"`
	TotalValues       int       `json:"total_values"`
	GeneratedAt       time.Time `json:"generated_at"`
}
