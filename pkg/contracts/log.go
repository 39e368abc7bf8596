package contracts

import "time"

// Log is a timestamped, typed event record. Value must conform to the
// schema registered for LogTypeID; that conformance is checked by the log
// executor via pkg/validate, not by this type.
type Log struct {
	ID        string
	LogTypeID string
	Timestamp time.Time
	Value     map[string]interface{}
	StatusID  string
	Tags      []string
	Metadata  map[string]interface{}

	CreatedAt time.Time
	UpdatedAt time.Time
}

// File is a blob attachment with no intrinsic scope of its own: visibility
// is derived transitively from whatever entities, knowledge items, or jobs
// it is attached to (see pkg/scope's fileVisibility).
type File struct {
	ID         string
	Filename   string
	FilePath   string
	MimeType   string
	SizeBytes  int64
	Checksum   string
	StatusID   string
	Tags       []string
	Metadata   map[string]interface{}

	CreatedAt time.Time
	UpdatedAt time.Time
}
