package models

import "time"

// UploadRecord describes one stored upload. Location is either an object
// store URL or a local filesystem path; callers treat it as opaque.
type UploadRecord struct {
	ID         int64     `json:"id"`
	FileName   string    `json:"file_name"`
	StoredName string    `json:"stored_name"`
	Location   string    `json:"location"`
	MimeType   string    `json:"mime_type"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
}
