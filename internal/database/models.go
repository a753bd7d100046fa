package database

import "time"

// Attachment is one stored media file.
type Attachment struct {
	ID        int64     `json:"id"`
	Path      string    `json:"path"`
	MimeType  string    `json:"mimeType"`
	Title     string    `json:"title"`
	ParentID  int64     `json:"parentId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
