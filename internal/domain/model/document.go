//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import "time"

// Document is the catalog record for a purchasable document. The viewer
// subsystem reads it for page count, storage location, and presentation
// flags; catalog management itself lives elsewhere.
type Document struct {
	ID          string    `json:"id"           db:"id"`
	Title       string    `json:"title"        db:"title"`
	PageCount   int       `json:"page_count"   db:"page_count"`
	StoragePath string    `json:"-"            db:"storage_path"`
	ContentType string    `json:"content_type" db:"content_type"`
	Watermark   bool      `json:"watermark"    db:"watermark"`
	CreatedAt   time.Time `json:"created_at"   db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"   db:"updated_at"`
}

// ResourceMetadata is the client-facing slice of a Document returned with an
// issued session. The rendering client uses Watermark to decide whether to
// apply its overlay; storage details are never exposed.
type ResourceMetadata struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	PageCount   int    `json:"page_count"`
	ContentType string `json:"content_type"`
	Watermark   bool   `json:"watermark"`
}

// Metadata projects a Document into its client-facing metadata.
func (d *Document) Metadata() ResourceMetadata {
	return ResourceMetadata{
		ID:          d.ID,
		Title:       d.Title,
		PageCount:   d.PageCount,
		ContentType: d.ContentType,
		Watermark:   d.Watermark,
	}
}
