// Package domain holds the types shared by every stage of the classify-and-link pipeline.
package domain

// ContentStatus is the publication state of a content item.
type ContentStatus string

// Content statuses.
const (
	StatusDraft     ContentStatus = "draft"
	StatusPublished ContentStatus = "published"
	StatusOther     ContentStatus = "other"
)

// ParseContentStatus maps stored values onto the three known statuses.
func ParseContentStatus(s string) ContentStatus {
	switch ContentStatus(s) {
	case StatusDraft, StatusPublished:
		return ContentStatus(s)
	default:
		return StatusOther
	}
}

// ContentItem is a unit of content owned by the external content repository.
// The pipeline only reads it and writes derived term associations.
type ContentItem struct {
	ID     string        `db:"id"           json:"id"`
	Type   string        `db:"content_type" json:"type"`
	Title  string        `db:"title"        json:"title"`
	Body   string        `db:"body"         json:"body"`
	Status ContentStatus `db:"status"       json:"status"`
}
