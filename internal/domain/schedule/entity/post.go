package entity

import "time"

// ModerationStatus represents the moderation state of a post
type ModerationStatus string

const (
	ModerationStatusPending   ModerationStatus = "pending"
	ModerationStatusApproved  ModerationStatus = "approved"
	ModerationStatusRejected  ModerationStatus = "rejected"
	ModerationStatusPublished ModerationStatus = "published"
)

// Post is the scheduling core's read view of a content item. Posts are
// created and moderated by the host product; this core only consumes
// approved posts and flips them to published after a successful publish.
type Post struct {
	ID        string           `json:"id"`
	ProjectID string           `json:"project_id"`
	AccountID string           `json:"account_id"`
	Content   string           `json:"content"`
	MediaKey  string           `json:"media_key,omitempty"` // optional image attachment in object storage
	Status    ModerationStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

// IsApproved returns true if the post may be scheduled or published
func (p *Post) IsApproved() bool {
	return p.Status == ModerationStatusApproved
}
