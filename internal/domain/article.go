package domain

import "time"

// Article is the mutable record flowing through the editorial pipeline. The
// durable ID is assigned once at ingestion and is the only join key between
// the editorial and interview subsystems.
type Article struct {
	ID               int64
	Title            string
	Body             string
	Language         string
	Categories       []string
	EnrichmentStatus EnrichmentStatus
	Status           ArticleStatus
	InterviewContent []DialogueTurn
	UpdatedAt        time.Time
}

// HasID reports whether the article carries a resolved durable identifier.
func (a Article) HasID() bool {
	return a.ID > 0
}

// ArticleStatus enumerates lifecycle milestones persisted with the article.
type ArticleStatus string

const (
	StatusDraft     ArticleStatus = "draft"
	StatusInReview  ArticleStatus = "in_review"
	StatusPublished ArticleStatus = "published"
	StatusRejected  ArticleStatus = "rejected"
)

// EnrichmentStatus tracks whether interview material has been merged back.
type EnrichmentStatus string

const (
	EnrichmentPending EnrichmentStatus = "pending"
	EnrichmentSuccess EnrichmentStatus = "success"
	EnrichmentFailed  EnrichmentStatus = "failed"
)
