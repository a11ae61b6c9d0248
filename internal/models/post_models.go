package models

// Post is a normalized forum post extracted from a raw dump. TextRef points
// at the stored text body; the body itself never rides on the record.
type Post struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	TextRef      string `json:"text_ref"`
	UserName     string `json:"user_name"`
	Date         any    `json:"date"`
	URL          string `json:"url,omitempty"`
	CommentCount int    `json:"comment_count"`
}

// Comment is one nested comment, flattened out of its parent post. ID is
// synthesized from the parent id and the comment's position.
type Comment struct {
	ID       string `json:"id"`
	PostID   string `json:"post_id"`
	TextRef  string `json:"text_ref"`
	UserName string `json:"user_name"`
	Date     any    `json:"date"`
	URL      string `json:"url,omitempty"`
}

// EnrichedPost is a Post plus the AI-derived fields attached by the
// enrichment stage. Every field is always populated; fallbacks fill in when
// the model misbehaves.
type EnrichedPost struct {
	Post
	Summary          string  `json:"summary"`
	ClusterID        string  `json:"cluster_id"`
	AIRelevanceScore float64 `json:"ai_relevance_score"`
}
