package domain

// CommentRecord is one extracted comment. Order is the visitation index
// within the thread and Depth the nesting level (0 for top-level).
type CommentRecord struct {
	Author    string `json:"author"`
	Text      string `json:"text"`
	Depth     int    `json:"depth"`
	Order     int    `json:"order"`
	Timestamp string `json:"timestamp,omitempty"`
}
