package instagram

// Post identifies the crawled post. Populated once at the start of a crawl,
// either from a fresh lookup or a loaded checkpoint; fresh fields are unioned
// in if a later lookup succeeds.
type Post struct {
	URL       string `json:"url,omitempty"`
	Shortcode string `json:"shortcode"`
	MediaID   string `json:"media_id,omitempty"`
	OwnerID   string `json:"owner_id,omitempty"`
	Caption   string `json:"caption,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Merge copies non-empty fields from other into p without overwriting
// already-populated ones.
func (p *Post) Merge(other Post) {
	if p.URL == "" {
		p.URL = other.URL
	}
	if p.Shortcode == "" {
		p.Shortcode = other.Shortcode
	}
	if p.MediaID == "" {
		p.MediaID = other.MediaID
	}
	if p.OwnerID == "" {
		p.OwnerID = other.OwnerID
	}
	if p.Caption == "" {
		p.Caption = other.Caption
	}
	if p.CreatedAt == "" {
		p.CreatedAt = other.CreatedAt
	}
}

// User is the author of a comment
type User struct {
	ID         string `json:"id,omitempty"`
	Username   string `json:"username,omitempty"`
	FullName   string `json:"full_name,omitempty"`
	IsVerified bool   `json:"is_verified"`
}

// Comment is the canonical normalized comment record. ID is the dedup key
// and must be unique across the whole crawl, nested replies included.
type Comment struct {
	ID         string     `json:"id"`
	Text       string     `json:"text,omitempty"`
	CreatedAt  string     `json:"created_at,omitempty"`
	LikeCount  *int       `json:"like_count,omitempty"`
	GifURL     string     `json:"gif_url,omitempty"`
	User       User       `json:"user"`
	IsAuthor   bool       `json:"is_author"`
	ReplyCount int        `json:"reply_count"`
	Replies    []*Comment `json:"replies"`
	ParentID   string     `json:"parent_id,omitempty"`
}

// PageInfo carries a connection's pagination state
type PageInfo struct {
	HasNextPage bool
	EndCursor   string
}

// Connection is one extracted paginated edge list
type Connection struct {
	Edges    []map[string]any
	PageInfo PageInfo
	Count    *int
}

// StopReason enumerates why a pagination loop terminated
type StopReason string

const (
	StopNoMorePages   StopReason = "no_more_pages"
	StopMaxReached    StopReason = "max_reached"
	StopNoPayload     StopReason = "no_payload"
	StopMissingCursor StopReason = "missing_cursor"
	StopCursorStalled StopReason = "cursor_stalled"
	StopInterrupted   StopReason = "interrupted"
)

// Result is the final output of one crawl
type Result struct {
	Post                 Post       `json:"post"`
	CommentCount         int        `json:"comment_count"`
	ExpectedCommentCount *int       `json:"expected_comment_count,omitempty"`
	FetchedAt            string     `json:"fetched_at"`
	Comments             []*Comment `json:"comments"`
	Pages                int        `json:"pages"`
	StopReason           StopReason `json:"stop_reason,omitempty"`
	OutputPath           string     `json:"output_path,omitempty"`
}
