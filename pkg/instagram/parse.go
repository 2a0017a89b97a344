package instagram

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ParseTimestamp normalizes raw timestamp values. Numbers are treated as Unix
// seconds and rendered as ISO-8601 UTC with a trailing Z; strings pass
// through unchanged; anything else stays absent.
func ParseTimestamp(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return ""
		}
		return time.Unix(int64(f), 0).UTC().Format("2006-01-02T15:04:05Z")
	case float64:
		return time.Unix(int64(v), 0).UTC().Format("2006-01-02T15:04:05Z")
	case int:
		return time.Unix(int64(v), 0).UTC().Format("2006-01-02T15:04:05Z")
	case int64:
		return time.Unix(v, 0).UTC().Format("2006-01-02T15:04:05Z")
	default:
		return ""
	}
}

// ParseComment normalizes one raw comment or reply node into a Comment.
// Field names vary between response generations, so each field is resolved
// through an ordered list of candidates. Replies start empty; the pagination
// loop fills them in.
func ParseComment(node map[string]any, postOwnerID string) *Comment {
	c := &Comment{
		ID:      asString(firstOf(node, "id", "pk")),
		Text:    asString(firstOf(node, "text", "comment_text")),
		GifURL:  extractGifURL(node),
		Replies: []*Comment{},
	}

	c.CreatedAt = ParseTimestamp(firstOf(node, "created_at", "created_at_utc", "created_at_time"))

	likeRaw := firstOf(node, "like_count", "comment_like_count")
	if likeRaw == nil {
		likeRaw = deepGet(node, "edge_liked_by", "count")
	}
	if n, ok := asInt(likeRaw); ok {
		c.LikeCount = &n
	}

	// asString already normalized both IDs, so numeric and string variants
	// compare as plain strings
	c.User = parseUser(node)
	c.IsAuthor = postOwnerID != "" && c.User.ID != "" && c.User.ID == postOwnerID

	if n, ok := asInt(deepGet(node, "edge_threaded_comments", "count")); ok {
		c.ReplyCount = n
	} else if n, ok := asInt(node["child_comment_count"]); ok {
		c.ReplyCount = n
	}

	return c
}

// parseUser resolves the comment author from either an owner or user object
func parseUser(node map[string]any) User {
	raw, ok := node["owner"].(map[string]any)
	if !ok {
		raw, _ = node["user"].(map[string]any)
	}
	if raw == nil {
		return User{}
	}
	u := User{
		ID:       asString(firstOf(raw, "id", "pk")),
		Username: asString(raw["username"]),
		FullName: asString(raw["full_name"]),
	}
	if b, ok := raw["is_verified"].(bool); ok {
		u.IsVerified = b
	}
	return u
}

// InlineReplies returns reply edges and page info embedded directly in a
// comment node's threaded-comments connection.
func InlineReplies(node map[string]any) ([]map[string]any, PageInfo) {
	conn, ok := node["edge_threaded_comments"].(map[string]any)
	if !ok {
		return nil, PageInfo{}
	}
	parsed := parseConnection(conn)
	return parsed.Edges, parsed.PageInfo
}

// gifQualityKeys is the preferred order of rendition keys inside a GIF image map
var gifQualityKeys = []string{"original", "fixed_width", "fixed_height", "downsized", "preview_gif"}

// extractGifURL pulls a playable URL out of a node's GIF media info,
// preferring a direct URL, then first-party proxied renditions, then the
// upstream image map.
func extractGifURL(node map[string]any) string {
	info, ok := node["giphy_media_info"].(map[string]any)
	if !ok {
		return ""
	}

	if direct, ok := info["url"].(string); ok && direct != "" {
		return direct
	}

	if url := pickGifURL(info["first_party_cdn_proxied_images"]); url != "" {
		return url
	}
	return pickGifURL(info["images"])
}

func pickGifURL(v any) string {
	images, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range gifQualityKeys {
		if url := gifEntryURL(images[key]); url != "" {
			return url
		}
	}
	for _, entry := range images {
		if url := gifEntryURL(entry); url != "" {
			return url
		}
	}
	return ""
}

func gifEntryURL(v any) string {
	entry, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	if url := asString(entry["url"]); url != "" {
		return url
	}
	return asString(entry["mp4"])
}

// firstOf returns the first present, non-nil value among the named keys
func firstOf(node map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := node[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		// The client decodes with UseNumber, so IDs keep every digit
		return t.String()
	case float64:
		// IDs must not pick up an exponent
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n), true
		}
		if f, err := t.Float64(); err == nil {
			return int(f), true
		}
	case float64:
		return int(t), true
	case int:
		return t, true
	case int64:
		return int(t), true
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n, true
		}
	}
	return 0, false
}
