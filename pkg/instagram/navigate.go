package instagram

import "strings"

// deepGet walks a nested payload by string keys and integer indexes,
// returning nil when any step is missing.
func deepGet(data any, path ...any) any {
	cur := data
	for _, key := range path {
		switch k := key.(type) {
		case string:
			m, ok := cur.(map[string]any)
			if !ok {
				return nil
			}
			v, ok := m[k]
			if !ok {
				return nil
			}
			cur = v
		case int:
			s, ok := cur.([]any)
			if !ok || k < 0 || k >= len(s) {
				return nil
			}
			cur = s[k]
		default:
			return nil
		}
	}
	return cur
}

// PickFirst returns the first non-nil value any of the paths resolves to
func PickFirst(data any, paths [][]any) any {
	for _, path := range paths {
		if v := deepGet(data, path...); v != nil {
			return v
		}
	}
	return nil
}

// PickFirstString resolves paths like PickFirst and stringifies the hit
func PickFirstString(data any, paths [][]any) string {
	return asString(PickFirst(data, paths))
}

// lookup resolves one candidate location for a connection inside a payload
type lookup func(payload map[string]any) map[string]any

// pathLookup matches a fixed key path
func pathLookup(path ...any) lookup {
	return func(payload map[string]any) map[string]any {
		m, _ := deepGet(payload, path...).(map[string]any)
		return m
	}
}

// suffixLookup scans the top-level data mapping's direct children and matches
// the first whose key name ends with one of the suffixes. This is what keeps
// extraction working when the API renames its connection keys.
func suffixLookup(suffixes ...string) lookup {
	return func(payload map[string]any) map[string]any {
		data, ok := payload["data"].(map[string]any)
		if !ok {
			return nil
		}
		for key, value := range data {
			child, ok := value.(map[string]any)
			if !ok {
				continue
			}
			for _, suffix := range suffixes {
				if strings.HasSuffix(key, suffix) {
					return child
				}
			}
		}
		return nil
	}
}

// commentLookups covers the historical response shapes for the top-level
// comments connection, most recent first.
var commentLookups = []lookup{
	pathLookup("data", "xdt_api__v1__media__media_id__comments__connection"),
	pathLookup("data", "xdt_shortcode_media", "edge_media_to_parent_comment"),
	pathLookup("data", "shortcode_media", "edge_media_to_parent_comment"),
	pathLookup("data", "xdt_shortcode_media", "edge_media_to_comment"),
	pathLookup("data", "shortcode_media", "edge_media_to_comment"),
	suffixLookup("__comments__connection"),
}

// replyLookups covers the reply connection shapes; some responses collapse
// replies into a comments-shaped connection, so the comments lookups run as
// the final fallback.
var replyLookups = []lookup{
	pathLookup("data", "comment", "edge_threaded_comments"),
	pathLookup("data", "comment", "edge_media_to_parent_comment"),
	pathLookup("data", "comment", "edge_media_to_comment"),
	suffixLookup("__replies__connection", "__comments__replies__connection"),
	suffixLookup("__child_comments__connection"),
}

// ExtractCommentConnection locates the top-level comments connection in a
// payload. Never fails: an unrecognized payload yields an empty connection.
func ExtractCommentConnection(payload map[string]any) Connection {
	return extractConnection(payload, commentLookups)
}

// ExtractReplyConnection locates the per-comment replies connection,
// falling back to the comments shapes when no reply-specific one matches.
func ExtractReplyConnection(payload map[string]any) Connection {
	for _, l := range replyLookups {
		if conn := l(payload); conn != nil {
			return parseConnection(conn)
		}
	}
	return ExtractCommentConnection(payload)
}

func extractConnection(payload map[string]any, lookups []lookup) Connection {
	for _, l := range lookups {
		if conn := l(payload); conn != nil {
			return parseConnection(conn)
		}
	}
	return Connection{}
}

func parseConnection(conn map[string]any) Connection {
	out := Connection{}
	if edges, ok := conn["edges"].([]any); ok {
		out.Edges = make([]map[string]any, 0, len(edges))
		for _, edge := range edges {
			if m, ok := edge.(map[string]any); ok {
				out.Edges = append(out.Edges, m)
			}
		}
	}
	out.PageInfo = parsePageInfo(conn["page_info"])
	if count, ok := asInt(conn["count"]); ok {
		out.Count = &count
	}
	return out
}

func parsePageInfo(v any) PageInfo {
	m, ok := v.(map[string]any)
	if !ok {
		return PageInfo{}
	}
	info := PageInfo{}
	if b, ok := m["has_next_page"].(bool); ok {
		info.HasNextPage = b
	}
	info.EndCursor = asString(m["end_cursor"])
	return info
}
