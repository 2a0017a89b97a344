package crawler

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"igcomments/pkg/checkpoint"
	"igcomments/pkg/config"
	"igcomments/pkg/instagram"
	"igcomments/pkg/logger"
	"igcomments/pkg/retry"
	"igcomments/pkg/storage"
	"igcomments/pkg/template"
)

// executor is the part of the API client the crawler depends on
type executor interface {
	Execute(ctx context.Context, endpoint *config.Endpoint, variables map[string]any) map[string]any
	GetText(ctx context.Context, target string) (string, error)
}

// Crawler walks the comment tree of a single post page by page, deduplicates
// by comment ID, and checkpoints after every successful page so an
// interrupted run can resume where it left off.
type Crawler struct {
	cfg         *config.Config
	client      executor
	checkpoints *checkpoint.Manager
	store       *storage.Manager
	logger      logger.Logger
}

// New creates a crawler
func New(cfg *config.Config, client executor, checkpoints *checkpoint.Manager, store *storage.Manager, log logger.Logger) *Crawler {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Crawler{
		cfg:         cfg,
		client:      client,
		checkpoints: checkpoints,
		store:       store,
		logger:      log.WithField("component", "crawler"),
	}
}

// Crawl fetches every comment on the post at postURL and returns the result,
// which is also written to the data directory. The only fatal precondition is
// an unrecognizable post URL; every runtime failure downgrades to a stop
// reason so partial progress is always saved.
func (c *Crawler) Crawl(ctx context.Context, postURL string) (*instagram.Result, error) {
	shortcode := instagram.ExtractShortcode(postURL)
	if shortcode == "" {
		return nil, fmt.Errorf("invalid Instagram post URL: %s", postURL)
	}
	c.logger.InfoWithFields("Starting crawl", map[string]interface{}{
		"url":       postURL,
		"shortcode": shortcode,
	})

	maxComments := c.cfg.Crawl.MaxComments

	var state *checkpoint.Checkpoint
	if c.cfg.Crawl.ResumeByDefault {
		state, _ = c.checkpoints.Load(shortcode)
		switch {
		case state != nil && state.Complete:
			c.logger.Info("Checkpoint is marked complete, starting fresh")
			state = nil
		case state != nil:
			c.logger.InfoWithFields("Resuming from checkpoint", map[string]interface{}{
				"pages":    state.Pages,
				"comments": state.CommentCount,
			})
		default:
			c.logger.Debug("No checkpoint found, starting fresh")
		}
	}

	var post instagram.Post
	var mediaID string
	if state != nil {
		post = state.Post
		mediaID = post.MediaID
		if mediaID == "" {
			mediaID = instagram.ShortcodeToMediaID(shortcode)
		}
	} else {
		mediaID, post = c.resolveMediaID(ctx, shortcode)
		post.Merge(instagram.Post{URL: postURL, Shortcode: shortcode, MediaID: mediaID})
	}
	c.logger.InfoWithFields("Resolved media", map[string]interface{}{"media_id": mediaID})

	var (
		comments      []*instagram.Comment
		seen          = map[string]struct{}{}
		cursor        string
		lastCursor    string
		pages         int
		prevCursor    string
		backtrackUsed bool
		expectedCount *int
		stopReason    instagram.StopReason
	)

	if state != nil {
		comments = state.Comments
		for _, id := range state.SeenCommentIDs {
			seen[id] = struct{}{}
		}
		cursor = state.Cursor
		lastCursor = state.LastCursor
		pages = state.Pages
		expectedCount = state.ExpectedCommentCount
	}

	started := time.Now()

pageLoop:
	for {
		if ctx.Err() != nil {
			stopReason = instagram.StopInterrupted
			c.logger.Warn("Stop: interrupted")
			break
		}

		pageStart := time.Now()
		currentCursor := cursor
		payload := c.fetchPageWithRetry(ctx, shortcode, mediaID, currentCursor)

		if payload == nil {
			if ctx.Err() != nil {
				stopReason = instagram.StopInterrupted
				c.logger.Warn("Stop: interrupted")
				break
			}
			if prevCursor != "" && prevCursor != currentCursor && !backtrackUsed {
				c.logger.Warn("Page fetch failed, backtracking to previous cursor")
				cursor = prevCursor
				backtrackUsed = true
				continue
			}
			stopReason = instagram.StopNoPayload
			c.logger.Warn("Stop: no payload")
			break
		}

		backtrackUsed = false
		pages++

		conn := instagram.ExtractCommentConnection(payload)
		if expectedCount == nil {
			expectedCount = conn.Count
		}
		c.logger.InfoWithFields("Fetched comments page", map[string]interface{}{
			"page":     pages,
			"edges":    len(conn.Edges),
			"total":    len(seen),
			"duration": time.Since(pageStart).String(),
		})

		for _, edge := range conn.Edges {
			node, ok := edge["node"].(map[string]any)
			if !ok {
				continue
			}

			parsed := instagram.ParseComment(node, post.OwnerID)
			if _, dup := seen[parsed.ID]; dup {
				continue
			}
			seen[parsed.ID] = struct{}{}

			c.collectReplies(ctx, parsed, node, mediaID, post.OwnerID, seen)

			comments = append(comments, parsed)

			if maxComments > 0 && len(seen) >= maxComments {
				stopReason = instagram.StopMaxReached
				c.logger.Info("Stop: max comments reached")
				break pageLoop
			}
		}

		if !conn.PageInfo.HasNextPage {
			stopReason = instagram.StopNoMorePages
			c.logger.Info("Stop: no more pages")
			break
		}
		prevCursor = currentCursor
		cursor = conn.PageInfo.EndCursor
		if cursor == "" {
			stopReason = instagram.StopMissingCursor
			c.logger.Warn("Stop: missing cursor")
			break
		}
		if cursor == lastCursor {
			stopReason = instagram.StopCursorStalled
			c.logger.Warn("Stop: cursor stalled")
			break
		}
		lastCursor = cursor

		c.saveCheckpoint(shortcode, post, comments, seen, cursor, lastCursor, pages, expectedCount, stopReason)
	}

	now := time.Now().UTC()
	result := &instagram.Result{
		Post:                 post,
		CommentCount:         len(comments),
		ExpectedCommentCount: expectedCount,
		FetchedAt:            now.Format("2006-01-02T15:04:05Z"),
		Comments:             comments,
		Pages:                pages,
		StopReason:           stopReason,
	}

	outputPath, err := c.store.SaveResult(shortcode, result)
	if err != nil {
		return result, fmt.Errorf("failed to save result: %w", err)
	}
	result.OutputPath = outputPath
	c.logger.InfoWithFields("Saved output", map[string]interface{}{
		"path":     outputPath,
		"comments": len(comments),
		"duration": time.Since(started).String(),
	})

	if stopReason == instagram.StopNoMorePages {
		if err := c.checkpoints.Clear(shortcode); err != nil {
			c.logger.WithError(err).Warn("Failed to clear checkpoint")
		}
	} else {
		c.saveCheckpoint(shortcode, post, comments, seen, cursor, lastCursor, pages, expectedCount, stopReason)
	}

	return result, nil
}

// errEmptyPage marks a page fetch that yielded no payload, which the retry
// predicate treats as transient.
var errEmptyPage = errors.New("page fetch returned no payload")

// fetchPageWithRetry fetches one comments page, retrying whole-page failures
// with a delay that grows per attempt.
func (c *Crawler) fetchPageWithRetry(ctx context.Context, shortcode, mediaID, cursor string) map[string]any {
	var payload map[string]any
	err := retry.Do(ctx, func() error {
		if payload = c.fetchCommentsPage(ctx, shortcode, mediaID, cursor); payload == nil {
			return errEmptyPage
		}
		return nil
	}, &retry.Config{
		MaxAttempts: c.cfg.Crawl.PageRetryAttempts + 1,
		Backoff:     &retry.LinearBackoff{BaseDelay: c.cfg.Crawl.PageRetryDelay},
		Logger:      c.logger,
	})
	if err != nil {
		return nil
	}
	return payload
}

// collectReplies gathers a comment's replies: first the replies Instagram
// inlines in the comment node itself, then paginated fetches when the reply
// count says more exist. Replies without an ID are skipped rather than
// deduplicated.
func (c *Crawler) collectReplies(ctx context.Context, parent *instagram.Comment, node map[string]any, mediaID, ownerID string, seen map[string]struct{}) {
	inline, inlinePage := instagram.InlineReplies(node)
	for _, replyEdge := range inline {
		replyNode, ok := replyEdge["node"].(map[string]any)
		if !ok {
			continue
		}
		reply := instagram.ParseComment(replyNode, ownerID)
		reply.ParentID = parent.ID
		if reply.ID == "" {
			continue
		}
		if _, dup := seen[reply.ID]; dup {
			continue
		}
		seen[reply.ID] = struct{}{}
		parent.Replies = append(parent.Replies, reply)
	}

	endpoint := c.cfg.Endpoints.CommentReplies
	enabled := c.cfg.Crawl.FetchReplies && endpoint.Configured()
	if !enabled || parent.ID == "" {
		return
	}
	if parent.ReplyCount <= len(parent.Replies) && !inlinePage.HasNextPage {
		return
	}

	var replyCursor string
	if inlinePage.HasNextPage {
		replyCursor = inlinePage.EndCursor
	}
	var lastReplyCursor string
	for {
		payload := c.fetchCommentReplies(ctx, parent.ID, replyCursor, mediaID)
		if payload == nil {
			return
		}
		conn := instagram.ExtractReplyConnection(payload)
		for _, replyEdge := range conn.Edges {
			replyNode, ok := replyEdge["node"].(map[string]any)
			if !ok {
				continue
			}
			reply := instagram.ParseComment(replyNode, ownerID)
			reply.ParentID = parent.ID
			if reply.ID == "" {
				continue
			}
			if _, dup := seen[reply.ID]; dup {
				continue
			}
			seen[reply.ID] = struct{}{}
			parent.Replies = append(parent.Replies, reply)
		}
		if !conn.PageInfo.HasNextPage {
			return
		}
		replyCursor = conn.PageInfo.EndCursor
		if replyCursor == "" || replyCursor == lastReplyCursor {
			return
		}
		lastReplyCursor = replyCursor
	}
}

// resolveMediaID determines the post's numeric media ID. The configured
// lookup endpoint also yields owner, caption and creation time; without it
// the ID comes from decoding the shortcode, then from scraping the post HTML.
func (c *Crawler) resolveMediaID(ctx context.Context, shortcode string) (string, instagram.Post) {
	baseMediaID := instagram.ShortcodeToMediaID(shortcode)
	endpoint := c.cfg.Endpoints.PostByShortcode
	if !endpoint.Configured() {
		c.logger.Warn("post_by_shortcode endpoint not configured, falling back to shortcode decode")
		mediaID := baseMediaID
		if mediaID == "" {
			mediaID = c.resolveMediaIDFromHTML(ctx, shortcode)
		}
		return mediaID, instagram.Post{MediaID: mediaID}
	}

	variables := template.RenderVariables(endpoint.Variables, map[string]any{
		"shortcode":  shortcode,
		"media_id":   nil,
		"cursor":     nil,
		"comment_id": nil,
	})
	payload := c.client.Execute(ctx, endpoint, variables)
	if payload == nil {
		c.logger.Warn("post_by_shortcode request failed")
		return "", instagram.Post{}
	}

	mediaID := instagram.PickFirstString(payload, [][]any{
		{"data", "xdt_shortcode_media", "id"},
		{"data", "shortcode_media", "id"},
		{"data", "xdt_shortcode_media", "pk"},
		{"data", "shortcode_media", "pk"},
		{"data", "media", "id"},
		{"data", "media", "pk"},
	})
	post := instagram.Post{
		OwnerID: instagram.PickFirstString(payload, [][]any{
			{"data", "xdt_shortcode_media", "owner", "id"},
			{"data", "shortcode_media", "owner", "id"},
		}),
		Caption: instagram.PickFirstString(payload, [][]any{
			{"data", "xdt_shortcode_media", "edge_media_to_caption", "edges", 0, "node", "text"},
			{"data", "shortcode_media", "edge_media_to_caption", "edges", 0, "node", "text"},
		}),
		CreatedAt: instagram.ParseTimestamp(instagram.PickFirst(payload, [][]any{
			{"data", "xdt_shortcode_media", "taken_at_timestamp"},
			{"data", "shortcode_media", "taken_at_timestamp"},
		})),
	}

	if mediaID == "" {
		mediaID = baseMediaID
	}
	post.MediaID = mediaID
	return mediaID, post
}

// resolveMediaIDFromHTML scrapes the public post page for the media ID
func (c *Crawler) resolveMediaIDFromHTML(ctx context.Context, shortcode string) string {
	body, err := c.client.GetText(ctx, "https://www.instagram.com/p/"+shortcode+"/")
	if err != nil {
		return ""
	}
	patterns := []string{
		`"media_id":"(\d+)"`,
		`"id":"(\d+)","shortcode":"` + regexp.QuoteMeta(shortcode) + `"`,
		`"pk":"(\d+)","shortcode":"` + regexp.QuoteMeta(shortcode) + `"`,
	}
	for _, pattern := range patterns {
		if m := regexp.MustCompile(pattern).FindStringSubmatch(body); m != nil {
			return m[1]
		}
	}
	return ""
}

// fetchCommentsPage fetches one page of top-level comments
func (c *Crawler) fetchCommentsPage(ctx context.Context, shortcode, mediaID, cursor string) map[string]any {
	endpoint := c.cfg.Endpoints.Comments
	if !endpoint.Configured() {
		c.logger.Error("Comments endpoint not configured")
		return nil
	}

	variables := template.RenderVariables(endpoint.Variables, map[string]any{
		"shortcode":  shortcode,
		"media_id":   orNil(mediaID),
		"cursor":     orNil(cursor),
		"comment_id": nil,
	})
	if _, ok := variables["first"]; ok && c.cfg.Crawl.CommentsPageSize > 0 {
		variables["first"] = c.cfg.Crawl.CommentsPageSize
	}
	return c.client.Execute(ctx, endpoint, variables)
}

// fetchCommentReplies fetches one page of replies under a comment
func (c *Crawler) fetchCommentReplies(ctx context.Context, commentID, cursor, mediaID string) map[string]any {
	endpoint := c.cfg.Endpoints.CommentReplies
	if !endpoint.Configured() {
		return nil
	}

	variables := template.RenderVariables(endpoint.Variables, map[string]any{
		"shortcode":  nil,
		"media_id":   orNil(mediaID),
		"cursor":     orNil(cursor),
		"comment_id": commentID,
	})
	if _, ok := variables["first"]; ok && c.cfg.Crawl.RepliesPageSize > 0 {
		variables["first"] = c.cfg.Crawl.RepliesPageSize
	}
	return c.client.Execute(ctx, endpoint, variables)
}

func (c *Crawler) saveCheckpoint(shortcode string, post instagram.Post, comments []*instagram.Comment, seen map[string]struct{}, cursor, lastCursor string, pages int, expectedCount *int, stopReason instagram.StopReason) {
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	cp := &checkpoint.Checkpoint{
		Post:                 post,
		CommentCount:         len(comments),
		Comments:             comments,
		SeenCommentIDs:       ids,
		Cursor:               cursor,
		LastCursor:           lastCursor,
		Pages:                pages,
		ExpectedCommentCount: expectedCount,
		StopReason:           stopReason,
		Complete:             false,
	}
	if err := c.checkpoints.Save(shortcode, cp); err != nil {
		c.logger.WithError(err).Warn("Failed to save checkpoint")
	}
}

// orNil maps the empty string to a dropped template binding
func orNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
