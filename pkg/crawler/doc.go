// Package crawler implements the comment pagination engine.
//
// A crawl walks the comment connection of one post page by page, following
// end cursors until Instagram reports no further pages. Each top-level
// comment may carry inline replies and a reply connection of its own, which
// the crawler drains before moving on.
//
// Every run ends with a stop reason describing why pagination halted:
//   - no_more_pages: the comment list was exhausted (the only "complete" end)
//   - max_reached: the configured comment cap was hit
//   - no_payload: a page could not be fetched even after retries
//   - missing_cursor / cursor_stalled: the API returned an unusable cursor
//   - interrupted: the context was cancelled, e.g. by Ctrl-C
//
// Progress is checkpointed after every successful page. A later run for the
// same post picks up the checkpoint and continues from the stored cursor
// with the already-seen comment IDs intact, so no comment is emitted twice.
// The checkpoint is removed only when a run ends with no_more_pages.
package crawler
