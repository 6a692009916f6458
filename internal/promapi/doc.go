// Package promapi talks to the metrics backend's instant-query HTTP API and
// converts raw responses into samples.
//
// Client.Query(ctx, expr) issues GET /api/v1/query?query=<expr> with a 10s
// request timeout. HTTP 500/502/503/504 and transport errors are retried up
// to 3 attempts total with exponential backoff (1s, 2s); everything else —
// 4xx statuses and bodies that fail JSON decoding — returns a
// *QueryError{Kind: NonRetryable} without consuming retry budget. A run
// through the full budget returns *QueryError{Kind: RetriesExhausted}.
//
// Parse(res) turns the decoded envelope into []Sample. Missing or empty
// result collections are an empty slice, not an error, and malformed items
// are skipped individually with a warning so one bad element never discards
// the batch.
package promapi
