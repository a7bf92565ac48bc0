// Package streamload implements the synchronous HTTP bulk-ingestion write
// path: coordinator discovery by redirect probing, batch composition and
// interpretation of the load response.
//
// Structure:
//
//	client.go     - HTTP transport with rate limiting, redirects disabled
//	auth.go       - Authorization header strategies
//	loader.go     - Loader.Load, discovery, composition, response taxonomy
//	batch.go      - Record/batch helpers, column derivation, labels
//	hooks.go      - Journal and Spill extension points
package streamload
