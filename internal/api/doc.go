// Package api hosts the HTTP server, middleware, and handlers for the extractor.
// Routes:
//   - POST /extract turns newsletter HTML (or plain text) into articles and links,
//     optionally fetching each linked article.
//   - GET /health for liveness probes.
//   - GET /metrics for Prometheus scraping.
package api
