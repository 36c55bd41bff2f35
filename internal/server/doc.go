// Package server hosts the control-plane HTTP surface for a running
// Orchestrator: a JSON admin API over the VirtualHost/Application
// lifecycle, a chat WebSocket endpoint, and both the legacy Recorder and
// Prometheus metrics exposition, from a single chi router.
//
// The server builds a consistent middleware chain of rate limiting,
// metrics, audit, security headers, CORS, and logging so every route shares
// common protections and instrumentation. Admin mutation endpoints (apply,
// application create/delete, pull request) are throttled per client key;
// read endpoints and the chat WebSocket are not.
package server
