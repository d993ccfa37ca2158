// Package server exposes the trial coordinator over HTTP.
//
// It provides a base HTTP server with health, readiness and drain
// endpoints, and a TrialHandler registering the public trial API plus
// basic-auth protected admin routes.
package server
