/*
Package main is the agentrun service and operator CLI.

# Commands

  - serve: HTTP service over the run state store (listing, inspection,
    approvals, health and Prometheus metrics)
  - runs: list stored runs
  - inspect: print the digest of a stored run or a state file
  - approve, reject: record decisions for pending tool calls
  - health: probe a running service
  - version: print build information

# Middleware

Requests pass through Recovery, RequestID, SecurityHeaders, RequestLogger,
OTelTracing, RateLimiter (per client IP), JWTAuth (bearer HS256) and
Metrics, in that order.

Version, BuildTime and GitCommit are set through ldflags.
*/
package main
