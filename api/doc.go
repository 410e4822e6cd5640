// Package api holds the HTTP surface of the agentrun service.
//
// The service exposes persisted run states so an operator can inspect
// suspended runs and record approval decisions out of band:
//
//	GET  /health                       liveness
//	GET  /ready                        store and database checks
//	GET  /version                      build information
//	GET  /metrics                      Prometheus exposition
//	GET  /v1/runs?status=&limit=       list stored runs
//	GET  /v1/runs/{id}                 summary of one run
//	GET  /v1/runs/{id}/state           raw serialized state
//	POST /v1/runs/{id}/approvals       approve or reject pending calls
//	DELETE /v1/runs/{id}               drop a stored run
//
// Authentication, when enabled, is a bearer JWT signed with HS256.
package api
