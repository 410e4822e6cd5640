// Package handlers implements the HTTP handlers of the agentrun service.
//
// Every JSON response uses the Response envelope. Errors carry a
// types.Error code, and agent error kinds map onto HTTP statuses through
// agent.ToTypesError.
package handlers
