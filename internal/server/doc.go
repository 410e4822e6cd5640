// Package server runs the approval service HTTP server with graceful
// shutdown.
package server
