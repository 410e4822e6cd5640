// Package telemetry bootstraps the OpenTelemetry SDK for agentrun. With
// telemetry disabled it installs nothing and the runner traces to the noop
// global provider.
package telemetry
