/*
Package metrics exports Prometheus metrics for agent runs and the approval
service.

# Core types

  - Collector: owns the counter, histogram and gauge vectors, registered
    on a caller-supplied prometheus.Registerer.
  - RunObserver: an agent.RunHooks implementation feeding the Collector.
    Attach it with agent.WithHooks(collector.Observer()).

# Metric families

  - runs: total by final status, run duration.
  - model calls: total and duration by model, tokens by model and type.
  - tools and handoffs: calls by agent and tool, handoffs by source and
    target.
  - HTTP: requests by method, route and status class, request duration.
  - store: operation duration and outcome by backend.
*/
package metrics
