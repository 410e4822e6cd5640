/*
Package llm defines the model provider contract used by the agent runner.

A Provider performs one exchange (Completion) or its incremental variant
(Stream). The runner never talks to a backend directly: it asks a Resolver
for the provider serving a model identifier. Registry is the default
Resolver.

ModelSettings carries tuning parameters as optional fields so that layers
can be merged with MergeSettings; the runner merges provider defaults, agent
settings and run-level overrides in that order.
*/
package llm
