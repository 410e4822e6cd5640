// Package hosted builds tools that run on the model platform rather than in
// the runner: web search, file search and code interpretation.
//
// The runner advertises hosted tools to the provider with Kind "hosted" and
// their configuration; the provider executes them and returns their effects
// as part of the model response. A hosted call that reaches the runner is a
// model behavior error.
package hosted
