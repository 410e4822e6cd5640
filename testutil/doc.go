/*
Package testutil holds helpers shared by the agentrun test suites.

# Contents

  - Context helpers: TestContext, TestContextWithTimeout and CancelledContext
    register their cancel functions with t.Cleanup.
  - Async helpers: WaitFor polls a condition, WaitForChannel receives with a
    deadline.
  - Data helpers: MustJSON and AssertJSONEqual.

# Subpackages

  - testutil/mocks: a scripted llm.Provider with tool call and streaming
    support.
  - testutil/fixtures: ready-made agents and suspended runs for persistence,
    HTTP and CLI tests.

# Example

	ctx := testutil.TestContext(t)
	p := mocks.NewProvider().Reply("hello")
	runner := agent.NewRunner(agent.Config{Resolver: llm.Static(p), DefaultModel: "m"})
	result, err := runner.Run(ctx, bot, agent.Text("hi"))
*/
package testutil
