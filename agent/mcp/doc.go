// Package mcp connects agents to Model Context Protocol servers.
//
// A Server is an agent.ToolSource: attach it to Agent.ToolSources and the
// runner lists its tools at the start of every turn. Servers must be
// connected before a run and closed afterwards:
//
//	srv, err := mcp.New(mcp.Config{Name: "fs", Command: "mcp-server-filesystem", Args: []string{"/data"}, CacheTools: true})
//	if err != nil { ... }
//	if err := srv.Connect(ctx); err != nil { ... }
//	defer srv.Close()
//	a.ToolSources = append(a.ToolSources, srv)
package mcp
