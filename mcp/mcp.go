// Package mcp provides a client for the Model Context Protocol (MCP) that
// allows the assistant to access external tools provided by MCP servers.
//
// This client manages connections to MCP servers on a per-session basis,
// providing tool access based on session context and maintaining connections
// efficiently.
package mcp
