// Package mcp implements the Model Context Protocol server for external tool access.
//
// # Overview
//
// MCP (Model Context Protocol) is a standard for AI tool integration. This package
// provides an MCP-compatible HTTP server that exposes the gateway's product tools
// to external AI clients (like Claude Desktop, other LLMs, or custom applications).
//
// # Protocol
//
// The server implements the Streamable HTTP transport: JSON-RPC 2.0 over POST to
// a single /mcp endpoint, with sessions tracked via the Mcp-Session-Id header.
// Server-initiated SSE streams are not supported.
//
// # Authentication
//
// The server itself performs no authentication. It must be mounted behind the
// bearer-token middleware from the auth package, which verifies the token
// against the authorization server and places the resulting principal in the
// request context. Sessions are bound to the subject that created them.
//
// # Tool Discovery
//
// Clients call tools/list to discover available tools:
//
//	{
//	  "jsonrpc": "2.0",
//	  "method": "tools/list",
//	  "id": 1
//	}
//
// Response includes tool schemas in JSON Schema format.
//
// # Tool Execution
//
// Clients call tools/call to execute a tool:
//
//	{
//	  "jsonrpc": "2.0",
//	  "method": "tools/call",
//	  "params": {
//	    "name": "create_opportunity",
//	    "arguments": {"title": "Churn in onboarding"}
//	  },
//	  "id": 2
//	}
//
// Tool-level failures, including the workspace selection prompt, come back as
// isError results with text content; JSON-RPC errors are reserved for protocol
// problems such as an unknown tool name.
//
// # Integration with Claude Desktop
//
// Add to Claude Desktop's MCP configuration:
//
//	{
//	  "mcpServers": {
//	    "compass": {
//	      "url": "http://localhost:8585/mcp",
//	      "authorization": "Bearer <token>"
//	    }
//	  }
//	}
package mcp
