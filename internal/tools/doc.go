// Package tools defines the gateway's callable tools and the dispatch
// shell that runs each invocation inside a resolved tenant context. A tool
// body never executes without one unless it is explicitly registered as
// tenant-free (the workspace selection tools themselves).
package tools
