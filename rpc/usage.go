package rpc

import (
	"context"
	"time"

	gomcp "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/google/uuid"
)

// track wraps a tool handler so every invocation records a tool_usage row
// before returning the handler's result. Recording failures never affect
// the tool call itself; s.persist may be nil, in which case track is a
// passthrough.
func (s *Server) track(tool string, h mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		if s.persist != nil {
			sessionID := req.GetString("session_id", "")
			_ = s.persist.RecordToolUsage(ctx, uuid.NewString(), tool, sessionID, time.Now())
		}
		return h(ctx, req)
	}
}
