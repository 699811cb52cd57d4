package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all RoadWatch tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("roadwatch", "1.0.0")
	client := NewAPIClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolListHotspots, h.HandleListHotspots)
	s.AddTool(ToolClassifyRisk, h.HandleClassifyRisk)
	s.AddTool(ToolListSchools, h.HandleListSchools)
	s.AddTool(ToolGetSummary, h.HandleGetSummary)
	s.AddTool(ToolGetCasualties, h.HandleGetCasualties)

	return s
}
