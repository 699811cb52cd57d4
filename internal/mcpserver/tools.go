package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the RoadWatch MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolListHotspots = mcp.NewTool("list_hotspots",
	mcp.WithDescription(
		"List the UK areas with the most road casualties. "+
			"Returns area names, incident counts, danger scores, and a risk category "+
			"(critical/very_high/high/moderate/low). Use this to find dangerous areas."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of areas to return (default 20)")),
	mcp.WithString("min_category",
		mcp.Description("Only return areas at or above this risk category"),
		mcp.Enum("critical", "very_high", "high", "moderate", "low")),
)

var ToolClassifyRisk = mcp.NewTool("classify_risk",
	mcp.WithDescription(
		"Classify an incident count (and optional danger score) into a risk category "+
			"without calling the analytics API. Use the 'area' scale for geographic areas "+
			"and the 'school' scale for schools."),
	mcp.WithNumber("incident_count",
		mcp.Required(),
		mcp.Description("Number of casualties or incidents")),
	mcp.WithNumber("danger_score",
		mcp.Description("Danger score 0-100 (area scale only). Either a high count or a high score can raise the category.")),
	mcp.WithString("scale",
		mcp.Description("Threshold scale to use: 'area' (default) or 'school'"),
		mcp.Enum("area", "school")),
)

var ToolListSchools = mcp.NewTool("list_schools",
	mcp.WithDescription(
		"List schools near road-casualty clusters, with nearby incident counts and a "+
			"risk level (high/medium/low). Optionally filter to a single ONS area code."),
	mcp.WithString("area_code",
		mcp.Description("ONS area code to filter by (e.g. 'E09000007' for Camden)")),
)

var ToolGetSummary = mcp.NewTool("get_summary",
	mcp.WithDescription(
		"Get dataset-wide road casualty statistics: total casualties, fatal/serious/slight "+
			"breakdown, the year range covered, and counts by travel mode."),
)

var ToolGetCasualties = mcp.NewTool("get_casualties",
	mcp.WithDescription(
		"List individual road casualty records with severity, travel mode, and date. "+
			"Filter by ONS area code to inspect one area in detail."),
	mcp.WithString("area_code",
		mcp.Description("ONS area code to filter by (e.g. 'E09000007')")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of records to return (default 50)")),
)
