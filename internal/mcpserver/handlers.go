package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/roadwatch-io/roadwatch/internal/risk"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *APIClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *APIClient) *Handlers {
	return &Handlers{client: client}
}

// severityRank orders categories for the min_category filter. Higher is worse.
var severityRank = map[risk.Category]int{
	risk.CategoryLow:      0,
	risk.CategoryModerate: 1,
	risk.CategoryMedium:   1,
	risk.CategoryHigh:     2,
	risk.CategoryVeryHigh: 3,
	risk.CategoryCritical: 4,
}

// HandleListHotspots lists the highest-casualty areas with risk categories.
func (h *Handlers) HandleListHotspots(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)
	minCategory := risk.Category(req.GetString("min_category", ""))

	raw, err := h.client.Hotspots(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list hotspots: %v", err)), nil
	}

	text, err := formatHotspots(raw, minCategory)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse hotspots: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleClassifyRisk classifies a count/score pair locally, no API call.
func (h *Handlers) HandleClassifyRisk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	count := req.GetInt("incident_count", -1)
	if count < 0 {
		return mcp.NewToolResultError("incident_count is required and must be >= 0"), nil
	}
	scale := req.GetString("scale", "area")

	var category risk.Category
	switch scale {
	case "school":
		category = risk.ClassifySchool(count)
	case "area", "":
		score := req.GetFloat("danger_score", 0)
		category = risk.ClassifyAreaScored(count, score)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown scale %q (use 'area' or 'school')", scale)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Risk category: %s\nScale: %s\nIncident count: %d", category, scale, count)), nil
}

// HandleListSchools lists schools near casualty clusters.
func (h *Handlers) HandleListSchools(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	areaCode := req.GetString("area_code", "")

	raw, err := h.client.Schools(ctx, areaCode)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list schools: %v", err)), nil
	}

	text, err := formatSchools(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse schools: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetSummary returns dataset-wide statistics.
func (h *Handlers) HandleGetSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.StatsSummary(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get summary: %v", err)), nil
	}

	text, err := formatSummary(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse summary: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetCasualties lists individual casualty records.
func (h *Handlers) HandleGetCasualties(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	areaCode := req.GetString("area_code", "")
	limit := req.GetInt("limit", 50)

	raw, err := h.client.Casualties(ctx, areaCode, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get casualties: %v", err)), nil
	}

	text, err := formatCasualties(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse casualties: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// --- Formatting helpers ---

func parseItems(raw json.RawMessage) ([]map[string]any, error) {
	// Try as direct array
	var arr []map[string]any
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr, nil
	}

	// Try as {"items": [...]}
	var wrapper struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.Items != nil {
		return wrapper.Items, nil
	}

	return nil, fmt.Errorf("unexpected response format")
}

func formatHotspots(raw json.RawMessage, minCategory risk.Category) (string, error) {
	items, err := parseItems(raw)
	if err != nil {
		return "", err
	}

	minRank := 0
	if minCategory != "" {
		r, ok := severityRank[minCategory]
		if !ok {
			return "", fmt.Errorf("unknown risk category %q", minCategory)
		}
		minRank = r
	}

	type hotspot struct {
		name     string
		code     string
		count    int
		score    float64
		category risk.Category
	}
	var kept []hotspot
	for _, m := range items {
		count, _ := getFloat(m, "incident_count", "incidentCount")
		score, _ := getFloat(m, "danger_score", "dangerScore")
		h := hotspot{
			name:     getString(m, "area_name", "areaName"),
			code:     getString(m, "area_code", "areaCode"),
			count:    int(count),
			score:    score,
			category: risk.ClassifyAreaScored(int(count), score),
		}
		if severityRank[h.category] < minRank {
			continue
		}
		kept = append(kept, h)
	}

	if len(kept) == 0 {
		return "No hotspots found matching your criteria.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d hotspot(s):\n\n", len(kept))
	for i, h := range kept {
		fmt.Fprintf(&sb, "%d. %s (%s)\n", i+1, h.name, h.code)
		fmt.Fprintf(&sb, "   Incidents: %d | Danger score: %.0f | Risk: %s\n", h.count, h.score, h.category)
	}
	return sb.String(), nil
}

func formatSchools(raw json.RawMessage) (string, error) {
	items, err := parseItems(raw)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "No schools found near casualty clusters.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d school(s):\n\n", len(items))
	for i, m := range items {
		count, _ := getFloat(m, "incident_count", "incidentCount", "nearby_casualties")
		level := risk.ClassifySchool(int(count))
		fmt.Fprintf(&sb, "%d. %s\n", i+1, getString(m, "name", "school_name"))
		fmt.Fprintf(&sb, "   Area: %s | Nearby incidents: %.0f | Risk: %s\n",
			getString(m, "area_code", "areaCode"), count, level)
	}
	return sb.String(), nil
}

func formatSummary(raw json.RawMessage) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Road casualty summary:\n")
	if v, ok := getFloat(m, "total_casualties", "totalCasualties"); ok {
		fmt.Fprintf(&sb, "  Total casualties: %.0f\n", v)
	}
	if v, ok := getFloat(m, "fatal_count", "fatalCount"); ok {
		fmt.Fprintf(&sb, "  Fatal: %.0f\n", v)
	}
	if v, ok := getFloat(m, "serious_count", "seriousCount"); ok {
		fmt.Fprintf(&sb, "  Serious: %.0f\n", v)
	}
	if v, ok := getFloat(m, "slight_count", "slightCount"); ok {
		fmt.Fprintf(&sb, "  Slight: %.0f\n", v)
	}
	if v := getString(m, "year_range", "yearRange"); v != "" {
		fmt.Fprintf(&sb, "  Years: %s\n", v)
	}
	if modes, ok := m["by_mode"].(map[string]any); ok && len(modes) > 0 {
		sb.WriteString("  By mode:\n")
		for mode, n := range modes {
			if f, ok := n.(float64); ok {
				fmt.Fprintf(&sb, "    %s: %.0f\n", mode, f)
			}
		}
	}
	return sb.String(), nil
}

func formatCasualties(raw json.RawMessage) (string, error) {
	items, err := parseItems(raw)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "No casualty records found.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d casualty record(s):\n\n", len(items))
	for i, m := range items {
		fmt.Fprintf(&sb, "%d. %s | %s | %s",
			i+1,
			getString(m, "severity"),
			getString(m, "mode", "travel_mode"),
			getString(m, "date"))
		if area := getString(m, "area_code", "areaCode"); area != "" {
			fmt.Fprintf(&sb, " | %s", area)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// getString extracts a string value from a map, trying multiple key names.
func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			if f, ok := v.(float64); ok {
				return fmt.Sprintf("%g", f)
			}
		}
	}
	return ""
}

// getFloat extracts a float64 value from a map, trying multiple key names.
func getFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := v.(float64); ok {
				return f, true
			}
		}
	}
	return 0, false
}
