package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/planning-poker/poker/engine"
	"github.com/wricardo/planning-poker/poker/session"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Planning Poker",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Planning Poker - MCP Interface

This is a read-only client that proxies requests to the planning poker REST API.

Teams estimate work in rooms identified by a six digit code. Each participant
casts a vote from the room's scale; votes stay hidden until someone reveals them.

AVAILABLE TOOLS:
- list_rooms: List live rooms with participant and vote counts
- get_room: Show one room's participants, who has voted, and revealed values
- list_scales: List the voting scales and their cards

Vote values show as "hidden" until the round is revealed.`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List all live planning poker rooms",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"sort": map[string]interface{}{
					"type":        "string",
					"description": "Sort by 'activity' (default) or 'created'",
					"enum":        []string{"activity", "created"},
				},
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of rooms to return (optional)",
				},
			},
		},
	}, c.handleListRooms)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_room",
		Description: "Get the current state of a room",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"code": map[string]interface{}{
					"type":        "string",
					"description": "Six digit room code",
				},
			},
			Required: []string{"code"},
		},
	}, c.handleGetRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_scales",
		Description: "List the available voting scales",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListScales)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// arguments returns the tool call arguments, or an empty map.
func arguments(request mcp.CallToolRequest) map[string]interface{} {
	if args, ok := request.Params.Arguments.(map[string]interface{}); ok {
		return args
	}
	return map[string]interface{}{}
}

// Tool handlers

func (c *Client) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	query := url.Values{}
	if sortBy, _ := args["sort"].(string); sortBy != "" {
		query.Set("sort", sortBy)
	}
	if limit, ok := args["limit"].(float64); ok && limit > 0 {
		query.Set("limit", fmt.Sprintf("%d", int(limit)))
	}

	path := "/api/rooms"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var response struct {
		Count int             `json:"count"`
		Total int             `json:"total"`
		Rooms []*session.Info `json:"rooms"`
	}
	if err := c.apiCall(ctx, path, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRoomList(response.Rooms, response.Total)), nil
}

func (c *Client) handleGetRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, _ := arguments(request)["code"].(string)
	code = strings.TrimSpace(code)
	if code == "" {
		return mcp.NewToolResultError("code is required"), nil
	}

	var room engine.RoomView
	if err := c.apiCall(ctx, "/api/rooms/"+url.PathEscape(code), &room); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRoom(&room)), nil
}

func (c *Client) handleListScales(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var scales []engine.ScaleInfo
	if err := c.apiCall(ctx, "/api/scales", &scales); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Voting Scales:\n\n")
	for i, s := range scales {
		marker := ""
		if i == 0 {
			marker = " (default)"
		}
		fmt.Fprintf(&b, "- %s%s: %s\n", s.Name, marker, strings.Join(s.Values, " "))
	}
	return mcp.NewToolResultText(b.String()), nil
}

// Formatting

func formatRoomList(rooms []*session.Info, total int) string {
	if len(rooms) == 0 {
		return "No live rooms.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Live Rooms (%d of %d):\n\n", len(rooms), total)
	for _, r := range rooms {
		state := "voting"
		if r.Revealed {
			state = "revealed"
		}
		fmt.Fprintf(&b, "- %s: %d participants, %d votes, %s, %s (active %s)\n",
			r.Code, r.Participants, r.Votes, r.Scale, state, r.LastActivityAt.Format("15:04:05"))
	}
	return b.String()
}

func formatRoom(room *engine.RoomView) string {
	var b strings.Builder

	state := "Voting in progress"
	if room.Revealed {
		state = "Votes revealed"
	}
	fmt.Fprintf(&b, "Room %s\n", room.Code)
	fmt.Fprintf(&b, "Scale: %s\n", room.Scale)
	fmt.Fprintf(&b, "Status: %s\n", state)
	fmt.Fprintf(&b, "Votes: %d/%d\n\n", len(room.Votes), len(room.Participants))

	b.WriteString("Participants:\n")
	for _, p := range room.Participants {
		vote, voted := room.Votes[p.ID]
		switch {
		case !voted:
			vote = "not voted"
		case vote == engine.HiddenVote:
			vote = "voted"
		}
		fmt.Fprintf(&b, "- %s: %s\n", p.Name, vote)
	}

	if room.Revealed && len(room.Votes) > 0 {
		b.WriteString("\nTally:\n")
		for _, line := range tally(room.Votes) {
			b.WriteString(line)
		}
	}
	return b.String()
}

// tally counts revealed votes per value, most common first.
func tally(votes map[string]string) []string {
	counts := make(map[string]int)
	for _, v := range votes {
		counts[v]++
	}

	values := make([]string, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool {
		if counts[values[i]] != counts[values[j]] {
			return counts[values[i]] > counts[values[j]]
		}
		return values[i] < values[j]
	})

	lines := make([]string, len(values))
	for i, v := range values {
		lines[i] = fmt.Sprintf("- %s x%d\n", v, counts[v])
	}
	return lines
}
