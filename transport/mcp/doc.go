// Package mcp provides a Model Context Protocol server for inspecting a
// running planning poker server.
//
// The mcp package implements:
//   - Read-only tools backed by the REST API
//   - Plain text summaries suited to AI agents
//   - Stdio and HTTP transport modes
//
// MCP Tools:
//   - list_rooms: List live rooms, optionally sorted and limited
//   - get_room: Show a room's participants, voting progress and, once
//     revealed, the values and their tally
//   - list_scales: List the voting scales and their cards
//
// The tools never change room state; participating in a round requires a
// WebSocket connection.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:3000")
//
//	// Stdio mode
//	server.ServeStdio(client.GetMCPServer())
//
//	// HTTP mode
//	response := client.GetMCPServer().HandleMessage(ctx, body)
package mcp
