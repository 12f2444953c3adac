// Package config provides server settings for the planning poker server.
//
// The config package handles:
//   - Seeding the environment from an optional .env file
//   - Parsing settings from environment variables
//   - Settings validation
//   - Building the structured logger the rest of the server uses
//
// Environment Variables:
//
//	HOST              listen host (default 0.0.0.0)
//	PORT              listen port (default 3000)
//	DEBUG             enable debug logging
//	LOG_FORMAT        "text" (default) or "json"
//	ALLOWED_ORIGINS   comma separated WebSocket origins; empty allows all
//	SEND_BUFFER       outbound messages queued per connection
//	MAX_MESSAGE_SIZE  largest inbound WebSocket message, in bytes
//	NGROK_ENABLED     expose the server through an ngrok tunnel
//	NGROK_AUTHTOKEN   ngrok auth token (NGROK_AUTH_TOKEN also accepted)
//	NGROK_DOMAIN      custom ngrok domain
//	MCP_BASE_URL      API the stdio MCP server proxies when one is running
//
// Usage:
//
//	settings, err := config.Load(".env")
//	if err != nil {
//		log.Fatal(err)
//	}
//	logger := settings.NewLogger(os.Stderr)
//
// Command-line flags are applied by the caller after Load and before Validate.
package config
