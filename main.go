// Command planning-poker starts the planning poker server.
//
// It supports two modes:
//  1. "serve" (default) – runs the HTTP server exposing the WebSocket endpoint, the REST API, and an /mcp HTTP endpoint
//  2. "mcp" – runs an MCP stdio server and spins up an internal HTTP server if none is available
//
// Settings come from a .env file, the environment, and flags, in increasing
// order of precedence. An optional ngrok tunnel exposes the server publicly
// during development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/planning-poker/api"
	"github.com/wricardo/planning-poker/poker/config"
	"github.com/wricardo/planning-poker/poker/service"
	"github.com/wricardo/planning-poker/poker/session"
	"github.com/wricardo/planning-poker/transport/mcp"
	"github.com/wricardo/planning-poker/transport/websocket"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Planning Poker Server"
)

// statsInterval is how often serve logs connection and room counts.
const statsInterval = time.Minute

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newCommand builds the command tree. Running it without a subcommand
// serves HTTP.
func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "planning-poker",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "Load environment variables from this file if it exists"},
			&cli.StringFlag{Name: "host", Usage: "HTTP server host (env HOST)"},
			&cli.IntFlag{Name: "port", Usage: "HTTP server port (env PORT)"},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging (env DEBUG)"},
			&cli.StringFlag{Name: "log-format", Usage: "Log format, text or json (env LOG_FORMAT)"},
			&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel (env NGROK_ENABLED)"},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token (env NGROK_AUTHTOKEN)"},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (env NGROK_DOMAIN)"},
			&cli.StringFlag{Name: "api-url", Usage: "Existing server for the mcp command to use (env MCP_BASE_URL)"},
		},
		Action: runServe,
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"server", "http"},
				Usage:   "Run HTTP server with WebSocket, REST API, and MCP endpoint",
				Action:  runServe,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "Run MCP stdio server, starting an internal HTTP server if needed",
				Action:  runStdioMCP,
			},
		},
	}
}

// loadSettings reads settings and applies any flags that were set.
func loadSettings(cmd *cli.Command) (*config.Settings, error) {
	settings, err := config.Load(cmd.String("env-file"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("host") {
		settings.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		settings.Port = cmd.Int("port")
	}
	if cmd.IsSet("debug") {
		settings.Debug = cmd.Bool("debug")
	}
	if cmd.IsSet("log-format") {
		settings.LogFormat = cmd.String("log-format")
	}
	if cmd.IsSet("ngrok") {
		settings.NgrokEnabled = cmd.Bool("ngrok")
	}
	if cmd.IsSet("ngrok-auth") {
		settings.NgrokAuthToken = cmd.String("ngrok-auth")
	}
	if cmd.IsSet("ngrok-domain") {
		settings.NgrokDomain = cmd.String("ngrok-domain")
	}
	if cmd.IsSet("api-url") {
		settings.MCPBaseURL = cmd.String("api-url")
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// app holds the wired server components.
type app struct {
	rooms   *session.Manager
	hub     *websocket.Hub
	service service.RoomService
	api     *api.Server
	logger  *slog.Logger
}

// newApp wires the registry, hub, service and API server.
func newApp(settings *config.Settings, logger *slog.Logger) *app {
	hub := websocket.NewHubWithConfig(websocket.Config{
		SendBuffer:     settings.SendBuffer,
		MaxMessageSize: settings.MaxMessageSize,
		AllowedOrigins: settings.AllowedOrigins,
		Logger:         logger,
	})
	rooms := session.NewManager()
	roomService := service.NewRoomService(rooms, hub, logger)

	return &app{
		rooms:   rooms,
		hub:     hub,
		service: roomService,
		api:     api.NewServer(roomService, hub, logger),
		logger:  logger,
	}
}

// handler combines the API server with an /mcp endpoint backed by mcpClient.
func (a *app) handler(mcpClient *mcp.Client) http.Handler {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", a.api)
	if mcpClient != nil {
		mainRouter.Handle("/mcp", mcpHandler(mcpClient))
	}
	return mainRouter
}

// mcpHandler serves MCP JSON-RPC messages over plain HTTP POST.
func mcpHandler(mcpClient *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// runServe starts the HTTP server with the WebSocket hub, REST API, and an
// /mcp proxy endpoint. If ngrok is enabled it also provisions a public
// tunnel.
func runServe(ctx context.Context, cmd *cli.Command) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	logger := settings.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	addr := settings.Addr()
	logger.Info("starting", "app", AppName, "version", Version, "mode", "serve")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(settings, logger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go a.hub.Run(hubCtx)

	// The MCP tools call back into this server's REST API.
	mainRouter := a.handler(mcp.NewClient("http://" + loopbackAddr(settings.Host, settings.Port)))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	httpServer := &http.Server{
		Handler:     mainRouter,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		logger.Info("HTTP server listening", "addr", addr)
		logger.Info("endpoints",
			"websocket", fmt.Sprintf("ws://%s%s", addr, api.SocketPath),
			"rest", fmt.Sprintf("http://%s/api/rooms", addr),
			"mcp", fmt.Sprintf("http://%s/mcp", addr))

		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if settings.NgrokEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, settings, mainRouter, logger)
		}()
	}

	go reportStats(ctx, a, logger, statsInterval)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-serveErr:
		logger.Error("HTTP server failed", "error", err)
	}
	stop()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error("HTTP server shutdown error", "error", shutdownErr)
	}

	// Closing the hub ends every WebSocket connection.
	stopHub()

	wg.Wait()
	logger.Info("server stopped")
	return err
}

// runNgrok exposes handler through an ngrok tunnel until ctx is done.
func runNgrok(ctx context.Context, settings *config.Settings, handler http.Handler, logger *slog.Logger) {
	if settings.NgrokAuthToken == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN)")
		return
	}

	logger.Info("starting ngrok tunnel")

	var tunnel ngrokConfig.Tunnel
	if settings.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(settings.NgrokDomain))
		logger.Info("using custom ngrok domain", "domain", settings.NgrokDomain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx,
		tunnel,
		ngrok.WithAuthtoken(settings.NgrokAuthToken),
	)
	if err != nil {
		logger.Error("failed to start ngrok tunnel", "error", err)
		return
	}

	ngrokURL := tun.URL()
	logger.Info("ngrok tunnel established",
		"url", ngrokURL,
		"websocket", ngrokURL+api.SocketPath,
		"mcp", ngrokURL+"/mcp")

	tunnelServer := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		tunnelServer.Close()
	}()

	if err := tunnelServer.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("ngrok server error", "error", err)
	}
	logger.Info("ngrok tunnel closed")
}

// reportStats periodically logs how many connections and rooms are live.
func reportStats(ctx context.Context, a *app, logger *slog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			clients, subscribed := a.hub.Stats()
			logger.Info("stats", "connections", clients, "rooms", a.rooms.Count(), "subscribed_rooms", subscribed)
		}
	}
}

// runStdioMCP runs an MCP stdio server. It reuses a running server at the
// configured API URL if one answers its health check; otherwise it starts an
// internal HTTP server on a random loopback port and targets that.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	// Stdout carries the protocol; logs go to stderr only.
	logger := settings.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	baseURL := settings.MCPBaseURL
	logger.Info("checking for external API server", "url", baseURL)

	if !healthy(ctx, baseURL) {
		logger.Info("no external API server found, starting internal HTTP server")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		a := newApp(settings, logger)
		hubCtx, stopHub := context.WithCancel(context.Background())
		defer stopHub()
		go a.hub.Run(hubCtx)

		httpServer := &http.Server{Handler: a.handler(nil)}
		defer httpServer.Close()

		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("internal HTTP server error", "error", err)
			}
		}()

		baseURL = "http://" + listener.Addr().String()
		logger.Info("internal HTTP server started", "url", baseURL)
	}

	mcpClient := mcp.NewClient(baseURL)
	logger.Info("MCP stdio server ready", "api", baseURL)

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// healthy reports whether a server at baseURL answers /healthz.
func healthy(ctx context.Context, baseURL string) bool {
	if baseURL == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// loopbackAddr returns an address this process can use to reach its own
// listener. Wildcard hosts are replaced with the loopback address.
func loopbackAddr(host string, port int) string {
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, fmt.Sprintf("%d", port))
}
