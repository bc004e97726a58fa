// Package mcpsrv exposes action discovery over the Model Context Protocol,
// so LLM hosts can query the catalog as ordinary tools over stdio.
package mcpsrv

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jkaninda/actiondex/internal/discovery"
	"github.com/jkaninda/actiondex/internal/matching"
)

// Server wraps an MCP stdio server around the discovery service.
type Server struct {
	svc    *discovery.Service
	mcp    *server.MCPServer
	logger *slog.Logger
}

// New creates the MCP server and registers the discovery tools.
func New(svc *discovery.Service, version string, logger *slog.Logger) *Server {
	s := &Server{
		svc:    svc,
		logger: logger,
	}

	s.mcp = server.NewMCPServer("actiondex", version,
		server.WithToolCapabilities(false),
	)

	s.mcp.AddTool(mcp.NewTool("discover_actions",
		mcp.WithDescription("Rank advertised agent actions against keywords and capability tags, returning the best matches with their scores."),
		mcp.WithString("keywords",
			mcp.Description("Space-separated keywords describing the desired action"),
		),
		mcp.WithString("capabilities",
			mcp.Description("Comma-separated capability tags the action should cover"),
		),
		mcp.WithString("context",
			mcp.Description("Optional free-text conversation context"),
		),
		mcp.WithNumber("min_score",
			mcp.Description("Minimum composite score between 0 and 1 (default 0.3)"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of results (default 50)"),
		),
	), s.handleDiscover)

	s.mcp.AddTool(mcp.NewTool("list_actions",
		mcp.WithDescription("List all currently advertised actions with their descriptions and capability tags."),
	), s.handleList)

	return s
}

// ServeStdio blocks serving MCP over stdin/stdout until the stream closes.
func (s *Server) ServeStdio() error {
	s.logger.Info("mcp server starting", slog.String("transport", "stdio"))
	return server.ServeStdio(s.mcp)
}

func (s *Server) handleDiscover(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := matching.Query{
		Keywords:     splitFields(req.GetString("keywords", "")),
		Capabilities: splitList(req.GetString("capabilities", "")),
		ContextTerms: splitFields(req.GetString("context", "")),
	}

	var override *discovery.Params
	minScore := req.GetFloat("min_score", 0)
	maxResults := req.GetInt("max_results", 0)
	if minScore != 0 || maxResults != 0 {
		override = &discovery.Params{MinScore: minScore, MaxResults: maxResults}
	}

	res, err := s.svc.Discover(ctx, q, override)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("discovery failed: %v", err)), nil
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) handleList(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ads := s.svc.Advertisements()
	out, err := json.MarshalIndent(ads, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding catalog: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

// splitFields splits on whitespace, dropping empty tokens.
func splitFields(s string) []string {
	return strings.Fields(s)
}

// splitList splits a comma-separated list, trimming whitespace.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
