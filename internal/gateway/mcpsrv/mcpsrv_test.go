package mcpsrv

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jkaninda/actiondex/internal/catalog"
	"github.com/jkaninda/actiondex/internal/discovery"
	"github.com/jkaninda/actiondex/internal/domain"
	"github.com/jkaninda/actiondex/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMCP(t *testing.T) *Server {
	t.Helper()
	svc := discovery.New(catalog.New(testLogger()), storage.NewMemoryStore(), nil, discovery.Params{}, testLogger())
	ctx := context.Background()
	if err := svc.Advertise(ctx, domain.Advertisement{
		AgentID:      "agent-1",
		Name:         "token swap",
		Description:  "swap tokens between liquidity pools",
		Capabilities: []string{"defi", "swap"},
	}); err != nil {
		t.Fatalf("Advertise: %v", err)
	}
	if err := svc.Advertise(ctx, domain.Advertisement{
		AgentID:     "agent-2",
		Name:        "weather report",
		Description: "fetch the current weather forecast",
	}); err != nil {
		t.Fatalf("Advertise: %v", err)
	}
	return New(svc, "test", testLogger())
}

func callArgs(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func textContent(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := mcp.AsTextContent(result.Content[0])
	if !ok {
		t.Fatalf("content is not text: %T", result.Content[0])
	}
	return tc.Text
}

func TestDiscoverActionsTool(t *testing.T) {
	s := newTestMCP(t)

	result, err := s.handleDiscover(context.Background(), callArgs(map[string]any{
		"keywords":     "swap tokens",
		"capabilities": "defi",
	}))
	if err != nil {
		t.Fatalf("handleDiscover: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", textContent(t, result))
	}

	var res struct {
		Matches []struct {
			Descriptor struct {
				Name string `json:"name"`
			} `json:"descriptor"`
			Score float64 `json:"score"`
		} `json:"matches"`
		CatalogSize int `json:"catalog_size"`
	}
	if err := json.Unmarshal([]byte(textContent(t, result)), &res); err != nil {
		t.Fatalf("parsing tool output: %v", err)
	}
	if res.CatalogSize != 2 {
		t.Errorf("catalog size = %d, want 2", res.CatalogSize)
	}
	if len(res.Matches) != 1 || res.Matches[0].Descriptor.Name != "token swap" {
		t.Errorf("matches = %+v", res.Matches)
	}
}

func TestDiscoverActionsToolInvalidParams(t *testing.T) {
	s := newTestMCP(t)

	result, err := s.handleDiscover(context.Background(), callArgs(map[string]any{
		"keywords":  "swap",
		"min_score": 2.0,
	}))
	if err != nil {
		t.Fatalf("handleDiscover: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for invalid min_score")
	}
}

func TestListActionsTool(t *testing.T) {
	s := newTestMCP(t)

	result, err := s.handleList(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handleList: %v", err)
	}
	text := textContent(t, result)
	for _, name := range []string{"token swap", "weather report"} {
		if !strings.Contains(text, name) {
			t.Errorf("listing does not contain %q", name)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" defi, swap ,,trading ")
	want := []string{"defi", "swap", "trading"}
	if len(got) != len(want) {
		t.Fatalf("splitList = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("splitList[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if splitList("") != nil {
		t.Error("splitList(\"\") should be nil")
	}
}
