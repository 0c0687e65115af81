package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/motivate/internal/motivation"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T) MCPDeps {
	t.Helper()
	return MCPDeps{Sessions: newTestSessions(t, nil)}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// --- tests ---

func TestMCPTool_Generate(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpGenerate(deps)

	result, err := handler(context.Background(), makeCallToolRequest("generate_motivation", map[string]interface{}{
		"user_id":      "u1",
		"mood":         "excited",
		"energy_level": "high",
		"goals":        []interface{}{"starte bedrift"},
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var state motivation.State
	if err := json.Unmarshal([]byte(toolText(t, result)), &state); err != nil {
		t.Fatalf("decoding state: %v", err)
	}
	if state.Profile.CurrentMood != motivation.Excited {
		t.Errorf("mood = %s, want excited", state.Profile.CurrentMood)
	}
	if len(state.Profile.Goals) != 1 || state.Profile.Goals[0] != "starte bedrift" {
		t.Errorf("goals = %v", state.Profile.Goals)
	}
	if state.Messages[0].Type != motivation.Challenge {
		t.Errorf("primary type = %s, want challenge", state.Messages[0].Type)
	}
	if !strings.Contains(state.Messages[2].Message, "starte bedrift") {
		t.Errorf("future pacing message %q does not mention the goal", state.Messages[2].Message)
	}
}

func TestMCPTool_Generate_SeedsMotivationType(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpGenerate(deps)

	result, _ := handler(context.Background(), makeCallToolRequest("generate_motivation", map[string]interface{}{
		"user_id":         "u1",
		"motivation_type": "contribution",
	}))
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	var state motivation.State
	json.Unmarshal([]byte(toolText(t, result)), &state)
	if state.Profile.MotivationType != motivation.Contribution {
		t.Errorf("motivationType = %s, want contribution", state.Profile.MotivationType)
	}
}

func TestMCPTool_Generate_MissingUser(t *testing.T) {
	deps := newTestMCPDeps(t)
	result, err := mcpGenerate(deps)(context.Background(), makeCallToolRequest("generate_motivation", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for missing user_id")
	}
}

func TestMCPTool_Generate_InvalidStress(t *testing.T) {
	deps := newTestMCPDeps(t)
	result, _ := mcpGenerate(deps)(context.Background(), makeCallToolRequest("generate_motivation", map[string]interface{}{
		"user_id":      "u1",
		"stress_level": "extreme",
	}))
	if !result.IsError {
		t.Fatal("expected tool error for invalid stress level")
	}
	if text := toolText(t, result); !strings.Contains(text, "stressLevel") {
		t.Errorf("error %q does not name the field", text)
	}
}

func TestMCPTool_Explain(t *testing.T) {
	deps := newTestMCPDeps(t)

	result, _ := mcpExplain(deps)(context.Background(), makeCallToolRequest("explain_motivation", map[string]interface{}{
		"user_id": "u1",
	}))
	if !result.IsError {
		t.Error("expected tool error before any generation")
	}

	mcpGenerate(deps)(context.Background(), makeCallToolRequest("generate_motivation", map[string]interface{}{
		"user_id": "u1",
		"mood":    "overwhelmed",
	}))

	result, err := mcpExplain(deps)(context.Background(), makeCallToolRequest("explain_motivation", map[string]interface{}{
		"user_id": "u1",
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	text := toolText(t, result)
	if !strings.Contains(text, "overwhelmed") || !strings.Contains(text, "2 meldinger") {
		t.Errorf("summary = %q", text)
	}
}

func TestMCPServer_ConcurrentCalls(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpGenerate(deps)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := handler(context.Background(), makeCallToolRequest("generate_motivation", map[string]interface{}{
				"user_id": fmt.Sprintf("user-%d", i%4),
			}))
			if err != nil {
				errs <- err.Error()
				return
			}
			if result.IsError {
				errs <- fmt.Sprintf("tool error for user-%d", i%4)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Errorf("concurrent call failed: %s", e)
	}

	state, err := deps.Sessions.State("user-0")
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if len(state.RecentInteractions) != n/4 {
		t.Errorf("user-0 interactions = %d, want %d", len(state.RecentInteractions), n/4)
	}
}

func TestNewMCPServer(t *testing.T) {
	s := NewMCPServer(newTestMCPDeps(t))
	if s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}
