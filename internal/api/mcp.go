package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/motivate/internal/motivation"
	"github.com/kalambet/motivate/internal/session"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Sessions Sessions
	Version  string
}

// NewMCPServer creates an MCP server exposing the motivation tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = motivation.EngineVersion
	}
	s := server.NewMCPServer(
		"motivate",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("motivate generates personalized motivational messages and strategies with short explanations."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("generate_motivation",
			mcp.WithDescription("Update a user's motivational profile and generate messages and strategies for their current state."),
			mcp.WithString("user_id", mcp.Description("User identifier"), mcp.Required()),
			mcp.WithString("mood", mcp.Description("Current mood"),
				mcp.Enum(enumValues(motivation.Moods)...)),
			mcp.WithString("energy_level", mcp.Description("Current energy level"),
				mcp.Enum(enumValues(motivation.EnergyLevels)...)),
			mcp.WithString("stress_level", mcp.Description("Current stress level"),
				mcp.Enum(enumValues(motivation.StressLevels)...)),
			mcp.WithString("motivation_type", mcp.Description("Initial motivation type, used only for a new user"),
				mcp.Enum(enumValues(motivation.MotivationTypes)...)),
			mcp.WithArray("goals", mcp.Description("Replaces the user's goals; the first goal personalizes messages")),
			mcp.WithArray("challenges", mcp.Description("Replaces the user's challenges")),
		),
		mcpGenerate(deps),
	)

	s.AddTool(
		mcp.NewTool("explain_motivation",
			mcp.WithDescription("Explain in one sentence why the user received their current messages and strategies."),
			mcp.WithString("user_id", mcp.Description("User identifier"), mcp.Required()),
		),
		mcpExplain(deps),
	)

	return s
}

func mcpGenerate(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil || userID == "" {
			return mcpError("user_id is required"), nil
		}

		u := motivation.Update{
			Mood:        motivation.Mood(req.GetString("mood", "")),
			EnergyLevel: motivation.EnergyLevel(req.GetString("energy_level", "")),
			StressLevel: motivation.StressLevel(req.GetString("stress_level", "")),
			Goals:       req.GetStringSlice("goals", nil),
			Challenges:  req.GetStringSlice("challenges", nil),
		}
		seed := motivation.Seed{
			MotivationType: motivation.MotivationType(req.GetString("motivation_type", "")),
		}

		state, err := deps.Sessions.Generate(userID, seed, u)
		if err != nil {
			var ve *motivation.ValidationError
			if errors.As(err, &ve) {
				return mcpError(err.Error()), nil
			}
			return mcpError(fmt.Sprintf("generation failed: %v", err)), nil
		}

		b, err := json.Marshal(state)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal state: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpExplain(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil || userID == "" {
			return mcpError("user_id is required"), nil
		}

		summary, err := deps.Sessions.Explain(userID)
		if errors.Is(err, session.ErrUnknownUser) {
			return mcpError(fmt.Sprintf("no motivation state for user %q; call generate_motivation first", userID)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("explain failed: %v", err)), nil
		}
		return mcpText(summary), nil
	}
}

func enumValues[T ~string](vals []T) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = string(v)
	}
	return out
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
