package mcp

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"
)

// RegisterPrompts registers MCP prompts for common dispatch workflows.
func RegisterPrompts(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}

	srv.Prompt("morning_dispatch").
		Description("Walk through today's routes before the first pickup: missing drivers, delays and open review flags.").
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			return userPrompt("Morning Dispatch Check", `Help me check today's routes before they start. Please:

1. Read the convoy://routes/today resource
2. List every route in DRIVER_MISSING and say which ones start within the hour
3. For routes with open flags, call route.flags and summarize which stops need a decision
4. For routes already IN_PROGRESS, call route.delays and report any stop running late

Do not change anything yet. End with a short list of actions I should take, most urgent first.`), nil
		})

	srv.Prompt("review_flags").
		Description("Resolve stops flagged after an absence was withdrawn on one route.").
		Argument("route_id", "The route whose flags to review", true).
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			routeID := args["route_id"]
			if routeID == "" {
				return nil, fmt.Errorf("route_id is required")
			}
			return userPrompt("Review Flags", fmt.Sprintf(`Route %s has stops that were cancelled for an absence which has since been withdrawn.

1. Call route.show for the route and route.flags to list the open flags
2. For each flagged stop, tell me the child, the address and the original time
3. Ask me whether the child should be picked up after all; the stop will not be reinstated automatically
4. Once I have decided, call route.clear_flag for each flag I confirm`, routeID)), nil
		})

	return nil
}

func userPrompt(description, text string) *mcp.PromptResult {
	return &mcp.PromptResult{
		Description: description,
		Messages: []mcp.PromptMessage{
			{
				Role: string(mcp.RoleUser),
				Content: mcp.TextContent{
					Type: "text",
					Text: text,
				},
			},
		},
	}
}
