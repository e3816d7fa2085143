package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewServer creates an MCP server exposing every operation of d.
func NewServer(d *Dispatcher, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "mail-mcp", Version: version}, nil)

	for _, spec := range Catalog() {
		name := spec.Name
		server.AddTool(&mcp.Tool{
			Name:        name,
			Description: spec.Description,
			InputSchema: spec.Schema,
		}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, err := rawArgs(req.Params.Arguments)
			if err != nil {
				return errorResult(err), nil
			}
			return d.Handle(ctx, name, args), nil
		})
	}

	return server
}

func rawArgs(raw json.RawMessage) (map[string]any, error) {
	args := map[string]any{}
	if len(raw) == 0 || string(raw) == "null" {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	return args, nil
}
