// Command scrub-server hosts the scrubbing tools as an MCP server over
// standard input/output. The gateway spawns it as a child process and
// drives it through the toolserver channel.
//
// SCRUB_DATA_PATH sets the sandbox root for file-mode scrubbing
// (default: /data/scrub). Diagnostics go to standard error, which the
// parent discards; the protocol stream owns standard output.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/scrubgate/scrubgate/pkg/api"
	"github.com/scrubgate/scrubgate/pkg/sandbox"
	"github.com/scrubgate/scrubgate/pkg/scrub"
)

type scrubTextInput struct {
	Text      string   `json:"text" jsonschema_description:"The text to scrub"`
	ItemTypes []string `json:"item_types" jsonschema_description:"Item types to scrub for"`
}

type scrubFileInput struct {
	InputPath  string   `json:"input_path" jsonschema_description:"Input filename inside the sandbox in/ directory"`
	OutputPath string   `json:"output_path" jsonschema_description:"Output filename inside the sandbox out/ directory"`
	ItemTypes  []string `json:"item_types" jsonschema_description:"Item types to scrub for"`
}

func main() {
	dataPath := os.Getenv("SCRUB_DATA_PATH")
	if dataPath == "" {
		dataPath = "/data/scrub"
	}
	box, err := sandbox.New(dataPath)
	if err != nil {
		log.Fatalf("sandbox init failed: %v", err)
	}

	server := mcp.NewServer(
		&mcp.Implementation{Name: "scrub-server", Version: "v1.0.0"},
		nil,
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "scrub_prompt",
		Description: "Replaces sensitive values in chat prompt text with placeholders",
	}, func(_ context.Context, _ *mcp.CallToolRequest, in scrubTextInput) (*mcp.CallToolResult, struct{}, error) {
		result := scrub.Text(in.Text, toItemTypes(in.ItemTypes), scrub.Standard, scrub.NewTokenizer())
		return jsonResult(result)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "scrub_log_as_prompt",
		Description: "Replaces sensitive values in log-like text with placeholders, using the merged prompt and log pattern vocabulary",
	}, func(_ context.Context, _ *mcp.CallToolRequest, in scrubTextInput) (*mcp.CallToolResult, struct{}, error) {
		result := scrub.Text(in.Text, toItemTypes(in.ItemTypes), scrub.Merged(), scrub.NewTokenizer())
		return jsonResult(result)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "scrub_log_as_file",
		Description: "Scrubs a staged file line by line inside the sandbox",
	}, func(_ context.Context, _ *mcp.CallToolRequest, in scrubFileInput) (*mcp.CallToolResult, struct{}, error) {
		inPath, err := box.Resolve(in.InputPath, "in")
		if err != nil {
			return nil, struct{}{}, fmt.Errorf("input path rejected: %w", err)
		}
		outPath, err := box.Resolve(in.OutputPath, "out")
		if err != nil {
			return nil, struct{}{}, fmt.Errorf("output path rejected: %w", err)
		}
		result, err := scrub.File(inPath, outPath, toItemTypes(in.ItemTypes))
		if err != nil {
			return nil, struct{}{}, err
		}
		return jsonResult(result)
	})

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatalf("scrub-server failed: %v", err)
	}
}

// jsonResult wraps v as a JSON text content block, the shape the gateway's
// channel unwraps.
func jsonResult(v any) (*mcp.CallToolResult, struct{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, struct{}{}, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}},
	}, struct{}{}, nil
}

// toItemTypes converts the wire strings, dropping anything outside the
// vocabulary. Unknown types are skipped, not errors.
func toItemTypes(names []string) []api.ItemType {
	out := make([]api.ItemType, 0, len(names))
	for _, n := range names {
		t := api.ItemType(n)
		if api.ValidItemType(t) {
			out = append(out, t)
		}
	}
	return out
}
