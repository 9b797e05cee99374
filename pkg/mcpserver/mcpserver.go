// Package mcpserver exposes code execution as an MCP tool.
//
// The run_code tool goes through the same executor chain as POST /run, so
// MCP runs are logged, stored and metered like HTTP runs.
package mcpserver

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/compii/playground/pkg/api"
	"github.com/compii/playground/pkg/debug"
	"github.com/compii/playground/pkg/transport"
)

// ToolName is the name of the code execution tool.
const ToolName = "run_code"

// RunCodeInput is the tool's argument object.
type RunCodeInput struct {
	Code string `json:"code" jsonschema:"program source passed to the compiler verbatim"`
}

// RunCodeOutput is the tool's structured result.
type RunCodeOutput struct {
	RunID    string `json:"run_id"`
	Status   string `json:"status"`
	ExitCode int    `json:"exit_code"`
	Output   string `json:"output"`
}

// New builds an MCP server with the run_code tool registered.
func New(executor transport.Executor, version string) *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{Name: "compii-playground", Version: version},
		nil,
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolName,
		Description: "Compile and run a program with the compii compiler and return its output",
	}, runCode(executor))

	return server
}

// Handler serves server over the streamable HTTP transport.
func Handler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}

func runCode(executor transport.Executor) mcp.ToolHandlerFor[RunCodeInput, RunCodeOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in RunCodeInput) (*mcp.CallToolResult, RunCodeOutput, error) {
		debug.Log("mcp", "run_code called", "code_bytes", len(in.Code))

		run, err := executor.Execute(ctx, &api.RunRequest{Code: in.Code})
		if err != nil {
			return textResult(err.Error(), true), RunCodeOutput{Output: err.Error(), ExitCode: -1}, nil
		}

		out := RunCodeOutput{
			RunID:    run.ID,
			Status:   string(run.Status),
			ExitCode: run.ExitCode,
			Output:   run.Output,
		}
		return textResult(run.Output, !run.Succeeded()), out, nil
	}
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: isError,
	}
}
