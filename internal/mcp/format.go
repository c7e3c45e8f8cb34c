package mcp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/semsearch/internal/daemon"
)

// successResult renders a dispatcher result. Query results are returned as
// the ranked text block; everything else as indented JSON.
func successResult(result any) *mcp.CallToolResult {
	text := formatResult(result)
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: text}},
		StructuredContent: result,
	}
}

func formatResult(result any) string {
	switch r := result.(type) {
	case daemon.QueryResult:
		return r.Text
	case daemon.IndexesResult:
		if len(r.Indexes) == 0 {
			return "No indexes."
		}
		return strings.Join(r.Indexes, "\n")
	case daemon.DocumentsResult:
		if len(r.DocIDs) == 0 {
			return fmt.Sprintf("Index %q has no documents.", r.Name)
		}
		return strings.Join(r.DocIDs, "\n")
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(data)
}

// errorResult reports a failed operation to the client. The text names the
// error kind first so the model can tell validation problems from outages.
func errorResult(e *daemon.Error) *mcp.CallToolResult {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", e.Kind, e.Message)
	if e.ErrorCode != "" {
		fmt.Fprintf(&sb, " [%s]", e.ErrorCode)
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&sb, "\nSuggestion: %s", e.Suggestion)
	}
	return &mcp.CallToolResult{
		IsError:           true,
		Content:           []mcp.Content{&mcp.TextContent{Text: sb.String()}},
		StructuredContent: map[string]any{"error": e},
	}
}
