// Package mcp exposes the corpus operations as Model Context Protocol tools.
// Every tool call goes through the daemon dispatcher, so validation, error
// kinds and logging match the socket transport exactly.
package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/semsearch/internal/daemon"
	"github.com/Aman-CERP/semsearch/pkg/version"
)

// ServerName is reported to MCP clients during initialization.
const ServerName = "semsearch"

// Server is the MCP server.
type Server struct {
	mcp        *mcp.Server
	dispatcher *daemon.Dispatcher
	logger     *slog.Logger
}

// NewServer creates an MCP server that routes tool calls to dispatcher.
func NewServer(dispatcher *daemon.Dispatcher) (*Server, error) {
	if dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}

	s := &Server{
		dispatcher: dispatcher,
		logger:     slog.Default(),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	s.registerStatusResource()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

func (s *Server) registerTools() {
	describe := func(name string) *mcp.Tool {
		for _, t := range tools {
			if t.Name == name {
				return &mcp.Tool{Name: t.Name, Description: t.Description}
			}
		}
		panic("unregistered tool " + name)
	}

	mcp.AddTool(s.mcp, describe(daemon.MethodCreateIndex),
		func(ctx context.Context, _ *mcp.CallToolRequest, in IndexInput) (*mcp.CallToolResult, any, error) {
			return s.call(ctx, daemon.MethodCreateIndex, daemon.IndexParams{Name: in.Name}), nil, nil
		})
	mcp.AddTool(s.mcp, describe(daemon.MethodDeleteIndex),
		func(ctx context.Context, _ *mcp.CallToolRequest, in IndexInput) (*mcp.CallToolResult, any, error) {
			return s.call(ctx, daemon.MethodDeleteIndex, daemon.IndexParams{Name: in.Name}), nil, nil
		})
	mcp.AddTool(s.mcp, describe(daemon.MethodListIndexes),
		func(ctx context.Context, _ *mcp.CallToolRequest, _ ListIndexesInput) (*mcp.CallToolResult, any, error) {
			return s.call(ctx, daemon.MethodListIndexes, nil), nil, nil
		})
	mcp.AddTool(s.mcp, describe(daemon.MethodAddDocument),
		func(ctx context.Context, _ *mcp.CallToolRequest, in AddDocumentInput) (*mcp.CallToolResult, any, error) {
			return s.call(ctx, daemon.MethodAddDocument, daemon.DocumentParams{Name: in.Name, DocID: in.DocID, Text: in.Text}), nil, nil
		})
	mcp.AddTool(s.mcp, describe(daemon.MethodRemoveDocument),
		func(ctx context.Context, _ *mcp.CallToolRequest, in DocumentInput) (*mcp.CallToolResult, any, error) {
			return s.call(ctx, daemon.MethodRemoveDocument, daemon.DocumentParams{Name: in.Name, DocID: in.DocID}), nil, nil
		})
	mcp.AddTool(s.mcp, describe(daemon.MethodListDocuments),
		func(ctx context.Context, _ *mcp.CallToolRequest, in IndexInput) (*mcp.CallToolResult, any, error) {
			return s.call(ctx, daemon.MethodListDocuments, daemon.IndexParams{Name: in.Name}), nil, nil
		})
	mcp.AddTool(s.mcp, describe(daemon.MethodQuery),
		func(ctx context.Context, _ *mcp.CallToolRequest, in QueryInput) (*mcp.CallToolResult, any, error) {
			return s.call(ctx, daemon.MethodQuery, daemon.QueryParams{Name: in.Name, QueryText: in.QueryText, TopK: in.TopK}), nil, nil
		})
}

// call dispatches one operation and converts the response into a tool
// result. Failures become IsError results carrying the structured error.
func (s *Server) call(ctx context.Context, method string, params any) *mcp.CallToolResult {
	req := daemon.Request{JSONRPC: "2.0", Method: method, ID: generateRequestID()}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return errorResult(&daemon.Error{
				Code:    daemon.ErrCodeInternalError,
				Kind:    "InternalError",
				Message: fmt.Sprintf("failed to encode params: %v", err),
			})
		}
		req.Params = raw
	}

	resp := s.dispatcher.Dispatch(ctx, req)
	if resp.Error != nil {
		return errorResult(resp.Error)
	}
	return successResult(resp.Result)
}

// registerStatusResource exposes service status as a JSON resource.
func (s *Server) registerStatusResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "status",
			URI:         StatusURI,
			Description: "Embedding model, storage backend and corpora of this service",
			MIMEType:    "application/json",
		},
		func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			resp := s.dispatcher.Dispatch(ctx, daemon.Request{JSONRPC: "2.0", Method: daemon.MethodStatus, ID: generateRequestID()})
			if resp.Error != nil {
				return nil, resp.Error.ServiceError()
			}
			content, err := json.MarshalIndent(resp.Result, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to encode status: %w", err)
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{URI: StatusURI, MIMEType: "application/json", Text: string(content)},
				},
			}, nil
		},
	)
}

// StatusURI identifies the status resource.
const StatusURI = "semsearch://status"

// Serve runs the server over stdio until ctx is cancelled or the client
// disconnects.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting MCP server", slog.String("transport", "stdio"))

	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped")
	return nil
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return "mcp-" + hex.EncodeToString(b)
}
