package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/semsearch/internal/config"
	"github.com/Aman-CERP/semsearch/internal/daemon"
	"github.com/Aman-CERP/semsearch/internal/embed"
	"github.com/Aman-CERP/semsearch/internal/index"
	"github.com/Aman-CERP/semsearch/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Storage.Root = t.TempDir()
	st, err := store.New(cfg.Storage.Root, store.BackendFile)
	require.NoError(t, err)
	svc, err := index.NewService(cfg, st, embed.NewStaticEmbedder())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	s, err := NewServer(daemon.NewDispatcher(svc, 1))
	require.NoError(t, err)
	return s
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return tc.Text
}

func TestNewServer_RequiresDispatcher(t *testing.T) {
	_, err := NewServer(nil)
	assert.Error(t, err)
}

func TestServer_ListTools(t *testing.T) {
	s := newTestServer(t)

	names := make([]string, 0)
	for _, tool := range s.ListTools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
	}

	assert.Equal(t, []string{
		"create_index", "delete_index", "list_indexes",
		"add_document", "remove_document", "list_documents", "query",
	}, names)
}

func TestServer_Call_Session(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	// Given: a corpus with two documents
	res := s.call(ctx, daemon.MethodCreateIndex, daemon.IndexParams{Name: "kb"})
	require.False(t, res.IsError, textOf(t, res))
	res = s.call(ctx, daemon.MethodAddDocument, daemon.DocumentParams{Name: "kb", DocID: "tea", Text: "green tea leaves steep"})
	require.False(t, res.IsError, textOf(t, res))
	res = s.call(ctx, daemon.MethodAddDocument, daemon.DocumentParams{Name: "kb", DocID: "gpu", Text: "graphics cards render frames"})
	require.False(t, res.IsError, textOf(t, res))

	// When: querying
	res = s.call(ctx, daemon.MethodQuery, daemon.QueryParams{Name: "kb", QueryText: "steep green tea", TopK: 1})

	// Then: the ranked text block is returned
	require.False(t, res.IsError)
	text := textOf(t, res)
	assert.Contains(t, text, "--- Result 1/1 (Score: ")
	assert.Contains(t, text, "Source: /corpus/tea")
	assert.Contains(t, text, "Content: green tea leaves steep")

	res = s.call(ctx, daemon.MethodListDocuments, daemon.IndexParams{Name: "kb"})
	assert.Equal(t, "tea\ngpu", textOf(t, res))

	res = s.call(ctx, daemon.MethodListIndexes, nil)
	assert.Equal(t, "kb", textOf(t, res))
}

func TestServer_Call_Errors(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	require.False(t, s.call(ctx, daemon.MethodCreateIndex, daemon.IndexParams{Name: "kb"}).IsError)

	tests := []struct {
		name     string
		method   string
		params   any
		wantKind string
	}{
		{"conflict", daemon.MethodCreateIndex, daemon.IndexParams{Name: "kb"}, "ConflictError"},
		{"missing index", daemon.MethodDeleteIndex, daemon.IndexParams{Name: "nope"}, "NotFoundError"},
		{"illegal name", daemon.MethodListDocuments, daemon.IndexParams{Name: "a/b"}, "ValidationError"},
		{"empty text", daemon.MethodAddDocument, daemon.DocumentParams{Name: "kb", DocID: "x"}, "ValidationError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.call(ctx, tt.method, tt.params)

			require.True(t, res.IsError)
			assert.Contains(t, textOf(t, res), tt.wantKind+": ")
			structured, ok := res.StructuredContent.(map[string]any)
			require.True(t, ok)
			assert.Equal(t, tt.wantKind, structured["error"].(*daemon.Error).Kind)
		})
	}
}

func TestServer_Call_EmptyCorpusSentinel(t *testing.T) {
	s := newTestServer(t)

	res := s.call(context.Background(), daemon.MethodQuery, daemon.QueryParams{Name: "fresh", QueryText: "hello"})

	require.False(t, res.IsError)
	assert.Equal(t, index.NoResultsMessage, textOf(t, res))
}

func TestServer_InMemorySession(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := s.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer func() { _ = serverSession.Close() }()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer func() { _ = session.Close() }()

	// When: a client calls tools over the protocol
	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "add_document",
		Arguments: map[string]any{"name": "kb", "doc_id": "d1", "text": "hello there"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "delete_index",
		Arguments: map[string]any{"name": "missing"},
	})

	// Then: failures come back as tool errors, not protocol errors
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, textOf(t, res), "NotFoundError")

	// And: the status resource is readable
	rr, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: StatusURI})
	require.NoError(t, err)
	require.Len(t, rr.Contents, 1)
	assert.Contains(t, rr.Contents[0].Text, `"indexes"`)
}

func TestServer_NameSchemaDescribesValidation(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := s.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer func() { _ = serverSession.Close() }()
	session, err := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil).
		Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer func() { _ = session.Close() }()

	// When: a client reads the create_index schema
	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	var schema string
	for _, tool := range tools.Tools {
		if tool.Name == "create_index" {
			raw, err := json.Marshal(tool.InputSchema)
			require.NoError(t, err)
			schema = string(raw)
		}
	}

	// Then: it states the rule that is enforced
	assert.Contains(t, schema, "does not start with a dot")
	assert.NotContains(t, schema, "letters, digits")

	tests := []struct {
		name    string
		wantErr bool
	}{
		{"my notes", false},
		{"café-2", false},
		{".hidden", true},
		{"a..b", true},
		{"a/b", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.call(ctx, daemon.MethodCreateIndex, daemon.IndexParams{Name: tt.name})
			assert.Equal(t, tt.wantErr, res.IsError, textOf(t, res))
		})
	}
}

func TestFormatResult(t *testing.T) {
	tests := []struct {
		name   string
		result any
		want   string
	}{
		{"no indexes", daemon.IndexesResult{Indexes: []string{}}, "No indexes."},
		{"indexes", daemon.IndexesResult{Indexes: []string{"a", "b"}}, "a\nb"},
		{"no documents", daemon.DocumentsResult{Name: "kb", DocIDs: []string{}}, `Index "kb" has no documents.`},
		{"ok", daemon.OKResult{Status: "ok", Name: "kb"}, "{\n  \"status\": \"ok\",\n  \"name\": \"kb\"\n}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatResult(tt.result))
		})
	}
}
